package viewmodel

// MatchRow is one entry of the home page match list.
type MatchRow struct {
	ID      string
	URL     string
	Players int
	Status  string
	Open    bool
}

// HomePage holds data for the landing page.
type HomePage struct {
	Title   string
	Matches []MatchRow
}

// PlayerRow holds a player's name and score for rendering.
type PlayerRow struct {
	ID    string
	Name  string
	Score int
	Lost  bool
}

// BoardView is a rendered board: rows of cell colors, "" for empty.
type BoardView struct {
	PlayerID   string
	PlayerName string
	Rows       [][]string
	Score      int
	Lost       bool
}

// MatchPage holds data for the match page template.
type MatchPage struct {
	Title     string
	MatchID   string
	ClientID  string
	InviteURL string
	WSPath    string
	StatePath string
	Status    string
	Countdown int
	Players   []PlayerRow
	Boards    []BoardView
	Reason    string
	Seats     int
}
