package game

import "errors"

const (
	BoardWidth  = 10
	BoardHeight = 20

	// LinePoints is awarded per cleared row.
	LinePoints = 100

	// Lost overwrites a player's score when their board tops out. It is a
	// terminal marker, not a score.
	Lost = -1

	// SpawnX is the column new pieces appear at.
	SpawnX = BoardWidth/2 - 1
)

// ErrQueueExhausted is returned when a board needs a piece past the end of the queue.
var ErrQueueExhausted = errors.New("piece queue exhausted")

// Position is a cell coordinate; y grows downwards and may be negative above the board.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Piece is a draft placed on a board.
type Piece struct {
	Shape    Shape    `json:"shape"`
	Color    string   `json:"color"`
	Position Position `json:"position"`
}

func (p Piece) shifted(dx, dy int) Piece {
	p.Position = Position{X: p.Position.X + dx, Y: p.Position.Y + dy}
	return p
}

// Grid holds locked cells; "" is empty, otherwise the hex color of the piece that locked there.
type Grid [BoardHeight][BoardWidth]string

// TickResult describes what one gravity step did.
type TickResult struct {
	Moved     bool
	Locked    bool
	Cleared   int
	ToppedOut bool
}

// Board is one player's simulation: locked cells, the falling piece and a cursor
// into the shared queue. It is not safe for concurrent use; the owning match
// serializes access.
type Board struct {
	grid      Grid
	moving    *Piece
	queue     PieceQueue
	cursor    int
	score     int
	toppedOut bool
}

// NewBoard returns an empty board reading pieces from queue.
func NewBoard(queue PieceQueue) *Board {
	return &Board{queue: queue}
}

// IsValidMove reports whether every filled cell of p is inside the columns,
// above the floor, and on an empty cell. Rows above the board are only
// checked horizontally.
func (b *Board) IsValidMove(p Piece) bool {
	for dy, row := range p.Shape {
		for dx, v := range row {
			if v == 0 {
				continue
			}
			x := p.Position.X + dx
			y := p.Position.Y + dy
			if x < 0 || x >= BoardWidth || y >= BoardHeight {
				return false
			}
			if y >= 0 && b.grid[y][x] != "" {
				return false
			}
		}
	}
	return true
}

// CanMoveDown reports whether the moving piece can drop one row.
func (b *Board) CanMoveDown() bool {
	if b.moving == nil {
		return false
	}
	return b.IsValidMove(b.moving.shifted(0, 1))
}

// MoveLeft shifts the moving piece one column left if the result is valid.
func (b *Board) MoveLeft() bool {
	return b.shift(-1, 0)
}

// MoveRight shifts the moving piece one column right if the result is valid.
func (b *Board) MoveRight() bool {
	return b.shift(1, 0)
}

// SoftDrop shifts the moving piece one row down if the result is valid.
func (b *Board) SoftDrop() bool {
	return b.shift(0, 1)
}

func (b *Board) shift(dx, dy int) bool {
	if b.moving == nil || b.toppedOut {
		return false
	}
	next := b.moving.shifted(dx, dy)
	if !b.IsValidMove(next) {
		return false
	}
	b.moving.Position = next.Position
	return true
}

// Rotate turns the moving piece clockwise if the rotated shape fits. No wall kicks.
func (b *Board) Rotate() bool {
	if b.moving == nil || b.toppedOut {
		return false
	}
	rotated := *b.moving
	rotated.Shape = b.moving.Shape.Rotate()
	if !b.IsValidMove(rotated) {
		return false
	}
	b.moving.Shape = rotated.Shape
	return true
}

// Drop moves the piece down as far as it goes, then locks, clears and spawns.
func (b *Board) Drop() (TickResult, error) {
	if b.moving == nil || b.toppedOut {
		return TickResult{}, nil
	}
	var res TickResult
	for b.CanMoveDown() {
		b.moving.Position.Y++
		res.Moved = true
	}
	return b.settle(res)
}

// Tick applies gravity: one row down, or lock, clear and spawn when blocked.
func (b *Board) Tick() (TickResult, error) {
	if b.toppedOut {
		return TickResult{}, nil
	}
	if b.moving == nil {
		ok, err := b.Spawn()
		return TickResult{ToppedOut: !ok && err == nil}, err
	}
	if b.CanMoveDown() {
		b.moving.Position.Y++
		return TickResult{Moved: true}, nil
	}
	return b.settle(TickResult{})
}

func (b *Board) settle(res TickResult) (TickResult, error) {
	b.Lock()
	res.Locked = true
	res.Cleared = b.ClearLines()
	ok, err := b.Spawn()
	if err != nil {
		return res, err
	}
	res.ToppedOut = !ok
	return res, nil
}

// Lock writes the moving piece into the grid and clears the moving piece.
// Cells above the board are discarded.
func (b *Board) Lock() {
	if b.moving == nil {
		return
	}
	p := b.moving
	for dy, row := range p.Shape {
		for dx, v := range row {
			if v == 0 {
				continue
			}
			x := p.Position.X + dx
			y := p.Position.Y + dy
			if y >= 0 && y < BoardHeight && x >= 0 && x < BoardWidth {
				b.grid[y][x] = p.Color
			}
		}
	}
	b.moving = nil
}

// ClearLines removes full rows, compacting the rows above, and returns the
// number cleared. Each cleared row adds LinePoints to the score.
func (b *Board) ClearLines() int {
	cleared := 0
	for y := BoardHeight - 1; y >= 0; y-- {
		if !rowFull(b.grid[y]) {
			continue
		}
		for k := y; k > 0; k-- {
			b.grid[k] = b.grid[k-1]
		}
		b.grid[0] = [BoardWidth]string{}
		cleared++
		// Rows shifted down into y; examine it again.
		y++
	}
	if cleared > 0 && !b.toppedOut {
		b.score += cleared * LinePoints
	}
	return cleared
}

func rowFull(row [BoardWidth]string) bool {
	for _, cell := range row {
		if cell == "" {
			return false
		}
	}
	return true
}

// Spawn places the next queued piece at the spawn point. It returns false when
// the piece does not fit, which tops the board out and sets the score to Lost.
// ErrQueueExhausted is returned when the cursor has reached the end of the queue.
func (b *Board) Spawn() (bool, error) {
	if b.toppedOut {
		return false, nil
	}
	draft, ok := b.queue.At(b.cursor)
	if !ok {
		return false, ErrQueueExhausted
	}
	b.cursor++
	p := Piece{
		Shape:    draft.Shape,
		Color:    draft.Color,
		Position: Position{X: SpawnX, Y: 0},
	}
	if !b.IsValidMove(p) {
		b.moving = nil
		b.toppedOut = true
		b.score = Lost
		return false, nil
	}
	b.moving = &p
	return true, nil
}

// MarkLost tops the board out without a spawn, for losses reported by the client.
func (b *Board) MarkLost() {
	b.moving = nil
	b.toppedOut = true
	b.score = Lost
}

// Score returns the accumulated score, or Lost.
func (b *Board) Score() int {
	return b.score
}

// Cursor returns how many queued pieces this board has consumed.
func (b *Board) Cursor() int {
	return b.cursor
}

// ToppedOut reports whether a spawn failed on this board.
func (b *Board) ToppedOut() bool {
	return b.toppedOut
}

// Moving returns a copy of the falling piece.
func (b *Board) Moving() (Piece, bool) {
	if b.moving == nil {
		return Piece{}, false
	}
	p := *b.moving
	p.Shape = p.Shape.Clone()
	return p, true
}

// Next returns up to n pieces after the current one.
func (b *Board) Next(n int) []Draft {
	return b.queue.Window(b.cursor, n)
}

// View returns the grid rows with the moving piece drawn in.
func (b *Board) View() [][]string {
	rows := make([][]string, BoardHeight)
	for y := range b.grid {
		rows[y] = append([]string(nil), b.grid[y][:]...)
	}
	if p := b.moving; p != nil {
		for dy, row := range p.Shape {
			for dx, v := range row {
				x := p.Position.X + dx
				y := p.Position.Y + dy
				if v != 0 && y >= 0 && y < BoardHeight && x >= 0 && x < BoardWidth {
					rows[y][x] = p.Color
				}
			}
		}
	}
	return rows
}
