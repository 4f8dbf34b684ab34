package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"blockduel/internal/viewmodel"
)

// HomePage lists open matches and offers a button to create one.
func HomePage(data viewmodel.HomePage) templ.Component {
	return Layout(data.Title, templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &writer{w: w}
		p.raw(`<h1>`)
		p.text(data.Title)
		p.raw(`</h1><form method="post" action="/matches"><button type="submit">New match</button></form>`)
		if len(data.Matches) == 0 {
			p.raw(`<p class="empty">No matches yet.</p>`)
			return p.err
		}
		p.raw(`<table class="matches"><thead><tr><th>Match</th><th>Players</th><th>Status</th></tr></thead><tbody>`)
		for _, m := range data.Matches {
			p.raw(`<tr><td><a href="`)
			p.text(m.URL)
			p.raw(`">`)
			p.text(m.ID)
			p.raw(`</a></td><td>`)
			p.text(strconv.Itoa(m.Players))
			p.raw(`/2</td><td>`)
			p.text(m.Status)
			if m.Open {
				p.raw(` <span class="open">open</span>`)
			}
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
		return p.err
	}))
}

// MatchPage renders the current snapshot of a match. The client script keeps
// it live over the websocket.
func MatchPage(data viewmodel.MatchPage) templ.Component {
	return Layout(data.Title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &writer{w: w}
		p.raw(`<section id="match" data-match-id="`)
		p.text(data.MatchID)
		p.raw(`" data-client-id="`)
		p.text(data.ClientID)
		p.raw(`" data-ws="`)
		p.text(data.WSPath)
		p.raw(`" data-state="`)
		p.text(data.StatePath)
		p.raw(`"><h1>Match `)
		p.text(data.MatchID)
		p.raw(`</h1><p class="invite">Invite: <input readonly value="`)
		p.text(data.InviteURL)
		p.raw(`"></p>`)
		if p.err != nil {
			return p.err
		}
		if err := MatchStatus(data).Render(ctx, w); err != nil {
			return err
		}
		p.raw(`<form id="join"><input name="name" maxlength="20" placeholder="Your name"><button type="submit">Join</button></form>`)
		p.raw(`<div id="boards">`)
		for _, b := range data.Boards {
			if p.err != nil {
				return p.err
			}
			if err := Board(b).Render(ctx, w); err != nil {
				return err
			}
		}
		p.raw(`</div></section><script src="/static/app.js" defer></script>`)
		return p.err
	}))
}

// MatchStatus renders the status line and roster.
func MatchStatus(data viewmodel.MatchPage) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &writer{w: w}
		p.raw(`<div id="status"><p class="status">`)
		p.text(statusLabel(data.Status))
		if data.Countdown > 0 {
			p.raw(` <strong class="countdown">`)
			p.text(strconv.Itoa(data.Countdown))
			p.raw(`</strong>`)
		}
		p.raw(`</p>`)
		if data.Reason != "" {
			p.raw(`<p class="reason">`)
			p.text(data.Reason)
			p.raw(`</p>`)
		}
		p.raw(`<ul class="players">`)
		for _, pl := range data.Players {
			p.raw(`<li>`)
			p.text(pl.Name)
			p.raw(` <span class="score">`)
			if pl.Lost {
				p.raw(`lost`)
			} else {
				p.text(strconv.Itoa(pl.Score))
			}
			p.raw(`</span></li>`)
		}
		for i := len(data.Players); i < data.Seats; i++ {
			p.raw(`<li class="seat">waiting…</li>`)
		}
		p.raw(`</ul></div>`)
		return p.err
	})
}

// Board renders one player's grid as a table of colored cells.
func Board(b viewmodel.BoardView) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &writer{w: w}
		p.raw(`<figure class="board" data-player="`)
		p.text(b.PlayerID)
		p.raw(`"><figcaption>`)
		p.text(b.PlayerName)
		p.raw(`</figcaption><table>`)
		for _, row := range b.Rows {
			p.raw(`<tr>`)
			for _, cell := range row {
				if cell == "" {
					p.raw(`<td></td>`)
					continue
				}
				p.raw(`<td class="filled" style="background:`)
				p.text(cell)
				p.raw(`"></td>`)
			}
			p.raw(`</tr>`)
		}
		p.raw(`</table></figure>`)
		return p.err
	})
}

func statusLabel(status string) string {
	switch status {
	case "waiting_players":
		return "Waiting for players"
	case "warming_up":
		return "Get ready"
	case "start":
		return "Starting"
	case "playing":
		return "Playing"
	case "game_over":
		return "Game over"
	default:
		return status
	}
}
