package game

import (
	"errors"
	"testing"
)

const filler = "#111111"

func fillRow(b *Board, y int, skip ...int) {
	for x := 0; x < BoardWidth; x++ {
		b.grid[y][x] = filler
	}
	for _, x := range skip {
		b.grid[y][x] = ""
	}
}

func pieceOf(kind Kind, x, y int) Piece {
	d, _ := DraftOf(kind)
	return Piece{Shape: d.Shape, Color: d.Color, Position: Position{X: x, Y: y}}
}

func TestBoard_IsValidMove(t *testing.T) {
	b := NewBoard(PieceQueue{})
	b.grid[10][3] = filler

	tests := []struct {
		name  string
		piece Piece
		want  bool
	}{
		{"origin", pieceOf(KindO, 0, 0), true},
		{"right edge", pieceOf(KindO, 8, 0), true},
		{"past right edge", pieceOf(KindO, 9, 0), false},
		{"past left edge", pieceOf(KindO, -1, 0), false},
		{"on floor", pieceOf(KindO, 0, 18), true},
		{"below floor", pieceOf(KindO, 0, 19), false},
		{"above board", pieceOf(KindO, 0, -1), true},
		{"overlaps locked cell", pieceOf(KindO, 2, 9), false},
		{"next to locked cell", pieceOf(KindO, 4, 9), true},
		{"empty rows outside bounds", pieceOf(KindI, 0, -1), true},
		{"I past left edge", pieceOf(KindI, -1, 0), false},
		{"I vertical at left wall", Piece{Shape: palette[KindI].Shape.Rotate(), Position: Position{X: -2, Y: 0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.IsValidMove(tt.piece); got != tt.want {
				t.Errorf("IsValidMove = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoard_ClearLines_Idempotent(t *testing.T) {
	b := NewBoard(PieceQueue{})
	fillRow(b, BoardHeight-1)

	if got := b.ClearLines(); got != 1 {
		t.Fatalf("first ClearLines = %d, want 1", got)
	}
	if got := b.ClearLines(); got != 0 {
		t.Errorf("second ClearLines = %d, want 0", got)
	}
	if b.Score() != LinePoints {
		t.Errorf("score %d, want %d", b.Score(), LinePoints)
	}
}

func TestBoard_ClearLines_TwoRows(t *testing.T) {
	b := NewBoard(PieceQueue{})
	b.grid[17][0] = filler
	fillRow(b, 18)
	fillRow(b, 19)

	if got := b.ClearLines(); got != 2 {
		t.Fatalf("ClearLines = %d, want 2", got)
	}
	if b.Score() != 2*LinePoints {
		t.Errorf("score %d, want %d", b.Score(), 2*LinePoints)
	}
	if b.grid[19][0] != filler {
		t.Error("partial row should compact to the bottom")
	}
	for y := 0; y < BoardHeight-1; y++ {
		for x := 0; x < BoardWidth; x++ {
			if b.grid[y][x] != "" {
				t.Fatalf("cell (%d,%d) should be empty", x, y)
			}
		}
	}
}

func TestBoard_ClearLines_NonAdjacent(t *testing.T) {
	b := NewBoard(PieceQueue{})
	fillRow(b, 17)
	fillRow(b, 18, 0)
	fillRow(b, 19)

	if got := b.ClearLines(); got != 2 {
		t.Fatalf("ClearLines = %d, want 2", got)
	}
	if b.grid[19][0] != "" || b.grid[19][1] != filler {
		t.Errorf("bottom row = %v, want the partial row", b.grid[19])
	}
	if b.grid[18][1] != "" {
		t.Error("row 18 should be empty after compaction")
	}
}

func TestBoard_ORowCompletion(t *testing.T) {
	b := NewBoard(testQueue(KindO, KindO, KindO))
	fillRow(b, BoardHeight-1, SpawnX, SpawnX+1)
	if ok, err := b.Spawn(); !ok || err != nil {
		t.Fatalf("Spawn = %v, %v", ok, err)
	}

	res, err := b.Drop()
	if err != nil {
		t.Fatalf("first Drop: %v", err)
	}
	if !res.Locked || res.Cleared != 1 {
		t.Fatalf("first Drop = %+v, want one cleared row", res)
	}
	if b.Score() != LinePoints {
		t.Fatalf("score after first drop %d, want %d", b.Score(), LinePoints)
	}

	res, err = b.Drop()
	if err != nil {
		t.Fatalf("second Drop: %v", err)
	}
	if res.Cleared != 0 {
		t.Errorf("second Drop cleared %d rows, want 0", res.Cleared)
	}
	if b.Score() != LinePoints {
		t.Errorf("score after second drop %d, want %d", b.Score(), LinePoints)
	}

	view := b.View()
	if len(view) != BoardHeight {
		t.Fatalf("rows %d, want %d", len(view), BoardHeight)
	}
	for y := 16; y < BoardHeight; y++ {
		if y == 16 {
			if b.grid[y][SpawnX] != "" {
				t.Errorf("row %d should be empty", y)
			}
			continue
		}
		if b.grid[y][SpawnX] == "" || b.grid[y][SpawnX+1] == "" {
			t.Errorf("row %d should hold the O column", y)
		}
		if b.grid[y][0] != "" {
			t.Errorf("row %d col 0 should be empty after compaction", y)
		}
	}
	if b.Cursor() != 3 {
		t.Errorf("cursor %d, want 3", b.Cursor())
	}
}

func TestBoard_Rotate(t *testing.T) {
	b := NewBoard(testQueue(KindT))
	if _, err := b.Spawn(); err != nil {
		t.Fatal(err)
	}
	start, _ := b.Moving()
	for i := 0; i < 4; i++ {
		if !b.Rotate() {
			t.Fatalf("rotation %d rejected on empty board", i+1)
		}
	}
	got, _ := b.Moving()
	if !got.Shape.Equal(start.Shape) || got.Position != start.Position {
		t.Errorf("after four rotations got %+v, want %+v", got, start)
	}
}

func TestBoard_RotateRejectedAtWall(t *testing.T) {
	b := NewBoard(testQueue(KindI))
	if _, err := b.Spawn(); err != nil {
		t.Fatal(err)
	}
	if !b.Rotate() {
		t.Fatal("I should rotate to vertical on an empty board")
	}
	for b.MoveLeft() {
	}
	before, _ := b.Moving()
	if before.Position.X != -2 {
		t.Fatalf("vertical I stopped at x=%d, want -2", before.Position.X)
	}
	if b.Rotate() {
		t.Fatal("rotation into the wall should be rejected")
	}
	after, _ := b.Moving()
	if !after.Shape.Equal(before.Shape) || after.Position != before.Position {
		t.Error("rejected rotation changed the piece")
	}
}

func TestBoard_MovesBlocked(t *testing.T) {
	b := NewBoard(testQueue(KindO))
	if _, err := b.Spawn(); err != nil {
		t.Fatal(err)
	}
	b.grid[0][SpawnX-1] = filler
	if b.MoveLeft() {
		t.Error("MoveLeft into a locked cell should fail")
	}
	if !b.MoveRight() {
		t.Error("MoveRight on an empty side should succeed")
	}
	if !b.SoftDrop() {
		t.Error("SoftDrop on an empty board should succeed")
	}
	p, _ := b.Moving()
	if p.Position != (Position{X: SpawnX + 1, Y: 1}) {
		t.Errorf("position %+v", p.Position)
	}
}

func TestBoard_Tick(t *testing.T) {
	b := NewBoard(testQueue(KindO, KindO))
	res, err := b.Tick()
	if err != nil || res.Moved {
		t.Fatalf("first Tick = %+v, %v; want a spawn", res, err)
	}
	if _, ok := b.Moving(); !ok {
		t.Fatal("first Tick should spawn a piece")
	}

	for i := 0; i < BoardHeight-2; i++ {
		res, err = b.Tick()
		if err != nil || !res.Moved {
			t.Fatalf("tick %d = %+v, %v; want a move", i, res, err)
		}
	}
	res, err = b.Tick()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Locked || res.Moved || res.ToppedOut {
		t.Errorf("blocked Tick = %+v, want a lock", res)
	}
	if b.grid[BoardHeight-1][SpawnX] == "" {
		t.Error("piece should be locked on the floor")
	}
	if b.Cursor() != 2 {
		t.Errorf("cursor %d, want 2", b.Cursor())
	}
}

func TestBoard_SpawnTopOut(t *testing.T) {
	b := NewBoard(testQueue(KindO))
	b.grid[0][SpawnX] = filler
	ok, err := b.Spawn()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Spawn onto a filled cell should fail")
	}
	if !b.ToppedOut() || b.Score() != Lost {
		t.Errorf("toppedOut=%v score=%d, want true/%d", b.ToppedOut(), b.Score(), Lost)
	}
	if _, moving := b.Moving(); moving {
		t.Error("topped out board should have no moving piece")
	}
	if b.MoveLeft() || b.Rotate() {
		t.Error("topped out board should ignore commands")
	}
	if res, err := b.Tick(); err != nil || res != (TickResult{}) {
		t.Errorf("Tick on topped out board = %+v, %v", res, err)
	}
}

func TestBoard_QueueExhausted(t *testing.T) {
	b := NewBoard(testQueue(KindO))
	if ok, err := b.Spawn(); !ok || err != nil {
		t.Fatalf("Spawn = %v, %v", ok, err)
	}
	_, err := b.Drop()
	if !errors.Is(err, ErrQueueExhausted) {
		t.Fatalf("Drop err = %v, want ErrQueueExhausted", err)
	}
	if b.Cursor() != 1 {
		t.Errorf("cursor %d, want 1", b.Cursor())
	}
}

func TestBoard_ViewOverlaysMovingPiece(t *testing.T) {
	b := NewBoard(testQueue(KindO))
	if _, err := b.Spawn(); err != nil {
		t.Fatal(err)
	}
	view := b.View()
	color := palette[KindO].Color
	if view[0][SpawnX] != color || view[1][SpawnX+1] != color {
		t.Error("moving piece should be drawn into the view")
	}
	if b.grid[0][SpawnX] != "" {
		t.Error("View must not write into the grid")
	}
	view[5][5] = "x"
	if b.grid[5][5] != "" {
		t.Error("View should return a copy")
	}
}

func TestBoard_NextWindow(t *testing.T) {
	b := NewBoard(testQueue(KindI, KindO, KindT, KindL, KindJ))
	if _, err := b.Spawn(); err != nil {
		t.Fatal(err)
	}
	next := b.Next(3)
	if len(next) != 3 || next[0].Kind != KindO || next[2].Kind != KindL {
		t.Errorf("Next(3) = %v", next)
	}
}
