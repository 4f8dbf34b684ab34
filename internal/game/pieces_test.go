package game

import "testing"

func TestShape_RotateFourTimes(t *testing.T) {
	for _, kind := range Kinds {
		d, _ := DraftOf(kind)
		s := d.Shape
		for i := 0; i < 4; i++ {
			s = s.Rotate()
		}
		if !s.Equal(d.Shape) {
			t.Errorf("%s: four rotations = %v, want %v", kind, s, d.Shape)
		}
	}
}

func TestShape_RotateClockwise(t *testing.T) {
	d, _ := DraftOf(KindT)
	want := Shape{
		{0, 1, 0},
		{0, 1, 1},
		{0, 1, 0},
	}
	if got := d.Shape.Rotate(); !got.Equal(want) {
		t.Errorf("T rotated = %v, want %v", got, want)
	}
	if !d.Shape.Equal(palette[KindT].Shape) {
		t.Error("Rotate mutated the source shape")
	}
}

func TestDraftOf_ReturnsCopy(t *testing.T) {
	d, ok := DraftOf(KindO)
	if !ok {
		t.Fatal("DraftOf(O) returned false")
	}
	d.Shape[0][0] = 7
	if palette[KindO].Shape[0][0] != 1 {
		t.Error("mutating a draft changed the palette")
	}
	if _, ok := DraftOf("X"); ok {
		t.Error("DraftOf should reject unknown kinds")
	}
}

func TestPieceFactory_Generate(t *testing.T) {
	a := NewPieceFactory(1).Generate(DefaultQueueLength)
	b := NewPieceFactory(2).Generate(DefaultQueueLength)
	if a.Len() != DefaultQueueLength || b.Len() != DefaultQueueLength {
		t.Fatalf("lengths %d/%d, want %d", a.Len(), b.Len(), DefaultQueueLength)
	}

	same := true
	for i := 0; i < a.Len(); i++ {
		da, _ := a.At(i)
		db, _ := b.At(i)
		if da.Kind != db.Kind {
			same = false
		}
		canonical, ok := DraftOf(da.Kind)
		if !ok {
			t.Fatalf("draft %d has unknown kind %q", i, da.Kind)
		}
		if !da.Shape.Equal(canonical.Shape) || da.Color != canonical.Color {
			t.Fatalf("draft %d (%s) is not canonical", i, da.Kind)
		}
	}
	if same {
		t.Error("two generated queues should differ")
	}
}

func TestPieceFactory_SameSeedSameQueue(t *testing.T) {
	a := NewPieceFactory(42).Generate(50)
	b := NewPieceFactory(42).Generate(50)
	for i := 0; i < 50; i++ {
		da, _ := a.At(i)
		db, _ := b.At(i)
		if da.Kind != db.Kind {
			t.Fatalf("draft %d: %s vs %s", i, da.Kind, db.Kind)
		}
	}
}

func TestPieceFactory_GenerateNegative(t *testing.T) {
	if q := NewPieceFactory(1).Generate(-3); q.Len() != 0 {
		t.Errorf("Len %d, want 0", q.Len())
	}
}

func TestPieceQueue_AtAndWindow(t *testing.T) {
	q := testQueue(KindI, KindO, KindT)
	d, ok := q.At(1)
	if !ok || d.Kind != KindO {
		t.Fatalf("At(1) = %v, %v; want O", d.Kind, ok)
	}
	d.Shape[0][0] = 0
	again, _ := q.At(1)
	if again.Shape[0][0] != 1 {
		t.Error("At should return an independent shape")
	}
	if _, ok := q.At(3); ok {
		t.Error("At past the end should fail")
	}
	if _, ok := q.At(-1); ok {
		t.Error("At(-1) should fail")
	}

	w := q.Window(1, 5)
	if len(w) != 2 || w[0].Kind != KindO || w[1].Kind != KindT {
		t.Errorf("Window(1,5) = %v", w)
	}
	if w := q.Window(3, 2); w != nil {
		t.Errorf("Window past end = %v, want nil", w)
	}
}

func TestNewSeed(t *testing.T) {
	if _, err := NewSeed(); err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
}

func testQueue(kinds ...Kind) PieceQueue {
	drafts := make([]Draft, 0, len(kinds))
	for _, k := range kinds {
		d, _ := DraftOf(k)
		drafts = append(drafts, d)
	}
	return NewPieceQueue(drafts...)
}
