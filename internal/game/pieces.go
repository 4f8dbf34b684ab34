package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Kind names one of the seven canonical tetrominoes.
type Kind string

const (
	KindI Kind = "I"
	KindO Kind = "O"
	KindT Kind = "T"
	KindL Kind = "L"
	KindJ Kind = "J"
	KindS Kind = "S"
	KindZ Kind = "Z"
)

// Kinds lists the palette in a fixed order.
var Kinds = []Kind{KindI, KindO, KindT, KindL, KindJ, KindS, KindZ}

// Shape is a square 0/1 matrix. Shapes held by drafts and pieces are never
// mutated in place; Rotate returns a new matrix.
type Shape [][]int

// Size returns the side length of the matrix.
func (s Shape) Size() int {
	return len(s)
}

// Rotate returns the shape turned 90° clockwise: the transpose with each row reversed.
func (s Shape) Rotate() Shape {
	n := s.Size()
	out := make(Shape, n)
	for i := 0; i < n; i++ {
		out[i] = make([]int, n)
		for j := 0; j < n; j++ {
			out[i][j] = s[n-1-j][i]
		}
	}
	return out
}

// Clone returns a deep copy.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	for i, row := range s {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Equal reports whether both shapes have identical cells.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if len(s[i]) != len(o[i]) {
			return false
		}
		for j := range s[i] {
			if s[i][j] != o[i][j] {
				return false
			}
		}
	}
	return true
}

// Draft is a queued piece: shape and color, no position yet.
type Draft struct {
	Kind  Kind   `json:"kind"`
	Shape Shape  `json:"shape"`
	Color string `json:"color"`
}

var palette = map[Kind]Draft{
	KindI: {Kind: KindI, Color: "#F6C2F3", Shape: Shape{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}},
	KindO: {Kind: KindO, Color: "#CDABEB", Shape: Shape{
		{1, 1},
		{1, 1},
	}},
	KindT: {Kind: KindT, Color: "#C7CAFF", Shape: Shape{
		{0, 1, 0},
		{1, 1, 1},
		{0, 0, 0},
	}},
	KindL: {Kind: KindL, Color: "#C1EBC0", Shape: Shape{
		{0, 0, 1},
		{1, 1, 1},
		{0, 0, 0},
	}},
	KindJ: {Kind: KindJ, Color: "#FAFABE", Shape: Shape{
		{1, 0, 0},
		{1, 1, 1},
		{0, 0, 0},
	}},
	KindS: {Kind: KindS, Color: "#F6CA94", Shape: Shape{
		{0, 1, 1},
		{1, 1, 0},
		{0, 0, 0},
	}},
	KindZ: {Kind: KindZ, Color: "#F09EA7", Shape: Shape{
		{1, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	}},
}

// DraftOf returns a fresh copy of the canonical draft for kind.
func DraftOf(kind Kind) (Draft, bool) {
	d, ok := palette[kind]
	if !ok {
		return Draft{}, false
	}
	d.Shape = d.Shape.Clone()
	return d, true
}

// PieceQueue is the match-wide, read-only sequence of upcoming pieces.
// Copies of a PieceQueue share the same backing drafts.
type PieceQueue struct {
	drafts []Draft
}

// NewPieceQueue builds a queue from explicit drafts.
func NewPieceQueue(drafts ...Draft) PieceQueue {
	return PieceQueue{drafts: append([]Draft(nil), drafts...)}
}

// Len returns the number of pieces in the queue.
func (q PieceQueue) Len() int {
	return len(q.drafts)
}

// At returns the draft at i with its own copy of the shape.
func (q PieceQueue) At(i int) (Draft, bool) {
	if i < 0 || i >= len(q.drafts) {
		return Draft{}, false
	}
	d := q.drafts[i]
	d.Shape = d.Shape.Clone()
	return d, true
}

// Window returns up to n drafts starting at from.
func (q PieceQueue) Window(from, n int) []Draft {
	if from < 0 {
		from = 0
	}
	end := from + n
	if end > len(q.drafts) {
		end = len(q.drafts)
	}
	if from >= end {
		return nil
	}
	out := make([]Draft, 0, end-from)
	for i := from; i < end; i++ {
		d, _ := q.At(i)
		out = append(out, d)
	}
	return out
}

// Drafts returns a copy of the queue slice for snapshots. The shape matrices
// are shared with the queue and must be treated as read-only.
func (q PieceQueue) Drafts() []Draft {
	if len(q.drafts) == 0 {
		return nil
	}
	return append([]Draft(nil), q.drafts...)
}

// PieceFactory draws pieces uniformly at random, with replacement, from the palette.
type PieceFactory struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPieceFactory returns a factory seeded with seed.
func NewPieceFactory(seed int64) *PieceFactory {
	return &PieceFactory{rng: rand.New(rand.NewSource(seed))}
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Generate returns a queue of count independently drawn pieces.
func (f *PieceFactory) Generate(count int) PieceQueue {
	if count < 0 {
		count = 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	drafts := make([]Draft, 0, count)
	for i := 0; i < count; i++ {
		kind := Kinds[f.rng.Intn(len(Kinds))]
		d, _ := DraftOf(kind)
		drafts = append(drafts, d)
	}
	return PieceQueue{drafts: drafts}
}
