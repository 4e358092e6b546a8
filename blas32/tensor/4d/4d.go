package tensor4d

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/blas/blas32"
)

var ErrShapeMismatch = errors.New("tensor4d: shape mismatch")

type Shape struct {
	Batches  int
	Channels int
	Rows     int
	Cols     int
}

func (s Shape) N() int {
	return s.Batches * s.Channels * s.Rows * s.Cols
}

func (s Shape) Valid() bool {
	return s.Batches > 0 && s.Channels > 0 && s.Rows > 0 && s.Cols > 0
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s.Batches, s.Channels, s.Rows, s.Cols)
}

// General はNCHW順に並んだfloat32の4次元テンソル。
type General struct {
	Batches       int
	Channels      int
	Rows          int
	Cols          int
	BatchStride   int
	ChannelStride int
	RowStride     int
	Data          []float32
}

func NewZeros(batches, chs, rows, cols int) General {
	rowStride := cols
	chStride := rows * rowStride
	batchStride := chs * chStride
	n := batches * batchStride

	return General{
		Batches:       batches,
		Channels:      chs,
		Rows:          rows,
		Cols:          cols,
		BatchStride:   batchStride,
		ChannelStride: chStride,
		RowStride:     rowStride,
		Data:          make([]float32, n),
	}
}

func NewZerosWithShape(s Shape) General {
	return NewZeros(s.Batches, s.Channels, s.Rows, s.Cols)
}

func NewZerosLike(gen General) General {
	return NewZeros(gen.Batches, gen.Channels, gen.Rows, gen.Cols)
}

func NewOnes(batches, chs, rows, cols int) General {
	gen := NewZeros(batches, chs, rows, cols)
	gen.Fill(1.0)
	return gen
}

func NewOnesLike(gen General) General {
	return NewOnes(gen.Batches, gen.Channels, gen.Rows, gen.Cols)
}

// New はdataをコピーせずに包む。
func New(s Shape, data []float32) (General, error) {
	if !s.Valid() {
		return General{}, fmt.Errorf("tensor4d: invalid shape %v", s)
	}
	if len(data) != s.N() {
		return General{}, fmt.Errorf("%w: shape %v needs %d elements, got %d", ErrShapeMismatch, s, s.N(), len(data))
	}
	gen := NewZeros(0, s.Channels, s.Rows, s.Cols)
	gen.Batches = s.Batches
	gen.Data = data
	return gen, nil
}

func (g General) Shape() Shape {
	return Shape{Batches: g.Batches, Channels: g.Channels, Rows: g.Rows, Cols: g.Cols}
}

func (g General) N() int {
	return g.Batches * g.Channels * g.Rows * g.Cols
}

func (g General) Clone() General {
	return General{
		Batches:       g.Batches,
		Channels:      g.Channels,
		Rows:          g.Rows,
		Cols:          g.Cols,
		BatchStride:   g.BatchStride,
		ChannelStride: g.ChannelStride,
		RowStride:     g.RowStride,
		Data:          slices.Clone(g.Data),
	}
}

func (g General) At(batch, ch, row, col int) int {
	return (batch * g.BatchStride) + (ch * g.ChannelStride) + (row * g.RowStride) + col
}

func (g General) Sample(batch int) []float32 {
	start := batch * g.BatchStride
	return g.Data[start : start+g.BatchStride]
}

func (g General) ToVector() blas32.Vector {
	return blas32.Vector{
		N:    g.N(),
		Inc:  1,
		Data: g.Data[:g.N()],
	}
}

func (g General) SameShape(other General) bool {
	return g.Shape() == other.Shape()
}

func (g General) Fill(v float32) {
	for i := range g.Data[:g.N()] {
		g.Data[i] = v
	}
}

func (g General) Axpy(alpha float32, x General) error {
	if !g.SameShape(x) {
		return fmt.Errorf("%w: axpy %v into %v", ErrShapeMismatch, x.Shape(), g.Shape())
	}
	blas32.Axpy(alpha, x.ToVector(), g.ToVector())
	return nil
}

func (g General) Copy(src General) error {
	if !g.SameShape(src) {
		return fmt.Errorf("%w: copy %v into %v", ErrShapeMismatch, src.Shape(), g.Shape())
	}
	blas32.Copy(src.ToVector(), g.ToVector())
	return nil
}

// Add は g = a + b とする。gはaまたはbと同じでもよい。
func (g General) Add(a, b General) error {
	if !g.SameShape(a) || !g.SameShape(b) {
		return fmt.Errorf("%w: add %v + %v into %v", ErrShapeMismatch, a.Shape(), b.Shape(), g.Shape())
	}
	yv := g.ToVector()
	blas32.Copy(a.ToVector(), yv)
	blas32.Axpy(1.0, b.ToVector(), yv)
	return nil
}

// Reshape は要素数が増えるときだけ再確保する。
func (g *General) Reshape(s Shape) error {
	if !s.Valid() {
		return fmt.Errorf("tensor4d: invalid shape %v", s)
	}
	n := s.N()
	data := g.Data
	if cap(data) < n {
		data = make([]float32, n)
	} else {
		data = data[:n]
	}
	*g = NewZeros(0, s.Channels, s.Rows, s.Cols)
	g.Batches = s.Batches
	g.Data = data
	return nil
}
