package tensor4d_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
)

func TestNewZeros(t *testing.T) {
	g := tensor4d.NewZeros(2, 3, 4, 5)
	if g.N() != 120 || len(g.Data) != 120 {
		t.Errorf("N = %d, len = %d", g.N(), len(g.Data))
	}
	if g.BatchStride != 60 || g.ChannelStride != 20 || g.RowStride != 5 {
		t.Errorf("strides = %d %d %d", g.BatchStride, g.ChannelStride, g.RowStride)
	}
	if g.At(1, 2, 3, 4) != 119 {
		t.Errorf("At = %d", g.At(1, 2, 3, 4))
	}
}

func TestNew(t *testing.T) {
	s := tensor4d.Shape{Batches: 1, Channels: 1, Rows: 2, Cols: 3}
	data := []float32{1, 2, 3, 4, 5, 6}
	g, err := tensor4d.New(s, data)
	if err != nil {
		t.Fatal(err)
	}
	if g.Data[g.At(0, 0, 1, 2)] != 6 {
		t.Errorf("テスト失敗")
	}

	_, err = tensor4d.New(s, data[:5])
	if !errors.Is(err, tensor4d.ErrShapeMismatch) {
		t.Errorf("err = %v", err)
	}
	_, err = tensor4d.New(tensor4d.Shape{}, nil)
	if err == nil {
		t.Errorf("zero shape accepted")
	}
}

func TestAdd(t *testing.T) {
	a := tensor4d.NewOnes(1, 2, 2, 2)
	b := tensor4d.NewOnes(1, 2, 2, 2)
	b.Fill(2.5)
	y := tensor4d.NewZerosLike(a)
	if err := y.Add(a, b); err != nil {
		t.Fatal(err)
	}
	for i, v := range y.Data {
		if v != 3.5 {
			t.Fatalf("y[%d] = %v", i, v)
		}
	}

	if err := y.Add(a, tensor4d.NewOnes(1, 2, 2, 3)); !errors.Is(err, tensor4d.ErrShapeMismatch) {
		t.Errorf("err = %v", err)
	}
}

func TestAddInPlace(t *testing.T) {
	a := tensor4d.NewOnes(1, 1, 1, 4)
	b := a.Clone()
	if err := a.Add(a, b); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(a.Data, []float32{2, 2, 2, 2}) {
		t.Errorf("a = %v", a.Data)
	}
}

func TestCopyAndClone(t *testing.T) {
	src := tensor4d.NewOnes(2, 1, 1, 3)
	c := src.Clone()
	c.Data[0] = 100
	if src.Data[0] != 1 {
		t.Errorf("Clone shares data")
	}

	dst := tensor4d.NewZerosLike(src)
	if err := dst.Copy(c); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(dst.Data, c.Data) {
		t.Errorf("dst = %v", dst.Data)
	}
	if err := dst.Copy(tensor4d.NewOnes(1, 1, 1, 3)); err == nil {
		t.Errorf("shape mismatch accepted")
	}
}

func TestAxpy(t *testing.T) {
	y := tensor4d.NewOnes(1, 1, 2, 2)
	x := tensor4d.NewOnes(1, 1, 2, 2)
	if err := y.Axpy(-3, x); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(y.Data, []float32{-2, -2, -2, -2}) {
		t.Errorf("y = %v", y.Data)
	}
}

func TestReshape(t *testing.T) {
	g := tensor4d.NewZeros(2, 2, 2, 2)
	before := &g.Data[0]
	if err := g.Reshape(tensor4d.Shape{Batches: 1, Channels: 1, Rows: 2, Cols: 4}); err != nil {
		t.Fatal(err)
	}
	if &g.Data[0] != before {
		t.Errorf("shrinking reshape reallocated")
	}
	if g.N() != 8 || len(g.Data) != 8 || g.BatchStride != 8 {
		t.Errorf("g = %+v", g.Shape())
	}

	if err := g.Reshape(tensor4d.Shape{Batches: 4, Channels: 3, Rows: 2, Cols: 2}); err != nil {
		t.Fatal(err)
	}
	if len(g.Data) != 48 {
		t.Errorf("len = %d", len(g.Data))
	}
	if err := g.Reshape(tensor4d.Shape{Batches: 0, Channels: 1, Rows: 1, Cols: 1}); err == nil {
		t.Errorf("zero batch accepted")
	}
}

func TestSample(t *testing.T) {
	g := tensor4d.NewZeros(3, 1, 1, 2)
	g.Sample(1)[0] = 7
	if g.Data[2] != 7 {
		t.Errorf("Sample is not a view")
	}
}
