package layer_test

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
	"github.com/Lan-st/caffe-1/filler"
	"github.com/Lan-st/caffe-1/layer"
	"github.com/Lan-st/caffe-1/mathx"
	"github.com/Lan-st/caffe-1/mathx/randx"
	"gonum.org/v1/gonum/stat"
)

func newRandomBlob(t *testing.T, s tensor4d.Shape, seed uint64) *layer.Blob {
	t.Helper()
	b := layer.NewBlob(s)
	if err := randx.Uniform(b.Data.Data, -1, 1, randx.New(seed)); err != nil {
		t.Fatal(err)
	}
	return b
}

// setUp は層を作ってSetUpとReshapeまで済ませる。
func setUp(t *testing.T, param layer.Parameter, bottom *layer.Blob) (layer.Layer, *layer.Blob) {
	t.Helper()
	l, err := layer.New(param)
	if err != nil {
		t.Fatal(err)
	}
	top := &layer.Blob{}
	bs, ts := layer.Blobs{bottom}, layer.Blobs{top}
	if err := l.SetUp(bs, ts); err != nil {
		t.Fatal(err)
	}
	if err := l.Reshape(bs, ts); err != nil {
		t.Fatal(err)
	}
	return l, top
}

func diff(a, b []float32) []float64 {
	d := make([]float64, len(a))
	for i := range a {
		d[i] = float64(a[i] - b[i])
	}
	return d
}

var shape = tensor4d.Shape{Batches: 4, Channels: 3, Rows: 16, Cols: 16}

func TestNoiseTestPhaseCopies(t *testing.T) {
	bottom := newRandomBlob(t, shape, 1)
	l, top := setUp(t, layer.Parameter{Name: "noise", Type: "Noise", Seed: 1}, bottom)
	l.SetPhase(layer.Test)

	if err := l.Forward(layer.Blobs{bottom}, layer.Blobs{top}); err != nil {
		t.Fatal(err)
	}
	if top.Shape() != shape {
		t.Errorf("top shape = %v", top.Shape())
	}
	if !slices.Equal(top.Data.Data, bottom.Data.Data) {
		t.Errorf("test phase changed the data")
	}
}

func TestNoiseGaussian(t *testing.T) {
	bottom := newRandomBlob(t, shape, 2)
	np := layer.DefaultNoiseParameter()
	np.Mean = 1
	np.Std = 0.1
	l, top := setUp(t, layer.Parameter{Name: "noise", Type: "Noise", Seed: 2, NoiseParam: &np}, bottom)

	if l.Phase() != layer.Train {
		t.Fatalf("default phase = %v", l.Phase())
	}
	if err := l.Forward(layer.Blobs{bottom}, layer.Blobs{top}); err != nil {
		t.Fatal(err)
	}
	d := diff(top.Data.Data, bottom.Data.Data)
	mean, std := stat.MeanStdDev(d, nil)
	if math.Abs(mean-1) > 0.02 || math.Abs(std-0.1) > 0.02 {
		t.Errorf("mean = %v, std = %v", mean, std)
	}

	noise := l.(*layer.Noise).NoiseBuffer()
	for i := range d {
		if math.Abs(d[i]-float64(noise.Data[i])) > 1e-6 {
			t.Fatalf("top - bottom != noise at %d", i)
		}
	}
}

func TestNoiseUniform(t *testing.T) {
	bottom := newRandomBlob(t, shape, 3)
	np := layer.DefaultNoiseParameter()
	np.Type = layer.UniformNoise
	np.LowerBound = -0.1
	np.UpperBound = 0.2
	l, top := setUp(t, layer.Parameter{Name: "noise", Type: "Noise", Seed: 3, NoiseParam: &np}, bottom)

	if err := l.Forward(layer.Blobs{bottom}, layer.Blobs{top}); err != nil {
		t.Fatal(err)
	}
	for i, v := range diff(top.Data.Data, bottom.Data.Data) {
		if v < -0.1-1e-6 || v > 0.2+1e-6 {
			t.Fatalf("noise[%d] = %v", i, v)
		}
	}
}

func TestNoiseFillerOnly(t *testing.T) {
	bottom := newRandomBlob(t, shape, 4)
	fp := filler.DefaultParameter()
	fp.Value = 0.5
	np := layer.DefaultNoiseParameter()
	np.Std = 0
	np.Filler = &fp
	l, top := setUp(t, layer.Parameter{Name: "noise", Type: "Noise", NoiseParam: &np}, bottom)

	if err := l.Forward(layer.Blobs{bottom}, layer.Blobs{top}); err != nil {
		t.Fatal(err)
	}
	for i := range top.Data.Data {
		if top.Data.Data[i] != bottom.Data.Data[i]+0.5 {
			t.Fatalf("top[%d] = %v, bottom = %v", i, top.Data.Data[i], bottom.Data.Data[i])
		}
	}
}

func TestNoiseSeedIsDeterministic(t *testing.T) {
	bottom := newRandomBlob(t, shape, 5)
	param := layer.Parameter{Name: "noise", Type: "Noise", Seed: 99}
	l1, top1 := setUp(t, param, bottom)
	l2, top2 := setUp(t, param, bottom)
	for _, p := range []struct {
		l   layer.Layer
		top *layer.Blob
	}{{l1, top1}, {l2, top2}} {
		if err := p.l.Forward(layer.Blobs{bottom}, layer.Blobs{p.top}); err != nil {
			t.Fatal(err)
		}
	}
	if !slices.Equal(top1.Data.Data, top2.Data.Data) {
		t.Errorf("same seed gave different noise")
	}
}

func TestNoiseInPlace(t *testing.T) {
	blob := layer.NewBlob(shape)
	blob.Data.Fill(2)
	fp := filler.DefaultParameter()
	fp.Value = 1
	np := layer.DefaultNoiseParameter()
	np.Std = 0
	np.Filler = &fp
	l, err := layer.New(layer.Parameter{Name: "noise", Type: "Noise", NoiseParam: &np})
	if err != nil {
		t.Fatal(err)
	}
	bs := layer.Blobs{blob}
	if err := l.SetUp(bs, bs); err != nil {
		t.Fatal(err)
	}
	if err := l.Reshape(bs, bs); err != nil {
		t.Fatal(err)
	}
	if err := l.Forward(bs, bs); err != nil {
		t.Fatal(err)
	}
	for i, v := range blob.Data.Data {
		if v != 3 {
			t.Fatalf("blob[%d] = %v", i, v)
		}
	}
}

func TestNoiseBackward(t *testing.T) {
	bottom := newRandomBlob(t, shape, 6)
	l, top := setUp(t, layer.Parameter{Name: "noise", Type: "Noise", Seed: 6}, bottom)
	if err := l.Forward(layer.Blobs{bottom}, layer.Blobs{top}); err != nil {
		t.Fatal(err)
	}
	if err := randx.Uniform(top.Diff.Data, -1, 1, randx.New(60)); err != nil {
		t.Fatal(err)
	}

	if err := l.Backward(layer.Blobs{top}, []bool{false}, layer.Blobs{bottom}); err != nil {
		t.Fatal(err)
	}
	for _, v := range bottom.Diff.Data {
		if v != 0 {
			t.Fatalf("propagateDown=false wrote the gradient")
		}
	}

	if err := l.Backward(layer.Blobs{top}, []bool{true}, layer.Blobs{bottom}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(bottom.Diff.Data, top.Diff.Data) {
		t.Errorf("gradient is not the identity")
	}
}

func TestNoiseNumericalGradient(t *testing.T) {
	s := tensor4d.Shape{Batches: 1, Channels: 2, Rows: 3, Cols: 3}
	bottom := newRandomBlob(t, s, 7)
	l, top := setUp(t, layer.Parameter{Name: "noise", Type: "Noise", Seed: 7}, bottom)
	l.SetPhase(layer.Test)

	w := make([]float32, s.N())
	if err := randx.Uniform(w, -1, 1, randx.New(70)); err != nil {
		t.Fatal(err)
	}
	loss := func() float32 {
		if err := l.Forward(layer.Blobs{bottom}, layer.Blobs{top}); err != nil {
			t.Fatal(err)
		}
		var sum float32
		for i, v := range top.Data.Data {
			sum += w[i] * v
		}
		return sum
	}

	// ∂L/∂y = w
	copy(top.Diff.Data, w)
	if err := l.Backward(layer.Blobs{top}, []bool{true}, layer.Blobs{bottom}); err != nil {
		t.Fatal(err)
	}

	h := float32(1e-2)
	for i := range bottom.Data.Data {
		x := bottom.Data.Data[i]
		bottom.Data.Data[i] = x + h
		plus := loss()
		bottom.Data.Data[i] = x - h
		minus := loss()
		bottom.Data.Data[i] = x
		num := mathx.CentralDifference(plus, minus, h)
		if math.Abs(float64(num-bottom.Diff.Data[i])) > 1e-3 {
			t.Errorf("grad[%d] = %v, numerical = %v", i, bottom.Diff.Data[i], num)
		}
	}
}

func TestNoiseErrors(t *testing.T) {
	bottom := newRandomBlob(t, shape, 8)
	l, top := setUp(t, layer.Parameter{Name: "noise", Type: "Noise"}, bottom)

	if err := l.Forward(layer.Blobs{bottom, bottom}, layer.Blobs{top}); !errors.Is(err, layer.ErrBlobCount) {
		t.Errorf("err = %v", err)
	}
	other := newRandomBlob(t, tensor4d.Shape{Batches: 1, Channels: 1, Rows: 2, Cols: 2}, 8)
	if err := l.Forward(layer.Blobs{other}, layer.Blobs{top}); !errors.Is(err, tensor4d.ErrShapeMismatch) {
		t.Errorf("err = %v", err)
	}

	np := layer.DefaultNoiseParameter()
	np.Std = -1
	if _, err := layer.New(layer.Parameter{Type: "Noise", NoiseParam: &np}); !errors.Is(err, layer.ErrInvalidParameter) {
		t.Errorf("err = %v", err)
	}
}
