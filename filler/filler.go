// Package filler populates tensors from a configurable value distribution.
//
// A Filler is chosen by the Type field of a Parameter. The supported types
// are constant, uniform, gaussian, positive_unitball, xavier, msra and
// bilinear.
package filler

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
	"github.com/Lan-st/caffe-1/mathx/randx"
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/floats"
)

var ErrUnknownType = errors.New("filler: unknown type")

const (
	Constant         = "constant"
	Uniform          = "uniform"
	Gaussian         = "gaussian"
	PositiveUnitball = "positive_unitball"
	Xavier           = "xavier"
	MSRA             = "msra"
	Bilinear         = "bilinear"
)

type VarianceNorm string

const (
	FanIn   VarianceNorm = "FAN_IN"
	FanOut  VarianceNorm = "FAN_OUT"
	Average VarianceNorm = "AVERAGE"
)

type Parameter struct {
	Type         string       `yaml:"type" json:"type"`
	Value        float64      `yaml:"value" json:"value"`
	Min          float64      `yaml:"min" json:"min"`
	Max          float64      `yaml:"max" json:"max"`
	Mean         float64      `yaml:"mean" json:"mean"`
	Std          float64      `yaml:"std" json:"std"`
	Sparse       int          `yaml:"sparse" json:"sparse"`
	VarianceNorm VarianceNorm `yaml:"variance_norm" json:"variance_norm"`
}

func DefaultParameter() Parameter {
	return Parameter{
		Type:         Constant,
		Value:        0,
		Min:          0,
		Max:          1,
		Mean:         0,
		Std:          1,
		Sparse:       -1,
		VarianceNorm: FanIn,
	}
}

func (p *Parameter) Validate() error {
	switch p.Type {
	case Constant, Uniform, Gaussian, PositiveUnitball, Xavier, MSRA, Bilinear:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
	}
	if p.Sparse != -1 && p.Type != Gaussian {
		return fmt.Errorf("filler: sparsity is only supported by the gaussian filler, got type %q", p.Type)
	}
	if p.Sparse < -1 {
		return fmt.Errorf("filler: sparse must be -1 or non-negative, got %d", p.Sparse)
	}
	switch p.Type {
	case Uniform:
		if p.Min > p.Max {
			return fmt.Errorf("filler: uniform min (%v) > max (%v)", p.Min, p.Max)
		}
	case Gaussian:
		if p.Std <= 0 {
			return fmt.Errorf("filler: gaussian std must be positive, got %v", p.Std)
		}
	case Xavier, MSRA:
		switch p.VarianceNorm {
		case FanIn, FanOut, Average:
		default:
			return fmt.Errorf("filler: unknown variance_norm %q", p.VarianceNorm)
		}
	}
	return nil
}

type Filler interface {
	Fill(*tensor4d.General) error
}

func New(param Parameter, rng *rand.Rand) (Filler, error) {
	if err := param.Validate(); err != nil {
		return nil, err
	}
	switch param.Type {
	case Constant:
		return &constantFiller{value: float32(param.Value)}, nil
	case Uniform:
		return &uniformFiller{min: param.Min, max: param.Max, rng: rng}, nil
	case Gaussian:
		return &gaussianFiller{mean: param.Mean, std: param.Std, sparse: param.Sparse, rng: rng}, nil
	case PositiveUnitball:
		return &positiveUnitballFiller{rng: rng}, nil
	case Xavier:
		return &xavierFiller{norm: param.VarianceNorm, rng: rng}, nil
	case MSRA:
		return &msraFiller{norm: param.VarianceNorm, rng: rng}, nil
	case Bilinear:
		return &bilinearFiller{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, param.Type)
}

type constantFiller struct {
	value float32
}

func (f *constantFiller) Fill(g *tensor4d.General) error {
	g.Fill(f.value)
	return nil
}

type uniformFiller struct {
	min, max float64
	rng      *rand.Rand
}

func (f *uniformFiller) Fill(g *tensor4d.General) error {
	return randx.Uniform(g.Data[:g.N()], f.min, f.max, f.rng)
}

type gaussianFiller struct {
	mean, std float64
	sparse    int
	rng       *rand.Rand
}

func (f *gaussianFiller) Fill(g *tensor4d.General) error {
	data := g.Data[:g.N()]
	if err := randx.Gaussian(data, f.mean, f.std, f.rng); err != nil {
		return err
	}
	if f.sparse < 0 {
		return nil
	}
	// 各出力が平均してsparse個の非ゼロ入力を持つようにする。
	p := float64(f.sparse) / float64(g.Batches)
	if p > 1 {
		p = 1
	}
	mask := make([]float32, len(data))
	if err := randx.Bernoulli(mask, p, f.rng); err != nil {
		return err
	}
	for i := range data {
		data[i] *= mask[i]
	}
	return nil
}

type positiveUnitballFiller struct {
	rng *rand.Rand
}

func (f *positiveUnitballFiller) Fill(g *tensor4d.General) error {
	if err := randx.Uniform(g.Data[:g.N()], 0, 1, f.rng); err != nil {
		return err
	}
	row := make([]float64, g.BatchStride)
	for b := 0; b < g.Batches; b++ {
		sample := g.Sample(b)
		for i, v := range sample {
			row[i] = float64(v)
		}
		sum := floats.Sum(row)
		if sum == 0 {
			continue
		}
		floats.Scale(1/sum, row)
		for i, v := range row {
			sample[i] = float32(v)
		}
	}
	return nil
}

func fanNumber(g *tensor4d.General, norm VarianceNorm) float32 {
	count := g.N()
	fanIn := float32(count / g.Batches)
	fanOut := float32(count / g.Channels)
	switch norm {
	case FanOut:
		return fanOut
	case Average:
		return (fanIn + fanOut) / 2
	default:
		return fanIn
	}
}

type xavierFiller struct {
	norm VarianceNorm
	rng  *rand.Rand
}

func (f *xavierFiller) Fill(g *tensor4d.General) error {
	n := fanNumber(g, f.norm)
	scale := float64(math32.Sqrt(3 / n))
	return randx.Uniform(g.Data[:g.N()], -scale, scale, f.rng)
}

type msraFiller struct {
	norm VarianceNorm
	rng  *rand.Rand
}

func (f *msraFiller) Fill(g *tensor4d.General) error {
	n := fanNumber(g, f.norm)
	std := float64(math32.Sqrt(2 / n))
	return randx.Gaussian(g.Data[:g.N()], 0, std, f.rng)
}

// bilinearFiller は逆畳み込みのアップサンプリング用の重みを作る。
type bilinearFiller struct{}

func (f *bilinearFiller) Fill(g *tensor4d.General) error {
	if g.Rows != g.Cols {
		return fmt.Errorf("filler: bilinear needs square kernels, got %dx%d", g.Rows, g.Cols)
	}
	width := g.Cols
	fi := int(math32.Ceil(float32(width) / 2))
	ff := float32(fi)
	c := float32(2*fi-1-fi%2) / (2 * ff)
	data := g.Data[:g.N()]
	for i := range data {
		x := float32(i % width)
		y := float32((i / width) % g.Rows)
		data[i] = (1 - math32.Abs(x/ff-c)) * (1 - math32.Abs(y/ff-c))
	}
	return nil
}
