package layer

import (
	"fmt"
	"math/rand/v2"
	"runtime"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
	"github.com/Lan-st/caffe-1/filler"
	"github.com/Lan-st/caffe-1/mathx"
	"github.com/Lan-st/caffe-1/mathx/randx"
	"github.com/chewxy/math32"
	"github.com/sw965/omw/parallel"
)

func init() {
	Register("RandomErase", NewRandomErase)
}

// Rect is an erased region of one batch item, in row/col coordinates.
type Rect struct {
	Row    int
	Col    int
	Height int
	Width  int
}

func (r Rect) Empty() bool {
	return r.Height == 0 || r.Width == 0
}

func (r Rect) Area() int {
	return r.Height * r.Width
}

func (r Rect) Contains(row, col int) bool {
	return row >= r.Row && row < r.Row+r.Height && col >= r.Col && col < r.Col+r.Width
}

// RandomErase overwrites one random rectangle per batch item with filler
// values while training, across every channel. Outside training it copies
// its input through.
type RandomErase struct {
	neuron
	param   RandomEraseParameter
	workers int
	rng     *rand.Rand
	filler  filler.Filler

	noise tensor4d.General
	rects []Rect
}

func NewRandomErase(param Parameter) (Layer, error) {
	if err := param.Validate(); err != nil {
		return nil, err
	}
	rp := DefaultRandomEraseParameter()
	if param.RandomEraseParam != nil {
		rp = *param.RandomEraseParam
	}
	if err := rp.Validate(); err != nil {
		return nil, fmt.Errorf("layer %q: %w", param.Name, err)
	}
	workers := param.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &RandomErase{
		neuron:  neuron{name: param.Name},
		param:   rp,
		workers: workers,
		rng:     randx.New(param.Seed),
	}, nil
}

func (e *RandomErase) Type() string {
	return "RandomErase"
}

func (e *RandomErase) SetUp(bottom, top Blobs) error {
	if err := e.checkBlobs(bottom, top); err != nil {
		return err
	}
	f, err := filler.New(e.param.Filler, e.rng)
	if err != nil {
		return fmt.Errorf("layer %q: %w", e.name, err)
	}
	e.filler = f
	return nil
}

func (e *RandomErase) Reshape(bottom, top Blobs) error {
	if err := e.neuron.Reshape(bottom, top); err != nil {
		return err
	}
	s := bottom[0].Shape()
	if err := e.noise.Reshape(s); err != nil {
		return err
	}
	e.rects = make([]Rect, s.Batches)
	return nil
}

// Rects returns the regions erased by the last Forward. Items that were not
// erased have an empty Rect.
func (e *RandomErase) Rects() []Rect {
	return e.rects
}

func (e *RandomErase) sampleRect(rows, cols int, rng *rand.Rand) Rect {
	if rng.Float64() >= e.param.Probability {
		return Rect{}
	}
	wf := randx.Float64Range(e.param.WidthLower, e.param.WidthUpper, rng)
	w := mathx.Clamp(int(math32.Round(float32(wf)*float32(cols))), 1, cols)

	ratio := randx.Float64Range(e.param.RatioLower, e.param.RatioUpper, rng)
	area := float32(ratio) * float32(rows*cols)
	h := mathx.Clamp(int(math32.Round(area/float32(w))), 1, rows)

	return Rect{
		Row:    randx.IntRange(0, rows-h, rng),
		Col:    randx.IntRange(0, cols-w, rng),
		Height: h,
		Width:  w,
	}
}

func (e *RandomErase) erase(batch int, rect Rect, y tensor4d.General) {
	for ch := 0; ch < y.Channels; ch++ {
		for row := rect.Row; row < rect.Row+rect.Height; row++ {
			start := y.At(batch, ch, row, rect.Col)
			end := start + rect.Width
			copy(y.Data[start:end], e.noise.Data[start:end])
		}
	}
}

func (e *RandomErase) Forward(bottom, top Blobs) error {
	if err := e.checkBlobs(bottom, top); err != nil {
		return err
	}
	x, y := bottom[0].Data, top[0].Data
	if !e.noise.SameShape(x) {
		return fmt.Errorf("%w: layer %q was reshaped to %v but got %v", tensor4d.ErrShapeMismatch, e.name, e.noise.Shape(), x.Shape())
	}
	clear(e.rects)
	if err := y.Copy(x); err != nil {
		return err
	}
	if e.phase != Train {
		return nil
	}

	if err := e.filler.Fill(&e.noise); err != nil {
		return fmt.Errorf("layer %q: %w", e.name, err)
	}

	// バッチ毎に乱数列を分けるので、ワーカー数によらず結果は同じになる。
	rngs := randx.Split(x.Batches, e.rng)
	return parallel.For(x.Batches, e.workers, func(workerId, b int) error {
		rect := e.sampleRect(x.Rows, x.Cols, rngs[b])
		e.rects[b] = rect
		if !rect.Empty() {
			e.erase(b, rect, y)
		}
		return nil
	})
}

func (e *RandomErase) Backward(top Blobs, propagateDown []bool, bottom Blobs) error {
	if err := e.backwardIdentity(top, propagateDown, bottom); err != nil {
		return err
	}
	if !e.param.MaskGradient || len(propagateDown) == 0 || !propagateDown[0] {
		return nil
	}
	dx := bottom[0].Diff
	for b, rect := range e.rects {
		if rect.Empty() {
			continue
		}
		for ch := 0; ch < dx.Channels; ch++ {
			for row := rect.Row; row < rect.Row+rect.Height; row++ {
				start := dx.At(b, ch, row, rect.Col)
				clear(dx.Data[start : start+rect.Width])
			}
		}
	}
	return nil
}
