package tensor3d

import (
	"fmt"
	"slices"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
)

// General はCHW順の1枚の画像。
type General struct {
	Channels      int
	Rows          int
	Cols          int
	ChannelStride int
	RowStride     int
	Data          []float32
}

func NewZeros(chs, rows, cols int) General {
	rowStride := cols
	chStride := rows * rowStride
	n := chs * chStride
	return General{
		Channels:      chs,
		Rows:          rows,
		Cols:          cols,
		ChannelStride: chStride,
		RowStride:     rowStride,
		Data:          make([]float32, n),
	}
}

func NewZerosLike(gen General) General {
	return NewZeros(gen.Channels, gen.Rows, gen.Cols)
}

func (g General) N() int {
	return g.Channels * g.Rows * g.Cols
}

func (g General) Clone() General {
	return General{
		Channels:      g.Channels,
		Rows:          g.Rows,
		Cols:          g.Cols,
		ChannelStride: g.ChannelStride,
		RowStride:     g.RowStride,
		Data:          slices.Clone(g.Data),
	}
}

func (g General) At(ch, row, col int) int {
	return ch*g.ChannelStride + row*g.RowStride + col
}

// ToBatch はバッチ数1の4次元テンソルとして複製する。
func (g General) ToBatch() tensor4d.General {
	gen := tensor4d.NewZeros(1, g.Channels, g.Rows, g.Cols)
	copy(gen.Data, g.Data)
	return gen
}

func FromBatch(gen tensor4d.General, batch int) (General, error) {
	if batch < 0 || batch >= gen.Batches {
		return General{}, fmt.Errorf("tensor3d: batch %d out of range [0, %d)", batch, gen.Batches)
	}
	g := NewZeros(gen.Channels, gen.Rows, gen.Cols)
	copy(g.Data, gen.Sample(batch))
	return g, nil
}
