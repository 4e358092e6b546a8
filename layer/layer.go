package layer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
)

var (
	ErrBlobCount        = errors.New("layer: wrong number of blobs")
	ErrUnknownLayerType = errors.New("layer: unknown layer type")
	ErrInvalidParameter = errors.New("layer: invalid parameter")
)

type Phase int

const (
	Train Phase = iota
	Test
)

func (p Phase) String() string {
	switch p {
	case Train:
		return "TRAIN"
	case Test:
		return "TEST"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "TRAIN":
		*p = Train
	case "TEST":
		*p = Test
	default:
		return fmt.Errorf("layer: unknown phase %q", text)
	}
	return nil
}

// Blob はデータとその勾配を同じ形で持つ。
type Blob struct {
	Data tensor4d.General
	Diff tensor4d.General
}

type Blobs []*Blob

func NewBlob(s tensor4d.Shape) *Blob {
	return &Blob{
		Data: tensor4d.NewZerosWithShape(s),
		Diff: tensor4d.NewZerosWithShape(s),
	}
}

func (b *Blob) Shape() tensor4d.Shape {
	return b.Data.Shape()
}

func (b *Blob) Reshape(s tensor4d.Shape) error {
	if err := b.Data.Reshape(s); err != nil {
		return err
	}
	return b.Diff.Reshape(s)
}

// Layer is the contract the net drives: SetUp once, Reshape whenever the
// bottom shapes change, then Forward and Backward for every pass.
type Layer interface {
	Name() string
	Type() string
	Phase() Phase
	SetPhase(Phase)
	SetUp(bottom, top Blobs) error
	Reshape(bottom, top Blobs) error
	Forward(bottom, top Blobs) error
	Backward(top Blobs, propagateDown []bool, bottom Blobs) error
}

// neuron は1入力1出力で形を変えない層の共通部分。
type neuron struct {
	name  string
	phase Phase
}

func (n *neuron) Name() string {
	return n.name
}

func (n *neuron) Phase() Phase {
	return n.phase
}

func (n *neuron) SetPhase(p Phase) {
	n.phase = p
}

func (n *neuron) checkBlobs(bottom, top Blobs) error {
	if len(bottom) != 1 || len(top) != 1 {
		return fmt.Errorf("%w: %s needs 1 bottom and 1 top, got %d and %d", ErrBlobCount, n.name, len(bottom), len(top))
	}
	if bottom[0] == nil || top[0] == nil {
		return fmt.Errorf("%w: %s got a nil blob", ErrBlobCount, n.name)
	}
	return nil
}

func (n *neuron) Reshape(bottom, top Blobs) error {
	if err := n.checkBlobs(bottom, top); err != nil {
		return err
	}
	if bottom[0] == top[0] {
		return nil
	}
	return top[0].Reshape(bottom[0].Shape())
}

func (n *neuron) backwardIdentity(top Blobs, propagateDown []bool, bottom Blobs) error {
	if err := n.checkBlobs(bottom, top); err != nil {
		return err
	}
	if len(propagateDown) == 0 || !propagateDown[0] {
		return nil
	}
	// ∂L/∂x = ∂L/∂y
	return bottom[0].Diff.Copy(top[0].Diff)
}
