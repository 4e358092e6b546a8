package layer

import (
	"fmt"
	"math/rand/v2"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
	"github.com/Lan-st/caffe-1/filler"
	"github.com/Lan-st/caffe-1/mathx/randx"
)

func init() {
	Register("Noise", NewNoise)
}

// Noise adds random noise to its input while training and copies the input
// through unchanged otherwise. It has no trainable parameters, so the
// gradient passes straight through.
type Noise struct {
	neuron
	param  NoiseParameter
	rng    *rand.Rand
	filler filler.Filler

	noise  tensor4d.General
	sample tensor4d.General
}

func NewNoise(param Parameter) (Layer, error) {
	if err := param.Validate(); err != nil {
		return nil, err
	}
	np := DefaultNoiseParameter()
	if param.NoiseParam != nil {
		np = *param.NoiseParam
	}
	if err := np.Validate(); err != nil {
		return nil, fmt.Errorf("layer %q: %w", param.Name, err)
	}
	return &Noise{
		neuron: neuron{name: param.Name},
		param:  np,
		rng:    randx.New(param.Seed),
	}, nil
}

func (n *Noise) Type() string {
	return "Noise"
}

func (n *Noise) SetUp(bottom, top Blobs) error {
	if err := n.checkBlobs(bottom, top); err != nil {
		return err
	}
	if n.param.Filler == nil {
		return nil
	}
	f, err := filler.New(*n.param.Filler, n.rng)
	if err != nil {
		return fmt.Errorf("layer %q: %w", n.name, err)
	}
	n.filler = f
	return nil
}

func (n *Noise) Reshape(bottom, top Blobs) error {
	if err := n.neuron.Reshape(bottom, top); err != nil {
		return err
	}
	s := bottom[0].Shape()
	if err := n.noise.Reshape(s); err != nil {
		return err
	}
	return n.sample.Reshape(s)
}

// NoiseBuffer returns the noise added by the last training Forward.
func (n *Noise) NoiseBuffer() tensor4d.General {
	return n.noise
}

func (n *Noise) fillNoise() error {
	if n.filler != nil {
		if err := n.filler.Fill(&n.noise); err != nil {
			return err
		}
	} else {
		n.noise.Fill(0)
	}

	data := n.sample.Data[:n.sample.N()]
	switch n.param.Type {
	case GaussianNoise:
		if n.param.Std == 0 {
			return nil
		}
		if err := randx.Gaussian(data, n.param.Mean, n.param.Std, n.rng); err != nil {
			return err
		}
	case UniformNoise:
		if err := randx.Uniform(data, n.param.LowerBound, n.param.UpperBound, n.rng); err != nil {
			return err
		}
	}
	return n.noise.Axpy(1, n.sample)
}

func (n *Noise) Forward(bottom, top Blobs) error {
	if err := n.checkBlobs(bottom, top); err != nil {
		return err
	}
	x, y := bottom[0].Data, top[0].Data
	if !n.noise.SameShape(x) {
		return fmt.Errorf("%w: layer %q was reshaped to %v but got %v", tensor4d.ErrShapeMismatch, n.name, n.noise.Shape(), x.Shape())
	}
	if n.phase != Train {
		return y.Copy(x)
	}
	if err := n.fillNoise(); err != nil {
		return fmt.Errorf("layer %q: %w", n.name, err)
	}
	return y.Add(x, n.noise)
}

func (n *Noise) Backward(top Blobs, propagateDown []bool, bottom Blobs) error {
	return n.backwardIdentity(top, propagateDown, bottom)
}
