// Package net wires registered layers into a graph of named blobs and drives
// their SetUp, Reshape, Forward and Backward calls in order.
package net

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Lan-st/caffe-1/layer"
	"github.com/Lan-st/caffe-1/logger"
	"github.com/google/uuid"
)

var (
	ErrUnknownBlob    = errors.New("net: unknown blob")
	ErrDuplicateLayer = errors.New("net: duplicate layer name")
)

type Net struct {
	name  string
	phase layer.Phase
	log   logger.Logger

	layers  []layer.Layer
	bottoms []layer.Blobs
	tops    []layer.Blobs

	blobs     map[string]*layer.Blob
	blobNames []string
	inputs    []string
	outputs   []string
}

// New builds every layer of p that is included in phase, sets them up and
// reshapes them once. The logger is taken from ctx.
func New(ctx context.Context, p Parameter, phase layer.Phase) (*Net, error) {
	n := &Net{
		name:  p.Name,
		phase: phase,
		log:   logger.FromContext(ctx).With("net", p.Name),
		blobs: map[string]*layer.Blob{},
	}

	for _, in := range p.Inputs {
		s, err := in.Shape4D()
		if err != nil {
			return nil, err
		}
		if _, ok := n.blobs[in.Name]; ok {
			return nil, fmt.Errorf("net: input %q declared twice", in.Name)
		}
		n.addBlob(in.Name, layer.NewBlob(s))
		n.inputs = append(n.inputs, in.Name)
	}

	names := map[string]bool{}
	produced := map[string]bool{}
	consumed := map[string]bool{}
	for _, lp := range p.Layers {
		if lp.Include != nil && *lp.Include != phase {
			n.log.Debug("skipping layer", "layer", lp.Name, "include", *lp.Include)
			continue
		}
		if lp.Name == "" {
			lp.Name = "layer-" + uuid.NewString()
		}
		if names[lp.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, lp.Name)
		}
		names[lp.Name] = true

		l, err := layer.New(lp)
		if err != nil {
			return nil, fmt.Errorf("net: layer %q: %w", lp.Name, err)
		}
		l.SetPhase(phase)

		bottom := make(layer.Blobs, len(lp.Bottom))
		for i, name := range lp.Bottom {
			b, ok := n.blobs[name]
			if !ok {
				return nil, fmt.Errorf("%w: layer %q reads %q", ErrUnknownBlob, lp.Name, name)
			}
			bottom[i] = b
			if !slices.Contains(lp.Top, name) {
				consumed[name] = true
			}
		}
		top := make(layer.Blobs, len(lp.Top))
		for i, name := range lp.Top {
			b, ok := n.blobs[name]
			if !ok {
				b = &layer.Blob{}
				n.addBlob(name, b)
			}
			top[i] = b
			produced[name] = true
			delete(consumed, name)
		}

		if err := l.SetUp(bottom, top); err != nil {
			return nil, fmt.Errorf("net: set up %q: %w", lp.Name, err)
		}
		if err := l.Reshape(bottom, top); err != nil {
			return nil, fmt.Errorf("net: reshape %q: %w", lp.Name, err)
		}
		n.layers = append(n.layers, l)
		n.bottoms = append(n.bottoms, bottom)
		n.tops = append(n.tops, top)

		for i, b := range top {
			n.log.Debug("layer set up", "layer", lp.Name, "type", l.Type(), "top", lp.Top[i], "shape", b.Shape().String())
		}
	}

	for _, name := range n.blobNames {
		if produced[name] && !consumed[name] {
			n.outputs = append(n.outputs, name)
		}
	}
	n.log.Debug("net built", "layers", len(n.layers), "phase", phase.String(), "outputs", n.outputs)
	return n, nil
}

func (n *Net) addBlob(name string, b *layer.Blob) {
	n.blobs[name] = b
	n.blobNames = append(n.blobNames, name)
}

func (n *Net) Name() string {
	return n.name
}

func (n *Net) Phase() layer.Phase {
	return n.phase
}

func (n *Net) SetPhase(p layer.Phase) {
	n.phase = p
	for _, l := range n.layers {
		l.SetPhase(p)
	}
}

func (n *Net) Layers() []layer.Layer {
	return n.layers
}

func (n *Net) Inputs() []string {
	return n.inputs
}

// Outputs lists the blobs that no later layer reads.
func (n *Net) Outputs() []string {
	return n.outputs
}

func (n *Net) Blob(name string) (*layer.Blob, error) {
	b, ok := n.blobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlob, name)
	}
	return b, nil
}

// TopBlobs returns the tops of the i-th layer.
func (n *Net) TopBlobs(i int) layer.Blobs {
	return n.tops[i]
}

// Reshape propagates input shape changes through every layer.
func (n *Net) Reshape() error {
	for i, l := range n.layers {
		if err := l.Reshape(n.bottoms[i], n.tops[i]); err != nil {
			return fmt.Errorf("net: reshape %q: %w", l.Name(), err)
		}
	}
	return nil
}

func (n *Net) Forward(ctx context.Context) error {
	for i, l := range n.layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.Forward(n.bottoms[i], n.tops[i]); err != nil {
			return fmt.Errorf("net: forward %q: %w", l.Name(), err)
		}
	}
	return nil
}

func (n *Net) Backward(ctx context.Context) error {
	for i := len(n.layers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		l := n.layers[i]
		propagateDown := make([]bool, len(n.bottoms[i]))
		for j := range propagateDown {
			propagateDown[j] = true
		}
		if err := l.Backward(n.tops[i], propagateDown, n.bottoms[i]); err != nil {
			return fmt.Errorf("net: backward %q: %w", l.Name(), err)
		}
	}
	return nil
}
