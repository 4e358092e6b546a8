package net

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
	"github.com/Lan-st/caffe-1/layer"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type Input struct {
	Name  string `yaml:"name" json:"name"`
	Shape []int  `yaml:"shape" json:"shape"`
}

// Shape4D pads shorter shapes with leading ones, so (H, W) becomes (1, 1, H, W).
func (in Input) Shape4D() (tensor4d.Shape, error) {
	if len(in.Shape) == 0 || len(in.Shape) > 4 {
		return tensor4d.Shape{}, fmt.Errorf("net: input %q needs 1 to 4 dims, got %v", in.Name, in.Shape)
	}
	dims := []int{1, 1, 1, 1}
	copy(dims[4-len(in.Shape):], in.Shape)
	s := tensor4d.Shape{Batches: dims[0], Channels: dims[1], Rows: dims[2], Cols: dims[3]}
	if !s.Valid() {
		return tensor4d.Shape{}, fmt.Errorf("net: input %q has a non-positive dim %v", in.Name, in.Shape)
	}
	return s, nil
}

type Parameter struct {
	Name   string            `yaml:"name" json:"name"`
	Inputs []Input           `yaml:"inputs" json:"inputs"`
	Layers []layer.Parameter `yaml:"layers" json:"layers"`
}

func Parse(data []byte, format string) (Parameter, error) {
	var p Parameter
	var err error
	switch format {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &p)
	case "json":
		err = json.Unmarshal(data, &p)
	default:
		return Parameter{}, fmt.Errorf("net: unknown definition format %q", format)
	}
	if err != nil {
		return Parameter{}, fmt.Errorf("net: parse %s: %w", format, err)
	}
	return p, nil
}

// Load reads a net definition, choosing YAML or JSON by file extension.
func Load(path string) (Parameter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameter{}, err
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return Parse(data, format)
}
