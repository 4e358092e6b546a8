package layer

import (
	"fmt"

	"github.com/Lan-st/caffe-1/filler"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Parameter describes one layer in a net definition.
type Parameter struct {
	Name   string   `yaml:"name" json:"name"`
	Type   string   `yaml:"type" json:"type"`
	Bottom []string `yaml:"bottom" json:"bottom"`
	Top    []string `yaml:"top" json:"top"`

	// Include restricts the layer to one phase. nil means every phase.
	Include *Phase `yaml:"include,omitempty" json:"include,omitempty"`

	// Seed 0 draws from the global seed.
	Seed uint64 `yaml:"seed" json:"seed"`
	// Workers 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`

	NoiseParam       *NoiseParameter       `yaml:"noise_param,omitempty" json:"noise_param,omitempty"`
	RandomEraseParam *RandomEraseParameter `yaml:"random_erase_param,omitempty" json:"random_erase_param,omitempty"`
}

func (p *Parameter) Validate() error {
	if p.Type == "" {
		return fmt.Errorf("%w: layer %q has no type", ErrInvalidParameter, p.Name)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: layer %q workers must be non-negative, got %d", ErrInvalidParameter, p.Name, p.Workers)
	}
	return nil
}

type NoiseType string

const (
	GaussianNoise NoiseType = "GAUSSIAN"
	UniformNoise  NoiseType = "UNIFORM"
)

type NoiseParameter struct {
	Type       NoiseType `yaml:"type" json:"type"`
	Mean       float64   `yaml:"mean" json:"mean"`
	Std        float64   `yaml:"std" json:"std"`
	LowerBound float64   `yaml:"lower_bound" json:"lower_bound"`
	UpperBound float64   `yaml:"upper_bound" json:"upper_bound"`

	// Filler pre-fills the noise buffer. nil leaves it at zero.
	Filler *filler.Parameter `yaml:"filler,omitempty" json:"filler,omitempty"`
}

func DefaultNoiseParameter() NoiseParameter {
	return NoiseParameter{
		Type:       GaussianNoise,
		Mean:       0,
		Std:        1,
		LowerBound: 0,
		UpperBound: 1,
	}
}

func (p *NoiseParameter) Validate() error {
	switch p.Type {
	case GaussianNoise:
		if p.Std < 0 {
			return fmt.Errorf("%w: noise std must be non-negative, got %v", ErrInvalidParameter, p.Std)
		}
	case UniformNoise:
		if p.LowerBound > p.UpperBound {
			return fmt.Errorf("%w: noise lower_bound (%v) > upper_bound (%v)", ErrInvalidParameter, p.LowerBound, p.UpperBound)
		}
	default:
		return fmt.Errorf("%w: unknown noise type %q", ErrInvalidParameter, p.Type)
	}
	if p.Filler != nil {
		if err := p.Filler.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
	}
	return nil
}

func (p *NoiseParameter) UnmarshalYAML(value *yaml.Node) error {
	type plain NoiseParameter
	d := plain(DefaultNoiseParameter())
	if err := value.Decode(&d); err != nil {
		return err
	}
	*p = NoiseParameter(d)
	return nil
}

func (p *NoiseParameter) UnmarshalJSON(data []byte) error {
	type plain NoiseParameter
	d := plain(DefaultNoiseParameter())
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*p = NoiseParameter(d)
	return nil
}

type RandomEraseParameter struct {
	// Filler supplies the values written into the erased region.
	Filler filler.Parameter `yaml:"filler" json:"filler"`

	// erased area / image area
	RatioLower float64 `yaml:"ratio_lower" json:"ratio_lower"`
	RatioUpper float64 `yaml:"ratio_upper" json:"ratio_upper"`

	// erased width / image width
	WidthLower float64 `yaml:"width_lower" json:"width_lower"`
	WidthUpper float64 `yaml:"width_upper" json:"width_upper"`

	// Probability that a batch item is erased at all.
	Probability float64 `yaml:"probability" json:"probability"`

	// MaskGradient zeroes the gradient inside the erased region.
	MaskGradient bool `yaml:"mask_gradient" json:"mask_gradient"`
}

func DefaultRandomEraseParameter() RandomEraseParameter {
	return RandomEraseParameter{
		Filler:      filler.DefaultParameter(),
		RatioLower:  0.02,
		RatioUpper:  0.4,
		WidthLower:  0.2,
		WidthUpper:  0.8,
		Probability: 1,
	}
}

func validateFraction(name string, lower, upper float64) error {
	if lower <= 0 || upper > 1 || lower > upper {
		return fmt.Errorf("%w: %s bounds must satisfy 0 < lower <= upper <= 1, got [%v, %v]", ErrInvalidParameter, name, lower, upper)
	}
	return nil
}

func (p *RandomEraseParameter) Validate() error {
	if err := validateFraction("ratio", p.RatioLower, p.RatioUpper); err != nil {
		return err
	}
	if err := validateFraction("width", p.WidthLower, p.WidthUpper); err != nil {
		return err
	}
	if p.Probability < 0 || p.Probability > 1 {
		return fmt.Errorf("%w: erase probability must be in [0, 1], got %v", ErrInvalidParameter, p.Probability)
	}
	if err := p.Filler.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return nil
}

func (p *RandomEraseParameter) UnmarshalYAML(value *yaml.Node) error {
	type plain RandomEraseParameter
	d := plain(DefaultRandomEraseParameter())
	if err := value.Decode(&d); err != nil {
		return err
	}
	*p = RandomEraseParameter(d)
	return nil
}

func (p *RandomEraseParameter) UnmarshalJSON(data []byte) error {
	type plain RandomEraseParameter
	d := plain(DefaultRandomEraseParameter())
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*p = RandomEraseParameter(d)
	return nil
}
