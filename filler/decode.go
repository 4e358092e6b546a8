package filler

import (
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// 省略されたフィールドはDefaultParameterの値になる。

func (p *Parameter) UnmarshalYAML(value *yaml.Node) error {
	type plain Parameter
	d := plain(DefaultParameter())
	if err := value.Decode(&d); err != nil {
		return err
	}
	*p = Parameter(d)
	return nil
}

func (p *Parameter) UnmarshalJSON(data []byte) error {
	type plain Parameter
	d := plain(DefaultParameter())
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*p = Parameter(d)
	return nil
}
