package core

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DescriptorSet is the contents of a descriptor file.
type DescriptorSet struct {
	ScopeField  string
	Descriptors []MappingDescriptor
}

type descriptorFile struct {
	ScopeField  string           `yaml:"scopeField"`
	Descriptors []descriptorYAML `yaml:"descriptors"`
}

type descriptorYAML struct {
	ID        string      `yaml:"id"`
	Group     string      `yaml:"group"`
	Label     string      `yaml:"label"`
	Fields    []fieldYAML `yaml:"fields"`
	UniqueKey []string    `yaml:"uniqueKey"`
	Parent    *parentYAML `yaml:"parent"`
	Inherited []string    `yaml:"inherited"`
	Omitted   []string    `yaml:"omitted"`
}

type fieldYAML struct {
	Column string `yaml:"column"`
	Field  string `yaml:"field"`
	Kind   string `yaml:"kind"`
	Fold   bool   `yaml:"fold"`
}

type parentYAML struct {
	ID         string            `yaml:"id"`
	Relation   string            `yaml:"relation"`
	ForeignKey string            `yaml:"foreignKey"`
	Keys       map[string]string `yaml:"keys"`
}

// LoadDescriptors decodes a YAML descriptor file. Unknown keys are rejected.
func LoadDescriptors(r io.Reader) (*DescriptorSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file descriptorFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("descriptor file is empty")
		}
		return nil, fmt.Errorf("parse descriptors: %w", err)
	}
	if file.ScopeField == "" {
		return nil, errors.New("descriptor file: scopeField is required")
	}

	set := &DescriptorSet{ScopeField: file.ScopeField}
	for _, dy := range file.Descriptors {
		d := MappingDescriptor{
			ID:        dy.ID,
			Group:     dy.Group,
			Label:     dy.Label,
			UniqueKey: dy.UniqueKey,
			Inherited: dy.Inherited,
			Omitted:   dy.Omitted,
		}
		for _, fy := range dy.Fields {
			kind, err := ParseKind(fy.Kind)
			if err != nil {
				return nil, fmt.Errorf("descriptor %s field %s: %w", dy.ID, fy.Field, err)
			}
			d.Fields = append(d.Fields, FieldMapping{Column: fy.Column, Field: fy.Field, Kind: kind, Fold: fy.Fold})
		}
		if dy.Parent != nil {
			d.Parent = &ParentLink{
				ID:         dy.Parent.ID,
				Relation:   dy.Parent.Relation,
				ForeignKey: dy.Parent.ForeignKey,
				Keys:       dy.Parent.Keys,
			}
		}
		set.Descriptors = append(set.Descriptors, d)
	}
	return set, nil
}

// LoadDescriptorFile opens path and builds a registry from it.
func LoadDescriptorFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open descriptors: %w", err)
	}
	defer f.Close()

	set, err := LoadDescriptors(f)
	if err != nil {
		return nil, err
	}
	return NewRegistry(set.ScopeField, set.Descriptors...)
}
