package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"quilt-athena/internal/domain"
)

// File is the YAML document describing a catalog.
type File struct {
	Objects []ObjectSpec `yaml:"objects"`
}

// ObjectSpec is one catalog object entry in a catalog file.
type ObjectSpec struct {
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	Prefix        string `yaml:"prefix,omitempty"`
	Template      string `yaml:"template"`
	DropTemplate  string `yaml:"drop_template,omitempty"`
	DependsOn     string `yaml:"depends_on,omitempty"` // name of a table in the same file
	DependsOnKind string `yaml:"depends_on_kind,omitempty"`
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) ([]domain.CatalogObject, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	objects, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog file %s: %w", path, err)
	}
	return objects, nil
}

// Parse decodes a catalog document. Unknown fields are rejected.
func Parse(data []byte) ([]domain.CatalogObject, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domain.ErrValidation("catalog defines no objects")
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	objects := make([]domain.CatalogObject, 0, len(f.Objects))
	for i, spec := range f.Objects {
		obj, err := spec.toObject()
		if err != nil {
			return nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		objects = append(objects, obj)
	}

	if err := Validate(objects); err != nil {
		return nil, err
	}
	return objects, nil
}

func (s ObjectSpec) toObject() (domain.CatalogObject, error) {
	kind, err := domain.ParseObjectKind(s.Kind)
	if err != nil {
		return domain.CatalogObject{}, err
	}
	obj := domain.CatalogObject{
		Name:         s.Name,
		Kind:         kind,
		Prefix:       s.Prefix,
		TemplatePath: s.Template,
		DropTemplate: s.DropTemplate,
	}
	if s.DependsOn != "" {
		depKind := domain.ObjectKindTable
		if s.DependsOnKind != "" {
			if depKind, err = domain.ParseObjectKind(s.DependsOnKind); err != nil {
				return domain.CatalogObject{}, err
			}
		}
		obj.DependsOn = &domain.ObjectRef{Name: s.DependsOn, Kind: depKind}
	}
	return obj, nil
}
