package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	Profile       = "profile-v1.json"
	VehicleConfig = "vehicle-config-v1.json"
)

type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles one of the embedded schemas by file name.
func NewValidator(name string) (*Validator, error) {
	raw, err := schemaFS.ReadFile(path.Join("schemas", name))
	if err != nil {
		return nil, fmt.Errorf("unknown schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: compiled}, nil
}

// MustValidator panics on an embedded schema that does not compile.
func MustValidator(name string) *Validator {
	v, err := NewValidator(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Validator) Validate(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}
