package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "config.schema.json"

var (
	compileOnce sync.Once
	compiled    *validator.Schema
	compileErr  error
)

// Schema reflects the JSON schema of Config. Unknown keys are rejected and
// no key is required, so a partial file inherits the defaults.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Config))
	schema.Title = "Automated Kingdom server configuration"
	schema.Description = "Validates the YAML file passed to cmd/server with -config."
	return schema
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}

func compiledSchema() (*validator.Schema, error) {
	compileOnce.Do(func() {
		data, err := SchemaJSON()
		if err != nil {
			compileErr = err
			return
		}
		compiler := validator.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(data)); err != nil {
			compileErr = fmt.Errorf("load schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
	})
	return compiled, compileErr
}

// Validate checks a raw YAML document against Schema.
func Validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round-trip through JSON so numbers and maps take the shapes the
	// validator expects.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	var value any
	if err := json.Unmarshal(encoded, &value); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
