package coordinator

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/relayagent/agentd/internal/errkind"
	"github.com/relayagent/agentd/internal/toolapi"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaCache compiles each tool's JSON Schema once and reuses it across
// calls — compilation is not free and ToolSpec is immutable once
// registered (§4.B).
type schemaCache struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{schemas: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) compiled(spec toolapi.Spec) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.schemas[spec.Name]; ok {
		return s, nil
	}
	if len(spec.Schema) == 0 {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal(spec.Schema, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema for %s: %w", spec.Name, err)
	}

	url := "mem://" + spec.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", spec.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", spec.Name, err)
	}
	c.schemas[spec.Name] = schema
	return schema, nil
}

// validateParams validates raw tool-call arguments against the tool's
// compiled JSON Schema, coercing any failure into InvalidParameters
// before the handler ever runs (§4.C).
func (c *schemaCache) validateParams(spec toolapi.Spec, raw json.RawMessage) error {
	schema, err := c.compiled(spec)
	if err != nil {
		return errkind.New(errkind.InvalidParameters, spec.Name, err)
	}
	if schema == nil {
		return nil
	}

	var instance any
	if len(raw) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(raw, &instance); err != nil {
		return errkind.New(errkind.InvalidParameters, spec.Name, fmt.Errorf("invalid JSON arguments: %w", err))
	}

	if err := schema.Validate(instance); err != nil {
		return errkind.New(errkind.InvalidParameters, spec.Name, err)
	}
	return nil
}
