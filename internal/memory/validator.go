package memory

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/memory.schema.json
var schemaJSON []byte

const schemaURL = "https://aura.local/schema/memory.schema.json"

// ErrInvalidMemory is returned by Check and Parse when a document does not
// conform to the session memory schema.
var ErrInvalidMemory = errors.New("memory: invalid memory document")

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaURL)
})

// Schema returns the JSON Schema document session memory must satisfy.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

// IsValid reports whether raw is a session memory document: a single JSON
// object whose members and nested members all belong to the closed schema.
// Optional members may be null. It never panics.
func IsValid(raw string) bool {
	return Check(raw) == nil
}

// Check is IsValid with the reason attached. Every failure wraps
// ErrInvalidMemory.
func Check(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty document", ErrInvalidMemory)
	}

	doc, err := decodeStrict(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMemory, err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("%w: compiling schema: %w", ErrInvalidMemory, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMemory, err)
	}
	return nil
}

// decodeStrict decodes exactly one JSON value, keeping numbers as
// json.Number so the validator sees them unchanged.
func decodeStrict(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return doc, nil
}
