package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default}. A backslash escapes a
// closing brace inside the default.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the file at path and parses it with Parse.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment references and decodes raw. Unknown top-level
// and section keys are rejected so a misspelt setting does not silently
// fall back to its default; module blocks are decoded later by each module.
// An empty document yields a zero Config.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	return &cfg, nil
}

// expandEnv substitutes environment references line by line. Comment
// lines are left untouched, so a commented-out ${SECRET} never has to be
// set. Every unresolved variable is reported once, in order of first use.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []string

	lines := bytes.SplitAfter(raw, []byte("\n"))
	for i, line := range lines {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("#")) {
			continue
		}
		lines[i] = envPattern.ReplaceAllFunc(line, func(match []byte) []byte {
			subs := envPattern.FindSubmatch(match)
			name := string(subs[1])
			if value, ok := os.LookupEnv(name); ok {
				return []byte(value)
			}
			if subs[2] != nil || bytes.Contains(match, []byte(":-")) {
				return unescapeDefault(subs[2])
			}
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			return match
		})
	}

	out := bytes.Join(lines, nil)
	if len(missing) > 0 {
		return out, fmt.Errorf("unresolved variables: %v", missing)
	}
	return out, nil
}

// unescapeDefault drops the backslash of escaped characters.
func unescapeDefault(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			i++
		}
		out = append(out, b[i])
	}
	return out
}
