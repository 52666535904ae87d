package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qshape/internal/compiler"
)

// Scenario defines a conformance test scenario: a schema, one query, the
// rows a driver would return, and assertions on shape and results.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is inline CUE table metadata. SchemaFile names a CUE file
	// instead, relative to the scenario file. Exactly one is required.
	Schema     string `yaml:"schema,omitempty"`
	SchemaFile string `yaml:"schema_file,omitempty"`

	// Query is the query under test.
	Query compiler.QueryDef `yaml:"query"`

	// Rows are RawRows in projection order, materialized without a database.
	Rows [][]any `yaml:"rows,omitempty"`

	// Setup is SQL run against a fresh SQLite database. When set, the query
	// is executed there and Rows must be empty.
	Setup string `yaml:"setup,omitempty"`

	// Params binds named query parameters.
	Params map[string]any `yaml:"params,omitempty"`

	// Workers and ContinueOnError are passed to the materializer.
	Workers         int  `yaml:"workers,omitempty"`
	ContinueOnError bool `yaml:"continue_on_error,omitempty"`

	// Assertions validate the plan and the materialized rows.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one aspect of a scenario result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "mode": Mode must equal the selection mode
	// - "nullability": each listed table must have the given nullability
	// - "field_nullable": the leaf at Path must have Nullable
	// - "results": Rows must equal the materialized rows
	// - "row_count": Count rows must be materialized
	// - "sql": SQL must equal the compiled statement
	// - "error": the scenario must fail with Code
	Type string `yaml:"type"`

	Mode        string            `yaml:"mode,omitempty"`
	Nullability map[string]string `yaml:"nullability,omitempty"`
	Path        string            `yaml:"path,omitempty"`
	Nullable    *bool             `yaml:"nullable,omitempty"`
	Rows        []any             `yaml:"rows,omitempty"`
	Count       int               `yaml:"count,omitempty"`
	SQL         string            `yaml:"sql,omitempty"`
	Code        string            `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertMode          = "mode"
	AssertNullability   = "nullability"
	AssertFieldNullable = "field_nullable"
	AssertResults       = "results"
	AssertRowCount      = "row_count"
	AssertSQL           = "sql"
	AssertError         = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema_file relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) && basePath != "" {
		scenario.SchemaFile = filepath.Join(basePath, scenario.SchemaFile)
	}
	if scenario.SchemaFile != "" {
		if _, err := os.Stat(scenario.SchemaFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.SchemaFile)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Schema == "") == (s.SchemaFile == "") {
		return fmt.Errorf("exactly one of schema or schema_file is required")
	}

	if s.Setup != "" && len(s.Rows) > 0 {
		return fmt.Errorf("rows and setup are mutually exclusive")
	}

	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertMode:
		if a.Mode == "" {
			return fmt.Errorf("assertions[%d]: mode is required for mode", index)
		}
	case AssertNullability:
		if len(a.Nullability) == 0 {
			return fmt.Errorf("assertions[%d]: nullability map is required for nullability", index)
		}
	case AssertFieldNullable:
		if a.Path == "" || a.Nullable == nil {
			return fmt.Errorf("assertions[%d]: path and nullable are required for field_nullable", index)
		}
	case AssertResults:
		if a.Rows == nil {
			return fmt.Errorf("assertions[%d]: rows is required for results (use [] for none)", index)
		}
	case AssertRowCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertSQL:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for sql", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// expectsError reports whether any assertion is an error assertion.
func (s *Scenario) expectsError() bool {
	for _, a := range s.Assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
