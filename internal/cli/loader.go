package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/qshape/internal/compiler"
	"github.com/roach88/qshape/internal/queryir"
	"github.com/roach88/qshape/internal/schema"
)

// LoadResult contains the catalog compiled from a schema path.
type LoadResult struct {
	Catalog   *schema.Catalog
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred during schema or query loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema compiles table metadata from a .cue file or a directory of
// them. A directory is loaded as one CUE instance so tables may be split
// across files.
func LoadSchema(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema path: %v", err)}
	}

	if !info.IsDir() {
		catalog, err := compiler.LoadTablesFile(path)
		if err != nil {
			return nil, convertCompileError(err, path)
		}
		return &LoadResult{Catalog: catalog, FileCount: 1}, nil
	}

	cueFiles, err := FindCUEFiles(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: path}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	catalog, err := compiler.CompileTables(value)
	if err != nil {
		return nil, convertCompileError(err, path)
	}

	return &LoadResult{Catalog: catalog, FileCount: len(cueFiles)}, nil
}

// LoadQuery parses and compiles one YAML query definition.
func LoadQuery(path string, catalog *schema.Catalog) (*queryir.Query, error) {
	def, err := compiler.LoadQueryFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	q, err := compiler.CompileQuery(def, catalog)
	if err != nil {
		return nil, convertCompileError(err, path)
	}
	return q, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return &LoadError{Code: validationErr.Code, Message: validationErr.Error()}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE or YAML load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeDatabase    = "E007" // Database open or query error

	// Schema errors
	ErrCodeSchemaTables = "E101" // Missing or empty tables struct
	ErrCodeSchemaColumn = "E102" // Invalid column definition
	ErrCodeSchemaType   = "E103" // Unknown column type

	// Query errors that reach the CLI through the compiler
	ErrCodeQueryTable = "E110" // Query names a table that is not in the schema
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "tables":
		return ErrCodeSchemaTables
	case strings.HasSuffix(field, ".type"):
		return ErrCodeSchemaType
	case strings.HasPrefix(field, "tables."):
		return ErrCodeSchemaColumn
	case field == "from", strings.HasPrefix(field, "joins"):
		return ErrCodeQueryTable
	default:
		return ErrCodeGeneric
	}
}
