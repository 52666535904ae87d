package materialize

import (
	"errors"
	"fmt"
)

// RowShapeError reports a RawRow whose length disagrees with the result
// schema. It is a driver contract violation; the row is never truncated or
// padded.
type RowShapeError struct {
	// Row is the index of the row within the batch (0 for Row).
	Row int

	// Expected is the schema's leaf count.
	Expected int

	// Got is the number of values the driver supplied.
	Got int
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("row %d: driver returned %d values, result schema expects %d", e.Row, e.Got, e.Expected)
}

// IsRowShapeMismatch reports whether err is (or wraps) a RowShapeError.
func IsRowShapeMismatch(err error) bool {
	var rse *RowShapeError
	return errors.As(err, &rse)
}
