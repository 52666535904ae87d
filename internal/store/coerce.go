package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/qshape/internal/ir"
	"github.com/roach88/qshape/internal/schema"
)

// coerce converts a scanned driver value to the IR form of the column's
// declared type. Drivers disagree on representation: SQLite stores booleans
// as integers, MySQL's text protocol returns numbers as []byte, and JSON
// columns arrive as text or bytes depending on the driver.
func coerce(typ schema.ValueType, v any) (ir.IRValue, error) {
	if v == nil {
		return ir.IRNull{}, nil
	}

	switch typ {
	case schema.TypeBoolean:
		return coerceBool(v)
	case schema.TypeInteger:
		return coerceInt(v)
	case schema.TypeReal:
		return coerceFloat(v)
	case schema.TypeText:
		switch val := v.(type) {
		case string:
			return ir.IRString(val), nil
		case []byte:
			return ir.IRString(string(val)), nil
		}
	case schema.TypeJSON:
		switch val := v.(type) {
		case string:
			return ir.UnmarshalIRValue([]byte(val))
		case []byte:
			return ir.UnmarshalIRValue(val)
		}
	case schema.TypeTimestamp:
		switch val := v.(type) {
		case time.Time:
			return ir.IRString(val.UTC().Format(time.RFC3339Nano)), nil
		case []byte:
			return ir.IRString(string(val)), nil
		}
	case schema.TypeBlob:
		if b, ok := v.([]byte); ok {
			return ir.IRString(base64.StdEncoding.EncodeToString(b)), nil
		}
	}

	return ir.FromAny(v)
}

func coerceBool(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case bool:
		return ir.IRBool(val), nil
	case int64:
		return ir.IRBool(val != 0), nil
	case []byte:
		return parseBool(string(val))
	case string:
		return parseBool(val)
	}
	return nil, fmt.Errorf("cannot read %T as boolean", v)
}

func parseBool(s string) (ir.IRValue, error) {
	switch strings.ToLower(s) {
	case "t", "true", "1":
		return ir.IRBool(true), nil
	case "f", "false", "0":
		return ir.IRBool(false), nil
	}
	return nil, fmt.Errorf("cannot read %q as boolean", s)
}

func coerceInt(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case []byte:
		n, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot read %q as integer: %w", val, err)
		}
		return ir.IRInt(n), nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot read %q as integer: %w", val, err)
		}
		return ir.IRInt(n), nil
	}
	return ir.FromAny(v)
}

func coerceFloat(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case []byte:
		return parseFloat(string(val))
	case string:
		return parseFloat(val)
	case int64:
		return ir.IRFloat(float64(val)), nil
	}
	return ir.FromAny(v)
}

func parseFloat(s string) (ir.IRValue, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot read %q as real: %w", s, err)
	}
	return ir.IRFloat(f), nil
}
