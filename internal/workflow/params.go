package workflow

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"ada/internal/domain"
)

// ParamType is the declared type of a workflow parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeFloat   ParamType = "float"
	TypeBoolean ParamType = "boolean"
)

func (t ParamType) Valid() bool {
	_, ok := coercions[t]
	return ok
}

// Requirements maps a parameter name to its declared type.
type Requirements map[string]ParamType

type coerceFunc func(v any) (any, bool)

var coercions = map[ParamType]coerceFunc{
	TypeString:  coerceString,
	TypeInteger: coerceInteger,
	TypeFloat:   coerceFloat,
	TypeBoolean: coerceBoolean,
}

func coerceString(v any) (any, bool) {
	s, ok := v.(string)
	return s, ok
}

func coerceInteger(v any) (any, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		return wholeInt64(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		f, err := x.Float64()
		if err != nil {
			return nil, false
		}
		return wholeInt64(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return nil, false
}

// wholeInt64 accepts whole floats that fit in an int64. 2^63 itself does not.
func wholeInt64(x float64) (any, bool) {
	if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
		return nil, false
	}
	return int64(x), true
}

func coerceFloat(v any) (any, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return nil, false
}

func coerceBoolean(v any) (any, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	}
	return nil, false
}

// TypedParams holds parameters coerced to their declared types:
// int64 for integer, float64 for float, bool for boolean, string for string.
type TypedParams map[string]any

func (p TypedParams) String(key string) string {
	s, _ := p[key].(string)
	return s
}

func (p TypedParams) Int(key string) int64 {
	n, _ := p[key].(int64)
	return n
}

func (p TypedParams) Float(key string) float64 {
	f, _ := p[key].(float64)
	return f
}

func (p TypedParams) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// ValidateParams checks presence and coercibility of every required key.
// Keys not mentioned in req are dropped. Each offending key produces its own
// FieldError.
func ValidateParams(req Requirements, params domain.Params) (TypedParams, error) {
	typed := make(TypedParams, len(req))
	var errs domain.FieldErrors
	for key, typ := range req {
		raw, ok := params[key]
		if !ok || raw == nil {
			errs = append(errs, domain.FieldError{Field: key, Message: "is required"})
			continue
		}
		coerce, known := coercions[typ]
		if !known {
			errs = append(errs, domain.FieldError{Field: key, Message: fmt.Sprintf("has unsupported declared type %q", typ)})
			continue
		}
		v, ok := coerce(raw)
		if !ok {
			errs = append(errs, domain.FieldError{Field: key, Message: fmt.Sprintf("must be %s (got %v)", article(typ), raw)})
			continue
		}
		typed[key] = v
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return typed, nil
}

func article(t ParamType) string {
	if t == TypeInteger {
		return "an integer"
	}
	return "a " + string(t)
}
