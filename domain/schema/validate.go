package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// IssueKind classifies a single field-level validation problem.
type IssueKind string

const (
	IssueMissingField  IssueKind = "MissingField"
	IssueTypeMismatch  IssueKind = "TypeMismatch"
	IssueUnknownField  IssueKind = "UnknownField"
	IssueRuleViolation IssueKind = "RuleViolation"
)

// Issue is one field-level validation problem.
type Issue struct {
	Field    string    `json:"field"`
	Kind     IssueKind `json:"kind"`
	Expected string    `json:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty"`
	Message  string    `json:"message"`
}

// ValidationError enumerates every problem found while validating raw input.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+": "+is.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the paths of all fields with at least one issue, in report order.
func (e *ValidationError) Fields() []string {
	seen := make(map[string]bool, len(e.Issues))
	var out []string
	for _, is := range e.Issues {
		if !seen[is.Field] {
			seen[is.Field] = true
			out = append(out, is.Field)
		}
	}
	return out
}

// Has reports whether an issue of the given kind was recorded for field.
func (e *ValidationError) Has(field string, kind IssueKind) bool {
	for _, is := range e.Issues {
		if is.Field == field && is.Kind == kind {
			return true
		}
	}
	return false
}

// validate is a package-level singleton; validator instances cache struct metadata.
var validate = validator.New()

// Validate checks raw against s and returns the validated parameter set.
// Defaults are filled for absent fields and safe numeric coercions are applied.
// On failure the returned error is a *ValidationError listing every issue.
// A nil schema is treated as an empty closed schema.
func Validate(s *Schema, raw map[string]any) (Values, error) {
	if s == nil {
		s = Empty()
	}
	var issues []Issue
	out := validateObject("", s, raw, &issues)
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return out, nil
}

func validateObject(prefix string, s *Schema, raw map[string]any, issues *[]Issue) Values {
	out := make(Values, len(s.Fields))
	declared := make(map[string]bool, len(s.Fields))

	for _, f := range s.Fields {
		declared[f.Name] = true
		path := joinPath(prefix, f.Name)

		v, present := raw[f.Name]
		if !present || v == nil {
			switch {
			case f.Default != nil:
				if coerced, ok := validateValue(path, f, copyValue(f.Default), issues); ok {
					out[f.Name] = coerced
				}
			case f.Optional:
			default:
				*issues = append(*issues, Issue{
					Field:    path,
					Kind:     IssueMissingField,
					Expected: string(f.Type),
					Message:  "required field is missing",
				})
			}
			continue
		}

		if coerced, ok := validateValue(path, f, v, issues); ok {
			out[f.Name] = coerced
		}
	}

	var unknown []string
	for k := range raw {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		if s.Open {
			out[k] = raw[k]
			continue
		}
		*issues = append(*issues, Issue{
			Field:   joinPath(prefix, k),
			Kind:    IssueUnknownField,
			Actual:  typeName(raw[k]),
			Message: "field is not declared by the schema",
		})
	}
	return out
}

// validateValue type-checks and coerces a single present value.
func validateValue(path string, f Field, v any, issues *[]Issue) (any, bool) {
	coerced, ok := coerce(f.Type, v)
	if !ok {
		*issues = append(*issues, Issue{
			Field:    path,
			Kind:     IssueTypeMismatch,
			Expected: string(f.Type),
			Actual:   typeName(v),
			Message:  fmt.Sprintf("expected %s, got %s", f.Type, typeName(v)),
		})
		return nil, false
	}

	before := len(*issues)
	switch f.Type {
	case TypeArray:
		coerced = validateItems(path, f.Items, coerced.([]any), issues)
	case TypeObject:
		if f.Properties != nil {
			coerced = map[string]any(validateObject(path, f.Properties, coerced.(map[string]any), issues))
		}
	}
	if len(*issues) > before {
		return nil, false
	}

	if len(f.Enum) > 0 && !inEnum(f.Type, coerced, f.Enum) {
		*issues = append(*issues, Issue{
			Field:    path,
			Kind:     IssueRuleViolation,
			Expected: fmt.Sprintf("one of %v", f.Enum),
			Actual:   fmt.Sprintf("%v", coerced),
			Message:  fmt.Sprintf("value %v is not one of %v", coerced, f.Enum),
		})
		return nil, false
	}

	if f.Rules != "" {
		if msg := checkRules(coerced, f.Rules); msg != "" {
			*issues = append(*issues, Issue{
				Field:    path,
				Kind:     IssueRuleViolation,
				Expected: f.Rules,
				Message:  msg,
			})
			return nil, false
		}
	}
	return coerced, true
}

func validateItems(path string, items *Field, elems []any, issues *[]Issue) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		if items == nil {
			out[i] = copyValue(e)
			continue
		}
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if e == nil {
			*issues = append(*issues, Issue{
				Field:    elemPath,
				Kind:     IssueTypeMismatch,
				Expected: string(items.Type),
				Actual:   "null",
				Message:  fmt.Sprintf("expected %s, got null", items.Type),
			})
			continue
		}
		if c, ok := validateValue(elemPath, *items, e, issues); ok {
			out[i] = c
		}
	}
	return out
}

// checkRules runs validator tag rules against v and returns a message on failure.
func checkRules(v any, rules string) (msg string) {
	defer func() {
		// validator panics on malformed tags
		if r := recover(); r != nil {
			msg = fmt.Sprintf("invalid rules %q: %v", rules, r)
		}
	}()
	err := validate.Var(v, rules)
	if err == nil {
		return ""
	}
	var fieldErrs validator.ValidationErrors
	if ok := asValidationErrors(err, &fieldErrs); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("failed rule %s=%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed rule %s", fe.Tag())
	}
	return err.Error()
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}

// coerce applies the safe conversions allowed for t.
func coerce(t Type, v any) (any, bool) {
	switch t {
	case TypeAny:
		return v, true
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeBoolean:
		b, ok := v.(bool)
		return b, ok
	case TypeInteger:
		return toInt64(v)
	case TypeNumber:
		return toFloat64(v)
	case TypeArray:
		return toSlice(v)
	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			if vals, isVals := v.(Values); isVals {
				m, ok = map[string]any(vals), true
			}
		}
		if !ok {
			return nil, false
		}
		cp := make(map[string]any, len(m))
		for k, e := range m {
			cp[k] = e
		}
		return cp, true
	}
	return nil, false
}

func toInt64(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return nil, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return nil, false
		}
		return int64(n), true
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, false
		}
		return i, true
	}
	return nil, false
}

func floatToInt64(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, false
	}
	return int64(f), true
}

func toFloat64(v any) (any, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case uint64:
		return float64(n), true
	case uint:
		return float64(n), true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	}
	i, ok := toInt64(v)
	if !ok {
		return nil, false
	}
	return float64(i.(int64)), true
}

func toSlice(v any) (any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func inEnum(t Type, v any, enum []any) bool {
	for _, e := range enum {
		ce, ok := coerce(t, e)
		if !ok {
			continue
		}
		if reflect.DeepEqual(ce, v) {
			return true
		}
	}
	return false
}

// typeName reports the schema type name of a raw value.
func typeName(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case string:
		return string(TypeString)
	case bool:
		return string(TypeBoolean)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return string(TypeInteger)
	case float32, float64, json.Number:
		return string(TypeNumber)
	case map[string]any, Values:
		return string(TypeObject)
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return string(TypeArray)
	case reflect.Map, reflect.Struct:
		return string(TypeObject)
	}
	return fmt.Sprintf("%T", v)
}

// copyValue deep copies maps and slices so defaults are never shared between calls.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(t))
		for k, e := range t {
			cp[k] = copyValue(e)
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = copyValue(e)
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
