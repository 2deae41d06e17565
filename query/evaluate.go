package query

import (
	"encoding/json"
	"reflect"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/temporal"
)

// Record exposes record attributes to in-memory filter evaluation. The
// second return reports whether the attribute is present at all; an absent
// attribute compares equal to null.
type Record interface {
	ResolveAttribute(path Path) (any, bool)
}

// VersionedRecord additionally knows whether it is the newest edition of its
// identity, which the symbolic "latest" version parameter needs.
type VersionedRecord interface {
	Record
	IsLatestVersion() bool
}

// Evaluate applies a resolved filter to one record. Composite filters
// short-circuit. Filters holding unresolved paths fail.
func Evaluate(f *Filter, r Record) (bool, error) {
	switch {
	case f.kind == KindAll:
		for i := range f.children {
			ok, err := Evaluate(&f.children[i], r)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case f.kind == KindAny:
		for i := range f.children {
			ok, err := Evaluate(&f.children[i], r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case f.kind == KindNot:
		ok, err := Evaluate(f.sub, r)
		if err != nil {
			return false, err
		}
		return !ok, nil

	case f.kind == KindExists:
		path, ok := f.lhs.Path()
		if !ok {
			return false, errors.New("exists filter requires a resolved path")
		}
		value, present := r.ResolveAttribute(path)
		return present && value != nil, nil

	case f.kind.isComparison():
		return evaluateComparison(f, r)

	default:
		return false, errors.Newf("cannot evaluate filter with unknown kind %q", f.kind)
	}
}

func evaluateComparison(f *Filter, r Record) (bool, error) {
	if latest, ok, err := evaluateLatestVersion(f, r); ok || err != nil {
		return latest, err
	}

	lhs, err := operandValue(f.lhs, r)
	if err != nil {
		return false, err
	}
	rhs, err := operandValue(f.rhs, r)
	if err != nil {
		return false, err
	}

	switch f.kind {
	case KindEqual:
		return valuesEqual(lhs, rhs), nil
	case KindNotEqual:
		return !valuesEqual(lhs, rhs), nil
	case KindContainsSegment:
		return sequenceContains(lhs, rhs)
	default:
		cmp, err := orderValues(lhs, rhs)
		if err != nil {
			return false, err
		}
		switch f.kind {
		case KindLess:
			return cmp < 0, nil
		case KindLessOrEqual:
			return cmp <= 0, nil
		case KindGreater:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	}
}

// evaluateLatestVersion intercepts comparisons of an ontology version path
// against the symbolic "latest" parameter. ok reports whether the
// interception applied.
func evaluateLatestVersion(f *Filter, r Record) (result, ok bool, err error) {
	if f.kind != KindEqual && f.kind != KindNotEqual {
		return false, false, nil
	}
	var path *Path
	var param *Parameter
	if p, isPath := f.lhs.Path(); isPath {
		path = &p
	} else if p, isParam := f.lhs.Parameter(); isParam {
		param = &p
	}
	if p, isPath := f.rhs.Path(); isPath {
		path = &p
	} else if p, isParam := f.rhs.Parameter(); isParam {
		param = &p
	}
	if path == nil || param == nil || !param.IsLatestVersion() {
		return false, false, nil
	}
	if path.ExpectedType() != ParameterTypeVersion {
		return false, false, nil
	}
	if path.Kind() == RecordKindEntity {
		return false, false, errors.Newf("latest is not supported on path %s", path)
	}
	versioned, isVersioned := r.(VersionedRecord)
	if !isVersioned {
		return false, false, errors.Newf("record %T cannot answer latest-version comparisons", r)
	}
	latest := versioned.IsLatestVersion()
	if f.kind == KindNotEqual {
		latest = !latest
	}
	return latest, true, nil
}

// operandValue resolves an operand to a plain value. A nil operand is JSON
// null; an absent record attribute is treated as null.
func operandValue(e *Expression, r Record) (any, error) {
	if e == nil {
		return nil, nil
	}
	if path, ok := e.Path(); ok {
		value, present := r.ResolveAttribute(path)
		if !present {
			return nil, nil
		}
		return normalizeValue(value), nil
	}
	if param, ok := e.Parameter(); ok {
		return normalizeValue(param.Value()), nil
	}
	return nil, errors.New("filter expression holds an unresolved path; resolve the filter first")
}

// normalizeValue maps domain values and the numeric tower onto the four JSON
// scalar shapes plus recursively normalized maps and slices, so equality is
// insensitive to the Go type a value arrived in.
func normalizeValue(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case bool, string:
		return value
	case float64:
		return value
	case float32:
		return float64(value)
	case int:
		return float64(value)
	case int8:
		return float64(value)
	case int16:
		return float64(value)
	case int32:
		return float64(value)
	case int64:
		return float64(value)
	case uint:
		return float64(value)
	case uint8:
		return float64(value)
	case uint16:
		return float64(value)
	case uint32:
		return float64(value)
	case uint64:
		return float64(value)
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return value.String()
		}
		return f
	case uuid.UUID:
		return value.String()
	case ontology.BaseURL:
		return value.String()
	case ontology.VersionedURL:
		return value.String()
	case temporal.Timestamp:
		return value.String()
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return value
	}
}

func valuesEqual(lhs, rhs any) bool {
	return reflect.DeepEqual(lhs, rhs)
}

// orderValues compares two normalized values, numerically or
// lexicographically. Mixed or unordered types are an evaluation error.
func orderValues(lhs, rhs any) (int, error) {
	if l, ok := lhs.(float64); ok {
		r, ok := rhs.(float64)
		if !ok {
			return 0, errors.Newf("cannot order number against %T", rhs)
		}
		switch {
		case l < r:
			return -1, nil
		case l > r:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if l, ok := lhs.(string); ok {
		r, ok := rhs.(string)
		if !ok {
			return 0, errors.Newf("cannot order text against %T", rhs)
		}
		switch {
		case l < r:
			return -1, nil
		case l > r:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, errors.Newf("values of type %T have no ordering", lhs)
}

func sequenceContains(lhs, rhs any) (bool, error) {
	seq, ok := lhs.([]any)
	if !ok {
		if lhs == nil {
			return false, nil
		}
		return false, errors.Newf("containsSegment requires a sequence, got %T", lhs)
	}
	for _, item := range seq {
		if valuesEqual(item, rhs) {
			return true, nil
		}
	}
	return false, nil
}
