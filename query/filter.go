package query

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
)

// Kind is a filter operator.
type Kind string

const (
	KindAll            Kind = "all"
	KindAny            Kind = "any"
	KindNot            Kind = "not"
	KindEqual          Kind = "equal"
	KindNotEqual       Kind = "notEqual"
	KindLess           Kind = "less"
	KindLessOrEqual    Kind = "lessOrEqual"
	KindGreater        Kind = "greater"
	KindGreaterOrEqual Kind = "greaterOrEqual"
	KindExists         Kind = "exists"

	// KindContainsSegment tests membership in a sequence-valued property.
	KindContainsSegment Kind = "containsSegment"
)

func (k Kind) isComposite() bool {
	return k == KindAll || k == KindAny
}

func (k Kind) isComparison() bool {
	switch k {
	case KindEqual, KindNotEqual, KindLess, KindLessOrEqual, KindGreater, KindGreaterOrEqual, KindContainsSegment:
		return true
	default:
		return false
	}
}

func (k Kind) isOrdering() bool {
	switch k {
	case KindLess, KindLessOrEqual, KindGreater, KindGreaterOrEqual:
		return true
	default:
		return false
	}
}

// Filter is one node of a filter tree. Build trees with the constructors;
// the zero value is invalid.
type Filter struct {
	kind     Kind
	children []Filter    // all, any
	sub      *Filter     // not
	lhs      *Expression // comparisons and exists; nil operand means JSON null
	rhs      *Expression
}

// All matches when every child filter matches. An empty All matches
// everything.
func All(filters ...Filter) Filter {
	return Filter{kind: KindAll, children: filters}
}

// Any matches when at least one child filter matches. An empty Any matches
// nothing.
func Any(filters ...Filter) Filter {
	return Filter{kind: KindAny, children: filters}
}

// Not inverts a filter.
func Not(f Filter) Filter {
	return Filter{kind: KindNot, sub: &f}
}

// Equal compares two expressions. A nil operand stands for JSON null, so
// Equal(path, nil) is a null check.
func Equal(lhs, rhs *Expression) Filter {
	return Filter{kind: KindEqual, lhs: lhs, rhs: rhs}
}

// NotEqual is the negation of Equal. NotEqual(path, nil) tests that an
// attribute is present and non-null.
func NotEqual(lhs, rhs *Expression) Filter {
	return Filter{kind: KindNotEqual, lhs: lhs, rhs: rhs}
}

// Less orders two expressions. Both operands are required.
func Less(lhs, rhs *Expression) Filter {
	return Filter{kind: KindLess, lhs: lhs, rhs: rhs}
}

// LessOrEqual orders two expressions. Both operands are required.
func LessOrEqual(lhs, rhs *Expression) Filter {
	return Filter{kind: KindLessOrEqual, lhs: lhs, rhs: rhs}
}

// Greater orders two expressions. Both operands are required.
func Greater(lhs, rhs *Expression) Filter {
	return Filter{kind: KindGreater, lhs: lhs, rhs: rhs}
}

// GreaterOrEqual orders two expressions. Both operands are required.
func GreaterOrEqual(lhs, rhs *Expression) Filter {
	return Filter{kind: KindGreaterOrEqual, lhs: lhs, rhs: rhs}
}

// Exists matches records where the path resolves to a present, non-null
// value.
func Exists(path Path) Filter {
	return Filter{kind: KindExists, lhs: NewPathExpression(path)}
}

// ContainsSegment matches records where the sequence at lhs contains the rhs
// value as an element.
func ContainsSegment(lhs, rhs *Expression) Filter {
	return Filter{kind: KindContainsSegment, lhs: lhs, rhs: rhs}
}

// Kind reports the operator of this node.
func (f *Filter) Kind() Kind { return f.kind }

// Children returns the sub-filters of an all/any node.
func (f *Filter) Children() []Filter { return f.children }

// Sub returns the inverted filter of a not node.
func (f *Filter) Sub() *Filter { return f.sub }

// Operands returns the comparison operands. Either may be nil: for
// comparisons a nil operand stands for JSON null, and exists has no rhs.
func (f *Filter) Operands() (lhs, rhs *Expression) { return f.lhs, f.rhs }

// Expression is one comparison operand: an attribute path or a parameter.
type Expression struct {
	path      *Path
	rawPath   []string
	parameter *Parameter
}

// NewPathExpression builds an operand from a resolved path.
func NewPathExpression(p Path) *Expression {
	return &Expression{path: &p}
}

// NewParameterExpression builds an operand from a parameter value.
func NewParameterExpression(p Parameter) *Expression {
	return &Expression{parameter: &p}
}

// Path returns the resolved path operand, if this expression is one.
func (e *Expression) Path() (Path, bool) {
	if e == nil || e.path == nil {
		return Path{}, false
	}
	return *e.path, true
}

// Parameter returns the parameter operand, if this expression is one.
func (e *Expression) Parameter() (Parameter, bool) {
	if e == nil || e.parameter == nil {
		return Parameter{}, false
	}
	return *e.parameter, true
}

// MarshalJSON renders {"path": [...]} or {"parameter": value}.
func (e Expression) MarshalJSON() ([]byte, error) {
	switch {
	case e.path != nil:
		return json.Marshal(struct {
			Path Path `json:"path"`
		}{Path: *e.path})
	case e.rawPath != nil:
		return json.Marshal(struct {
			Path []string `json:"path"`
		}{Path: e.rawPath})
	case e.parameter != nil:
		return json.Marshal(struct {
			Parameter Parameter `json:"parameter"`
		}{Parameter: *e.parameter})
	default:
		return nil, errors.New("cannot marshal an empty filter expression")
	}
}

// UnmarshalJSON decodes either operand form. Paths stay raw until the filter
// is resolved against a record kind.
func (e *Expression) UnmarshalJSON(data []byte) error {
	var probe struct {
		Path      []string         `json:"path"`
		Parameter *json.RawMessage `json:"parameter"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*e = Expression{}
	switch {
	case probe.Path != nil && probe.Parameter != nil:
		return errors.New("filter expression cannot be both a path and a parameter")
	case probe.Path != nil:
		e.rawPath = probe.Path
		return nil
	case probe.Parameter != nil:
		var p Parameter
		if err := json.Unmarshal(*probe.Parameter, &p); err != nil {
			return err
		}
		e.parameter = &p
		return nil
	default:
		return errors.New("filter expression must carry a path or a parameter")
	}
}

var jsonNull = []byte("null")

// filterJSON is the single-key wire object of a filter node.
type filterJSON map[Kind]json.RawMessage

// MarshalJSON renders the tagged wire form, e.g.
// {"equal": [{"path": ["version"]}, {"parameter": "latest"}]}.
func (f Filter) MarshalJSON() ([]byte, error) {
	var inner any
	switch {
	case f.kind.isComposite():
		children := f.children
		if children == nil {
			children = []Filter{}
		}
		inner = children
	case f.kind == KindNot:
		if f.sub == nil {
			return nil, errors.New("not filter is missing its operand")
		}
		inner = f.sub
	case f.kind == KindExists:
		if f.lhs == nil {
			return nil, errors.New("exists filter is missing its path")
		}
		inner = f.lhs
	case f.kind.isComparison():
		operands := make([]json.RawMessage, 2)
		for i, op := range []*Expression{f.lhs, f.rhs} {
			if op == nil {
				operands[i] = jsonNull
				continue
			}
			raw, err := json.Marshal(op)
			if err != nil {
				return nil, err
			}
			operands[i] = raw
		}
		inner = operands
	default:
		return nil, errors.Newf("cannot marshal filter with unknown kind %q", f.kind)
	}

	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(filterJSON{f.kind: raw})
}

// UnmarshalJSON decodes the tagged wire form.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var tagged filterJSON
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return errors.Newf("filter must have exactly one operator, got %d", len(tagged))
	}

	for kind, raw := range tagged {
		switch {
		case kind.isComposite():
			var children []Filter
			if err := json.Unmarshal(raw, &children); err != nil {
				return err
			}
			*f = Filter{kind: kind, children: children}

		case kind == KindNot:
			var sub Filter
			if err := json.Unmarshal(raw, &sub); err != nil {
				return err
			}
			*f = Filter{kind: kind, sub: &sub}

		case kind == KindExists:
			var expr Expression
			if err := json.Unmarshal(raw, &expr); err != nil {
				return err
			}
			*f = Filter{kind: kind, lhs: &expr}

		case kind.isComparison():
			var operands []json.RawMessage
			if err := json.Unmarshal(raw, &operands); err != nil {
				return err
			}
			if len(operands) != 2 {
				return errors.Newf("%s filter requires exactly two operands, got %d", kind, len(operands))
			}
			parsed := Filter{kind: kind}
			exprs := make([]*Expression, 2)
			for i, op := range operands {
				if bytes.Equal(bytes.TrimSpace(op), jsonNull) {
					continue
				}
				var expr Expression
				if err := json.Unmarshal(op, &expr); err != nil {
					return err
				}
				exprs[i] = &expr
			}
			parsed.lhs, parsed.rhs = exprs[0], exprs[1]
			*f = parsed

		default:
			return errors.Newf("unknown filter operator %q", kind)
		}
	}
	return nil
}

// Resolve compiles the filter for a record kind: raw paths are parsed into
// typed paths and parameters are converted to the type the opposing path
// expects. A filter must be resolved before evaluation or store compilation.
func (f *Filter) Resolve(kind RecordKind) error {
	switch {
	case f.kind.isComposite():
		for i := range f.children {
			if err := f.children[i].Resolve(kind); err != nil {
				return err
			}
		}
		return nil

	case f.kind == KindNot:
		if f.sub == nil {
			return errors.New("not filter is missing its operand")
		}
		return f.sub.Resolve(kind)

	case f.kind == KindExists:
		if f.lhs == nil {
			return errors.New("exists filter is missing its path")
		}
		if err := f.lhs.resolvePath(kind); err != nil {
			return err
		}
		if _, ok := f.lhs.Path(); !ok {
			return errors.New("exists filter requires a path operand")
		}
		return nil

	case f.kind.isComparison():
		if f.kind.isOrdering() && (f.lhs == nil || f.rhs == nil) {
			return errors.Newf("%s filter requires two non-null operands", f.kind)
		}
		for _, op := range []*Expression{f.lhs, f.rhs} {
			if op == nil {
				continue
			}
			if err := op.resolvePath(kind); err != nil {
				return err
			}
		}
		return f.convertParameters()

	default:
		return errors.Newf("unknown filter operator %q", f.kind)
	}
}

func (e *Expression) resolvePath(kind RecordKind) error {
	if e.rawPath != nil {
		p, err := ParsePath(kind, e.rawPath)
		if err != nil {
			return err
		}
		e.path = &p
		e.rawPath = nil
		return nil
	}
	if e.path != nil && e.path.kind != kind {
		return errors.Newf("path %s applies to %s records, not %s", e.path, e.path.kind, kind)
	}
	return nil
}

// convertParameters coerces a parameter operand to the type expected by the
// path it is compared against. Path-path and parameter-parameter comparisons
// need no conversion.
func (f *Filter) convertParameters() error {
	var path *Path
	var param **Parameter
	if lhsPath, ok := f.lhs.Path(); ok {
		path = &lhsPath
	} else if rhsPath, ok := f.rhs.Path(); ok {
		path = &rhsPath
	}
	if f.lhs != nil && f.lhs.parameter != nil {
		param = &f.lhs.parameter
	} else if f.rhs != nil && f.rhs.parameter != nil {
		param = &f.rhs.parameter
	}
	if path == nil || param == nil {
		return nil
	}
	converted, err := (**param).ConvertTo(path.ExpectedType())
	if err != nil {
		return err
	}
	*param = &converted
	return nil
}

// Filter constructors for the queries the store and resolver issue
// routinely.

// FilterForVersionedURL selects the exact edition of an ontology type.
func FilterForVersionedURL(kind RecordKind, url ontology.VersionedURL) Filter {
	return All(
		Equal(NewPathExpression(BaseURLPath(kind)), NewParameterExpression(NewTextParameter(url.Base.String()))),
		Equal(NewPathExpression(VersionPath(kind)), NewParameterExpression(NewIntegerParameter(int64(url.Version)))),
	)
}

// FilterForLatestBaseURL selects the newest edition of the type with the
// given base URL.
func FilterForLatestBaseURL(kind RecordKind, base ontology.BaseURL) Filter {
	return All(
		Equal(NewPathExpression(BaseURLPath(kind)), NewParameterExpression(NewTextParameter(base.String()))),
		FilterForLatestVersion(kind),
	)
}

// FilterForLatestVersion selects the newest edition of every type.
func FilterForLatestVersion(kind RecordKind) Filter {
	return Equal(NewPathExpression(VersionPath(kind)), NewParameterExpression(NewTextParameter(LatestVersion)))
}

// FilterForEntity selects the versions of one entity by its two-part
// identity.
func FilterForEntity(ownedBy, entityUUID uuid.UUID) Filter {
	return All(
		Equal(NewPathExpression(EntityOwnerPath()), NewParameterExpression(NewUUIDParameter(ownedBy))),
		Equal(NewPathExpression(EntityUUIDPath()), NewParameterExpression(NewUUIDParameter(entityUUID))),
	)
}

// FilterForLinksByLeftEntity selects link entities whose left endpoint is
// the given entity.
func FilterForLinksByLeftEntity(entityUUID uuid.UUID) Filter {
	return Equal(NewPathExpression(LeftEntityUUIDPath()), NewParameterExpression(NewUUIDParameter(entityUUID)))
}

// FilterForLinksByRightEntity selects link entities whose right endpoint is
// the given entity.
func FilterForLinksByRightEntity(entityUUID uuid.UUID) Filter {
	return Equal(NewPathExpression(RightEntityUUIDPath()), NewParameterExpression(NewUUIDParameter(entityUUID)))
}

// FilterForEntityType selects entities whose type is exactly the given
// versioned URL.
func FilterForEntityType(url ontology.VersionedURL) Filter {
	return Equal(NewPathExpression(EntityTypeVersionedURLPath()), NewParameterExpression(NewTextParameter(url.String())))
}
