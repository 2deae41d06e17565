package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/query"
)

// CompiledPredicate is a filter compiled to a SQL WHERE fragment with its
// bind arguments. The fragment is self-contained and parenthesized, so it
// composes with further clauses by plain AND.
type CompiledPredicate struct {
	SQL  string
	Args []any
}

// CompileFilter compiles a resolved filter into a WHERE fragment over the
// store's column and JSON1 layout for the given record kind. Paths the table
// layout cannot express without a join are rejected here, before any read.
func CompileFilter(f *query.Filter, kind query.RecordKind) (*CompiledPredicate, error) {
	if err := f.Resolve(kind); err != nil {
		return nil, err
	}
	c := &compiler{kind: kind}
	clause, err := c.compile(f)
	if err != nil {
		return nil, err
	}
	return &CompiledPredicate{SQL: clause, Args: c.args}, nil
}

// predicate accumulates WHERE clauses and bind arguments for one query.
type predicate struct {
	whereClauses []string
	args         []any
}

// addClause appends a WHERE clause with its arguments.
func (p *predicate) addClause(clause string, args ...any) {
	p.whereClauses = append(p.whereClauses, clause)
	p.args = append(p.args, args...)
}

// addCompiled appends a compiled filter fragment.
func (p *predicate) addCompiled(cp *CompiledPredicate) {
	p.whereClauses = append(p.whereClauses, cp.SQL)
	p.args = append(p.args, cp.Args...)
}

// addPinned appends the interval-contains predicate for one axis' column
// pair.
func (p *predicate) addPinned(startColumn, endColumn string, at string) {
	p.addClause(fmt.Sprintf(pinnedClause, startColumn, endColumn), at, at)
}

// build returns the WHERE clauses joined with AND.
func (p *predicate) build() string {
	return strings.Join(p.whereClauses, " AND ")
}

type compiler struct {
	kind query.RecordKind
	args []any
}

func (c *compiler) compile(f *query.Filter) (string, error) {
	switch f.Kind() {
	case query.KindAll:
		return c.compileComposite(f.Children(), " AND ", "1 = 1")
	case query.KindAny:
		return c.compileComposite(f.Children(), " OR ", "0 = 1")
	case query.KindNot:
		inner, err := c.compile(f.Sub())
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil
	case query.KindExists:
		lhs, _ := f.Operands()
		path, _ := lhs.Path()
		column, err := c.column(path)
		if err != nil {
			return "", err
		}
		return "(" + column + " IS NOT NULL)", nil
	default:
		return c.compileComparison(f)
	}
}

func (c *compiler) compileComposite(children []query.Filter, op, empty string) (string, error) {
	if len(children) == 0 {
		return "(" + empty + ")", nil
	}
	clauses := make([]string, len(children))
	for i := range children {
		clause, err := c.compile(&children[i])
		if err != nil {
			return "", err
		}
		clauses[i] = clause
	}
	return "(" + strings.Join(clauses, op) + ")", nil
}

// sqlComparisonOps maps comparison filter kinds to SQL operators. equal and
// notEqual use IS / IS NOT so null operands compare the SQL-distinct way the
// in-memory evaluator does.
var sqlComparisonOps = map[query.Kind]string{
	query.KindEqual:          "IS",
	query.KindNotEqual:       "IS NOT",
	query.KindLess:           "<",
	query.KindLessOrEqual:    "<=",
	query.KindGreater:        ">",
	query.KindGreaterOrEqual: ">=",
}

func (c *compiler) compileComparison(f *query.Filter) (string, error) {
	lhs, rhs := f.Operands()

	// The symbolic "latest" version selects open transaction intervals
	// rather than comparing the version column.
	if clause, ok, err := c.compileLatest(f, lhs, rhs); ok || err != nil {
		return clause, err
	}

	if f.Kind() == query.KindContainsSegment {
		return c.compileContainsSegment(lhs, rhs)
	}

	op, ok := sqlComparisonOps[f.Kind()]
	if !ok {
		return "", errors.Newf("cannot compile filter operator %q", f.Kind())
	}
	left, err := c.operand(lhs)
	if err != nil {
		return "", err
	}
	right, err := c.operand(rhs)
	if err != nil {
		return "", err
	}
	return "(" + left + " " + op + " " + right + ")", nil
}

// compileLatest rewrites comparisons against the symbolic "latest" version
// into an open-interval predicate. Only equality forms on an ontology version
// path are expressible.
func (c *compiler) compileLatest(f *query.Filter, lhs, rhs *query.Expression) (string, bool, error) {
	var path *query.Path
	var latest bool
	for _, e := range []*query.Expression{lhs, rhs} {
		if p, ok := e.Path(); ok {
			path = &p
		}
		if param, ok := e.Parameter(); ok && param.IsLatestVersion() {
			latest = true
		}
	}
	if !latest {
		return "", false, nil
	}
	if path == nil || path.Root() != query.SegmentVersion || path.Kind() == query.RecordKindEntity {
		return "", true, errors.Wrapf(errors.ErrInvalidRequest,
			"the %q version selector only applies to an ontology version path", query.LatestVersion)
	}
	switch f.Kind() {
	case query.KindEqual:
		return "(transaction_end IS NULL)", true, nil
	case query.KindNotEqual:
		return "(transaction_end IS NOT NULL)", true, nil
	default:
		return "", true, errors.Wrapf(errors.ErrInvalidRequest,
			"cannot order against the %q version selector", query.LatestVersion)
	}
}

// compileContainsSegment tests sequence membership with json_each over the
// JSON expression at lhs.
func (c *compiler) compileContainsSegment(lhs, rhs *query.Expression) (string, error) {
	path, ok := lhs.Path()
	if !ok {
		return "", errors.New("containsSegment requires a path as its first operand")
	}
	param, ok := rhs.Parameter()
	if !ok {
		return "", errors.New("containsSegment requires a parameter as its second operand")
	}
	column, err := c.column(path)
	if err != nil {
		return "", err
	}
	c.args = append(c.args, param.Value())
	return "EXISTS (SELECT 1 FROM json_each(" + column + ") WHERE json_each.value IS ?)", nil
}

// operand renders one comparison side: a column expression, a bind
// placeholder, or NULL for an absent operand.
func (c *compiler) operand(e *query.Expression) (string, error) {
	if e == nil {
		return "NULL", nil
	}
	if path, ok := e.Path(); ok {
		return c.column(path)
	}
	if param, ok := e.Parameter(); ok {
		c.args = append(c.args, param.Value())
		return "?", nil
	}
	return "", errors.New("empty filter expression")
}

func (c *compiler) column(p query.Path) (string, error) {
	if c.kind == query.RecordKindEntity {
		return entityColumn(p)
	}
	return ontologyColumn(p)
}

func notCompilable(p query.Path, reason string) error {
	return errors.WithStack(&errors.InvalidPathError{
		Path:    p.Segments(),
		Segment: p.Root(),
		Reason:  reason,
	})
}

// ontologyColumn maps an ontology attribute path onto the ontology_types
// layout: fixed columns for identity and ownership, JSON1 extraction for
// schema document fields.
func ontologyColumn(p query.Path) (string, error) {
	switch p.Root() {
	case query.SegmentBaseURL:
		return "base_url", nil
	case query.SegmentVersion:
		return "version", nil
	case query.SegmentVersionedURL:
		return "(base_url || 'v/' || CAST(version AS TEXT))", nil
	case query.SegmentOwnedByID:
		return "owned_by_id", nil
	case query.SegmentCreatedByID:
		return "created_by", nil
	case query.SegmentTitle:
		return "json_extract(schema, '$.title')", nil
	case query.SegmentDescription:
		return "json_extract(schema, '$.description')", nil
	case query.SegmentType:
		return "json_extract(schema, '$.type')", nil
	}
	return "", notCompilable(p, "no stored column for this attribute")
}

// entityColumn maps an entity attribute path onto the entities layout.
// Attributes of the entity's type beyond its versioned URL live in the
// ontology table and would need a join; they are rejected at compile time.
func entityColumn(p query.Path) (string, error) {
	if base, below, ok := p.PropertyPath(); ok {
		return propertiesExpr(p, base.String(), below)
	}
	if endpoint, attribute, ok := p.EndpointPath(); ok {
		side := "left"
		if endpoint == query.SegmentRightEntity {
			side = "right"
		}
		switch attribute {
		case query.SegmentUUID:
			return side + "_entity_uuid", nil
		case query.SegmentOwnedByID:
			return side + "_owned_by_id", nil
		}
		return "", notCompilable(p, "no stored column for this endpoint attribute")
	}
	if attribute, ok := p.TypePath(); ok {
		switch attribute {
		case query.SegmentBaseURL:
			return "entity_type_base", nil
		case query.SegmentVersion:
			return "entity_type_version", nil
		case query.SegmentVersionedURL:
			return "(entity_type_base || 'v/' || CAST(entity_type_version AS TEXT))", nil
		}
		return "", notCompilable(p, "entity type attributes beyond its URL require the ontology table")
	}

	switch p.Root() {
	case query.SegmentUUID:
		return "entity_uuid", nil
	case query.SegmentOwnedByID:
		return "owned_by_id", nil
	case query.SegmentEditionID:
		return "edition_id", nil
	case query.SegmentArchived:
		return "archived", nil
	case query.SegmentCreatedByID:
		return "created_by", nil
	case query.SegmentLeftToRightOrder:
		return "left_to_right_order", nil
	case query.SegmentRightToLeftOrder:
		return "right_to_left_order", nil
	}
	return "", notCompilable(p, "no stored column for this attribute")
}

// propertiesExpr builds a JSON1 extraction expression into the properties
// document. Property keys are quoted JSON path members; numeric trailing
// segments index into arrays.
func propertiesExpr(p query.Path, base string, below []string) (string, error) {
	var jsonPath strings.Builder
	jsonPath.WriteString("$.")
	if err := writeJSONPathKey(&jsonPath, base); err != nil {
		return "", notCompilable(p, err.Error())
	}
	for _, segment := range below {
		if idx, err := strconv.Atoi(segment); err == nil && idx >= 0 {
			fmt.Fprintf(&jsonPath, "[%d]", idx)
			continue
		}
		jsonPath.WriteString(".")
		if err := writeJSONPathKey(&jsonPath, segment); err != nil {
			return "", notCompilable(p, err.Error())
		}
	}
	return "json_extract(properties, '" + jsonPath.String() + "')", nil
}

func writeJSONPathKey(b *strings.Builder, key string) error {
	if strings.ContainsAny(key, `"'`) {
		return errors.Newf("property key %q contains a quote", key)
	}
	b.WriteString(`"` + key + `"`)
	return nil
}
