// Package validation checks entity property values and link structure
// against resolved ontology schemas. It is pure: no I/O, no mutation, and
// every violation found is reported rather than only the first.
package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/graph"
	"github.com/stratumdb/stratum/ontology"
)

// ValidateEntity checks a property tree against the resolved closure of its
// entity type: required properties present, no undeclared properties unless
// the type allows them, and every value admitted by its property type under
// union semantics. The returned error is nil or a *errors.ValidationError
// listing every violation, each with a slash-joined path into the tree.
func ValidateEntity(properties graph.Properties, resolved *ontology.ResolvedEntityType) error {
	verr := &errors.ValidationError{}
	c := checker{resolved: resolved}

	for _, base := range sortedBaseSet(resolved.Required) {
		if _, ok := properties[base]; !ok {
			verr.Add(errors.Violation{
				Code:     errors.ViolationMissingRequiredProperty,
				Path:     base.String(),
				Expected: describeSlot(resolved.Properties[base]),
			})
		}
	}

	for _, base := range sortedPropertyKeys(properties) {
		slot, ok := resolved.Properties[base]
		if !ok {
			if !resolved.AdditionalProperties {
				verr.Add(errors.Violation{
					Code: errors.ViolationUnexpectedProperty,
					Path: base.String(),
				})
			}
			continue
		}
		c.checkSlot(verr, base.String(), slot, properties[base])
	}
	return verr.OrNil()
}

// ValidateLinkEndpoints checks that a link entity of linkType may leave an
// entity whose resolved type is leftType and point at an entity of type
// rightType. Destination constraints live on the source entity's type; an
// empty constraint set admits any destination. Failures return a
// *errors.TypeMismatchError naming the expected and actual types.
func ValidateLinkEndpoints(leftType *ontology.ResolvedEntityType, linkType, rightType ontology.VersionedURL) error {
	schema, ok := leftType.Links[linkType]
	if !ok {
		return errors.WithStack(&errors.TypeMismatchError{
			Endpoint: "link",
			Expected: declaredLinkTypes(leftType),
			Actual:   linkType.String(),
		})
	}
	destinations := schema.DestinationConstraints()
	if len(destinations) == 0 {
		return nil
	}
	for _, dest := range destinations {
		if dest == rightType {
			return nil
		}
	}
	expected := make([]string, 0, len(destinations))
	for _, dest := range destinations {
		expected = append(expected, dest.String())
	}
	return errors.WithStack(&errors.TypeMismatchError{
		Endpoint: "right",
		Expected: expected,
		Actual:   rightType.String(),
	})
}

// checker walks one value tree against a resolved closure, appending
// violations as it goes.
type checker struct {
	resolved *ontology.ResolvedEntityType
}

// checkSlot validates one property slot: a direct property type reference or
// an array of values of that property type.
func (c checker) checkSlot(verr *errors.ValidationError, path string, slot ontology.PropertySlot, value graph.Value) {
	if slot.Array == nil {
		c.checkPropertyType(verr, path, slot.Reference(), value)
		return
	}
	items, ok := value.Array()
	if !ok {
		verr.Add(errors.Violation{
			Code:     errors.ViolationNotAnArray,
			Path:     path,
			Expected: "array of " + slot.Array.Items.URL.String(),
			Actual:   string(value.Kind()),
		})
		return
	}
	c.checkBounds(verr, path, len(items), slot.Array.MinItems, slot.Array.MaxItems)
	for i, item := range items {
		c.checkPropertyType(verr, childPath(path, strconv.Itoa(i)), slot.Array.Items.URL, item)
	}
}

func (c checker) checkPropertyType(verr *errors.ValidationError, path string, url ontology.VersionedURL, value graph.Value) {
	pt, ok := c.resolved.PropertyTypes[url]
	if !ok {
		verr.Add(errors.Violation{
			Code:     errors.ViolationUnknownPropertyRef,
			Path:     path,
			Expected: url.String(),
		})
		return
	}
	c.checkOneOf(verr, path, pt.OneOf, value)
}

// checkOneOf applies union semantics: the value passes if at least one
// variant admits it. A single-variant schema descends directly so nested
// violations keep precise paths; a failed union reports one violation naming
// the admitted shapes.
func (c checker) checkOneOf(verr *errors.ValidationError, path string, oneOf []ontology.PropertyValue, value graph.Value) {
	if len(oneOf) == 1 {
		c.checkVariant(verr, path, oneOf[0], value)
		return
	}
	for i := range oneOf {
		probe := &errors.ValidationError{}
		c.checkVariant(probe, path, oneOf[i], value)
		if len(probe.Violations) == 0 {
			return
		}
	}
	verr.Add(errors.Violation{
		Code:     errors.ViolationWrongDataType,
		Path:     path,
		Expected: c.describeOneOf(oneOf),
		Actual:   string(value.Kind()),
	})
}

func (c checker) checkVariant(verr *errors.ValidationError, path string, variant ontology.PropertyValue, value graph.Value) {
	switch {
	case variant.DataTypeRef != nil:
		c.checkDataTypeRef(verr, path, variant.DataTypeRef.URL, value)
	case variant.Object != nil:
		c.checkObject(verr, path, variant.Object, value)
	case variant.Array != nil:
		c.checkArray(verr, path, variant.Array, value)
	}
}

// checkDataTypeRef matches the value's JSON shape against the referenced
// data type. Constraint keywords beyond the JSON type (const, enum, format)
// are carried on the data type but not enforced here.
func (c checker) checkDataTypeRef(verr *errors.ValidationError, path string, url ontology.VersionedURL, value graph.Value) {
	dt, ok := c.resolved.DataTypes[url]
	if !ok {
		verr.Add(errors.Violation{
			Code:     errors.ViolationUnknownPropertyRef,
			Path:     path,
			Expected: url.String(),
		})
		return
	}
	if string(value.Kind()) != dt.Type {
		verr.Add(errors.Violation{
			Code:     errors.ViolationWrongDataType,
			Path:     path,
			Expected: dt.Type,
			Actual:   string(value.Kind()),
		})
	}
}

// checkObject validates a nested property object. Object shapes are closed:
// every present key must be declared on the shape.
func (c checker) checkObject(verr *errors.ValidationError, path string, schema *ontology.PropertyObjectSchema, value graph.Value) {
	obj, ok := value.Object()
	if !ok {
		verr.Add(errors.Violation{
			Code:     errors.ViolationWrongDataType,
			Path:     path,
			Expected: ontology.JSONTypeObject,
			Actual:   string(value.Kind()),
		})
		return
	}
	for _, base := range sortedBaseList(schema.Required) {
		if _, ok := obj[base.String()]; !ok {
			verr.Add(errors.Violation{
				Code:     errors.ViolationMissingRequiredProperty,
				Path:     childPath(path, base.String()),
				Expected: describeSlot(schema.Properties[base]),
			})
		}
	}
	for _, key := range sortedObjectKeys(obj) {
		slot, ok := schema.Properties[ontology.BaseURL(key)]
		if !ok {
			verr.Add(errors.Violation{
				Code: errors.ViolationUnexpectedProperty,
				Path: childPath(path, key),
			})
			continue
		}
		c.checkSlot(verr, childPath(path, key), slot, obj[key])
	}
}

func (c checker) checkArray(verr *errors.ValidationError, path string, schema *ontology.PropertyArraySchema, value graph.Value) {
	items, ok := value.Array()
	if !ok {
		verr.Add(errors.Violation{
			Code:     errors.ViolationNotAnArray,
			Path:     path,
			Expected: ontology.JSONTypeArray,
			Actual:   string(value.Kind()),
		})
		return
	}
	c.checkBounds(verr, path, len(items), schema.MinItems, schema.MaxItems)
	for i, item := range items {
		c.checkOneOf(verr, childPath(path, strconv.Itoa(i)), schema.Items.OneOf, item)
	}
}

func (c checker) checkBounds(verr *errors.ValidationError, path string, n int, lo, hi *int) {
	if lo != nil && n < *lo {
		verr.Add(errors.Violation{
			Code:     errors.ViolationArrayTooShort,
			Path:     path,
			Expected: fmt.Sprintf("at least %d item(s)", *lo),
			Actual:   strconv.Itoa(n),
		})
	}
	if hi != nil && n > *hi {
		verr.Add(errors.Violation{
			Code:     errors.ViolationArrayTooLong,
			Path:     path,
			Expected: fmt.Sprintf("at most %d item(s)", *hi),
			Actual:   strconv.Itoa(n),
		})
	}
}

// describeOneOf names the shapes a union admits, resolving data type
// references to their JSON type where the closure carries them.
func (c checker) describeOneOf(oneOf []ontology.PropertyValue) string {
	names := make([]string, 0, len(oneOf))
	for _, variant := range oneOf {
		switch {
		case variant.DataTypeRef != nil:
			if dt, ok := c.resolved.DataTypes[variant.DataTypeRef.URL]; ok {
				names = append(names, dt.Type)
			} else {
				names = append(names, variant.DataTypeRef.URL.String())
			}
		case variant.Object != nil:
			names = append(names, ontology.JSONTypeObject)
		case variant.Array != nil:
			names = append(names, ontology.JSONTypeArray)
		}
	}
	return strings.Join(names, " or ")
}

func describeSlot(slot ontology.PropertySlot) string {
	switch {
	case slot.Ref != nil:
		return slot.Ref.URL.String()
	case slot.Array != nil:
		return "array of " + slot.Array.Items.URL.String()
	}
	return ""
}

func declaredLinkTypes(resolved *ontology.ResolvedEntityType) []string {
	out := make([]string, 0, len(resolved.Links))
	for linkType := range resolved.Links {
		out = append(out, linkType.String())
	}
	sort.Strings(out)
	return out
}

// childPath joins a nested segment onto a violation path.
func childPath(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return parent + "/" + segment
}

// Violation paths and ordering are deterministic: map keys are visited
// sorted.

func sortedBaseSet(set map[ontology.BaseURL]struct{}) []ontology.BaseURL {
	out := make([]ontology.BaseURL, 0, len(set))
	for base := range set {
		out = append(out, base)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedBaseList(bases []ontology.BaseURL) []ontology.BaseURL {
	out := append([]ontology.BaseURL(nil), bases...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedPropertyKeys(properties graph.Properties) []ontology.BaseURL {
	out := make([]ontology.BaseURL, 0, len(properties))
	for base := range properties {
		out = append(out, base)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedObjectKeys(obj map[string]graph.Value) []string {
	out := make([]string, 0, len(obj))
	for key := range obj {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
