package ontology

import (
	"context"

	"go.uber.org/zap"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/temporal"
)

// DefaultResolveDepth bounds reference traversal when no explicit limit is
// configured. Real type graphs are shallow; hitting this limit means a
// reference chain, not a wide schema.
const DefaultResolveDepth = 16

// Provider looks up the current edition of a type in local storage. A
// missing type yields an error satisfying errors.IsNotFoundError.
type Provider interface {
	GetDataType(ctx context.Context, url VersionedURL) (*DataTypeWithMetadata, error)
	GetPropertyType(ctx context.Context, url VersionedURL) (*PropertyTypeWithMetadata, error)
	GetEntityType(ctx context.Context, url VersionedURL) (*EntityTypeWithMetadata, error)
}

// Fetcher retrieves type schemas from remote hosts. Implementations map
// transport failures to errors.ErrUnreachable and missing documents to
// errors.ErrTypeNotFound.
type Fetcher interface {
	FetchDataType(ctx context.Context, url VersionedURL) (*DataType, error)
	FetchPropertyType(ctx context.Context, url VersionedURL) (*PropertyType, error)
	FetchEntityType(ctx context.Context, url VersionedURL) (*EntityType, error)
}

// ExternalRecorder caches fetched type schemas so later resolutions find
// them locally.
type ExternalRecorder interface {
	LoadExternalDataType(ctx context.Context, schema *DataType, actor provenance.AccountID, fetchedAt temporal.Timestamp) (*DataTypeWithMetadata, error)
	LoadExternalPropertyType(ctx context.Context, schema *PropertyType, actor provenance.AccountID, fetchedAt temporal.Timestamp) (*PropertyTypeWithMetadata, error)
	LoadExternalEntityType(ctx context.Context, schema *EntityType, actor provenance.AccountID, fetchedAt temporal.Timestamp) (*EntityTypeWithMetadata, error)
}

// Resolver walks type references breadth-first, looking each one up locally
// first and falling back to the fetch boundary. Fetched schemas are only
// recorded once the whole resolution succeeds, so a failed resolution caches
// nothing.
type Resolver struct {
	provider Provider
	fetcher  Fetcher
	recorder ExternalRecorder
	maxDepth int
	log      *zap.SugaredLogger
}

// NewResolver builds a resolver. fetcher and recorder may be nil: without a
// fetcher every non-local reference fails resolution, and without a recorder
// fetched schemas are used but not cached.
func NewResolver(provider Provider, fetcher Fetcher, recorder ExternalRecorder, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultResolveDepth
	}
	return &Resolver{
		provider: provider,
		fetcher:  fetcher,
		recorder: recorder,
		maxDepth: maxDepth,
		log:      logger.Named("ontology.resolve"),
	}
}

// ResolvedEntityType is the validation closure of one entity type: its own
// declarations flattened with everything inherited, plus every property and
// data type reachable from them.
type ResolvedEntityType struct {
	Root *EntityType

	// Parents lists the transitive inheritance chain in traversal order.
	Parents []VersionedURL

	// Properties flattens own and inherited slots; a child declaration
	// shadows a parent's slot for the same base URL.
	Properties map[BaseURL]PropertySlot
	// Required is the union of own and inherited required sets.
	Required map[BaseURL]struct{}
	// Links flattens own and inherited link schemas; a child declaration
	// shadows a parent's schema for the same link type.
	Links map[VersionedURL]LinkSchema
	// AdditionalProperties is the root type's policy.
	AdditionalProperties bool

	PropertyTypes map[VersionedURL]*PropertyType
	DataTypes     map[VersionedURL]*DataType
}

// RequiredList returns the required base URLs as a slice, for reporting.
func (r *ResolvedEntityType) RequiredList() []BaseURL {
	out := make([]BaseURL, 0, len(r.Required))
	for base := range r.Required {
		out = append(out, base)
	}
	return out
}

type refKind string

const (
	refDataType     refKind = "dataType"
	refPropertyType refKind = "propertyType"
	refEntityType   refKind = "entityType"
)

// typedRef is one pending reference with its remaining depth budget.
type typedRef struct {
	kind  refKind
	url   VersionedURL
	depth int
}

// fetchedType is a schema retrieved through the fetch boundary, held until
// the resolution as a whole succeeds.
type fetchedType struct {
	kind         refKind
	dataType     *DataType
	propertyType *PropertyType
	entityType   *EntityType
	fetchedAt    temporal.Timestamp
}

// resolution accumulates one traversal.
type resolution struct {
	dataTypes     map[VersionedURL]*DataType
	propertyTypes map[VersionedURL]*PropertyType
	entityTypes   map[VersionedURL]*EntityType
	fetched       []fetchedType
}

func newResolution() *resolution {
	return &resolution{
		dataTypes:     map[VersionedURL]*DataType{},
		propertyTypes: map[VersionedURL]*PropertyType{},
		entityTypes:   map[VersionedURL]*EntityType{},
	}
}

func (res *resolution) seen(ref typedRef) bool {
	switch ref.kind {
	case refDataType:
		_, ok := res.dataTypes[ref.url]
		return ok
	case refPropertyType:
		_, ok := res.propertyTypes[ref.url]
		return ok
	default:
		_, ok := res.entityTypes[ref.url]
		return ok
	}
}

// ResolveEntityType builds the validation closure of schema. The schema
// itself need not be stored yet; its references are resolved against local
// storage first and the fetch boundary second.
func (r *Resolver) ResolveEntityType(ctx context.Context, schema *EntityType, actor provenance.AccountID) (*ResolvedEntityType, error) {
	res := newResolution()
	res.entityTypes[schema.ID] = schema

	frontier := r.entityTypeRefs(schema, r.maxDepth)
	if err := r.traverse(ctx, res, frontier); err != nil {
		return nil, err
	}
	if err := r.recordFetched(ctx, res, actor); err != nil {
		return nil, err
	}
	return r.flatten(schema, res)
}

// ResolveEntityTypeURL builds the validation closure of the entity type at
// url, fetching the root schema itself when it is not stored locally. A
// fetched root is cached alongside the closure's other fetched types.
func (r *Resolver) ResolveEntityTypeURL(ctx context.Context, url VersionedURL, actor provenance.AccountID) (*ResolvedEntityType, error) {
	local, err := r.provider.GetEntityType(ctx, url)
	if err == nil {
		return r.ResolveEntityType(ctx, &local.Schema, actor)
	}
	if !errors.IsNotFoundError(err) {
		return nil, err
	}
	schema, fetchedAt, err := r.fetchEntityType(ctx, url)
	if err != nil {
		return nil, err
	}
	resolved, err := r.ResolveEntityType(ctx, schema, actor)
	if err != nil {
		return nil, err
	}
	if r.recorder != nil {
		if _, err := r.recorder.LoadExternalEntityType(ctx, schema, actor, fetchedAt); err != nil && !errors.IsAlreadyExistsError(err) {
			return nil, errors.Wrap(err, "caching fetched type")
		}
	}
	return resolved, nil
}

// EnsureEntityTypeReferences checks that every type schema directly
// referenced — parents, property types, link types, and link destinations —
// exists locally or can be fetched. Fetched schemas are cached on success.
func (r *Resolver) EnsureEntityTypeReferences(ctx context.Context, schema *EntityType, actor provenance.AccountID) error {
	var refs []typedRef
	for _, parent := range schema.InheritsFrom() {
		refs = append(refs, typedRef{kind: refEntityType, url: parent, depth: 0})
	}
	for _, prop := range schema.PropertyTypeReferences() {
		refs = append(refs, typedRef{kind: refPropertyType, url: prop, depth: 0})
	}
	for _, link := range schema.LinkReferences() {
		refs = append(refs, typedRef{kind: refEntityType, url: link.LinkType, depth: 0})
		for _, dest := range link.Destinations {
			refs = append(refs, typedRef{kind: refEntityType, url: dest, depth: 0})
		}
	}
	return r.ensure(ctx, refs, actor)
}

// EnsurePropertyTypeReferences checks that every data type and property type
// the schema references exists locally or can be fetched.
func (r *Resolver) EnsurePropertyTypeReferences(ctx context.Context, schema *PropertyType, actor provenance.AccountID) error {
	var refs []typedRef
	for _, dt := range schema.DataTypeReferences() {
		refs = append(refs, typedRef{kind: refDataType, url: dt, depth: 0})
	}
	for _, pt := range schema.PropertyTypeReferences() {
		refs = append(refs, typedRef{kind: refPropertyType, url: pt, depth: 0})
	}
	return r.ensure(ctx, refs, actor)
}

func (r *Resolver) ensure(ctx context.Context, refs []typedRef, actor provenance.AccountID) error {
	res := newResolution()
	for _, ref := range refs {
		if res.seen(ref) {
			continue
		}
		if err := r.resolveOne(ctx, res, ref); err != nil {
			return err
		}
	}
	return r.recordFetched(ctx, res, actor)
}

// traverse drains the frontier breadth-first, expanding each resolved schema
// into further references one depth unit down.
func (r *Resolver) traverse(ctx context.Context, res *resolution, frontier []typedRef) error {
	for len(frontier) > 0 {
		ref := frontier[0]
		frontier = frontier[1:]
		if res.seen(ref) {
			continue
		}
		if ref.depth <= 0 {
			return errors.WithStack(&errors.UnresolvedReferenceError{
				Reference: ref.url.String(),
				Depth:     r.maxDepth,
			})
		}
		if err := r.resolveOne(ctx, res, ref); err != nil {
			return err
		}
		switch ref.kind {
		case refDataType:
			// Terminal: data types reference nothing.
		case refPropertyType:
			frontier = append(frontier, r.propertyTypeRefs(res.propertyTypes[ref.url], ref.depth-1)...)
		case refEntityType:
			frontier = append(frontier, r.entityTypeRefs(res.entityTypes[ref.url], ref.depth-1)...)
		}
	}
	return nil
}

// entityTypeRefs lists the references the validation closure follows from an
// entity type: parents and property types. Link types and destinations are
// constraints checked against URLs, not schemas to recurse into.
func (r *Resolver) entityTypeRefs(schema *EntityType, depth int) []typedRef {
	var refs []typedRef
	for _, parent := range schema.InheritsFrom() {
		refs = append(refs, typedRef{kind: refEntityType, url: parent, depth: depth})
	}
	for _, prop := range schema.PropertyTypeReferences() {
		refs = append(refs, typedRef{kind: refPropertyType, url: prop, depth: depth})
	}
	return refs
}

func (r *Resolver) propertyTypeRefs(schema *PropertyType, depth int) []typedRef {
	var refs []typedRef
	for _, dt := range schema.DataTypeReferences() {
		refs = append(refs, typedRef{kind: refDataType, url: dt, depth: depth})
	}
	for _, pt := range schema.PropertyTypeReferences() {
		refs = append(refs, typedRef{kind: refPropertyType, url: pt, depth: depth})
	}
	return refs
}

// resolveOne materializes a single reference: local storage first, then the
// fetch boundary. Fetched schemas are parked on the resolution for later
// recording.
func (r *Resolver) resolveOne(ctx context.Context, res *resolution, ref typedRef) error {
	switch ref.kind {
	case refDataType:
		local, err := r.provider.GetDataType(ctx, ref.url)
		if err == nil {
			res.dataTypes[ref.url] = &local.Schema
			return nil
		}
		if !errors.IsNotFoundError(err) {
			return err
		}
		schema, fetchedAt, err := r.fetchDataType(ctx, ref.url)
		if err != nil {
			return err
		}
		res.dataTypes[ref.url] = schema
		res.fetched = append(res.fetched, fetchedType{kind: refDataType, dataType: schema, fetchedAt: fetchedAt})
		return nil

	case refPropertyType:
		local, err := r.provider.GetPropertyType(ctx, ref.url)
		if err == nil {
			res.propertyTypes[ref.url] = &local.Schema
			return nil
		}
		if !errors.IsNotFoundError(err) {
			return err
		}
		schema, fetchedAt, err := r.fetchPropertyType(ctx, ref.url)
		if err != nil {
			return err
		}
		res.propertyTypes[ref.url] = schema
		res.fetched = append(res.fetched, fetchedType{kind: refPropertyType, propertyType: schema, fetchedAt: fetchedAt})
		return nil

	default:
		local, err := r.provider.GetEntityType(ctx, ref.url)
		if err == nil {
			res.entityTypes[ref.url] = &local.Schema
			return nil
		}
		if !errors.IsNotFoundError(err) {
			return err
		}
		schema, fetchedAt, err := r.fetchEntityType(ctx, ref.url)
		if err != nil {
			return err
		}
		res.entityTypes[ref.url] = schema
		res.fetched = append(res.fetched, fetchedType{kind: refEntityType, entityType: schema, fetchedAt: fetchedAt})
		return nil
	}
}

func (r *Resolver) fetchDataType(ctx context.Context, url VersionedURL) (*DataType, temporal.Timestamp, error) {
	if r.fetcher == nil {
		return nil, temporal.Timestamp{}, errors.Wrapf(errors.ErrTypeNotFound, "data type %s is not stored locally and no fetcher is configured", url)
	}
	r.log.Debugw("fetching data type", logger.FieldTypeURL, url.String())
	schema, err := r.fetcher.FetchDataType(ctx, url)
	if err != nil {
		return nil, temporal.Timestamp{}, err
	}
	return schema, temporal.Now(), nil
}

func (r *Resolver) fetchPropertyType(ctx context.Context, url VersionedURL) (*PropertyType, temporal.Timestamp, error) {
	if r.fetcher == nil {
		return nil, temporal.Timestamp{}, errors.Wrapf(errors.ErrTypeNotFound, "property type %s is not stored locally and no fetcher is configured", url)
	}
	r.log.Debugw("fetching property type", logger.FieldTypeURL, url.String())
	schema, err := r.fetcher.FetchPropertyType(ctx, url)
	if err != nil {
		return nil, temporal.Timestamp{}, err
	}
	return schema, temporal.Now(), nil
}

func (r *Resolver) fetchEntityType(ctx context.Context, url VersionedURL) (*EntityType, temporal.Timestamp, error) {
	if r.fetcher == nil {
		return nil, temporal.Timestamp{}, errors.Wrapf(errors.ErrTypeNotFound, "entity type %s is not stored locally and no fetcher is configured", url)
	}
	r.log.Debugw("fetching entity type", logger.FieldTypeURL, url.String())
	schema, err := r.fetcher.FetchEntityType(ctx, url)
	if err != nil {
		return nil, temporal.Timestamp{}, err
	}
	return schema, temporal.Now(), nil
}

// recordFetched caches every schema retrieved during a successful
// resolution. A concurrent request may have cached the same edition already;
// that conflict is benign.
func (r *Resolver) recordFetched(ctx context.Context, res *resolution, actor provenance.AccountID) error {
	if r.recorder == nil || len(res.fetched) == 0 {
		return nil
	}
	for _, ft := range res.fetched {
		var err error
		switch ft.kind {
		case refDataType:
			_, err = r.recorder.LoadExternalDataType(ctx, ft.dataType, actor, ft.fetchedAt)
		case refPropertyType:
			_, err = r.recorder.LoadExternalPropertyType(ctx, ft.propertyType, actor, ft.fetchedAt)
		case refEntityType:
			_, err = r.recorder.LoadExternalEntityType(ctx, ft.entityType, actor, ft.fetchedAt)
		}
		if err != nil && !errors.IsAlreadyExistsError(err) {
			return errors.Wrap(err, "caching fetched type")
		}
	}
	return nil
}

// flatten merges the root type with its resolved parents into the closure
// used for validation.
func (r *Resolver) flatten(schema *EntityType, res *resolution) (*ResolvedEntityType, error) {
	resolved := &ResolvedEntityType{
		Root:                 schema,
		Properties:           map[BaseURL]PropertySlot{},
		Required:             map[BaseURL]struct{}{},
		Links:                map[VersionedURL]LinkSchema{},
		AdditionalProperties: schema.AdditionalProperties,
		PropertyTypes:        res.propertyTypes,
		DataTypes:            res.dataTypes,
	}

	// Walk the inheritance chain root-first so nearer declarations shadow
	// farther ones.
	visited := map[VersionedURL]struct{}{schema.ID: {}}
	chain := []*EntityType{schema}
	queue := schema.InheritsFrom()
	for len(queue) > 0 {
		parentURL := queue[0]
		queue = queue[1:]
		if _, ok := visited[parentURL]; ok {
			continue
		}
		visited[parentURL] = struct{}{}
		parent, ok := res.entityTypes[parentURL]
		if !ok {
			return nil, errors.WithStack(&errors.UnresolvedReferenceError{Reference: parentURL.String(), Depth: r.maxDepth})
		}
		resolved.Parents = append(resolved.Parents, parentURL)
		chain = append(chain, parent)
		queue = append(queue, parent.InheritsFrom()...)
	}

	for _, et := range chain {
		for base, slot := range et.Properties {
			if _, ok := resolved.Properties[base]; !ok {
				resolved.Properties[base] = slot
			}
		}
		for _, base := range et.Required {
			resolved.Required[base] = struct{}{}
		}
		for linkType, linkSchema := range et.Links {
			if _, ok := resolved.Links[linkType]; !ok {
				resolved.Links[linkType] = linkSchema
			}
		}
	}

	// Every referenced property type must have landed in the closure.
	for _, slot := range resolved.Properties {
		if _, ok := resolved.PropertyTypes[slot.Reference()]; !ok {
			return nil, errors.WithStack(&errors.UnresolvedReferenceError{Reference: slot.Reference().String(), Depth: r.maxDepth})
		}
	}
	return resolved, nil
}
