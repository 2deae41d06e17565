package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/query"
	"github.com/stratumdb/stratum/temporal"
)

// Storage discriminators for the shared ontology_types table.
const (
	typeKindDataType     = "data_type"
	typeKindPropertyType = "property_type"
	typeKindEntityType   = "entity_type"
)

// Human-readable kinds for typed errors.
const (
	errKindDataType     = "data type"
	errKindPropertyType = "property type"
	errKindEntityType   = "entity type"
)

const typeColumns = `base_url, version, schema, label_property, owned_by_id, fetched_at,
		created_by, archived_by, transaction_start, transaction_end`

const insertTypeQuery = `
	INSERT INTO ontology_types (kind, base_url, version, schema, label_property, owned_by_id, fetched_at,
		created_by, archived_by, transaction_start, transaction_end)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, NULL)`

// typeRow is one scanned edition of any type kind.
type typeRow struct {
	baseURL       string
	version       uint32
	schemaJSON    []byte
	labelProperty sql.NullString
	ownedBy       sql.NullString
	fetchedAt     sql.NullString
	createdBy     string
	archivedBy    sql.NullString
	txStart       string
	txEnd         sql.NullString
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTypeRow(s rowScanner) (*typeRow, error) {
	var r typeRow
	err := s.Scan(&r.baseURL, &r.version, &r.schemaJSON, &r.labelProperty, &r.ownedBy, &r.fetchedAt,
		&r.createdBy, &r.archivedBy, &r.txStart, &r.txEnd)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// labelColumn binds an optional label property, NULL for absent and for
// every non-entity type kind.
func labelColumn(label *ontology.BaseURL) any {
	if label == nil {
		return nil
	}
	return label.String()
}

// metadata rebuilds the edition metadata from the scanned columns.
func (r *typeRow) metadata() (ontology.TypeMetadata, error) {
	recordID := ontology.TypeRecordID{BaseURL: ontology.BaseURL(r.baseURL), Version: r.version}
	createdBy, err := provenance.ParseAccountID(r.createdBy)
	if err != nil {
		return ontology.TypeMetadata{}, err
	}
	interval, err := intervalFrom(r.txStart, r.txEnd)
	if err != nil {
		return ontology.TypeMetadata{}, err
	}

	meta := ontology.TypeMetadata{
		RecordID:           recordID,
		Provenance:         provenance.Metadata{RecordCreatedByID: createdBy},
		TemporalVersioning: ontology.TypeTemporalMetadata{TransactionTime: interval},
	}
	if r.archivedBy.Valid {
		archivedBy, err := provenance.ParseAccountID(r.archivedBy.String)
		if err != nil {
			return ontology.TypeMetadata{}, err
		}
		meta.Provenance.RecordArchivedByID = &archivedBy
	}
	switch {
	case r.ownedBy.Valid:
		ownedBy, err := provenance.ParseOwnedByID(r.ownedBy.String)
		if err != nil {
			return ontology.TypeMetadata{}, err
		}
		meta.OwnedByID = &ownedBy
	case r.fetchedAt.Valid:
		fetchedAt, err := temporal.Parse(r.fetchedAt.String)
		if err != nil {
			return ontology.TypeMetadata{}, err
		}
		meta.FetchedAt = &fetchedAt
	}
	return meta, meta.Validate()
}

func notFoundType(kind, id string) error {
	return errors.WithStack(&errors.NotFoundError{Kind: kind, ID: id})
}

// createType opens the first edition of a new base URL.
func (s *Store) createType(ctx context.Context, typeKind, errKind string, id ontology.VersionedURL, schemaJSON []byte, label *ontology.BaseURL, ownedBy provenance.OwnedByID, actor provenance.AccountID) (ontology.TypeMetadata, error) {
	if id.Version != 1 {
		return ontology.TypeMetadata{}, errors.Wrapf(errors.ErrInvalidRequest,
			"new %s %s must declare version 1, got %d", errKind, id.Base, id.Version)
	}
	now := temporal.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM ontology_types WHERE kind = ? AND base_url = ?)",
			typeKind, id.Base.String()).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "checking base url")
		}
		if exists {
			return errors.WithStack(&errors.AlreadyExistsError{Kind: errKind, ID: id.Base.String()})
		}
		_, err = tx.ExecContext(ctx, insertTypeQuery,
			typeKind, id.Base.String(), id.Version, schemaJSON, labelColumn(label),
			ownedBy.String(), nil, actor.String(), now.String())
		return errors.Wrapf(err, "inserting %s %s", errKind, id)
	})
	if err != nil {
		return ontology.TypeMetadata{}, err
	}
	s.log.Infow("created "+errKind,
		logger.FieldTypeURL, id.String(),
		logger.FieldActorID, actor.String(),
	)
	return ontology.NewOwnedTypeMetadata(
		ontology.TypeRecordID{BaseURL: id.Base, Version: id.Version},
		actor, ownedBy, temporal.NewOpenInterval(now)), nil
}

// updateType inserts the next edition of an existing base URL, closing the
// previous edition's transaction interval in the same transaction. The
// schema's own version is the optimistic token: anything but latest+1 is a
// conflict.
func (s *Store) updateType(ctx context.Context, typeKind, errKind string, id ontology.VersionedURL, schemaJSON []byte, label *ontology.BaseURL, actor provenance.AccountID) (ontology.TypeMetadata, error) {
	now := temporal.Now()
	var ownedBy sql.NullString
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var latest uint32
		var fetchedAt sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT version, owned_by_id, fetched_at FROM ontology_types
			 WHERE kind = ? AND base_url = ? ORDER BY version DESC, seq DESC LIMIT 1`,
			typeKind, id.Base.String()).Scan(&latest, &ownedBy, &fetchedAt)
		if err == sql.ErrNoRows {
			return notFoundType(errKind, id.Base.String())
		}
		if err != nil {
			return errors.Wrap(err, "reading latest version")
		}
		if id.Version != latest+1 {
			return errors.WithStack(&errors.VersionConflictError{
				BaseURL:  id.Base.String(),
				Expected: latest + 1,
				Actual:   id.Version,
			})
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE ontology_types SET transaction_end = ? WHERE kind = ? AND base_url = ? AND transaction_end IS NULL",
			now.String(), typeKind, id.Base.String()); err != nil {
			return errors.Wrap(err, "closing previous edition")
		}
		_, err = tx.ExecContext(ctx, insertTypeQuery,
			typeKind, id.Base.String(), id.Version, schemaJSON, labelColumn(label),
			ownedBy, fetchedAt, actor.String(), now.String())
		return errors.Wrapf(err, "inserting %s %s", errKind, id)
	})
	if err != nil {
		return ontology.TypeMetadata{}, err
	}
	s.log.Infow("updated "+errKind,
		logger.FieldTypeURL, id.String(),
		logger.FieldActorID, actor.String(),
	)
	recordID := ontology.TypeRecordID{BaseURL: id.Base, Version: id.Version}
	if ownedBy.Valid {
		owner, err := provenance.ParseOwnedByID(ownedBy.String)
		if err != nil {
			return ontology.TypeMetadata{}, err
		}
		return ontology.NewOwnedTypeMetadata(recordID, actor, owner, temporal.NewOpenInterval(now)), nil
	}
	return ontology.NewExternalTypeMetadata(recordID, actor, now, temporal.NewOpenInterval(now)), nil
}

// archiveType closes the edition's transaction interval. Pinned historical
// reads still see it; latest views do not.
func (s *Store) archiveType(ctx context.Context, typeKind, errKind string, url ontology.VersionedURL, actor provenance.AccountID) error {
	now := temporal.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE ontology_types SET transaction_end = ?, archived_by = ?
		 WHERE kind = ? AND base_url = ? AND version = ? AND transaction_end IS NULL`,
		now.String(), actor.String(), typeKind, url.Base.String(), url.Version)
	if err != nil {
		return errors.Wrapf(err, "archiving %s %s", errKind, url)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "archive row count")
	}
	if affected == 0 {
		return notFoundType(errKind, url.String())
	}
	s.log.Infow("archived "+errKind,
		logger.FieldTypeURL, url.String(),
		logger.FieldActorID, actor.String(),
	)
	return nil
}

// unarchiveType reopens an archived edition with a fresh transaction lower
// bound, copying the newest closed row.
func (s *Store) unarchiveType(ctx context.Context, typeKind, errKind string, url ontology.VersionedURL, actor provenance.AccountID) error {
	now := temporal.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var open bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM ontology_types
			 WHERE kind = ? AND base_url = ? AND version = ? AND transaction_end IS NULL)`,
			typeKind, url.Base.String(), url.Version).Scan(&open)
		if err != nil {
			return errors.Wrap(err, "checking open edition")
		}
		if open {
			return errors.WithStack(&errors.AlreadyExistsError{Kind: errKind, ID: url.String()})
		}
		row := tx.QueryRowContext(ctx,
			`SELECT `+typeColumns+` FROM ontology_types
			 WHERE kind = ? AND base_url = ? AND version = ?
			 ORDER BY seq DESC LIMIT 1`,
			typeKind, url.Base.String(), url.Version)
		prev, err := scanTypeRow(row)
		if err == sql.ErrNoRows {
			return notFoundType(errKind, url.String())
		}
		if err != nil {
			return errors.Wrap(err, "reading archived edition")
		}
		_, err = tx.ExecContext(ctx, insertTypeQuery,
			typeKind, prev.baseURL, prev.version, prev.schemaJSON,
			prev.ownedBy, prev.fetchedAt, prev.createdBy, now.String())
		return errors.Wrapf(err, "reopening %s %s", errKind, url)
	})
	if err != nil {
		return err
	}
	s.log.Infow("unarchived "+errKind,
		logger.FieldTypeURL, url.String(),
		logger.FieldActorID, actor.String(),
	)
	return nil
}

// getLatestType reads the open edition of one versioned URL.
func (s *Store) getLatestType(ctx context.Context, typeKind, errKind string, url ontology.VersionedURL) (*typeRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+typeColumns+` FROM ontology_types
		 WHERE kind = ? AND base_url = ? AND version = ? AND transaction_end IS NULL`,
		typeKind, url.Base.String(), url.Version)
	r, err := scanTypeRow(row)
	if err == sql.ErrNoRows {
		return nil, notFoundType(errKind, url.String())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %s", errKind, url)
	}
	return r, nil
}

// getTypeAt reads the edition of one versioned URL whose transaction
// interval contains the pinned instant.
func (s *Store) getTypeAt(ctx context.Context, typeKind, errKind string, url ontology.VersionedURL, at temporal.PinnedAxes) (*typeRow, error) {
	p := &predicate{}
	p.addClause("kind = ?", typeKind)
	p.addClause("base_url = ?", url.Base.String())
	p.addClause("version = ?", url.Version)
	p.addPinned("transaction_start", "transaction_end", at.TransactionTime.String())

	row := s.db.QueryRowContext(ctx,
		"SELECT "+typeColumns+" FROM ontology_types WHERE "+p.build(), p.args...)
	r, err := scanTypeRow(row)
	if err == sql.ErrNoRows {
		return nil, notFoundType(errKind, url.String())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %s", errKind, url)
	}
	return r, nil
}

// queryTypesAt selects editions matching a compiled filter, pinned at the
// transaction instant.
func (s *Store) queryTypesAt(ctx context.Context, typeKind string, recordKind query.RecordKind, filter *query.Filter, at temporal.PinnedAxes) ([]*typeRow, error) {
	compiled, err := CompileFilter(filter, recordKind)
	if err != nil {
		return nil, err
	}
	p := &predicate{}
	p.addClause("kind = ?", typeKind)
	p.addPinned("transaction_start", "transaction_end", at.TransactionTime.String())
	p.addCompiled(compiled)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+typeColumns+" FROM ontology_types WHERE "+p.build()+" ORDER BY seq", p.args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying ontology types")
	}
	defer rows.Close()

	var out []*typeRow
	for rows.Next() {
		r, err := scanTypeRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning ontology type")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterating ontology types")
}

// loadExternalType caches a fetched edition. Editions are immutable, so a
// second load of the same versioned URL conflicts.
func (s *Store) loadExternalType(ctx context.Context, typeKind, errKind string, id ontology.VersionedURL, schemaJSON []byte, actor provenance.AccountID, fetchedAt temporal.Timestamp) (ontology.TypeMetadata, error) {
	now := temporal.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM ontology_types
			 WHERE kind = ? AND base_url = ? AND version = ? AND transaction_end IS NULL)`,
			typeKind, id.Base.String(), id.Version).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "checking cached edition")
		}
		if exists {
			return errors.WithStack(&errors.AlreadyExistsError{Kind: errKind, ID: id.String()})
		}
		_, err = tx.ExecContext(ctx, insertTypeQuery,
			typeKind, id.Base.String(), id.Version, schemaJSON, nil,
			nil, fetchedAt.String(), actor.String(), now.String())
		return errors.Wrapf(err, "caching %s %s", errKind, id)
	})
	if err != nil {
		return ontology.TypeMetadata{}, err
	}
	s.log.Debugw("cached external "+errKind, logger.FieldTypeURL, id.String())
	return ontology.NewExternalTypeMetadata(
		ontology.TypeRecordID{BaseURL: id.Base, Version: id.Version},
		actor, fetchedAt, temporal.NewOpenInterval(now)), nil
}

func marshalSchema(schema any) ([]byte, error) {
	raw, err := json.Marshal(schema)
	return raw, errors.Wrap(err, "marshaling schema")
}

// Data types.

func (r *typeRow) dataType() (*ontology.DataTypeWithMetadata, error) {
	meta, err := r.metadata()
	if err != nil {
		return nil, err
	}
	out := &ontology.DataTypeWithMetadata{Metadata: meta}
	if err := json.Unmarshal(r.schemaJSON, &out.Schema); err != nil {
		return nil, errors.Wrapf(err, "decoding stored data type %s", meta.RecordID)
	}
	return out, nil
}

// CreateDataType stores the first edition of a new data type.
func (s *Store) CreateDataType(ctx context.Context, schema *ontology.DataType, ownedBy provenance.OwnedByID, actor provenance.AccountID) (*ontology.DataTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.createType(ctx, typeKindDataType, errKindDataType, schema.ID, raw, nil, ownedBy, actor)
	if err != nil {
		return nil, err
	}
	return &ontology.DataTypeWithMetadata{Schema: *schema, Metadata: meta}, nil
}

// UpdateDataType stores the next edition; the schema's $id version must be
// exactly latest+1.
func (s *Store) UpdateDataType(ctx context.Context, schema *ontology.DataType, actor provenance.AccountID) (*ontology.DataTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.updateType(ctx, typeKindDataType, errKindDataType, schema.ID, raw, nil, actor)
	if err != nil {
		return nil, err
	}
	return &ontology.DataTypeWithMetadata{Schema: *schema, Metadata: meta}, nil
}

// ArchiveDataType closes the edition's transaction interval.
func (s *Store) ArchiveDataType(ctx context.Context, url ontology.VersionedURL, actor provenance.AccountID) error {
	return s.archiveType(ctx, typeKindDataType, errKindDataType, url, actor)
}

// UnarchiveDataType reopens an archived edition.
func (s *Store) UnarchiveDataType(ctx context.Context, url ontology.VersionedURL, actor provenance.AccountID) error {
	return s.unarchiveType(ctx, typeKindDataType, errKindDataType, url, actor)
}

// GetDataType reads the open edition of one data type.
func (s *Store) GetDataType(ctx context.Context, url ontology.VersionedURL) (*ontology.DataTypeWithMetadata, error) {
	r, err := s.getLatestType(ctx, typeKindDataType, errKindDataType, url)
	if err != nil {
		return nil, err
	}
	return r.dataType()
}

// DataTypeAt reads the edition current at the pinned instant.
func (s *Store) DataTypeAt(ctx context.Context, url ontology.VersionedURL, at temporal.PinnedAxes) (*ontology.DataTypeWithMetadata, error) {
	r, err := s.getTypeAt(ctx, typeKindDataType, errKindDataType, url, at)
	if err != nil {
		return nil, err
	}
	return r.dataType()
}

// QueryDataTypesAt selects data type editions matching the filter at the
// pinned instant.
func (s *Store) QueryDataTypesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*ontology.DataTypeWithMetadata, error) {
	rows, err := s.queryTypesAt(ctx, typeKindDataType, query.RecordKindDataType, filter, at)
	if err != nil {
		return nil, err
	}
	out := make([]*ontology.DataTypeWithMetadata, 0, len(rows))
	for _, r := range rows {
		dt, err := r.dataType()
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, nil
}

// QueryDataTypes selects data type editions at the given temporal view.
func (s *Store) QueryDataTypes(ctx context.Context, filter *query.Filter, axes temporal.QueryAxes) ([]*ontology.DataTypeWithMetadata, error) {
	return s.QueryDataTypesAt(ctx, filter, axes.Resolve(temporal.Now()))
}

// LoadExternalDataType caches a fetched data type edition.
func (s *Store) LoadExternalDataType(ctx context.Context, schema *ontology.DataType, actor provenance.AccountID, fetchedAt temporal.Timestamp) (*ontology.DataTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.loadExternalType(ctx, typeKindDataType, errKindDataType, schema.ID, raw, actor, fetchedAt)
	if err != nil {
		return nil, err
	}
	return &ontology.DataTypeWithMetadata{Schema: *schema, Metadata: meta}, nil
}

// Property types.

func (r *typeRow) propertyType() (*ontology.PropertyTypeWithMetadata, error) {
	meta, err := r.metadata()
	if err != nil {
		return nil, err
	}
	out := &ontology.PropertyTypeWithMetadata{Metadata: meta}
	if err := json.Unmarshal(r.schemaJSON, &out.Schema); err != nil {
		return nil, errors.Wrapf(err, "decoding stored property type %s", meta.RecordID)
	}
	return out, nil
}

// CreatePropertyType stores the first edition of a new property type after
// ensuring every referenced type resolves.
func (s *Store) CreatePropertyType(ctx context.Context, schema *ontology.PropertyType, ownedBy provenance.OwnedByID, actor provenance.AccountID) (*ontology.PropertyTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolver.EnsurePropertyTypeReferences(ctx, schema, actor); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.createType(ctx, typeKindPropertyType, errKindPropertyType, schema.ID, raw, nil, ownedBy, actor)
	if err != nil {
		return nil, err
	}
	return &ontology.PropertyTypeWithMetadata{Schema: *schema, Metadata: meta}, nil
}

// UpdatePropertyType stores the next edition; the schema's $id version must
// be exactly latest+1.
func (s *Store) UpdatePropertyType(ctx context.Context, schema *ontology.PropertyType, actor provenance.AccountID) (*ontology.PropertyTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolver.EnsurePropertyTypeReferences(ctx, schema, actor); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.updateType(ctx, typeKindPropertyType, errKindPropertyType, schema.ID, raw, nil, actor)
	if err != nil {
		return nil, err
	}
	return &ontology.PropertyTypeWithMetadata{Schema: *schema, Metadata: meta}, nil
}

// ArchivePropertyType closes the edition's transaction interval.
func (s *Store) ArchivePropertyType(ctx context.Context, url ontology.VersionedURL, actor provenance.AccountID) error {
	return s.archiveType(ctx, typeKindPropertyType, errKindPropertyType, url, actor)
}

// UnarchivePropertyType reopens an archived edition.
func (s *Store) UnarchivePropertyType(ctx context.Context, url ontology.VersionedURL, actor provenance.AccountID) error {
	return s.unarchiveType(ctx, typeKindPropertyType, errKindPropertyType, url, actor)
}

// GetPropertyType reads the open edition of one property type.
func (s *Store) GetPropertyType(ctx context.Context, url ontology.VersionedURL) (*ontology.PropertyTypeWithMetadata, error) {
	r, err := s.getLatestType(ctx, typeKindPropertyType, errKindPropertyType, url)
	if err != nil {
		return nil, err
	}
	return r.propertyType()
}

// PropertyTypeAt reads the edition current at the pinned instant.
func (s *Store) PropertyTypeAt(ctx context.Context, url ontology.VersionedURL, at temporal.PinnedAxes) (*ontology.PropertyTypeWithMetadata, error) {
	r, err := s.getTypeAt(ctx, typeKindPropertyType, errKindPropertyType, url, at)
	if err != nil {
		return nil, err
	}
	return r.propertyType()
}

// QueryPropertyTypesAt selects property type editions matching the filter at
// the pinned instant.
func (s *Store) QueryPropertyTypesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*ontology.PropertyTypeWithMetadata, error) {
	rows, err := s.queryTypesAt(ctx, typeKindPropertyType, query.RecordKindPropertyType, filter, at)
	if err != nil {
		return nil, err
	}
	out := make([]*ontology.PropertyTypeWithMetadata, 0, len(rows))
	for _, r := range rows {
		pt, err := r.propertyType()
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, nil
}

// QueryPropertyTypes selects property type editions at the given temporal
// view.
func (s *Store) QueryPropertyTypes(ctx context.Context, filter *query.Filter, axes temporal.QueryAxes) ([]*ontology.PropertyTypeWithMetadata, error) {
	return s.QueryPropertyTypesAt(ctx, filter, axes.Resolve(temporal.Now()))
}

// LoadExternalPropertyType caches a fetched property type edition.
func (s *Store) LoadExternalPropertyType(ctx context.Context, schema *ontology.PropertyType, actor provenance.AccountID, fetchedAt temporal.Timestamp) (*ontology.PropertyTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.loadExternalType(ctx, typeKindPropertyType, errKindPropertyType, schema.ID, raw, actor, fetchedAt)
	if err != nil {
		return nil, err
	}
	return &ontology.PropertyTypeWithMetadata{Schema: *schema, Metadata: meta}, nil
}

// Entity types.

func (r *typeRow) entityType() (*ontology.EntityTypeWithMetadata, error) {
	meta, err := r.metadata()
	if err != nil {
		return nil, err
	}
	out := &ontology.EntityTypeWithMetadata{Metadata: meta}
	if err := json.Unmarshal(r.schemaJSON, &out.Schema); err != nil {
		return nil, errors.Wrapf(err, "decoding stored entity type %s", meta.RecordID)
	}
	if r.labelProperty.Valid {
		label := ontology.BaseURL(r.labelProperty.String)
		out.LabelProperty = &label
	}
	return out, nil
}

// checkLabelProperty requires an optional label to name one of the type's
// own declared properties.
func checkLabelProperty(schema *ontology.EntityType, label *ontology.BaseURL) error {
	if label == nil {
		return nil
	}
	if _, ok := schema.Properties[*label]; !ok {
		return errors.Wrapf(errors.ErrInvalidRequest,
			"label property %s is not declared on entity type %s", *label, schema.ID)
	}
	return nil
}

// CreateEntityType stores the first edition of a new entity type after
// ensuring every referenced type resolves. An optional label property names
// which of the type's properties labels its entities.
func (s *Store) CreateEntityType(ctx context.Context, schema *ontology.EntityType, label *ontology.BaseURL, ownedBy provenance.OwnedByID, actor provenance.AccountID) (*ontology.EntityTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := checkLabelProperty(schema, label); err != nil {
		return nil, err
	}
	if err := s.resolver.EnsureEntityTypeReferences(ctx, schema, actor); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.createType(ctx, typeKindEntityType, errKindEntityType, schema.ID, raw, label, ownedBy, actor)
	if err != nil {
		return nil, err
	}
	return &ontology.EntityTypeWithMetadata{Schema: *schema, Metadata: meta, LabelProperty: label}, nil
}

// UpdateEntityType stores the next edition; the schema's $id version must be
// exactly latest+1. The label property is carried per edition, so an update
// may set, change, or clear it.
func (s *Store) UpdateEntityType(ctx context.Context, schema *ontology.EntityType, label *ontology.BaseURL, actor provenance.AccountID) (*ontology.EntityTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := checkLabelProperty(schema, label); err != nil {
		return nil, err
	}
	if err := s.resolver.EnsureEntityTypeReferences(ctx, schema, actor); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.updateType(ctx, typeKindEntityType, errKindEntityType, schema.ID, raw, label, actor)
	if err != nil {
		return nil, err
	}
	return &ontology.EntityTypeWithMetadata{Schema: *schema, Metadata: meta, LabelProperty: label}, nil
}

// ArchiveEntityType closes the edition's transaction interval.
func (s *Store) ArchiveEntityType(ctx context.Context, url ontology.VersionedURL, actor provenance.AccountID) error {
	return s.archiveType(ctx, typeKindEntityType, errKindEntityType, url, actor)
}

// UnarchiveEntityType reopens an archived edition.
func (s *Store) UnarchiveEntityType(ctx context.Context, url ontology.VersionedURL, actor provenance.AccountID) error {
	return s.unarchiveType(ctx, typeKindEntityType, errKindEntityType, url, actor)
}

// GetEntityType reads the open edition of one entity type.
func (s *Store) GetEntityType(ctx context.Context, url ontology.VersionedURL) (*ontology.EntityTypeWithMetadata, error) {
	r, err := s.getLatestType(ctx, typeKindEntityType, errKindEntityType, url)
	if err != nil {
		return nil, err
	}
	return r.entityType()
}

// EntityTypeAt reads the edition current at the pinned instant.
func (s *Store) EntityTypeAt(ctx context.Context, url ontology.VersionedURL, at temporal.PinnedAxes) (*ontology.EntityTypeWithMetadata, error) {
	r, err := s.getTypeAt(ctx, typeKindEntityType, errKindEntityType, url, at)
	if err != nil {
		return nil, err
	}
	return r.entityType()
}

// QueryEntityTypesAt selects entity type editions matching the filter at the
// pinned instant.
func (s *Store) QueryEntityTypesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*ontology.EntityTypeWithMetadata, error) {
	rows, err := s.queryTypesAt(ctx, typeKindEntityType, query.RecordKindEntityType, filter, at)
	if err != nil {
		return nil, err
	}
	out := make([]*ontology.EntityTypeWithMetadata, 0, len(rows))
	for _, r := range rows {
		et, err := r.entityType()
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

// QueryEntityTypes selects entity type editions at the given temporal view.
func (s *Store) QueryEntityTypes(ctx context.Context, filter *query.Filter, axes temporal.QueryAxes) ([]*ontology.EntityTypeWithMetadata, error) {
	return s.QueryEntityTypesAt(ctx, filter, axes.Resolve(temporal.Now()))
}

// LoadExternalEntityType caches a fetched entity type edition.
func (s *Store) LoadExternalEntityType(ctx context.Context, schema *ontology.EntityType, actor provenance.AccountID, fetchedAt temporal.Timestamp) (*ontology.EntityTypeWithMetadata, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	raw, err := marshalSchema(schema)
	if err != nil {
		return nil, err
	}
	meta, err := s.loadExternalType(ctx, typeKindEntityType, errKindEntityType, schema.ID, raw, actor, fetchedAt)
	if err != nil {
		return nil, err
	}
	return &ontology.EntityTypeWithMetadata{Schema: *schema, Metadata: meta}, nil
}

// SeedDataTypes loads the bundled primitive data types, owned by the system
// web. Types already present are left untouched.
func (s *Store) SeedDataTypes(ctx context.Context, ownedBy provenance.OwnedByID, actor provenance.AccountID) (int, error) {
	primitives, err := ontology.PrimitiveDataTypes()
	if err != nil {
		return 0, err
	}
	seeded := 0
	for i := range primitives {
		if _, err := s.CreateDataType(ctx, &primitives[i], ownedBy, actor); err != nil {
			if errors.IsAlreadyExistsError(err) {
				continue
			}
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
