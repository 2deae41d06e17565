package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/graph"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/ontology"
	"github.com/stratumdb/stratum/ontology/validation"
	"github.com/stratumdb/stratum/provenance"
	"github.com/stratumdb/stratum/query"
	"github.com/stratumdb/stratum/temporal"
)

const errKindEntity = "entity"

const entityColumns = `owned_by_id, entity_uuid, edition_id, entity_type_base,
		entity_type_version, properties, left_owned_by_id, left_entity_uuid,
		right_owned_by_id, right_entity_uuid, left_to_right_order,
		right_to_left_order, archived, created_by, archived_by,
		decision_start, decision_end, transaction_start, transaction_end`

const insertEntityQuery = `
	INSERT INTO entities (owned_by_id, entity_uuid, edition_id, entity_type_base,
		entity_type_version, properties, left_owned_by_id, left_entity_uuid,
		right_owned_by_id, right_entity_uuid, left_to_right_order,
		right_to_left_order, archived, created_by, archived_by,
		decision_start, decision_end, transaction_start, transaction_end)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, NULL)`

// entityRow is one scanned entity version.
type entityRow struct {
	seq              int64
	ownedBy          string
	entityUUID       string
	editionID        string
	typeBase         string
	typeVersion      uint32
	propertiesJSON   []byte
	leftOwnedBy      sql.NullString
	leftEntityUUID   sql.NullString
	rightOwnedBy     sql.NullString
	rightEntityUUID  sql.NullString
	leftToRightOrder sql.NullInt64
	rightToLeftOrder sql.NullInt64
	archived         bool
	createdBy        string
	archivedBy       sql.NullString
	decisionStart    string
	decisionEnd      sql.NullString
	txStart          string
	txEnd            sql.NullString
}

func scanEntityRow(s rowScanner, withSeq bool) (*entityRow, error) {
	var r entityRow
	dest := []any{
		&r.ownedBy, &r.entityUUID, &r.editionID, &r.typeBase,
		&r.typeVersion, &r.propertiesJSON, &r.leftOwnedBy, &r.leftEntityUUID,
		&r.rightOwnedBy, &r.rightEntityUUID, &r.leftToRightOrder,
		&r.rightToLeftOrder, &r.archived, &r.createdBy, &r.archivedBy,
		&r.decisionStart, &r.decisionEnd, &r.txStart, &r.txEnd,
	}
	if withSeq {
		dest = append([]any{&r.seq}, dest...)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	return &r, nil
}

// entity rebuilds the domain entity from the scanned columns.
func (r *entityRow) entity() (*graph.Entity, error) {
	owner, err := provenance.ParseOwnedByID(r.ownedBy)
	if err != nil {
		return nil, err
	}
	entityUUID, err := graph.ParseEntityUUID(r.entityUUID)
	if err != nil {
		return nil, err
	}
	editionID, err := graph.ParseEditionID(r.editionID)
	if err != nil {
		return nil, err
	}
	createdBy, err := provenance.ParseAccountID(r.createdBy)
	if err != nil {
		return nil, err
	}
	decision, err := intervalFrom(r.decisionStart, r.decisionEnd)
	if err != nil {
		return nil, err
	}
	transaction, err := intervalFrom(r.txStart, r.txEnd)
	if err != nil {
		return nil, err
	}

	e := &graph.Entity{
		Metadata: graph.EntityMetadata{
			RecordID: graph.EntityRecordID{
				EntityID:  graph.NewEntityID(owner, entityUUID),
				EditionID: editionID,
			},
			EntityTypeID: ontology.VersionedURL{
				Base:    ontology.BaseURL(r.typeBase),
				Version: r.typeVersion,
			},
			Temporal: temporal.Axes{
				DecisionTime:    decision,
				TransactionTime: transaction,
			},
			Provenance: provenance.Metadata{RecordCreatedByID: createdBy},
			Archived:   r.archived,
		},
	}
	if r.archivedBy.Valid {
		archivedBy, err := provenance.ParseAccountID(r.archivedBy.String)
		if err != nil {
			return nil, err
		}
		e.Metadata.Provenance.RecordArchivedByID = &archivedBy
	}
	if err := json.Unmarshal(r.propertiesJSON, &e.Properties); err != nil {
		return nil, errors.Wrapf(err, "decoding properties of entity %s", e.Metadata.RecordID.EntityID)
	}
	if r.leftEntityUUID.Valid && r.rightEntityUUID.Valid {
		link, err := r.linkData()
		if err != nil {
			return nil, err
		}
		e.LinkData = link
	}
	return e, nil
}

func (r *entityRow) linkData() (*graph.LinkData, error) {
	leftOwner, err := provenance.ParseOwnedByID(r.leftOwnedBy.String)
	if err != nil {
		return nil, err
	}
	leftUUID, err := graph.ParseEntityUUID(r.leftEntityUUID.String)
	if err != nil {
		return nil, err
	}
	rightOwner, err := provenance.ParseOwnedByID(r.rightOwnedBy.String)
	if err != nil {
		return nil, err
	}
	rightUUID, err := graph.ParseEntityUUID(r.rightEntityUUID.String)
	if err != nil {
		return nil, err
	}
	link := &graph.LinkData{
		LeftEntityID:  graph.NewEntityID(leftOwner, leftUUID),
		RightEntityID: graph.NewEntityID(rightOwner, rightUUID),
	}
	if r.leftToRightOrder.Valid {
		order := int(r.leftToRightOrder.Int64)
		link.LeftToRightOrder = &order
	}
	if r.rightToLeftOrder.Valid {
		order := int(r.rightToLeftOrder.Int64)
		link.RightToLeftOrder = &order
	}
	return link, nil
}

func notFoundEntity(id graph.EntityID) error {
	return errors.WithStack(&errors.NotFoundError{Kind: errKindEntity, ID: id.String()})
}

// CreateEntityParams carries everything CreateEntity needs to open the first
// version of a new entity.
type CreateEntityParams struct {
	OwnedByID    provenance.OwnedByID
	EntityTypeID ontology.VersionedURL
	Properties   graph.Properties

	// EntityUUID, when set, fixes the entity's identity instead of minting
	// one. Collisions with an existing identity fail.
	EntityUUID *graph.EntityUUID

	// DecisionStart backdates the version's decision interval; nil means now.
	DecisionStart *temporal.Timestamp

	// LinkData makes the entity a link; both endpoints must exist, be
	// unarchived, and satisfy the left type's destination constraints.
	LinkData *graph.LinkData

	Actor provenance.AccountID
}

// UpdateEntityParams carries the full next state of an entity version.
type UpdateEntityParams struct {
	EntityID     graph.EntityID
	EntityTypeID ontology.VersionedURL
	Properties   graph.Properties
	Archived     bool

	// DecisionStart backdates the new version's decision interval; nil means
	// now.
	DecisionStart *temporal.Timestamp

	// LinkData carries updated link orders. Endpoints are immutable: when
	// set, they must match the stored endpoints; nil keeps the stored link
	// data unchanged.
	LinkData *graph.LinkData

	Actor provenance.AccountID
}

// resolveAndValidate builds the type closure and checks the property tree
// against it, before any write.
func (s *Store) resolveAndValidate(ctx context.Context, typeID ontology.VersionedURL, properties graph.Properties, actor provenance.AccountID) (*ontology.ResolvedEntityType, error) {
	resolved, err := s.resolver.ResolveEntityTypeURL(ctx, typeID, actor)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateEntity(properties, resolved); err != nil {
		return nil, err
	}
	return resolved, nil
}

// checkLinkEndpoints loads both endpoints at the current view and checks the
// left type's destination constraints for this link type.
func (s *Store) checkLinkEndpoints(ctx context.Context, link *graph.LinkData, linkType ontology.VersionedURL, actor provenance.AccountID) error {
	left, err := s.openEntity(ctx, link.LeftEntityID)
	if err != nil {
		return err
	}
	right, err := s.openEntity(ctx, link.RightEntityID)
	if err != nil {
		return err
	}
	for _, endpoint := range []*graph.Entity{left, right} {
		if endpoint.Metadata.Archived {
			return errors.Wrapf(errors.ErrInvalidRequest,
				"link endpoint %s is archived", endpoint.Metadata.RecordID.EntityID)
		}
	}
	leftType, err := s.resolver.ResolveEntityTypeURL(ctx, left.Metadata.EntityTypeID, actor)
	if err != nil {
		return err
	}
	return validation.ValidateLinkEndpoints(leftType, linkType, right.Metadata.EntityTypeID)
}

// CreateEntity validates and opens the first version of a new entity in one
// transaction. Nothing is written when resolution, validation, or endpoint
// checks fail.
func (s *Store) CreateEntity(ctx context.Context, params CreateEntityParams) (*graph.Entity, error) {
	if _, err := s.resolveAndValidate(ctx, params.EntityTypeID, params.Properties, params.Actor); err != nil {
		return nil, err
	}
	if params.LinkData != nil {
		if err := s.checkLinkEndpoints(ctx, params.LinkData, params.EntityTypeID, params.Actor); err != nil {
			return nil, err
		}
	}

	entityUUID := graph.NewEntityUUID(uuid.New())
	if params.EntityUUID != nil {
		entityUUID = *params.EntityUUID
	}
	entityID := graph.NewEntityID(params.OwnedByID, entityUUID)
	editionID := graph.NewEditionID()
	now := temporal.Now()
	decisionStart := now
	if params.DecisionStart != nil {
		decisionStart = *params.DecisionStart
	}

	propertiesJSON, err := json.Marshal(params.Properties)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling properties")
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM entities WHERE owned_by_id = ? AND entity_uuid = ?)",
			params.OwnedByID.String(), entityUUID.String()).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "checking entity identity")
		}
		if exists {
			return errors.WithStack(&errors.AlreadyExistsError{Kind: errKindEntity, ID: entityID.String()})
		}
		args := []any{
			params.OwnedByID.String(), entityUUID.String(), editionID.String(),
			params.EntityTypeID.Base.String(), params.EntityTypeID.Version,
			propertiesJSON,
		}
		args = append(args, linkColumns(params.LinkData)...)
		args = append(args, false, params.Actor.String(), nil,
			decisionStart.String(), now.String())
		_, err = tx.ExecContext(ctx, insertEntityQuery, args...)
		return errors.Wrapf(err, "inserting entity %s", entityID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("created entity",
		logger.FieldEntityID, entityID.String(),
		logger.FieldTypeURL, params.EntityTypeID.String(),
		logger.FieldActorID, params.Actor.String(),
	)
	entity := &graph.Entity{
		Properties: params.Properties,
		LinkData:   params.LinkData,
		Metadata: graph.EntityMetadata{
			RecordID:     graph.EntityRecordID{EntityID: entityID, EditionID: editionID},
			EntityTypeID: params.EntityTypeID,
			Temporal: temporal.Axes{
				DecisionTime:    temporal.NewOpenInterval(decisionStart),
				TransactionTime: temporal.NewOpenInterval(now),
			},
			Provenance: provenance.Metadata{RecordCreatedByID: params.Actor},
		},
	}
	return entity, nil
}

// UpdateEntity closes the current version and opens the next one atomically.
// A close that affects no row means another writer superseded the version
// first; the caller may retry.
func (s *Store) UpdateEntity(ctx context.Context, params UpdateEntityParams) (*graph.Entity, error) {
	if _, err := s.resolveAndValidate(ctx, params.EntityTypeID, params.Properties, params.Actor); err != nil {
		return nil, err
	}

	editionID := graph.NewEditionID()
	now := temporal.Now()
	decisionStart := now
	if params.DecisionStart != nil {
		decisionStart = *params.DecisionStart
	}

	propertiesJSON, err := json.Marshal(params.Properties)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling properties")
	}

	var link *graph.LinkData
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT seq, "+entityColumns+" FROM entities WHERE owned_by_id = ? AND entity_uuid = ? AND transaction_end IS NULL",
			params.EntityID.OwnedByID.String(), params.EntityID.EntityUUID.String())
		current, err := scanEntityRow(row, true)
		if err == sql.ErrNoRows {
			return notFoundEntity(params.EntityID)
		}
		if err != nil {
			return errors.Wrap(err, "reading current version")
		}

		link, err = nextLinkData(current, params.LinkData)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE entities SET transaction_end = ? WHERE seq = ? AND transaction_end IS NULL",
			now.String(), current.seq)
		if err != nil {
			return errors.Wrap(err, "closing current version")
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "close row count")
		}
		if affected == 0 {
			return errors.WithStack(&errors.ConcurrentModificationError{EntityID: params.EntityID.String()})
		}

		var archivedBy any
		if params.Archived {
			archivedBy = params.Actor.String()
		}
		args := []any{
			params.EntityID.OwnedByID.String(), params.EntityID.EntityUUID.String(), editionID.String(),
			params.EntityTypeID.Base.String(), params.EntityTypeID.Version,
			propertiesJSON,
		}
		args = append(args, linkColumns(link)...)
		args = append(args, params.Archived, params.Actor.String(), archivedBy,
			decisionStart.String(), now.String())
		_, err = tx.ExecContext(ctx, insertEntityQuery, args...)
		return errors.Wrapf(err, "inserting entity version %s", params.EntityID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("updated entity",
		logger.FieldEntityID, params.EntityID.String(),
		logger.FieldEditionID, editionID.String(),
		logger.FieldActorID, params.Actor.String(),
		"archived", params.Archived,
	)
	entity := &graph.Entity{
		Properties: params.Properties,
		LinkData:   link,
		Metadata: graph.EntityMetadata{
			RecordID:     graph.EntityRecordID{EntityID: params.EntityID, EditionID: editionID},
			EntityTypeID: params.EntityTypeID,
			Temporal: temporal.Axes{
				DecisionTime:    temporal.NewOpenInterval(decisionStart),
				TransactionTime: temporal.NewOpenInterval(now),
			},
			Provenance: provenance.Metadata{RecordCreatedByID: params.Actor},
			Archived:   params.Archived,
		},
	}
	if params.Archived {
		entity.Metadata.Provenance.RecordArchivedByID = &params.Actor
	}
	return entity, nil
}

// nextLinkData reconciles requested link data against the stored endpoints:
// endpoints are immutable, orders may change.
func nextLinkData(current *entityRow, requested *graph.LinkData) (*graph.LinkData, error) {
	stored, err := storedLinkData(current)
	if err != nil {
		return nil, err
	}
	if requested == nil {
		return stored, nil
	}
	if stored == nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "cannot turn an entity into a link")
	}
	if requested.LeftEntityID != stored.LeftEntityID || requested.RightEntityID != stored.RightEntityID {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "link endpoints are immutable")
	}
	return requested, nil
}

func storedLinkData(r *entityRow) (*graph.LinkData, error) {
	if !r.leftEntityUUID.Valid || !r.rightEntityUUID.Valid {
		return nil, nil
	}
	return r.linkData()
}

// linkColumns expands link data into the six endpoint and order columns.
func linkColumns(link *graph.LinkData) []any {
	if link == nil {
		return []any{nil, nil, nil, nil, nil, nil}
	}
	cols := []any{
		link.LeftEntityID.OwnedByID.String(), link.LeftEntityID.EntityUUID.String(),
		link.RightEntityID.OwnedByID.String(), link.RightEntityID.EntityUUID.String(),
		nil, nil,
	}
	if link.LeftToRightOrder != nil {
		cols[4] = *link.LeftToRightOrder
	}
	if link.RightToLeftOrder != nil {
		cols[5] = *link.RightToLeftOrder
	}
	return cols
}

// ArchiveEntity opens a new version with the archived attribute set,
// preserving the current properties.
func (s *Store) ArchiveEntity(ctx context.Context, id graph.EntityID, actor provenance.AccountID) (*graph.Entity, error) {
	return s.setArchived(ctx, id, actor, true)
}

// UnarchiveEntity opens a new unarchived version, preserving the current
// properties.
func (s *Store) UnarchiveEntity(ctx context.Context, id graph.EntityID, actor provenance.AccountID) (*graph.Entity, error) {
	return s.setArchived(ctx, id, actor, false)
}

func (s *Store) setArchived(ctx context.Context, id graph.EntityID, actor provenance.AccountID, archived bool) (*graph.Entity, error) {
	current, err := s.openEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Metadata.Archived == archived {
		state := "unarchived"
		if archived {
			state = "archived"
		}
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "entity %s is already %s", id, state)
	}
	return s.UpdateEntity(ctx, UpdateEntityParams{
		EntityID:     id,
		EntityTypeID: current.Metadata.EntityTypeID,
		Properties:   current.Properties,
		Archived:     archived,
		LinkData:     current.LinkData,
		Actor:        actor,
	})
}

// openEntity reads the entity's open transaction-time version.
func (s *Store) openEntity(ctx context.Context, id graph.EntityID) (*graph.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE owned_by_id = ? AND entity_uuid = ? AND transaction_end IS NULL",
		id.OwnedByID.String(), id.EntityUUID.String())
	r, err := scanEntityRow(row, false)
	if err == sql.ErrNoRows {
		return nil, notFoundEntity(id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading entity %s", id)
	}
	return r.entity()
}

// GetEntity reads the entity version at the given temporal view.
func (s *Store) GetEntity(ctx context.Context, id graph.EntityID, axes temporal.QueryAxes) (*graph.Entity, error) {
	return s.EntityAt(ctx, id, axes.Resolve(temporal.Now()))
}

// EntityAt reads the entity version whose decision and transaction intervals
// both contain the pinned instants.
func (s *Store) EntityAt(ctx context.Context, id graph.EntityID, at temporal.PinnedAxes) (*graph.Entity, error) {
	p := &predicate{}
	p.addClause("owned_by_id = ?", id.OwnedByID.String())
	p.addClause("entity_uuid = ?", id.EntityUUID.String())
	p.addPinned("decision_start", "decision_end", at.DecisionTime.String())
	p.addPinned("transaction_start", "transaction_end", at.TransactionTime.String())

	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE "+p.build(), p.args...)
	r, err := scanEntityRow(row, false)
	if err == sql.ErrNoRows {
		return nil, notFoundEntity(id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading entity %s", id)
	}
	return r.entity()
}

// QueryEntities selects entity versions matching the filter at the given
// temporal view. A latest view (no explicit transaction pin) excludes
// archived entities unless the filter addresses the archived attribute
// itself.
func (s *Store) QueryEntities(ctx context.Context, filter *query.Filter, axes temporal.QueryAxes) ([]*graph.Entity, error) {
	excludeArchived := axes.TransactionTime == nil
	if excludeArchived {
		if err := filter.Resolve(query.RecordKindEntity); err != nil {
			return nil, err
		}
		if mentionsArchived(filter) {
			excludeArchived = false
		}
	}
	return s.queryEntities(ctx, filter, axes.Resolve(temporal.Now()), excludeArchived)
}

// QueryEntitiesAt selects entity versions matching the filter at the pinned
// instants.
func (s *Store) QueryEntitiesAt(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes) ([]*graph.Entity, error) {
	return s.queryEntities(ctx, filter, at, false)
}

func (s *Store) queryEntities(ctx context.Context, filter *query.Filter, at temporal.PinnedAxes, excludeArchived bool) ([]*graph.Entity, error) {
	compiled, err := CompileFilter(filter, query.RecordKindEntity)
	if err != nil {
		return nil, err
	}
	p := &predicate{}
	p.addPinned("decision_start", "decision_end", at.DecisionTime.String())
	p.addPinned("transaction_start", "transaction_end", at.TransactionTime.String())
	if excludeArchived {
		p.addClause("archived = 0")
	}
	p.addCompiled(compiled)
	return s.selectEntities(ctx, p)
}

// LinksByLeftEntityAt lists link versions whose left endpoint is id, pinned
// at the same instants.
func (s *Store) LinksByLeftEntityAt(ctx context.Context, id graph.EntityID, at temporal.PinnedAxes) ([]*graph.Entity, error) {
	return s.linksByEndpoint(ctx, "left", id, at)
}

// LinksByRightEntityAt lists link versions whose right endpoint is id,
// pinned at the same instants.
func (s *Store) LinksByRightEntityAt(ctx context.Context, id graph.EntityID, at temporal.PinnedAxes) ([]*graph.Entity, error) {
	return s.linksByEndpoint(ctx, "right", id, at)
}

func (s *Store) linksByEndpoint(ctx context.Context, side string, id graph.EntityID, at temporal.PinnedAxes) ([]*graph.Entity, error) {
	p := &predicate{}
	p.addClause(side+"_owned_by_id = ?", id.OwnedByID.String())
	p.addClause(side+"_entity_uuid = ?", id.EntityUUID.String())
	p.addPinned("decision_start", "decision_end", at.DecisionTime.String())
	p.addPinned("transaction_start", "transaction_end", at.TransactionTime.String())
	return s.selectEntities(ctx, p)
}

func (s *Store) selectEntities(ctx context.Context, p *predicate) ([]*graph.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE "+p.build()+" ORDER BY seq", p.args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying entities")
	}
	defer rows.Close()

	var out []*graph.Entity
	for rows.Next() {
		r, err := scanEntityRow(rows, false)
		if err != nil {
			return nil, errors.Wrap(err, "scanning entity")
		}
		e, err := r.entity()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterating entities")
}

// mentionsArchived walks a resolved filter looking for the archived
// attribute path.
func mentionsArchived(f *query.Filter) bool {
	switch f.Kind() {
	case query.KindAll, query.KindAny:
		children := f.Children()
		for i := range children {
			if mentionsArchived(&children[i]) {
				return true
			}
		}
		return false
	case query.KindNot:
		return mentionsArchived(f.Sub())
	default:
		lhs, rhs := f.Operands()
		for _, e := range []*query.Expression{lhs, rhs} {
			if path, ok := e.Path(); ok && path.Root() == query.SegmentArchived {
				return true
			}
		}
		return false
	}
}
