package logger

// Standard field names for consistent structured logging across stratum.
// Use these constants instead of raw strings to keep logs queryable.
const (
	FieldActorID   = "actor_id"
	FieldOwnerID   = "owned_by_id"
	FieldEntityID  = "entity_id"
	FieldEditionID = "edition_id"
	FieldBaseURL   = "base_url"
	FieldTypeURL   = "type_url"
	FieldVersion   = "version"

	FieldComponent = "component"
	FieldOperation = "operation"

	FieldDurationMS = "duration_ms"
	FieldCount      = "count"
	FieldDepth      = "depth"

	FieldError = "error"
)
