package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID identifies one start..stop tracking session.
	FieldSessionID = "session_id"
	// FieldEventType classifies a log line for filtering (e.g. store_write_failed).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldFileName is the tracked file name a record refers to.
	FieldFileName = "file_name"
	// FieldTarget is the tracked directory locator.
	FieldTarget = "target"
	// FieldStrategy names the live watch strategy in use.
	FieldStrategy = "strategy"
)
