package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldDuration   = "duration_ms"
	FieldEntryID    = "entry_id"
	FieldKind       = "kind"
	FieldAmount     = "amount"
	FieldOccurredAt = "occurred_at"
	FieldHasPhoto   = "has_photo"
	FieldCount      = "count"
	FieldCacheHit   = "cache_hit"
	FieldDBPath     = "db_path"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentCache   = "cache"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpInsert        = "insert"
	OpUpdate        = "update"
	OpGet           = "get"
	OpList          = "list"
	OpMonthlyTotals = "monthly_totals"
	OpStartup       = "startup"
	OpShutdown      = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeConnection    = "connection_error"
	ErrorTypeSchema        = "schema_error"
	ErrorTypeWrite         = "write_error"
	ErrorTypeRead          = "read_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error and error type fields
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

// WithEntry adds ledger entry fields. A zero id is omitted.
func (f LogFields) WithEntry(id int64, kind string, amount int64) LogFields {
	if id != 0 {
		f[FieldEntryID] = id
	}
	f[FieldKind] = kind
	f[FieldAmount] = amount
	return f
}

// WithDuration adds elapsed milliseconds
func (f LogFields) WithDuration(ms int64) LogFields {
	f[FieldDuration] = ms
	return f
}

// With adds an arbitrary field
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
