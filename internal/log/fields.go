package log

import "daybook/internal/core"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldTitle         = "title"
	FieldAmountCents   = "amount_cents"
	FieldCategory      = "category"
	FieldDate          = "date"
	FieldUsername      = "username"
	FieldResult        = "result"
	FieldCount         = "count"
	FieldPath          = "path"
	FieldDuration      = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentCLI          = "cli"
	ComponentStorage      = "storage"
	ComponentPrefs        = "prefs"
	ComponentTransactions = "transactions"
	ComponentSession      = "session"
	ComponentReport       = "report"
	ComponentSheets       = "sheets"
	ComponentAMQP         = "amqp"
	ComponentCache        = "cache"
	ComponentViewState    = "viewstate"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpDelete   = "delete"
	OpClear    = "clear"
	OpList     = "list"
	OpWatch    = "watch"
	OpLogin    = "login"
	OpSignup   = "signup"
	OpLogout   = "logout"
	OpExport   = "export"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransaction adds the identifying fields of t. The note and receipt
// are left out.
func (f LogFields) WithTransaction(t core.Transaction) LogFields {
	if t.ID != 0 {
		f[FieldTransactionID] = t.ID
	}
	f[FieldTitle] = t.Title
	f[FieldAmountCents] = core.ToCents(t.Amount)
	f[FieldCategory] = t.Category
	f[FieldDate] = t.Date.String()
	return f
}

func (f LogFields) WithUsername(username string) LogFields {
	f[FieldUsername] = username
	return f
}

func (f LogFields) WithResult(result string) LogFields {
	f[FieldResult] = result
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
