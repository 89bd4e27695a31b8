package log

// Field names shared by every component
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldEntryID     = "entry_id"
	FieldDirection   = "direction"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldSeriesID    = "series_id"
	FieldSequence    = "sequence"
	FieldStrategy    = "strategy"
	FieldDifference  = "difference_cents"
	FieldResidual    = "residual_cents"
	FieldGranularity = "granularity"
	FieldBuckets     = "buckets"
	FieldPlan        = "plan"
	FieldCapability  = "capability"
	FieldRange       = "range"
	FieldRecurringID = "recurring_id"
	FieldOccurrence  = "occurrence"
)

// Component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentLedger     = "ledger"
	ComponentReports    = "reports"
	ComponentSettlement = "settlement"
	ComponentRecurring  = "recurring"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
	ComponentAdvisor    = "advisor"
	ComponentMigration  = "migration"
)

// Operations recorded in the operation field
const (
	OpCreate = "create"
	OpSettle = "settle"
	OpExport = "export"
	OpBook   = "book"
)

// LogFields builds the attributes of one record.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

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

// WithEntry adds ledger entry fields
func (f LogFields) WithEntry(id, direction string, amountCents int64, category string) LogFields {
	f[FieldEntryID] = id
	f[FieldDirection] = direction
	f[FieldAmountCents] = amountCents
	f[FieldCategory] = category
	return f
}

// WithSettlement adds installment settlement fields
func (f LogFields) WithSettlement(seriesID string, sequence int, strategy string, differenceCents, residualCents int64) LogFields {
	f[FieldSeriesID] = seriesID
	f[FieldSequence] = sequence
	f[FieldStrategy] = strategy
	f[FieldDifference] = differenceCents
	f[FieldResidual] = residualCents
	return f
}

// WithPeriod adds year and month fields; month 0 is omitted.
func (f LogFields) WithPeriod(year, month int) LogFields {
	f[FieldYear] = year
	if month != 0 {
		f[FieldMonth] = month
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice flattens the fields into slog key/value pairs.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
