package log

import "errors"

// Field names shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldPage          = "page"
	FieldResource      = "resource"
	FieldEndpoint      = "endpoint"
	FieldRole          = "role"
	FieldEventKind     = "event_kind"
	FieldEventID       = "event_id"
	FieldRecordCount   = "record_count"
	FieldSpreadsheetID = "spreadsheet_id"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAPI       = "api"
	ComponentAPIClient = "api_client"
	ComponentFetch     = "fetch"
	ComponentDashboard = "dashboard"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentExport    = "export"
	ComponentCache     = "cache"
	ComponentTrace     = "trace"
)

// EndpointError is implemented by errors that know which upstream endpoint
// failed and with what status. WithError expands them into separate fields.
type EndpointError interface {
	error
	EndpointStatus() (endpoint string, status int)
}

// LogFields is an ordered list of key/value pairs, built by chaining and
// handed to slog with ToSlice.
type LogFields struct {
	kv []any
}

// NewFields starts an empty field list.
func NewFields() LogFields {
	return LogFields{}
}

func (f LogFields) add(key string, value any) LogFields {
	kv := make([]any, len(f.kv), len(f.kv)+2)
	copy(kv, f.kv)
	return LogFields{kv: append(kv, key, value)}
}

// WithComponent adds the component name.
func (f LogFields) WithComponent(component string) LogFields {
	return f.add(FieldComponent, component)
}

// WithClientIP adds the caller's address.
func (f LogFields) WithClientIP(ip string) LogFields {
	return f.add(FieldClientIP, ip)
}

// WithError adds err. An EndpointError also contributes its endpoint and
// status code unless WithEndpoint already set them.
func (f LogFields) WithError(err error) LogFields {
	if err == nil {
		return f
	}
	var ee EndpointError
	if errors.As(err, &ee) && !f.has(FieldEndpoint) {
		f = f.WithEndpoint(ee.EndpointStatus())
	}
	return f.add(FieldError, err.Error())
}

// WithResource identifies the page section a fetch populates.
func (f LogFields) WithResource(page, resource string) LogFields {
	if page != "" {
		f = f.add(FieldPage, page)
	}
	return f.add(FieldResource, resource)
}

// WithEndpoint adds the upstream endpoint and, when known, its status code.
func (f LogFields) WithEndpoint(endpoint string, statusCode int) LogFields {
	f = f.add(FieldEndpoint, endpoint)
	if statusCode > 0 {
		f = f.add(FieldStatusCode, statusCode)
	}
	return f
}

// WithRequest adds method, path and, when present, query and user agent.
func (f LogFields) WithRequest(method, path, query, userAgent string) LogFields {
	f = f.add(FieldMethod, method).add(FieldPath, path)
	if query != "" {
		f = f.add(FieldQuery, query)
	}
	if userAgent != "" {
		f = f.add(FieldUserAgent, userAgent)
	}
	return f
}

// WithResponse adds the status code and duration of a served request.
func (f LogFields) WithResponse(statusCode int, durationMs int64) LogFields {
	return f.add(FieldStatusCode, statusCode).add(FieldDuration, durationMs)
}

func (f LogFields) has(key string) bool {
	for i := 0; i < len(f.kv); i += 2 {
		if f.kv[i] == key {
			return true
		}
	}
	return false
}

// ToSlice returns the pairs in insertion order.
func (f LogFields) ToSlice() []any {
	return f.kv
}
