package model

// Priority is an opaque scheduling hint forwarded to the remote collaborator.
// It is recorded in response metadata but never consulted by cache policy.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// String returns the wire representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// ResponseMetadata describes where and how fast a response was produced.
type ResponseMetadata struct {
	Source         string  `json:"source"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	CacheHit       bool    `json:"cache_hit"`
	RecordsCount   int     `json:"records_count"`
	Priority       string  `json:"priority,omitempty"`
}

// DataResponse is the single result type returned by every public provider
// operation. It always carries a definitive Success flag; no error ever
// crosses the provider boundary in any other form.
type DataResponse struct {
	Success  bool             `json:"success"`
	Data     interface{}      `json:"data,omitempty"`
	Metadata ResponseMetadata `json:"metadata"`
	Error    string           `json:"error,omitempty"`
}

// Well-known metadata sources.
const (
	SourceCache      = "cache"
	SourceStore      = "store"
	SourceRemote     = "remote"
	SourceValidation = "validation_error"
	SourceFailed     = "failed"
	SourceError      = "error"
)

// NewErrorResponse builds a failure response for the given stage.
func NewErrorResponse(source, message string) DataResponse {
	return DataResponse{
		Success:  false,
		Metadata: ResponseMetadata{Source: source},
		Error:    message,
	}
}
