package lazarus

// EventType is the type of event emitted during a resurrection run.
type EventType string

const (
	EventTypeLog    EventType = "log"
	EventTypeDebug  EventType = "debug"
	EventTypeResult EventType = "result"
)

func (t EventType) String() string {
	return string(t)
}

// Artifact is one generated file carried in the terminal result.
type Artifact struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// AttemptError is one classified failure from the retry loop.
type AttemptError struct {
	Attempt   int    `json:"attempt"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// ResultData is the payload of the single terminal result event.
type ResultData struct {
	Logs       string         `json:"logs"`
	Artifacts  []Artifact     `json:"artifacts"`
	Preview    string         `json:"preview"`
	Status     Status         `json:"status"`
	RetryCount int            `json:"retryCount"`
	Errors     []AttemptError `json:"errors"`
}

// Event is one entry in a run's ordered event sequence. A run emits any
// number of log and debug events followed by exactly one result event.
type Event struct {
	Type    EventType   `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    *ResultData `json:"data,omitempty"`
}
