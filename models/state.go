package models

import "fmt"

// CopyState is the per-student state of a single-row copy.
type CopyState int

const (
	CopyIdle CopyState = iota
	CopyLoading
	CopyCopied
)

var copyStateNames = map[CopyState]string{
	CopyIdle:    "idle",
	CopyLoading: "loading",
	CopyCopied:  "copied",
}

func (s CopyState) String() string {
	if name, ok := copyStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CopyState(%d)", int(s))
}

func (s CopyState) MarshalText() ([]byte, error) {
	name, ok := copyStateNames[s]
	if !ok {
		return nil, fmt.Errorf("invalid copy state %d", int(s))
	}
	return []byte(name), nil
}

func (s *CopyState) UnmarshalText(b []byte) error {
	for state, name := range copyStateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("invalid copy state %q", string(b))
}

// ExportProgress is the toast state of a running batch export.
type ExportProgress struct {
	JobID      string  `json:"jobId"`
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	StatusText string  `json:"statusText"`
	Percent    float64 `json:"percent"`
	Done       bool    `json:"done"`
}

// EventType tags an Event pushed to connected clients.
type EventType string

const (
	EventCopyState       EventType = "copy_state"
	EventProgress        EventType = "progress"
	EventProgressCleared EventType = "progress_cleared"
	EventWarning         EventType = "warning"
	EventNotice          EventType = "notice"
	EventLedgerLoaded    EventType = "ledger_loaded"
	EventLedgerCleared   EventType = "ledger_cleared"
	EventPaymentToggled  EventType = "payment_toggled"
)

// Event is a UI notification: a copy-state change, a progress toast, or a warning.
type Event struct {
	Type     EventType       `json:"type"`
	Key      StudentKey      `json:"key,omitempty"`
	State    *CopyState      `json:"state,omitempty"`
	Paid     *bool           `json:"paid,omitempty"`
	Progress *ExportProgress `json:"progress,omitempty"`
	Message  string          `json:"message,omitempty"`
}
