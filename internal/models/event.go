package models

import "time"

// EventType names a runner event delivered over SSE.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventCaseStarted  EventType = "case_started"
	EventCall         EventType = "call"
	EventCaseFinished EventType = "case_finished"
	EventRunFinished  EventType = "run_finished"
)

// Event is published on the bus while a run progresses.
type Event struct {
	Seq    uint64    `json:"seq"`
	Type   EventType `json:"type"`
	RunID  string    `json:"run_id"`
	Case   string    `json:"case,omitempty"`
	Call   *Call     `json:"call,omitempty"`
	Passed *bool     `json:"passed,omitempty"`
	Error  string    `json:"error,omitempty"`
	Time   time.Time `json:"time"`
}
