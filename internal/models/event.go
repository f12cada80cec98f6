package models

import "time"

// Event kinds pushed to subscribers.
const (
	EventStatus    = "status"
	EventOperation = "operation"
	EventButtons   = "buttons"
	EventConfig    = "config"
)

// Event is one message on the event bus.
type Event struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	Operation string       `json:"operation,omitempty"`
	Error     string       `json:"error,omitempty"`
	Time      time.Time    `json:"time"`
	Status    DeviceStatus `json:"status"`
}
