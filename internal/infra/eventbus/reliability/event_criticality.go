// Package reliability provides utilities for determining the criticality of events
// within the event messaging system. Event criticality is a classification that helps
// establish appropriate handling, persistence, and delivery guarantees for different
// types of events.
package reliability

import (
	"github.com/ahrav/dirigent/internal/domain/events"
	"github.com/ahrav/dirigent/internal/domain/execution"
)

// IsCriticalEvent determines if an event type represents a message that
// requires acknowledgment in transport mechanisms that don't have
// built-in durability guarantees like Kafka.
//
// Critical events are usually terminal state changes or final results that:
// 1. Won't be naturally retransmitted by subsequent messages
// 2. Would result in data loss or inconsistency if not processed
// 3. Represent important state transitions in the system
func IsCriticalEvent(eventType events.EventType) bool {
	switch eventType {
	// Status changes drive the registry's view of the job; a dropped one
	// leaves the job's lifecycle record with a hole in it.
	case execution.EventTypeJobStatusChanged:
		return true

	// A lost kill request would leave a process running against user intent.
	case execution.EventTypeJobKillRequested:
		return true

	// Heartbeats are naturally retransmitted by the next beat.
	case execution.EventTypeAgentHeartbeat:
		return false

	default:
		return false
	}
}
