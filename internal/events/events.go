// Package events defines the typed event stream emitted by a running
// operator (spec §7's SSE surface): Deployed|TickCompleted|NodeExecuted|
// Rebalanced|MarginTopUp|ReserveAction|HotReloaded|Error|Stopped.
package events

import "github.com/defi-flow/defi-flow-go/internal/model"

// Kind names one of the nine event types.
type Kind string

const (
	KindDeployed      Kind = "Deployed"
	KindTickCompleted Kind = "TickCompleted"
	KindNodeExecuted  Kind = "NodeExecuted"
	KindRebalanced    Kind = "Rebalanced"
	KindMarginTopUp   Kind = "MarginTopUp"
	KindReserveAction Kind = "ReserveAction"
	KindHotReloaded   Kind = "HotReloaded"
	KindError         Kind = "Error"
	KindStopped       Kind = "Stopped"
)

// Event is one item on the stream, carrying the minimum context to diagnose
// without server logs (spec §7).
type Event struct {
	Kind      Kind           `json:"kind"`
	Timestamp int64          `json:"timestamp"`
	NodeID    string         `json:"node_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Metrics   *model.SimMetrics `json:"metrics,omitempty"`
	Reserve   *model.ReserveAction `json:"reserve,omitempty"`
}

// Sink receives events as they're emitted. A buffered channel satisfies it
// directly; Publish never blocks a full channel, matching the spec's
// logged-not-fatal propagation policy for non-validation errors.
type Sink chan<- Event

// Publish sends an event on sink without blocking when the channel is full,
// dropping the event rather than stalling the tick loop.
func Publish(sink Sink, ev Event) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	default:
	}
}

func Deployed(now int64) Event {
	return Event{Kind: KindDeployed, Timestamp: now}
}

func TickCompleted(now int64, metrics model.SimMetrics) Event {
	return Event{Kind: KindTickCompleted, Timestamp: now, Metrics: &metrics}
}

func NodeExecuted(now int64, nodeID string) Event {
	return Event{Kind: KindNodeExecuted, Timestamp: now, NodeID: nodeID}
}

func Rebalanced(now int64, nodeID, message string) Event {
	return Event{Kind: KindRebalanced, Timestamp: now, NodeID: nodeID, Message: message}
}

func MarginTopUp(now int64, nodeID, message string) Event {
	return Event{Kind: KindMarginTopUp, Timestamp: now, NodeID: nodeID, Message: message}
}

func ReserveActionEvent(now int64, action model.ReserveAction) Event {
	return Event{Kind: KindReserveAction, Timestamp: now, Reserve: &action}
}

func HotReloaded(now int64) Event {
	return Event{Kind: KindHotReloaded, Timestamp: now}
}

func Err(now int64, nodeID, message string) Event {
	return Event{Kind: KindError, Timestamp: now, NodeID: nodeID, Message: message}
}

func Stopped(now int64, message string) Event {
	return Event{Kind: KindStopped, Timestamp: now, Message: message}
}
