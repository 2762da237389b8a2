package service

import (
	"sync/atomic"
)

// Metrics counts session activity for the admin endpoint.
type Metrics struct {
	ConnectionsAccepted int64 // Connections registered
	ConnectionsDropped  int64 // Connections deregistered for any reason
	MessagesReceived    int64 // Frames decoded from clients
	MessagesSent        int64 // Frames fully written to clients
	IllegalMoves        int64 // Moves answered with s/I
	ProtocolViolations  int64 // Connections dropped for bad frames or order
	WriteFailures       int64 // Connections dropped while writing
	KeysPicked          int64 // Keys collected by players
}

func (m *Metrics) incAccepted() { atomic.AddInt64(&m.ConnectionsAccepted, 1) }
func (m *Metrics) incDropped() { atomic.AddInt64(&m.ConnectionsDropped, 1) }
func (m *Metrics) incReceived() { atomic.AddInt64(&m.MessagesReceived, 1) }
func (m *Metrics) incSent() { atomic.AddInt64(&m.MessagesSent, 1) }
func (m *Metrics) incIllegalMove() { atomic.AddInt64(&m.IllegalMoves, 1) }
func (m *Metrics) incViolation() { atomic.AddInt64(&m.ProtocolViolations, 1) }
func (m *Metrics) incWriteFailure() { atomic.AddInt64(&m.WriteFailures, 1) }
func (m *Metrics) incKeyPicked() { atomic.AddInt64(&m.KeysPicked, 1) }

// Snapshot returns a read-only copy for JSON output.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"connections_accepted": atomic.LoadInt64(&m.ConnectionsAccepted),
		"connections_dropped":  atomic.LoadInt64(&m.ConnectionsDropped),
		"messages_received":    atomic.LoadInt64(&m.MessagesReceived),
		"messages_sent":        atomic.LoadInt64(&m.MessagesSent),
		"illegal_moves":        atomic.LoadInt64(&m.IllegalMoves),
		"protocol_violations":  atomic.LoadInt64(&m.ProtocolViolations),
		"write_failures":       atomic.LoadInt64(&m.WriteFailures),
		"keys_picked":          atomic.LoadInt64(&m.KeysPicked),
	}
}
