package livequery

import (
	"github.com/sirupsen/logrus"

	"github.com/surdb/surdb-engine/value"
)

// Action is the change kind a Notification reports (§4.9).
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Notification is delivered to a live query's subscriber on a matching
// mutation (§4.9).
type Notification struct {
	Action Action
	ID     string // lq_id
	Result value.Value
}

// channelBufferSize matches the teacher's Coordinator.sendChan buffer
// (coordinator.go: `make(chan *WSMessage, 100)`) and §5's "bounded buffer
// (100)" for the live-query notification channel.
const channelBufferSize = 100

// Bus carries Notifications over one shared process-local channel. Many
// producers (document lifecycles across concurrently committing
// transactions), many consumers (connections watching live queries), and
// each notification is received by exactly one consumer; overflow drops
// the notification and logs, non-fatally (§5/§9).
type Bus struct {
	ch       chan Notification
	log      *logrus.Entry
	relay    Relay // optional cluster-wide fan-out, nil if none configured
}

// Relay forwards a Notification beyond this process, e.g. to other nodes
// sharing the same cluster (§4.9 "unreachable/archived" implies a
// multi-node deployment). Optional: NewBus works without one.
type Relay interface {
	Publish(n Notification) error
}

// NewBus constructs a Bus with the standard buffer size. log defaults to
// the standard logrus logger if nil.
func NewBus(log *logrus.Entry, relay Relay) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{ch: make(chan Notification, channelBufferSize), log: log, relay: relay}
}

// Send delivers n to the bus's local channel with a non-blocking select,
// matching Coordinator.Send's "select/default: log dropped" discipline
// (coordinator.go). If a Relay is configured, it is best-effort published
// too; a Relay failure is logged but never blocks or fails the caller —
// notification delivery is not transactionally guaranteed (§4.9).
func (b *Bus) Send(n Notification) {
	select {
	case b.ch <- n:
	default:
		b.log.WithField("lq_id", n.ID).Warn("livequery: notification channel full, dropping")
	}
	if b.relay != nil {
		if err := b.relay.Publish(n); err != nil {
			b.log.WithError(err).WithField("lq_id", n.ID).Warn("livequery: relay publish failed")
		}
	}
}

// Subscribe returns the channel consumers read notifications from. There
// is exactly one channel per Bus and every call returns it, so concurrent
// readers split the notifications between them; a reader sees only the
// ones it receives and filters those by ID.
func (b *Bus) Subscribe() <-chan Notification { return b.ch }

// Close closes the bus's channel. Notifications already buffered can
// still be received; a Send after Close panics.
func (b *Bus) Close() { close(b.ch) }
