// Package livequery implements live-query subscriptions and notification
// fan-out (§4.9): DEFINE LIVE registers a subscription per table; every
// document-lifecycle mutation on that table evaluates each subscription's
// condition and, if truthy, delivers a notification.
//
// Grounded in coordinator.Coordinator (teacher)'s sendChan chan *WSMessage
// (buffer 100) with non-blocking select/default-drop send — this is close
// to a direct port of the channel discipline, with the websocket
// transport itself stripped (network protocols are an explicit Non-goal,
// §1) and replaced with a plain notification struct delivered in-process.
package livequery

import (
	"context"
	"sync"

	"github.com/surdb/surdb-engine/value"
)

// Subscription is one DEFINE LIVE registration (§4.9).
type Subscription struct {
	ID     string // lq_id
	NodeID string
	NS, DB, TB string
	Cond   *value.Expr
	Fields []value.Path
	Fetch  []value.Path
}

// Registry holds every live Subscription, indexed by table for fast
// lookup from process_table_lives (§4.5).
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Subscription
	byTB map[string][]string // "ns\x00db\x00tb" -> []lqID, insertion order
}

func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]Subscription),
		byTB: make(map[string][]string),
	}
}

func tableKey(ns, db, tb string) string { return ns + "\x00" + db + "\x00" + tb }

// Define registers sub, replacing any prior subscription with the same
// ID (KILL followed by a redefine under the same id, or a duplicate
// DEFINE LIVE).
func (r *Registry) Define(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[sub.ID]; !exists {
		k := tableKey(sub.NS, sub.DB, sub.TB)
		r.byTB[k] = append(r.byTB[k], sub.ID)
	}
	r.byID[sub.ID] = sub
}

// Kill removes a subscription by id (KILL $lq_id, §4.9).
func (r *Registry) Kill(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	k := tableKey(sub.NS, sub.DB, sub.TB)
	ids := r.byTB[k]
	for i, x := range ids {
		if x == id {
			r.byTB[k] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// ForTable returns every live subscription on (ns, db, tb), in
// definition order.
func (r *Registry) ForTable(ns, db, tb string) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byTB[tableKey(ns, db, tb)]
	out := make([]Subscription, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out
}

// GCUnreachable drops every subscription whose node is not in reachable
// (§4.9: "If the subscriber node is unreachable/archived, the live query
// is garbage-collected").
func (r *Registry) GCUnreachable(ctx context.Context, reachable func(nodeID string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.byID {
		if !reachable(sub.NodeID) {
			delete(r.byID, id)
			k := tableKey(sub.NS, sub.DB, sub.TB)
			ids := r.byTB[k]
			for i, x := range ids {
				if x == id {
					r.byTB[k] = append(ids[:i], ids[i+1:]...)
					break
				}
			}
		}
	}
}
