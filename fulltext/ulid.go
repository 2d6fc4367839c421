package fulltext

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

// idSource produces monotonically increasing ULIDs even within the same
// millisecond, guarded by a mutex since a single Index may be indexed
// from multiple goroutines under §4.4's PARALLEL fan-out. This gives the
// append-only tt log a component that sorts entries for the same
// term/doc in write order regardless of clock resolution.
type idSource struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

var globalIDSource = newIDSource()

func newIDSource() *idSource {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &idSource{entropy: ulid.Monotonic(r, 0)}
}

func (s *idSource) next() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy)
	return id[:]
}
