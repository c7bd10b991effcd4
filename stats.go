package store

import (
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultSlowThreshold is the duration above which a statement is reported as slow.
const DefaultSlowThreshold = 500 * time.Millisecond

// QueryStats holds statement execution counters of a DB and its sessions.
type QueryStats struct {
	Queries  atomic.Int64
	Execs    atomic.Int64
	Duration atomic.Int64 // nanoseconds
	Slow     atomic.Int64
	Errors   atomic.Int64
}

func (s *QueryStats) record(exec bool, elapsed, threshold time.Duration, err error) (slow bool) {
	if exec {
		s.Execs.Add(1)
	} else {
		s.Queries.Add(1)
	}
	s.Duration.Add(int64(elapsed))
	if err != nil {
		s.Errors.Add(1)
	}
	if threshold > 0 && elapsed > threshold {
		s.Slow.Add(1)
		return true
	}
	return false
}

// Snapshot returns a point-in-time copy of the counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.Queries.Load(),
		Execs:    s.Execs.Load(),
		Duration: time.Duration(s.Duration.Load()),
		Slow:     s.Slow.Load(),
		Errors:   s.Errors.Load(),
	}
}

func (s *QueryStats) Reset() {
	s.Queries.Store(0)
	s.Execs.Store(0)
	s.Duration.Store(0)
	s.Slow.Store(0)
	s.Errors.Store(0)
}

type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
}

func (s StatsSnapshot) Avg() time.Duration {
	total := s.Queries + s.Execs
	if total == 0 {
		return 0
	}
	return s.Duration / time.Duration(total)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.Avg(), s.Slow, s.Errors)
}
