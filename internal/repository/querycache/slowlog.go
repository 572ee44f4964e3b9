package querycache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagedex/pagedex/internal/domain/search/query"
)

// SlowQuery is one entry of the bounded slow-query log.
type SlowQuery struct {
	ID         string
	Index      string
	Text       string
	Skip       int
	Top        int
	Elapsed    time.Duration
	RecordedAt time.Time
}

// slowLog is a bounded FIFO of slow queries. Oldest entries are dropped when
// the capacity is reached.
type slowLog struct {
	mu       sync.Mutex
	capacity int
	entries  []SlowQuery
}

func newSlowLog(capacity int) *slowLog {
	return &slowLog{capacity: capacity}
}

func (l *slowLog) append(index string, q *query.Query, elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, SlowQuery{
		ID:         uuid.NewString(),
		Index:      index,
		Text:       q.Text(),
		Skip:       q.Skip(),
		Top:        q.Top(),
		Elapsed:    elapsed,
		RecordedAt: time.Now(),
	})
}

func (l *slowLog) snapshot() []SlowQuery {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]SlowQuery, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *slowLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
