package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

var (
	ErrDuplicateRequest = errors.New("request id already recorded")
	ErrUnknownRequest   = errors.New("unknown request id")
	ErrAlreadyFinished  = errors.New("request already finished")
)

// Handle refers to one in-flight request record.
type Handle struct {
	id string
}

func (h *Handle) RequestID() string { return h.id }

// Outcome is everything Finish needs to complete a record.
type Outcome struct {
	StatusCode    int
	DataSource    domain.Source
	CacheHit      bool
	Err           error
	CorrelationID string
	Subject       string
}

// Recorder keeps one RequestMetrics per request id. It is observational
// only: nothing it does changes how a request is handled.
type Recorder struct {
	mu      sync.RWMutex
	records map[string]*domain.RequestMetrics
	now     func() time.Time
	sink    Sink
	emit    func(domain.RequestMetrics)
}

func NewRecorder(sink Sink) *Recorder {
	if sink == nil {
		sink = NewNoopSink()
	}
	return &Recorder{
		records: make(map[string]*domain.RequestMetrics),
		now:     time.Now,
		sink:    sink,
	}
}

// WithClock replaces the time source. Used by tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// WithEmitter registers fn to receive a copy of every finished record.
// fn must not block.
func (r *Recorder) WithEmitter(fn func(domain.RequestMetrics)) *Recorder {
	r.emit = fn
	return r
}

// Start opens a record. Request ids are unique for the life of the
// process; reusing one returns ErrDuplicateRequest and leaves the existing
// record untouched.
func (r *Recorder) Start(id string, rt domain.RequestType) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[id]; exists {
		return nil, ErrDuplicateRequest
	}
	r.records[id] = &domain.RequestMetrics{
		RequestID:   id,
		RequestType: rt,
		StartTime:   r.now(),
	}
	return &Handle{id: id}, nil
}

// Finish completes the record for h. A record is finished at most once.
func (r *Recorder) Finish(h *Handle, o Outcome) error {
	if h == nil {
		return ErrUnknownRequest
	}

	r.mu.Lock()
	rec, ok := r.records[h.id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownRequest
	}
	if rec.Completed() {
		r.mu.Unlock()
		return ErrAlreadyFinished
	}
	rec.EndTime = r.now()
	rec.StatusCode = o.StatusCode
	rec.DataSource = o.DataSource
	rec.CacheHit = o.CacheHit
	rec.CorrelationID = o.CorrelationID
	rec.Subject = o.Subject
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	done := *rec
	r.mu.Unlock()

	r.sink.RequestCompleted(string(done.RequestType), ClassifyStatus(done.StatusCode, nil),
		string(done.DataSource), done.CacheHit, done.ResponseTime())
	if r.emit != nil {
		r.emit(done)
	}
	return nil
}

// Get returns a copy of the record for id.
func (r *Recorder) Get(id string) (domain.RequestMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.RequestMetrics{}, false
	}
	return *rec, true
}

// Cleanup drops finished records that ended more than olderThan ago and
// returns how many were removed. In-flight records are never dropped.
func (r *Recorder) Cleanup(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	removed := 0
	for id, rec := range r.records {
		if rec.Completed() && rec.EndTime.Before(cutoff) {
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
