package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-network/xrail/internal/domain/edge"
	"github.com/r3e-network/xrail/internal/platform/durable"
	"github.com/r3e-network/xrail/pkg/metrics"
)

// Store owns every ExecutionRecord this process is driving or has driven,
// subject to the bounded ring of §3's lifecycle rule: "when in-memory
// history exceeds its configured cap, the oldest completed/failed/cancelled
// records are evicted; records in a live state are never evicted." Every
// transition is also appended to the durable execution_history stream so
// history survives a restart even once evicted from memory.
type Store struct {
	mu      sync.Mutex
	records map[string]*edge.ExecutionRecord
	order   []string // insertion order, oldest first
	cap     int

	idMu    sync.Mutex
	idLocks map[string]*sync.Mutex

	durable durable.Store
}

// NewStore builds a Store with the given in-memory history cap (<=0 means
// unbounded) and durable backing stream.
func NewStore(durableStore durable.Store, historyCap int) *Store {
	return &Store{
		records: make(map[string]*edge.ExecutionRecord),
		cap:     historyCap,
		idLocks: make(map[string]*sync.Mutex),
		durable: durableStore,
	}
}

func (s *Store) idLock(id string) *sync.Mutex {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	mu, ok := s.idLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.idLocks[id] = mu
	}
	return mu
}

// Create registers a new ExecutionRecord (always starting in StatePending)
// and durably records the pending->pending creation transition.
func (s *Store) Create(ctx context.Context, rec edge.ExecutionRecord) error {
	lock := s.idLock(rec.ExecutionID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if _, exists := s.records[rec.ExecutionID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("execution %s already exists", rec.ExecutionID)
	}
	stored := rec
	s.records[rec.ExecutionID] = &stored
	s.order = append(s.order, rec.ExecutionID)
	s.mu.Unlock()

	return s.appendTransition(ctx, edge.Transition{
		ExecutionID:  rec.ExecutionID,
		OldState:     edge.StatePending,
		NewState:     edge.StatePending,
		CurrentIndex: rec.CurrentIndex,
		Timestamp:    rec.CreatedAt,
	})
}

// Get returns a snapshot of the execution record, or an error if unknown.
func (s *Store) Get(_ context.Context, id string) (edge.ExecutionRecord, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return edge.ExecutionRecord{}, fmt.Errorf("execution %s not found", id)
	}
	return rec.Snapshot(), nil
}

// Mutate serializes access to one execution record: it locks the
// per-execution mutex, hands mutate the live *ExecutionRecord to modify in
// place, records the returned Transition to the durable stream and
// Prometheus, and evicts eligible terminal records if over cap. mutate
// returns the Transition describing the change it made, or an error to
// abort (in which case nothing is recorded).
func (s *Store) Mutate(ctx context.Context, id string, now time.Time, mutate func(rec *edge.ExecutionRecord) (edge.Transition, error)) error {
	lock := s.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("execution %s not found", id)
	}

	transition, err := mutate(rec)
	if err != nil {
		return err
	}
	rec.UpdatedAt = now
	transition.Timestamp = now

	if err := s.appendTransition(ctx, transition); err != nil {
		return err
	}
	metrics.RecordExecutionTransition(string(transition.OldState), string(transition.NewState))

	if rec.State.Terminal() {
		s.evictIfNeeded()
	}
	return nil
}

func (s *Store) appendTransition(ctx context.Context, t edge.Transition) error {
	payload, err := json.Marshal(toTransitionDTO(t))
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	if s.durable == nil {
		return nil
	}
	_, err = s.durable.Append(ctx, durable.StreamExecutionHistory, payload)
	return err
}

// evictIfNeeded drops the oldest completed/failed/cancelled records (in
// insertion order) until the in-memory set is at or below cap. Live-state
// records are skipped and never evicted, per §3.
func (s *Store) evictIfNeeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cap <= 0 || len(s.records) <= s.cap {
		return
	}

	kept := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if len(s.records) <= s.cap {
			kept = append(kept, id)
			continue
		}
		rec, ok := s.records[id]
		if !ok {
			continue
		}
		if !rec.State.Terminal() {
			kept = append(kept, id)
			continue
		}
		delete(s.records, id)
	}
	s.order = kept
}

// transitionDTO is the JSON-serializable form of edge.Transition: the
// domain type's Error field isn't itself marshalable, so it's flattened to
// a string here for the durable stream.
type transitionDTO struct {
	ExecutionID    string      `json:"execution_id"`
	OldState       string      `json:"old_state"`
	NewState       string      `json:"new_state"`
	CurrentIndex   int         `json:"current_index"`
	SegmentOutcome *outcomeDTO `json:"segment_outcome,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

type outcomeDTO struct {
	ProviderTxnID string  `json:"provider_txn_id"`
	Status        string  `json:"status"`
	AmountIn      float64 `json:"amount_in"`
	AmountOut     float64 `json:"amount_out"`
	FeesPaid      float64 `json:"fees_paid"`
	Attempts      int     `json:"attempts"`
	Error         string  `json:"error,omitempty"`
}

func toTransitionDTO(t edge.Transition) transitionDTO {
	dto := transitionDTO{
		ExecutionID:  t.ExecutionID,
		OldState:     string(t.OldState),
		NewState:     string(t.NewState),
		CurrentIndex: t.CurrentIndex,
		Timestamp:    t.Timestamp,
	}
	if t.SegmentOutcome != nil {
		o := t.SegmentOutcome
		errMsg := ""
		if o.Error != nil {
			errMsg = o.Error.Error()
		}
		dto.SegmentOutcome = &outcomeDTO{
			ProviderTxnID: o.ProviderTxnID,
			Status:        string(o.Status),
			AmountIn:      o.AmountIn,
			AmountOut:     o.AmountOut,
			FeesPaid:      o.FeesPaid,
			Attempts:      o.Attempts,
			Error:         errMsg,
		}
	}
	return dto
}
