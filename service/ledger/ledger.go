// Package ledger is the in-memory transaction record store. It is the sole
// owner of records: writers go through Insert and UpdateStatus only, and
// readers always receive copies so a concurrent mutation can never produce
// a torn read.
package ledger

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("transaction not found")

// ErrIllegalTransition is returned when UpdateStatus is asked for anything
// other than pending to confirmed or pending to failed.
var ErrIllegalTransition = errors.New("illegal status transition")

// Status is the lifecycle state of a relayed transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Record is a stored transaction. Only the minimal projection of the decoded
// transaction is retained (payer, destination, amount), not the full
// structure.
type Record struct {
	ID          string
	FromAddress string
	ToAddress   string
	Amount      uint64 // lamports
	Memo        string
	Status      Status
	Signature   string
	CreatedAt   time.Time
	BlockTime   *time.Time
	RawPayload  []byte // original wire bytes, if retained
}

// clone returns a deep copy so callers never share backing storage with the
// ledger's record.
func (r *Record) clone() Record {
	out := *r
	if r.BlockTime != nil {
		bt := *r.BlockTime
		out.BlockTime = &bt
	}
	if r.RawPayload != nil {
		out.RawPayload = append([]byte(nil), r.RawPayload...)
	}
	return out
}

// Ledger is a concurrent map of transaction records keyed by id, with a
// secondary index by signature.
type Ledger struct {
	mu          sync.RWMutex
	records     map[string]*Record
	bySignature map[string]string // signature -> record id
	now         func() time.Time
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		records:     make(map[string]*Record),
		bySignature: make(map[string]string),
		now:         time.Now,
	}
}

// NewID generates an identifier for a new record.
func NewID() string {
	return uuid.NewString()
}

// Insert publishes a fully-built record. The record value is copied in, so
// later mutation of the argument does not affect the stored record. If the
// record has no ID or CreatedAt, they are filled in.
func (l *Ledger) Insert(rec Record) Record {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}

	stored := rec.clone()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[stored.ID] = &stored
	if stored.Signature != "" {
		l.bySignature[stored.Signature] = stored.ID
	}
	return rec
}

// Get returns a copy of the record with the given id.
func (l *Ledger) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// GetBySignature returns a copy of the record with the given signature.
func (l *Ledger) GetBySignature(signature string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.bySignature[signature]
	if !ok {
		return Record{}, false
	}
	rec, ok := l.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// ListAll returns copies of all records sorted by creation time, newest
// first. Ties break on id so the ordering is stable across calls.
func (l *Ledger) ListAll() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ListByAddress returns copies of all records whose source or destination
// matches the given address, newest first.
func (l *Ledger) ListByAddress(address string) []Record {
	all := l.ListAll()
	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if rec.FromAddress == address || rec.ToAddress == address {
			out = append(out, rec)
		}
	}
	return out
}

// UpdateStatus transitions a record out of pending. This is the only
// mutation path for published records; the transition is atomic per key.
// The only legal transitions are pending to confirmed and pending to
// failed; a record already in a terminal status is never rewritten.
// A non-empty signature also updates the signature index.
func (l *Ledger) UpdateStatus(id string, status Status, signature string) error {
	if status != StatusConfirmed && status != StatusFailed {
		return ErrIllegalTransition
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrIllegalTransition
	}

	rec.Status = status
	if signature != "" {
		rec.Signature = signature
		l.bySignature[signature] = id
	}
	if status == StatusConfirmed && rec.BlockTime == nil {
		bt := l.now().UTC()
		rec.BlockTime = &bt
	}
	return nil
}

// Len returns the number of stored records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Clear removes all records. This is the only bulk deletion operation.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[string]*Record)
	l.bySignature = make(map[string]string)
}
