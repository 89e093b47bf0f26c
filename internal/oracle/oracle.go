// Package oracle models the split-phase collaborators the option ledger
// depends on: the off-chain premium calculator and the rainfall measurement
// oracle. A request call returns immediately with a handle; fulfillment
// arrives later (NATS bridge or direct Fulfill in dev/tests) and is consumed
// by an independent poll. No call ever blocks on an external result.
package oracle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle of a pending oracle request.
type RequestStatus int

const (
	StatusNone RequestStatus = iota
	StatusPending
	StatusFulfilled
	StatusFailed
)

func (s RequestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusFailed:
		return "failed"
	default:
		return "none"
	}
}

var (
	ErrUnknownRequest = errors.New("oracle: unknown request handle")
	ErrNotFulfilled   = errors.New("oracle: request not fulfilled")
	ErrAlreadyClosed  = errors.New("oracle: request already resolved")
)

// PremiumCalculator computes option premiums off-process.
type PremiumCalculator interface {
	RequestPremium(latitude, longitude string, strikeMM, spreadMM, durationDays, notionalPerMM int64) (uuid.UUID, error)
	PremiumByRequest(handle uuid.UUID) (int64, error)
	IsFulfilled(handle uuid.UUID) bool
}

// RainfallOracle reports realized rainfall for a location and date range.
type RainfallOracle interface {
	RequestMeasurement(latitude, longitude string, start, end time.Time) (uuid.UUID, error)
	MeasurementByRequest(handle uuid.UUID) (int64, error)
	RequestStatus(handle uuid.UUID) RequestStatus
}

// RequestMeta is the payload recorded with each pending request; the bridge
// forwards it to the external compute service.
type RequestMeta struct {
	Kind      string    `json:"kind"` // "premium" or "rainfall"
	Latitude  string    `json:"latitude"`
	Longitude string    `json:"longitude"`
	StrikeMM  int64     `json:"strike_mm,omitempty"`
	SpreadMM  int64     `json:"spread_mm,omitempty"`
	Duration  int64     `json:"duration_days,omitempty"`
	Notional  int64     `json:"notional_per_mm,omitempty"`
	Start     time.Time `json:"start,omitempty"`
	End       time.Time `json:"end,omitempty"`
}

type pendingRequest struct {
	meta     RequestMeta
	status   RequestStatus
	value    int64
	openedAt time.Time
}

// Table is the in-memory pending-request table both services share the shape
// of. It is safe for concurrent use: fulfillments arrive from the NATS
// consumer goroutine while the engine polls.
type Table struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*pendingRequest
}

func NewTable() *Table {
	return &Table{requests: make(map[uuid.UUID]*pendingRequest)}
}

// Open records a new pending request and returns its handle.
func (t *Table) Open(meta RequestMeta) uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	handle := uuid.New()
	t.requests[handle] = &pendingRequest{meta: meta, status: StatusPending, openedAt: time.Now()}
	return handle
}

// Fulfill resolves a pending request with its value.
func (t *Table) Fulfill(handle uuid.UUID, value int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, handle)
	}
	if req.status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyClosed, handle, req.status)
	}
	req.status = StatusFulfilled
	req.value = value
	return nil
}

// Fail marks a pending request failed. Failed requests block consumers the
// same way pending ones do; the requester retries or re-requests.
func (t *Table) Fail(handle uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, handle)
	}
	if req.status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyClosed, handle, req.status)
	}
	req.status = StatusFailed
	return nil
}

// Status returns the current status for a handle (StatusNone if unknown).
func (t *Table) Status(handle uuid.UUID) RequestStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[handle]
	if !ok {
		return StatusNone
	}
	return req.status
}

// Value returns the fulfilled value for a handle.
func (t *Table) Value(handle uuid.UUID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[handle]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRequest, handle)
	}
	if req.status != StatusFulfilled {
		return 0, fmt.Errorf("%w: %s is %s", ErrNotFulfilled, handle, req.status)
	}
	return req.value, nil
}

// Meta returns the recorded request metadata.
func (t *Table) Meta(handle uuid.UUID) (RequestMeta, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[handle]
	if !ok {
		return RequestMeta{}, false
	}
	return req.meta, true
}

// OpenedAt returns when a request was opened.
func (t *Table) OpenedAt(handle uuid.UUID) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.requests[handle]
	if !ok {
		return time.Time{}, false
	}
	return req.openedAt, true
}

// RequestPublisher forwards an opened request to the external compute
// service. The NATS bridge implements it; nil means dev mode where requests
// stay pending until fulfilled directly on the table.
type RequestPublisher interface {
	PublishRequest(handle uuid.UUID, meta RequestMeta) error
}

// PremiumService implements PremiumCalculator over a Table.
type PremiumService struct {
	table     *Table
	publisher RequestPublisher
}

func NewPremiumService(table *Table, publisher RequestPublisher) *PremiumService {
	return &PremiumService{table: table, publisher: publisher}
}

func (s *PremiumService) RequestPremium(latitude, longitude string, strikeMM, spreadMM, durationDays, notionalPerMM int64) (uuid.UUID, error) {
	meta := RequestMeta{
		Kind:      "premium",
		Latitude:  latitude,
		Longitude: longitude,
		StrikeMM:  strikeMM,
		SpreadMM:  spreadMM,
		Duration:  durationDays,
		Notional:  notionalPerMM,
	}
	handle := s.table.Open(meta)
	if s.publisher != nil {
		if err := s.publisher.PublishRequest(handle, meta); err != nil {
			return uuid.Nil, fmt.Errorf("publish premium request: %w", err)
		}
	}
	return handle, nil
}

func (s *PremiumService) PremiumByRequest(handle uuid.UUID) (int64, error) {
	return s.table.Value(handle)
}

func (s *PremiumService) IsFulfilled(handle uuid.UUID) bool {
	return s.table.Status(handle) == StatusFulfilled
}

// RainfallService implements RainfallOracle over a Table.
type RainfallService struct {
	table     *Table
	publisher RequestPublisher
}

func NewRainfallService(table *Table, publisher RequestPublisher) *RainfallService {
	return &RainfallService{table: table, publisher: publisher}
}

func (s *RainfallService) RequestMeasurement(latitude, longitude string, start, end time.Time) (uuid.UUID, error) {
	meta := RequestMeta{
		Kind:      "rainfall",
		Latitude:  latitude,
		Longitude: longitude,
		Start:     start,
		End:       end,
	}
	handle := s.table.Open(meta)
	if s.publisher != nil {
		if err := s.publisher.PublishRequest(handle, meta); err != nil {
			return uuid.Nil, fmt.Errorf("publish rainfall request: %w", err)
		}
	}
	return handle, nil
}

func (s *RainfallService) MeasurementByRequest(handle uuid.UUID) (int64, error) {
	return s.table.Value(handle)
}

func (s *RainfallService) RequestStatus(handle uuid.UUID) RequestStatus {
	return s.table.Status(handle)
}
