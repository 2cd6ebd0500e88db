package claim

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-serialized in-memory Store. It backs the local demo
// wiring and the unit tests, and must report the same statuses and errors as
// the Postgres store for identical facts: both route every guard through the
// shared derivation and filter code.
type MemoryStore struct {
	mu       sync.Mutex
	claims   map[string]Claim
	messages map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:   make(map[string]Claim),
		messages: make(map[string][]Message),
	}
}

func (m *MemoryStore) Create(ctx context.Context, c Claim) (Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.claims[c.ID]; exists {
		return Claim{}, ErrConflict
	}
	m.claims[c.ID] = cloneClaim(c)
	return cloneClaim(c), nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return Claim{}, ErrNotFound
	}
	return cloneClaim(c), nil
}

func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]Claim, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Claim, 0, len(m.claims))
	for _, c := range m.claims {
		all = append(all, cloneClaim(c))
	}
	items, total := ApplyFilter(all, filter)
	return items, total, nil
}

func (m *MemoryStore) Take(ctx context.Context, id, arbitratorID string, takenAt time.Time) (Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return Claim{}, ErrNotFound
	}
	if c.ArbitratorID != "" {
		return Claim{}, ErrConflict
	}

	c.ArbitratorID = arbitratorID
	c.TakenAt = &takenAt
	c.UpdatedAt = takenAt
	m.claims[id] = cloneClaim(c)
	return cloneClaim(c), nil
}

func (m *MemoryStore) SaveDecision(ctx context.Context, id, arbitratorID string, d Decision) (Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return Claim{}, ErrNotFound
	}
	if c.ArbitratorID == "" || DeriveStatus(c) != StatusInProgress {
		return Claim{}, ErrConflict
	}
	if c.ArbitratorID != arbitratorID {
		return Claim{}, ErrUnauthorized
	}

	c.Decision = cloneDecision(&d)
	c.UpdatedAt = d.CreatedAt
	if !d.RequiresApproval {
		completed := d.CreatedAt
		c.CompletedAt = &completed
	} else {
		c.CompletedAt = nil
	}
	m.claims[id] = cloneClaim(c)
	return cloneClaim(c), nil
}

func (m *MemoryStore) MarkPendingApproval(ctx context.Context, id, arbitratorID string) (Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return Claim{}, ErrNotFound
	}
	if c.ArbitratorID == "" {
		return Claim{}, ErrConflict
	}
	if c.ArbitratorID != arbitratorID {
		return Claim{}, ErrUnauthorized
	}

	switch DeriveStatus(c) {
	case StatusPendingApproval:
		// Already routed; no duplicate approval request.
		return cloneClaim(c), nil
	case StatusInProgress:
	default:
		return Claim{}, ErrConflict
	}
	if c.Decision == nil {
		return Claim{}, ErrConflict
	}

	pending := ApprovalPending
	c.Decision.RequiresApproval = true
	c.Decision.ApprovalStatus = &pending
	c.Decision.ApprovalComment = ""
	c.Decision.ResolvedByID = ""
	c.Decision.ResolvedAt = nil
	c.CompletedAt = nil
	m.claims[id] = cloneClaim(c)
	return cloneClaim(c), nil
}

func (m *MemoryStore) ResolveApproval(ctx context.Context, id string, verdict Verdict, comment, directorID string, resolvedAt time.Time) (Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return Claim{}, ErrNotFound
	}
	d := c.Decision
	if d == nil || d.ApprovalStatus == nil {
		return Claim{}, ErrConflict
	}
	if *d.ApprovalStatus != ApprovalPending {
		return Claim{}, ErrAlreadyResolved
	}

	status := ApprovalApproved
	if verdict == VerdictRejected {
		status = ApprovalRejected
	}
	d.ApprovalStatus = &status
	d.ApprovalComment = comment
	d.ResolvedByID = directorID
	d.ResolvedAt = &resolvedAt
	c.UpdatedAt = resolvedAt
	if verdict == VerdictApproved {
		completed := resolvedAt
		c.CompletedAt = &completed
	}
	m.claims[id] = cloneClaim(c)
	return cloneClaim(c), nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.claims[msg.ClaimID]; !ok {
		return Message{}, ErrNotFound
	}
	m.messages[msg.ClaimID] = append(m.messages[msg.ClaimID], msg)
	return msg, nil
}

// Messages returns the claim's conversation in append order.
func (m *MemoryStore) Messages(ctx context.Context, claimID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.claims[claimID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]Message, len(m.messages[claimID]))
	copy(out, m.messages[claimID])
	return out, nil
}

func cloneClaim(c Claim) Claim {
	out := c
	out.TakenAt = cloneTime(c.TakenAt)
	out.CompletedAt = cloneTime(c.CompletedAt)
	out.Order.Deadline = cloneTime(c.Order.Deadline)
	out.Decision = cloneDecision(c.Decision)
	return out
}

func cloneDecision(d *Decision) *Decision {
	if d == nil {
		return nil
	}
	out := *d
	if d.RefundAmount != nil {
		amount := *d.RefundAmount
		out.RefundAmount = &amount
	}
	if d.ApprovalStatus != nil {
		status := *d.ApprovalStatus
		out.ApprovalStatus = &status
	}
	out.ResolvedAt = cloneTime(d.ResolvedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}
