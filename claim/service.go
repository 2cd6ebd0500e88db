package claim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role mirrors the console roles relevant to the workflow. Values match the
// auth package's role strings.
type Role string

const (
	RoleArbitrator Role = "arbitrator"
	RoleDirector   Role = "director"
	RoleAdmin      Role = "admin"
)

// Store is the authoritative persistence contract for claims. Implementations
// must serialize writers of the same claim and enforce the transition guards
// atomically: a failed call leaves the stored claim untouched.
type Store interface {
	Create(ctx context.Context, c Claim) (Claim, error)
	Get(ctx context.Context, id string) (Claim, error)
	List(ctx context.Context, filter Filter) ([]Claim, int, error)

	// Take assigns the arbitrator to an unassigned claim. ErrConflict when
	// the claim is already taken.
	Take(ctx context.Context, id, arbitratorID string, takenAt time.Time) (Claim, error)

	// SaveDecision overwrites the claim's decision. ErrUnauthorized when the
	// claim is owned by a different arbitrator, ErrConflict when the claim is
	// not in progress.
	SaveDecision(ctx context.Context, id, arbitratorID string, d Decision) (Claim, error)

	// MarkPendingApproval routes the existing decision to the director.
	// Idempotent for claims already pending. ErrConflict when no decision
	// exists to forward.
	MarkPendingApproval(ctx context.Context, id, arbitratorID string) (Claim, error)

	// ResolveApproval records the director verdict on a pending decision.
	// ErrAlreadyResolved when the approval already carries a final verdict.
	ResolveApproval(ctx context.Context, id string, verdict Verdict, comment, directorID string, resolvedAt time.Time) (Claim, error)

	AppendMessage(ctx context.Context, msg Message) (Message, error)
}

// Service implements the claim workflow operations: take, decide, route for
// approval, resolve, and the informational message surface. Input validation
// and role checks live here; same-claim serialization is the store's job.
type Service struct {
	store Store
	now   func() time.Time
	idGen func() string
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		idGen: uuid.NewString,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create registers a claim filed by the external dispute process.
func (s *Service) Create(ctx context.Context, params CreateParams) (Claim, error) {
	if params.Order.ID == "" || params.Order.Amount <= 0 {
		return Claim{}, fmt.Errorf("%w: order snapshot required", ErrInvalidInput)
	}
	if params.Client.ID == "" || params.Expert.ID == "" {
		return Claim{}, fmt.Errorf("%w: participant snapshots required", ErrInvalidInput)
	}
	switch params.Kind {
	case KindRefund, KindDispute, KindConflict:
	default:
		return Claim{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, params.Kind)
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return Claim{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, params.Priority)
	}

	now := s.now().UTC()
	return s.store.Create(ctx, Claim{
		ID:        s.idGen(),
		Kind:      params.Kind,
		Priority:  priority,
		Order:     params.Order,
		Client:    params.Client,
		Expert:    params.Expert,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Get returns a single claim by id.
func (s *Service) Get(ctx context.Context, id string) (Claim, error) {
	return s.store.Get(ctx, id)
}

// List returns the filtered, paginated claim collection and the filtered
// total.
func (s *Service) List(ctx context.Context, filter Filter) ([]Claim, int, error) {
	if err := filter.validate(); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, filter)
}

// Take assigns the acting arbitrator to a new claim, moving it to
// in_progress. The assignment happens exactly once; a second take fails with
// ErrConflict and mutates nothing.
func (s *Service) Take(ctx context.Context, id, arbitratorID string) (Claim, error) {
	if arbitratorID == "" {
		return Claim{}, fmt.Errorf("%w: arbitrator id required", ErrInvalidInput)
	}
	return s.store.Take(ctx, id, arbitratorID, s.now().UTC())
}

// RecordDecision validates and attaches the arbitrator's ruling. A decision
// that needs no approval completes the claim immediately; one flagged for
// approval moves it to pending_approval. Any previous decision is
// overwritten.
func (s *Service) RecordDecision(ctx context.Context, id string, input DecisionInput, arbitratorID string) (Claim, error) {
	if arbitratorID == "" {
		return Claim{}, fmt.Errorf("%w: arbitrator id required", ErrInvalidInput)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Claim{}, err
	}
	if err := ValidateDecision(input, current.Order); err != nil {
		return Claim{}, err
	}

	d := normalizeDecision(input)
	d.CreatedAt = s.now().UTC()
	return s.store.SaveDecision(ctx, id, arbitratorID, d)
}

// SubmitForApproval explicitly routes the claim's decision to the director.
// Calling it on a claim already pending approval is a no-op returning the
// same pending state. A non-empty forwarding message is recorded on the
// claim's conversation either way.
func (s *Service) SubmitForApproval(ctx context.Context, id, message, arbitratorID string) (Claim, error) {
	if arbitratorID == "" {
		return Claim{}, fmt.Errorf("%w: arbitrator id required", ErrInvalidInput)
	}

	updated, err := s.store.MarkPendingApproval(ctx, id, arbitratorID)
	if err != nil {
		return Claim{}, err
	}

	if strings.TrimSpace(message) != "" {
		if _, err := s.store.AppendMessage(ctx, Message{
			ID:        s.idGen(),
			ClaimID:   id,
			AuthorID:  arbitratorID,
			Recipient: string(RoleDirector),
			Body:      strings.TrimSpace(message),
			CreatedAt: s.now().UTC(),
		}); err != nil {
			return Claim{}, fmt.Errorf("claim: record approval message: %w", err)
		}
	}

	return updated, nil
}

// ResolveApproval records the director verdict. Approval completes the
// claim; rejection returns it to the arbitrator with the rejected decision
// retained for audit until a revised one overwrites it.
func (s *Service) ResolveApproval(ctx context.Context, id string, verdict Verdict, comment, directorID string, role Role) (Claim, error) {
	if role != RoleDirector {
		return Claim{}, fmt.Errorf("%w: only directors resolve approvals", ErrUnauthorized)
	}
	if directorID == "" {
		return Claim{}, fmt.Errorf("%w: director id required", ErrInvalidInput)
	}
	if verdict != VerdictApproved && verdict != VerdictRejected {
		return Claim{}, fmt.Errorf("%w: unknown verdict %q", ErrInvalidInput, verdict)
	}
	return s.store.ResolveApproval(ctx, id, verdict, comment, directorID, s.now().UTC())
}

// RequestAdditionalInfo appends an informational message to the claim's
// conversation. It never touches the state machine.
func (s *Service) RequestAdditionalInfo(ctx context.Context, id, message, recipient, authorID string) (Message, error) {
	body := strings.TrimSpace(message)
	if body == "" {
		return Message{}, fmt.Errorf("%w: message body required", ErrInvalidInput)
	}
	if _, err := s.store.Get(ctx, id); err != nil {
		return Message{}, err
	}
	return s.store.AppendMessage(ctx, Message{
		ID:        s.idGen(),
		ClaimID:   id,
		AuthorID:  authorID,
		Recipient: recipient,
		Body:      body,
		CreatedAt: s.now().UTC(),
	})
}
