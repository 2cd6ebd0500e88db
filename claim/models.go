package claim

import "time"

// Kind categorizes the client report that opened the claim. It is fixed at
// creation and never changes.
type Kind string

const (
	KindRefund   Kind = "refund"
	KindDispute  Kind = "dispute"
	KindConflict Kind = "conflict"
)

// Priority is advisory ordering information set at creation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DecisionType enumerates the rulings an arbitrator can record.
type DecisionType string

const (
	DecisionFullRefund    DecisionType = "full_refund"
	DecisionPartialRefund DecisionType = "partial_refund"
	DecisionNoRefund      DecisionType = "no_refund"
	DecisionRevision      DecisionType = "revision"
	DecisionOther         DecisionType = "other"
)

// ApprovalStatus tracks the director verdict on a decision flagged as
// requiring sign-off. It is absent while no such decision exists.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Verdict is a director's resolution of a pending approval.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// Participant is an immutable snapshot of a marketplace user captured when
// the claim was filed.
type Participant struct {
	ID    string
	Name  string
	Email string
}

// OrderRef is an immutable snapshot of the order the claim is tied to. The
// amount bounds partial refunds; the live order record is a separate entity.
type OrderRef struct {
	ID       string
	Title    string
	Amount   int64
	Deadline *time.Time
}

// Decision is the arbitrator's ruling on a claim. A claim holds at most one
// decision; recording a new one overwrites the previous ruling, so a decision
// rejected by the director survives only until the arbitrator revises it.
type Decision struct {
	Type             DecisionType
	RefundAmount     *int64
	Reasoning        string
	RequiresApproval bool
	ApprovalStatus   *ApprovalStatus
	ApprovalComment  string
	ResolvedByID     string
	CreatedAt        time.Time
	ResolvedAt       *time.Time
}

// Message is an append-only conversation entry attached to a claim. Messages
// never participate in the state machine.
type Message struct {
	ID        string
	ClaimID   string
	AuthorID  string
	Recipient string
	Body      string
	CreatedAt time.Time
}

// Claim is a dispute/refund/conflict report tied to one marketplace order.
// Status is not a field: it is always derived from the facts below via
// DeriveStatus so that every storage backend reports identical states.
type Claim struct {
	ID           string
	Kind         Kind
	Priority     Priority
	Order        OrderRef
	Client       Participant
	Expert       Participant
	ArbitratorID string
	TakenAt      *time.Time
	Decision     *Decision
	CompletedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Status reports the claim's current lifecycle state.
func (c Claim) Status() Status {
	return DeriveStatus(c)
}

// Clone returns a deep copy, detached from any pointer fields of the
// original. Cached views hold clones so rollback snapshots stay exact.
func (c Claim) Clone() Claim {
	return cloneClaim(c)
}

// CreateParams carries the fields supplied by the external dispute-filing
// process when a claim is opened.
type CreateParams struct {
	Kind     Kind
	Priority Priority
	Order    OrderRef
	Client   Participant
	Expert   Participant
}

// DecisionInput is the arbitrator-supplied payload for RecordDecision.
type DecisionInput struct {
	Type             DecisionType
	RefundAmount     *int64
	Reasoning        string
	RequiresApproval bool
}
