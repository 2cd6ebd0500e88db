package claim

// Status is the derived lifecycle state of a claim. It is computed from the
// driving facts (arbitrator assignment, decision, approval verdict) and is
// never stored as an independently settable field.
type Status string

const (
	StatusNew             Status = "new"
	StatusInProgress      Status = "in_progress"
	StatusPendingApproval Status = "pending_approval"
	StatusCompleted       Status = "completed"
)

// DeriveStatus is the single derivation rule for claim status. Every read
// and write path routes through it; the Postgres binding mirrors it in the
// claim_status SQL function, and the two are held in agreement by an
// integration test.
//
//	completed         decision exists and (no approval needed or approved)
//	pending_approval  decision requires approval and verdict is pending
//	in_progress       arbitrator assigned, no resolving decision
//	new               otherwise
func DeriveStatus(c Claim) Status {
	if d := c.Decision; d != nil {
		if !d.RequiresApproval {
			return StatusCompleted
		}
		if d.ApprovalStatus != nil {
			switch *d.ApprovalStatus {
			case ApprovalApproved:
				return StatusCompleted
			case ApprovalPending:
				return StatusPendingApproval
			case ApprovalRejected:
				// Returned to the arbitrator for revision; the rejected
				// decision stays attached for audit.
				return StatusInProgress
			}
		}
		return StatusPendingApproval
	}
	if c.ArbitratorID != "" {
		return StatusInProgress
	}
	return StatusNew
}

// validStatus reports whether s names a known lifecycle state.
func validStatus(s Status) bool {
	switch s {
	case StatusNew, StatusInProgress, StatusPendingApproval, StatusCompleted:
		return true
	}
	return false
}
