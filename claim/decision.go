package claim

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinReasoningLen is the shortest reasoning text accepted on a decision.
const MinReasoningLen = 10

func validDecisionType(t DecisionType) bool {
	switch t {
	case DecisionFullRefund, DecisionPartialRefund, DecisionNoRefund, DecisionRevision, DecisionOther:
		return true
	}
	return false
}

// ValidateDecision checks a decision payload against the order snapshot it
// rules on. All failures wrap ErrInvalidDecision so callers can classify
// them with errors.Is.
func ValidateDecision(input DecisionInput, order OrderRef) error {
	if !validDecisionType(input.Type) {
		return fmt.Errorf("%w: unknown decision type %q", ErrInvalidDecision, input.Type)
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Reasoning)) < MinReasoningLen {
		return fmt.Errorf("%w: reasoning must be at least %d characters", ErrInvalidDecision, MinReasoningLen)
	}
	if input.Type == DecisionPartialRefund {
		if input.RefundAmount == nil {
			return fmt.Errorf("%w: partial refund requires an amount", ErrInvalidDecision)
		}
		if *input.RefundAmount <= 0 || *input.RefundAmount > order.Amount {
			return fmt.Errorf("%w: refund amount must be within (0, %d]", ErrInvalidDecision, order.Amount)
		}
	}
	return nil
}

// normalizeDecision builds the persisted Decision from validated input. The
// refund amount is carried only for partial refunds; for every other type it
// is dropped rather than rejected.
func normalizeDecision(input DecisionInput) Decision {
	d := Decision{
		Type:             input.Type,
		Reasoning:        strings.TrimSpace(input.Reasoning),
		RequiresApproval: input.RequiresApproval,
	}
	if input.Type == DecisionPartialRefund && input.RefundAmount != nil {
		amount := *input.RefundAmount
		d.RefundAmount = &amount
	}
	if input.RequiresApproval {
		pending := ApprovalPending
		d.ApprovalStatus = &pending
	}
	return d
}
