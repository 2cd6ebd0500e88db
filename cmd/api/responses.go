package main

import (
	"time"

	"claimflow/claim"
	"claimflow/order"
)

type errorResponse struct {
	Error string `json:"error"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type participantPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type orderRefPayload struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Amount   int64      `json:"amount"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type createClaimRequest struct {
	Kind     string             `json:"kind"`
	Priority string             `json:"priority"`
	Order    orderRefPayload    `json:"order"`
	Client   participantPayload `json:"client"`
	Expert   participantPayload `json:"expert"`
}

type decisionRequest struct {
	Type             string `json:"type"`
	RefundAmount     *int64 `json:"refundAmount"`
	Reasoning        string `json:"reasoning"`
	RequiresApproval bool   `json:"requiresApproval"`
}

type submitApprovalRequest struct {
	Message string `json:"message"`
}

type resolveApprovalRequest struct {
	Verdict string `json:"verdict"`
	Comment string `json:"comment"`
}

type messageRequest struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

type decisionResponse struct {
	Type             string  `json:"type"`
	RefundAmount     *int64  `json:"refundAmount,omitempty"`
	Reasoning        string  `json:"reasoning"`
	RequiresApproval bool    `json:"requiresApproval"`
	ApprovalStatus   *string `json:"approvalStatus,omitempty"`
	ApprovalComment  string  `json:"approvalComment,omitempty"`
	ResolvedByID     string  `json:"resolvedById,omitempty"`
	CreatedAt        string  `json:"createdAt"`
	ResolvedAt       *string `json:"resolvedAt,omitempty"`
}

type claimResponse struct {
	ID           string             `json:"id"`
	Kind         string             `json:"kind"`
	Priority     string             `json:"priority"`
	Status       string             `json:"status"`
	Order        orderRefPayload    `json:"order"`
	Client       participantPayload `json:"client"`
	Expert       participantPayload `json:"expert"`
	ArbitratorID string             `json:"arbitratorId,omitempty"`
	TakenAt      *string            `json:"takenAt,omitempty"`
	Decision     *decisionResponse  `json:"decision,omitempty"`
	CompletedAt  *string            `json:"completedAt,omitempty"`
	CreatedAt    string             `json:"createdAt"`
	UpdatedAt    string             `json:"updatedAt"`
}

type claimListResponse struct {
	Items []claimResponse `json:"items"`
	Total int             `json:"total"`
}

type messageResponse struct {
	ID        string `json:"id"`
	ClaimID   string `json:"claimId"`
	AuthorID  string `json:"authorId"`
	Recipient string `json:"recipient,omitempty"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

type orderResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Amount    int64      `json:"amount"`
	Status    string     `json:"status"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt string     `json:"createdAt"`
}

func toClaimResponse(c claim.Claim) claimResponse {
	resp := claimResponse{
		ID:       c.ID,
		Kind:     string(c.Kind),
		Priority: string(c.Priority),
		Status:   string(c.Status()),
		Order: orderRefPayload{
			ID:       c.Order.ID,
			Title:    c.Order.Title,
			Amount:   c.Order.Amount,
			Deadline: c.Order.Deadline,
		},
		Client:       participantPayload{ID: c.Client.ID, Name: c.Client.Name, Email: c.Client.Email},
		Expert:       participantPayload{ID: c.Expert.ID, Name: c.Expert.Name, Email: c.Expert.Email},
		ArbitratorID: c.ArbitratorID,
		TakenAt:      formatTimePtr(c.TakenAt),
		CompletedAt:  formatTimePtr(c.CompletedAt),
		CreatedAt:    c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    c.UpdatedAt.Format(time.RFC3339),
	}
	if c.Decision != nil {
		d := decisionResponse{
			Type:             string(c.Decision.Type),
			RefundAmount:     c.Decision.RefundAmount,
			Reasoning:        c.Decision.Reasoning,
			RequiresApproval: c.Decision.RequiresApproval,
			ApprovalComment:  c.Decision.ApprovalComment,
			ResolvedByID:     c.Decision.ResolvedByID,
			CreatedAt:        c.Decision.CreatedAt.Format(time.RFC3339),
			ResolvedAt:       formatTimePtr(c.Decision.ResolvedAt),
		}
		if c.Decision.ApprovalStatus != nil {
			status := string(*c.Decision.ApprovalStatus)
			d.ApprovalStatus = &status
		}
		resp.Decision = &d
	}
	return resp
}

func toMessageResponse(m claim.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ClaimID:   m.ClaimID,
		AuthorID:  m.AuthorID,
		Recipient: m.Recipient,
		Body:      m.Body,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func toOrderResponse(s order.Summary) orderResponse {
	return orderResponse{
		ID:        s.ID,
		Title:     s.Title,
		Amount:    s.Amount,
		Status:    s.Status,
		Deadline:  s.Deadline,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(time.RFC3339)
	return &formatted
}
