// Package console is the client-side layer behind the arbitration screens.
// It caches one claim queue page per status bucket and applies the
// optimistic mutation discipline: a take or send-for-approval removes the
// claim from its current bucket before the backend confirms, invalidates
// the bucket the claim moves into, and restores the prior page exactly when
// the backend refuses.
package console

import (
	"context"
	"fmt"

	"claimflow/claim"
	"claimflow/optimistic"
)

// Workflow is the slice of the claim service the console invokes. The REST
// client and the in-process service both satisfy it.
type Workflow interface {
	List(ctx context.Context, filter claim.Filter) ([]claim.Claim, int, error)
	Take(ctx context.Context, id, arbitratorID string) (claim.Claim, error)
	SubmitForApproval(ctx context.Context, id, message, arbitratorID string) (claim.Claim, error)
}

// Page is one cached queue page: the visible items plus the filtered total
// the pagination footer renders.
type Page struct {
	Items []claim.Claim
	Total int
}

func clonePage(p Page) Page {
	items := make([]claim.Claim, len(p.Items))
	for i, c := range p.Items {
		items[i] = c.Clone()
	}
	return Page{Items: items, Total: p.Total}
}

// Session drives claim queues for one signed-in console user.
type Session struct {
	workflow Workflow
	cache    *optimistic.Coordinator[Page]
	userID   string
	pageSize int
}

func NewSession(workflow Workflow, userID string) *Session {
	return &Session{
		workflow: workflow,
		cache:    optimistic.NewCoordinator(clonePage),
		userID:   userID,
		pageSize: 20,
	}
}

func bucketKey(status claim.Status) string {
	return "queue:" + string(status)
}

// Queue returns the cached page for the status bucket, fetching it from the
// backend on a cache miss.
func (s *Session) Queue(ctx context.Context, status claim.Status) (Page, error) {
	if page, ok := s.cache.Get(bucketKey(status)); ok {
		return page, nil
	}
	return s.Refresh(ctx, status)
}

// Refresh fetches the bucket from the backend and replaces the cached page.
func (s *Session) Refresh(ctx context.Context, status claim.Status) (Page, error) {
	items, total, err := s.workflow.List(ctx, claim.Filter{
		Status:   status,
		Page:     1,
		PageSize: s.pageSize,
	})
	if err != nil {
		return Page{}, fmt.Errorf("console: refresh %s queue: %w", status, err)
	}
	page := Page{Items: items, Total: total}
	s.cache.Put(bucketKey(status), page)
	return clonePage(page), nil
}

// TakeClaim takes the claim for the session user. The claim leaves the "new"
// queue immediately; if the backend refuses (already taken by someone else,
// gone, etc.) the queue is restored to exactly its prior state and the error
// is surfaced to the caller.
func (s *Session) TakeClaim(ctx context.Context, claimID string) error {
	err := s.cache.Mutate(ctx, bucketKey(claim.StatusNew), claimID,
		removeClaim(claimID),
		func(ctx context.Context) error {
			_, err := s.workflow.Take(ctx, claimID, s.userID)
			return err
		},
	)
	if err != nil {
		return err
	}
	// The in-progress queue must gain what the new queue lost.
	s.cache.Invalidate(bucketKey(claim.StatusInProgress))
	return nil
}

// SendForApproval routes the claim's decision to the director. The claim
// leaves the in-progress queue optimistically and the pending-approval
// queue is invalidated on success.
func (s *Session) SendForApproval(ctx context.Context, claimID, message string) error {
	err := s.cache.Mutate(ctx, bucketKey(claim.StatusInProgress), claimID,
		removeClaim(claimID),
		func(ctx context.Context) error {
			_, err := s.workflow.SubmitForApproval(ctx, claimID, message, s.userID)
			return err
		},
	)
	if err != nil {
		return err
	}
	s.cache.Invalidate(bucketKey(claim.StatusPendingApproval))
	return nil
}

// removeClaim projects a queue page without the given claim, keeping the
// footer total in step.
func removeClaim(claimID string) func(Page) Page {
	return func(page Page) Page {
		items := page.Items[:0]
		removed := false
		for _, c := range page.Items {
			if c.ID == claimID {
				removed = true
				continue
			}
			items = append(items, c)
		}
		page.Items = items
		if removed && page.Total > 0 {
			page.Total--
		}
		return page
	}
}
