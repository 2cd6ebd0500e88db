package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"claimflow/claim"
)

// transient reports whether an actor error is expected churn: workflow
// guards firing under contention, or connections killed by chaos.
func transient(err error) bool {
	return errors.Is(err, claim.ErrConflict) ||
		errors.Is(err, claim.ErrNotFound) ||
		errors.Is(err, claim.ErrUnauthorized) ||
		errors.Is(err, claim.ErrAlreadyResolved) ||
		errors.Is(err, claim.ErrInvalidDecision)
}

func done(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// Filer keeps filing fresh claims so takers never run dry.
func Filer(ctx context.Context, svc *claim.Service, stop <-chan struct{}) error {
	kinds := []claim.Kind{claim.KindRefund, claim.KindDispute, claim.KindConflict}
	for !done(ctx, stop) {
		n := rand.Int63()
		_, err := svc.Create(ctx, claim.CreateParams{
			Kind:     kinds[rand.Intn(len(kinds))],
			Priority: claim.PriorityMedium,
			Order: claim.OrderRef{
				ID:     fmt.Sprintf("stress-order-%d", n),
				Title:  fmt.Sprintf("Essay %d", n),
				Amount: int64(1000 + rand.Intn(20000)),
			},
			Client: claim.Participant{ID: fmt.Sprintf("client-%d", n), Name: "Stress Client", Email: "client@example.com"},
			Expert: claim.Participant{ID: fmt.Sprintf("expert-%d", n), Name: "Stress Expert", Email: "expert@example.com"},
		})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		time.Sleep(time.Duration(40+rand.Intn(80)) * time.Millisecond)
	}
	return nil
}

// Taker races other takers over the new queue. Losing the race surfaces as
// ErrConflict, which is the expected outcome under contention.
func Taker(ctx context.Context, svc *claim.Service, arbitratorID string, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		items, _, err := svc.List(ctx, claim.Filter{Status: claim.StatusNew, PageSize: 10})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if len(items) > 0 {
			target := items[rand.Intn(len(items))]
			if _, err := svc.Take(ctx, target.ID, arbitratorID); err != nil && !transient(err) && ctx.Err() == nil {
				// chaos can kill the connection mid-take; keep going
				time.Sleep(50 * time.Millisecond)
			}
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
	return nil
}

// Decider records rulings on the actor's own in-progress claims, flagging a
// share of them for director approval.
func Decider(ctx context.Context, svc *claim.Service, arbitratorID string, stop <-chan struct{}) error {
	types := []claim.DecisionType{claim.DecisionFullRefund, claim.DecisionNoRefund, claim.DecisionRevision}
	for !done(ctx, stop) {
		items, _, err := svc.List(ctx, claim.Filter{Status: claim.StatusInProgress, ArbitratorID: arbitratorID, PageSize: 10})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		for _, c := range items {
			input := claim.DecisionInput{
				Type:             types[rand.Intn(len(types))],
				Reasoning:        "stress ruling based on delivered work",
				RequiresApproval: rand.Intn(3) == 0,
			}
			if rand.Intn(4) == 0 {
				amount := c.Order.Amount / 2
				input.Type = claim.DecisionPartialRefund
				input.RefundAmount = &amount
			}
			if _, err := svc.RecordDecision(ctx, c.ID, input, arbitratorID); err != nil && !transient(err) && ctx.Err() == nil {
				time.Sleep(50 * time.Millisecond)
			}
		}
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
	return nil
}

// Approver plays the director: it resolves pending approvals with a mix of
// verdicts. Double resolutions surface as ErrAlreadyResolved and are ignored.
func Approver(ctx context.Context, svc *claim.Service, directorID string, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		items, _, err := svc.List(ctx, claim.Filter{Status: claim.StatusPendingApproval, PageSize: 10})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		for _, c := range items {
			verdict := claim.VerdictApproved
			comment := ""
			if rand.Intn(3) == 0 {
				verdict = claim.VerdictRejected
				comment = "reconsider the refund amount"
			}
			if _, err := svc.ResolveApproval(ctx, c.ID, verdict, comment, directorID, claim.RoleDirector); err != nil && !transient(err) && ctx.Err() == nil {
				time.Sleep(50 * time.Millisecond)
			}
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
	return nil
}

// MessageWriter appends conversation messages to random claims, which must
// never affect claim state.
func MessageWriter(ctx context.Context, svc *claim.Service, authorID string, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		items, _, err := svc.List(ctx, claim.Filter{PageSize: 10})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if len(items) > 0 {
			target := items[rand.Intn(len(items))]
			_, err := svc.RequestAdditionalInfo(ctx, target.ID, "please share the original brief", "client", authorID)
			if err != nil && !transient(err) && ctx.Err() == nil {
				time.Sleep(50 * time.Millisecond)
			}
		}
		time.Sleep(time.Duration(80+rand.Intn(120)) * time.Millisecond)
	}
	return nil
}

// OutboxWorker consumes unprocessed outbox messages with SKIP LOCKED,
// simulating the relay that publishes claim events downstream.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		tx, err := pool.Begin(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE processed_at IS NULL ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]int64, 0, 10)
		for rows.Next() {
			var id int64
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			_, _ = tx.Exec(ctx, `UPDATE outbox SET processed_at = NOW() WHERE id = $1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}
