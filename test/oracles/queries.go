package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant queries. Each must return zero rows on a healthy
// database; any row is a counterexample.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_completed_without_decision",
			SQL:  `SELECT id FROM claims WHERE completed_at IS NOT NULL AND decision_type IS NULL`,
		},
		{
			Name: "O2_pending_without_requires_approval",
			SQL: `SELECT id FROM claims
                  WHERE approval_status = 'pending' AND NOT COALESCE(requires_approval, FALSE)`,
		},
		{
			Name: "O3_refund_exceeds_order",
			SQL:  `SELECT id FROM claims WHERE refund_amount IS NOT NULL AND refund_amount > order_amount`,
		},
		{
			Name: "O4_taken_without_arbitrator",
			SQL:  `SELECT id FROM claims WHERE taken_at IS NOT NULL AND arbitrator_id IS NULL`,
		},
		{
			Name: "O5_event_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT claim_id, seq,
                             LAG(seq) OVER (PARTITION BY claim_id ORDER BY seq) AS prev
                      FROM claim_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <> prev + 1`,
		},
		{
			Name: "O6_completed_status_mismatch",
			SQL: `SELECT id FROM claims
                  WHERE completed_at IS NOT NULL
                    AND claim_status(arbitrator_id, decision_type, requires_approval, approval_status) <> 'completed'`,
		},
		{
			Name: "O7_rejected_yet_completed",
			SQL:  `SELECT id FROM claims WHERE approval_status = 'rejected' AND completed_at IS NOT NULL`,
		},
		{
			Name: "O8_stale_outbox",
			SQL: `SELECT id FROM outbox
                  WHERE processed_at IS NULL AND NOW() - created_at > interval '5 minutes'`,
		},
		{
			Name: "O9_verdict_without_resolver",
			SQL: `SELECT id FROM claims
                  WHERE approval_status IN ('approved', 'rejected') AND approval_resolved_by IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
