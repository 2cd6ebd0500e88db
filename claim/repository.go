package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store backed by PostgreSQL. The claims table holds the
// status-driving facts only; every guard is evaluated in Go from a row
// locked FOR UPDATE, routed through the same DeriveStatus as every other
// binding. State-affecting writes append a claim_events row and enqueue an
// outbox message inside the same transaction.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const claimColumns = `
	id::text, kind::text, priority::text,
	order_id, order_title, order_amount, order_deadline,
	client_id, client_name, client_email,
	expert_id, expert_name, expert_email,
	arbitrator_id::text, taken_at,
	decision_type::text, refund_amount, reasoning, requires_approval,
	approval_status::text, approval_comment, approval_resolved_by::text,
	decision_created_at, approval_resolved_at,
	completed_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, c Claim) (Claim, error) {
	const insertSQL = `
		INSERT INTO claims (
			id, kind, priority,
			order_id, order_title, order_amount, order_deadline,
			client_id, client_name, client_email,
			expert_id, expert_name, expert_email,
			created_at, updated_at
		)
		VALUES ($1, $2::claim_kind, $3::claim_priority, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING ` + claimColumns

	rec, err := scanClaim(s.pool.QueryRow(ctx, insertSQL,
		c.ID, c.Kind, c.Priority,
		c.Order.ID, c.Order.Title, c.Order.Amount, c.Order.Deadline,
		c.Client.ID, c.Client.Name, c.Client.Email,
		c.Expert.ID, c.Expert.Name, c.Expert.Email,
		c.CreatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Claim{}, ErrConflict
		}
		return Claim{}, fmt.Errorf("claim: insert: %w", err)
	}
	return rec, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`

	rec, err := scanClaim(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, fmt.Errorf("claim: get: %w", err)
	}
	return rec, nil
}

func (s *PGStore) Take(ctx context.Context, id, arbitratorID string, takenAt time.Time) (Claim, error) {
	return s.mutate(ctx, id, func(current Claim) error {
		if current.ArbitratorID != "" {
			return ErrConflict
		}
		return nil
	}, func(ctx context.Context, tx pgx.Tx) (Claim, error) {
		const updateSQL = `
			UPDATE claims
			SET arbitrator_id = $2, taken_at = $3, updated_at = $3
			WHERE id = $1
			RETURNING ` + claimColumns

		rec, err := scanClaim(tx.QueryRow(ctx, updateSQL, id, arbitratorID, takenAt))
		if err != nil {
			return Claim{}, fmt.Errorf("claim: take: %w", err)
		}
		return rec, nil
	}, event{
		eventType: "CLAIM_TAKEN",
		topic:     "claim.taken",
		actorID:   arbitratorID,
		payload:   map[string]any{"arbitrator_id": arbitratorID},
	})
}

func (s *PGStore) SaveDecision(ctx context.Context, id, arbitratorID string, d Decision) (Claim, error) {
	return s.mutate(ctx, id, func(current Claim) error {
		if current.ArbitratorID == "" || DeriveStatus(current) != StatusInProgress {
			return ErrConflict
		}
		if current.ArbitratorID != arbitratorID {
			return ErrUnauthorized
		}
		return nil
	}, func(ctx context.Context, tx pgx.Tx) (Claim, error) {
		var completedAt *time.Time
		if !d.RequiresApproval {
			completed := d.CreatedAt
			completedAt = &completed
		}
		const updateSQL = `
			UPDATE claims
			SET decision_type = $2::claim_decision_type,
			    refund_amount = $3,
			    reasoning = $4,
			    requires_approval = $5,
			    approval_status = $6::claim_approval_status,
			    approval_comment = NULL,
			    approval_resolved_by = NULL,
			    approval_resolved_at = NULL,
			    decision_created_at = $7,
			    completed_at = $8,
			    updated_at = $7
			WHERE id = $1
			RETURNING ` + claimColumns

		rec, err := scanClaim(tx.QueryRow(ctx, updateSQL,
			id, d.Type, d.RefundAmount, d.Reasoning, d.RequiresApproval,
			d.ApprovalStatus, d.CreatedAt, completedAt,
		))
		if err != nil {
			return Claim{}, fmt.Errorf("claim: save decision: %w", err)
		}
		return rec, nil
	}, event{
		eventType: "DECISION_RECORDED",
		topic:     "claim.decided",
		actorID:   arbitratorID,
		payload: map[string]any{
			"decision_type":     d.Type,
			"requires_approval": d.RequiresApproval,
		},
	})
}

func (s *PGStore) MarkPendingApproval(ctx context.Context, id, arbitratorID string) (Claim, error) {
	var alreadyPending bool
	rec, err := s.mutate(ctx, id, func(current Claim) error {
		if current.ArbitratorID != arbitratorID {
			if current.ArbitratorID == "" {
				return ErrConflict
			}
			return ErrUnauthorized
		}
		switch DeriveStatus(current) {
		case StatusPendingApproval:
			alreadyPending = true
			return nil
		case StatusInProgress:
		default:
			return ErrConflict
		}
		if current.Decision == nil {
			return ErrConflict
		}
		return nil
	}, func(ctx context.Context, tx pgx.Tx) (Claim, error) {
		if alreadyPending {
			return s.getForUpdate(ctx, tx, id)
		}
		const updateSQL = `
			UPDATE claims
			SET requires_approval = TRUE,
			    approval_status = 'pending'::claim_approval_status,
			    approval_comment = NULL,
			    approval_resolved_by = NULL,
			    approval_resolved_at = NULL,
			    completed_at = NULL,
			    updated_at = NOW()
			WHERE id = $1
			RETURNING ` + claimColumns

		rec, err := scanClaim(tx.QueryRow(ctx, updateSQL, id))
		if err != nil {
			return Claim{}, fmt.Errorf("claim: mark pending approval: %w", err)
		}
		return rec, nil
	}, event{
		eventType: "APPROVAL_REQUESTED",
		topic:     "claim.approval_requested",
		actorID:   arbitratorID,
		skip:      func() bool { return alreadyPending },
	})
	if err != nil {
		return Claim{}, err
	}
	return rec, nil
}

func (s *PGStore) ResolveApproval(ctx context.Context, id string, verdict Verdict, comment, directorID string, resolvedAt time.Time) (Claim, error) {
	status := ApprovalApproved
	if verdict == VerdictRejected {
		status = ApprovalRejected
	}

	return s.mutate(ctx, id, func(current Claim) error {
		d := current.Decision
		if d == nil || d.ApprovalStatus == nil {
			return ErrConflict
		}
		if *d.ApprovalStatus != ApprovalPending {
			return ErrAlreadyResolved
		}
		return nil
	}, func(ctx context.Context, tx pgx.Tx) (Claim, error) {
		var completedAt *time.Time
		if verdict == VerdictApproved {
			completed := resolvedAt
			completedAt = &completed
		}
		const updateSQL = `
			UPDATE claims
			SET approval_status = $2::claim_approval_status,
			    approval_comment = $3,
			    approval_resolved_by = $4,
			    approval_resolved_at = $5,
			    completed_at = COALESCE($6, completed_at),
			    updated_at = $5
			WHERE id = $1
			RETURNING ` + claimColumns

		rec, err := scanClaim(tx.QueryRow(ctx, updateSQL, id, status, comment, directorID, resolvedAt, completedAt))
		if err != nil {
			return Claim{}, fmt.Errorf("claim: resolve approval: %w", err)
		}
		return rec, nil
	}, event{
		eventType: "APPROVAL_RESOLVED",
		topic:     "claim.approval_resolved",
		actorID:   directorID,
		payload:   map[string]any{"verdict": verdict},
	})
}

func (s *PGStore) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	const insertSQL = `
		INSERT INTO claim_messages (id, claim_id, author_id, recipient, body, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		FROM claims c WHERE c.id = $2
		RETURNING id::text, claim_id::text, author_id, recipient, body, created_at
	`

	var out Message
	err := s.pool.QueryRow(ctx, insertSQL, msg.ID, msg.ClaimID, msg.AuthorID, msg.Recipient, msg.Body, msg.CreatedAt).
		Scan(&out.ID, &out.ClaimID, &out.AuthorID, &out.Recipient, &out.Body, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, fmt.Errorf("claim: append message: %w", err)
	}
	return out, nil
}

func (s *PGStore) List(ctx context.Context, filter Filter) ([]Claim, int, error) {
	filter = filter.normalized()

	where, args := buildWhere(filter)

	query := `SELECT ` + claimColumns + ` FROM claims` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("claim: list: %w", err)
	}
	defer rows.Close()

	items := make([]Claim, 0, filter.PageSize)
	for rows.Next() {
		rec, err := scanClaim(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("claim: scan: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("claim: iterate: %w", err)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claims`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("claim: count: %w", err)
	}

	return items, total, nil
}

// buildWhere translates the filter into SQL. Status filtering goes through
// the claim_status function defined in the migrations, which mirrors
// DeriveStatus; the two derivations are held in agreement by an integration
// test.
func buildWhere(f Filter) (string, []any) {
	clauses := make([]string, 0, 6)
	args := make([]any, 0, 6)

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != "" {
		add(`claim_status(arbitrator_id, decision_type, requires_approval, approval_status) = $%d`, string(f.Status))
	}
	if f.Kind != "" {
		add(`kind = $%d::claim_kind`, string(f.Kind))
	}
	if f.ArbitratorID != "" {
		add(`arbitrator_id = $%d`, f.ArbitratorID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add(`(id::text ILIKE $%d
			OR client_name ILIKE $%[1]d OR client_email ILIKE $%[1]d
			OR expert_name ILIKE $%[1]d OR expert_email ILIKE $%[1]d
			OR order_title ILIKE $%[1]d)`, "%"+s+"%")
	}
	if f.CreatedFrom != nil {
		add(`created_at >= $%d`, *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		add(`created_at < $%d`, endOfDay(*f.CreatedTo))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// event describes the timeline row and outbox message appended alongside a
// state-affecting write.
type event struct {
	eventType string
	topic     string
	actorID   string
	payload   map[string]any
	skip      func() bool
}

// mutate is the shared write path: lock the claim row, evaluate the guard
// against the current facts, apply the update, append the timeline event and
// outbox message, commit. A guard failure rolls back with the stored claim
// untouched.
func (s *PGStore) mutate(
	ctx context.Context,
	id string,
	guard func(current Claim) error,
	apply func(ctx context.Context, tx pgx.Tx) (Claim, error),
	ev event,
) (Claim, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Claim{}, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.getForUpdate(ctx, tx, id)
	if err != nil {
		return Claim{}, err
	}
	if err := guard(current); err != nil {
		return Claim{}, err
	}

	updated, err := apply(ctx, tx)
	if err != nil {
		return Claim{}, err
	}

	if ev.skip == nil || !ev.skip() {
		if err := appendEvent(ctx, tx, id, ev); err != nil {
			return Claim{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Claim{}, fmt.Errorf("claim: commit: %w", err)
	}
	return updated, nil
}

func (s *PGStore) getForUpdate(ctx context.Context, tx pgx.Tx, id string) (Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1 FOR UPDATE`

	rec, err := scanClaim(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Claim{}, ErrNotFound
		}
		return Claim{}, fmt.Errorf("claim: lock row: %w", err)
	}
	return rec, nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, claimID string, ev event) error {
	payload := ev.payload
	if payload == nil {
		payload = map[string]any{}
	}
	payload["claim_id"] = claimID

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("claim: marshal event payload: %w", err)
	}

	var seq int
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM claim_events WHERE claim_id = $1`, claimID).Scan(&seq); err != nil {
		return fmt.Errorf("claim: next event seq: %w", err)
	}

	var actor any
	if ev.actorID != "" {
		actor = ev.actorID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO claim_events (claim_id, seq, type, payload, actor_id)
		VALUES ($1, $2, $3, $4, $5)
	`, claimID, seq, ev.eventType, payloadBytes, actor); err != nil {
		return fmt.Errorf("claim: insert event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox (topic, payload)
		VALUES ($1, $2)
	`, ev.topic, payloadBytes); err != nil {
		return fmt.Errorf("claim: enqueue outbox: %w", err)
	}

	return nil
}

func scanClaim(row pgx.Row) (Claim, error) {
	var (
		c                  Claim
		arbitratorID       *string
		decisionType       *string
		refundAmount       *int64
		reasoning          *string
		requiresApproval   *bool
		approvalStatus     *string
		approvalComment    *string
		approvalResolvedBy *string
		decisionCreatedAt  *time.Time
		approvalResolvedAt *time.Time
	)

	err := row.Scan(
		&c.ID, &c.Kind, &c.Priority,
		&c.Order.ID, &c.Order.Title, &c.Order.Amount, &c.Order.Deadline,
		&c.Client.ID, &c.Client.Name, &c.Client.Email,
		&c.Expert.ID, &c.Expert.Name, &c.Expert.Email,
		&arbitratorID, &c.TakenAt,
		&decisionType, &refundAmount, &reasoning, &requiresApproval,
		&approvalStatus, &approvalComment, &approvalResolvedBy,
		&decisionCreatedAt, &approvalResolvedAt,
		&c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Claim{}, err
	}

	if arbitratorID != nil {
		c.ArbitratorID = *arbitratorID
	}
	if decisionType != nil {
		d := &Decision{Type: DecisionType(*decisionType)}
		d.RefundAmount = refundAmount
		if reasoning != nil {
			d.Reasoning = *reasoning
		}
		if requiresApproval != nil {
			d.RequiresApproval = *requiresApproval
		}
		if approvalStatus != nil {
			status := ApprovalStatus(*approvalStatus)
			d.ApprovalStatus = &status
		}
		if approvalComment != nil {
			d.ApprovalComment = *approvalComment
		}
		if approvalResolvedBy != nil {
			d.ResolvedByID = *approvalResolvedBy
		}
		if decisionCreatedAt != nil {
			d.CreatedAt = *decisionCreatedAt
		}
		d.ResolvedAt = approvalResolvedAt
		c.Decision = d
	}

	return c, nil
}
