package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"claimflow/claim"
	"claimflow/test/actors"
	"claimflow/test/chaos"
	"claimflow/test/infra"
	"claimflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func seedRNG(seed int64) { rand.Seed(seed) }

// TestClaimWorkflowConcurrency drives the full claim workflow with competing
// takers, deciders, a director, a message writer, and an outbox relay while a
// chaos routine kills random backends. Oracles assert the state-machine
// invariants every two seconds.
func TestClaimWorkflowConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	seedRNG(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	arbitrators, directorID := mustSeedUsers(t, ctx, pool, *flConcurrency)

	svc := claim.NewService(claim.NewPGStore(pool))

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// filers keep the new queue stocked; takers and deciders battle over it
	g.Go(func() error { return actors.Filer(ctx2, svc, stop) })
	for i := 0; i < *flConcurrency; i++ {
		arbitratorID := arbitrators[i%len(arbitrators)]
		g.Go(func() error { return actors.Taker(ctx2, svc, arbitratorID, stop) })
		g.Go(func() error { return actors.Decider(ctx2, svc, arbitratorID, stop) })
	}
	g.Go(func() error { return actors.Approver(ctx2, svc, directorID, stop) })
	g.Go(func() error { return actors.MessageWriter(ctx2, svc, directorID, stop) })
	g.Go(func() error { return actors.OutboxWorker(ctx2, pool, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func mustSeedUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, arbitratorCount int) ([]string, string) {
	t.Helper()
	if arbitratorCount < 1 {
		arbitratorCount = 1
	}

	arbitrators := make([]string, 0, arbitratorCount)
	for i := 0; i < arbitratorCount; i++ {
		var id string
		if err := pool.QueryRow(ctx,
			`INSERT INTO users (email, full_name, password_hash, role) VALUES ($1, $2, 'x', 'arbitrator') RETURNING id::text`,
			fmt.Sprintf("arb%d-%d@example.com", i, rand.Int63()), fmt.Sprintf("Stress Arbitrator %d", i),
		).Scan(&id); err != nil {
			t.Fatalf("seed arbitrator %d: %v", i, err)
		}
		arbitrators = append(arbitrators, id)
	}

	var directorID string
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, password_hash, role) VALUES ($1, 'Stress Director', 'x', 'director') RETURNING id::text`,
		fmt.Sprintf("dir-%d@example.com", rand.Int63()),
	).Scan(&directorID); err != nil {
		t.Fatalf("seed director: %v", err)
	}

	return arbitrators, directorID
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"claims", `SELECT id, arbitrator_id, decision_type, requires_approval, approval_status, completed_at FROM claims ORDER BY updated_at DESC LIMIT 50`},
		{"claim_events", `SELECT id, claim_id, seq, type, created_at FROM claim_events ORDER BY id DESC LIMIT 50`},
		{"outbox", `SELECT id, topic, processed_at, created_at FROM outbox ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
