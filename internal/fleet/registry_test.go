package fleet_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mintmarkhq/mintmark/internal/fleet"
	"github.com/mintmarkhq/mintmark/internal/logger"
)

func newRegistry(t *testing.T) (*fleet.Registry, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return fleet.NewRegistry(client, time.Minute, logger.NewNoOp()), mr
}

func TestRegistry_ReportAndList(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	err := reg.Report(ctx, fleet.Status{
		WorkerID:  "worker-a",
		JobType:   "pricing",
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	workers, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(workers) != 1 {
		t.Fatalf("expected 1 worker, got %d", len(workers))
	}
	if workers[0].WorkerID != "worker-a" {
		t.Errorf("expected worker-a, got %s", workers[0].WorkerID)
	}
	if workers[0].ReportedAt.IsZero() {
		t.Error("ReportedAt should be stamped on report")
	}
}

func TestRegistry_ExpiredWorkerDisappears(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := context.Background()

	if err := reg.Report(ctx, fleet.Status{WorkerID: "worker-a"}); err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	workers, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(workers) != 0 {
		t.Errorf("expected expired worker to vanish, got %d", len(workers))
	}
}

func TestRegistry_Deregister(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	if err := reg.Report(ctx, fleet.Status{WorkerID: "worker-a"}); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if err := reg.Deregister(ctx, "worker-a"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}

	workers, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(workers) != 0 {
		t.Errorf("expected no workers after deregister, got %d", len(workers))
	}
}
