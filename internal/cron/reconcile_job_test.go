package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/fundi-app/fundi-backend/internal/reconciliation"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

type fakeReconciler struct {
	summary reconciliation.SweepSummary
	err     error
	runs    int
}

func (f *fakeReconciler) Run(context.Context) (reconciliation.SweepSummary, error) {
	f.runs++
	return f.summary, f.err
}

func TestReconcileJobRunsReconciler(t *testing.T) {
	reconciler := &fakeReconciler{summary: reconciliation.SweepSummary{AutoConfirmed: 2, Repaired: 1}}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Reconciler: reconciler,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "escrow-reconcile" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run job: %v", err)
	}
	if reconciler.runs != 1 {
		t.Fatalf("expected 1 run, got %d", reconciler.runs)
	}
}

func TestReconcileJobPropagatesError(t *testing.T) {
	reconciler := &fakeReconciler{err: errors.New("boom")}
	job, err := NewReconcileJob(ReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test"}),
		Reconciler: reconciler,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from job run")
	}
}

func TestNewReconcileJobRequiresDeps(t *testing.T) {
	if _, err := NewReconcileJob(ReconcileJobParams{Reconciler: &fakeReconciler{}}); err == nil {
		t.Fatalf("expected error without logger")
	}
	if _, err := NewReconcileJob(ReconcileJobParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})}); err == nil {
		t.Fatalf("expected error without reconciler")
	}
}
