package cron

import (
	"context"
	"fmt"

	"github.com/fundi-app/fundi-backend/internal/reconciliation"
	"github.com/fundi-app/fundi-backend/pkg/logger"
)

type reconcileRunner interface {
	Run(ctx context.Context) (reconciliation.SweepSummary, error)
}

// ReconcileJobParams configure the escrow reconciliation job.
type ReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler reconcileRunner
}

// NewReconcileJob builds the job that auto-confirms overdue proofs and
// repairs bookings left behind their payment.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &reconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
	}, nil
}

type reconcileJob struct {
	logg       *logger.Logger
	reconciler reconcileRunner
}

func (j *reconcileJob) Name() string { return "escrow-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	summary, err := j.reconciler.Run(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"auto_confirmed": summary.AutoConfirmed,
		"repaired":       summary.Repaired,
		"failed":         summary.Failed,
	})
	if err != nil {
		j.logg.Error(logCtx, "reconcile job finished with errors", err)
		return err
	}
	j.logg.Info(logCtx, "reconcile job complete")
	return nil
}
