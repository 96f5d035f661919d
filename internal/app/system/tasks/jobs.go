// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"

	"github.com/dalemusser/teamhub/internal/app/services/membership"
	"go.uber.org/zap"
)

// OwnerChecker audits the one-owner-per-workspace rule.
// *membership.Service satisfies it.
type OwnerChecker interface {
	CheckOwnerInvariant(ctx context.Context) ([]membership.Violation, error)
}

// OwnerIntegrityJob creates a job that reports workspaces whose owner does
// not hold exactly one OWNER membership. It only reports; repairs are manual.
func OwnerIntegrityJob(checker OwnerChecker, logger *zap.Logger, schedule string) Job {
	return Job{
		Name:     "owner-integrity-check",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			violations, err := checker.CheckOwnerInvariant(ctx)
			if err != nil {
				return err
			}
			for _, v := range violations {
				logger.Warn("workspace owner invariant violated",
					zap.String("workspace_id", v.WorkspaceID.Hex()),
					zap.String("owner_id", v.OwnerID.Hex()),
					zap.String("reason", v.Reason))
			}
			if len(violations) == 0 {
				logger.Debug("workspace owner invariant holds")
			}
			return nil
		},
	}
}
