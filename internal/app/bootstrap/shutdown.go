// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops the background work started in Startup and cleanly tears
// down DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	stopRuntime(ctx, deps.runtime, logger)

	if deps.TeamHubMongoClient != nil {
		logger.Info("disconnecting TeamHub MongoDB client")
		if err := deps.TeamHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}

// stopRuntime stops workers, the scheduler and limiter sweepers. Components
// Startup never reached are skipped.
func stopRuntime(ctx context.Context, rt *runtime, logger *zap.Logger) {
	if rt == nil {
		return
	}
	if rt.stateCleanup != nil {
		rt.stateCleanup.Stop()
	}
	if rt.scheduler != nil {
		if err := rt.scheduler.Stop(ctx); err != nil {
			logger.Warn("scheduler did not drain before shutdown deadline", zap.Error(err))
		}
	}
	if rt.loginLimit != nil {
		rt.loginLimit.Stop()
	}
	if rt.joinLimit != nil {
		rt.joinLimit.Stop()
	}
}
