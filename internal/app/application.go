package app

import (
	"context"

	"go.uber.org/fx"

	"gridpulse/internal/config"
	"gridpulse/internal/runner"
	"gridpulse/internal/support/logger"
)

// cycleResult carries the cycle outcome out of the Fx container so main can
// map it to the process exit code.
type cycleResult struct {
	err error
}

// RunApplication sets up the Fx container and runs one report cycle. It
// returns the cycle's error, if any.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) error {
	result := &cycleResult{}

	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		fx.Provide(func() *cycleResult { return result }),
		Module,
		fx.Invoke(fx.Annotate(startCycleExecution, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // r *runner.Runner
			"",              // result *cycleResult
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()

	if err := app.Err(); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
	return result.err
}

// startCycleExecution launches the cycle in a goroutine once the container
// has started, then requests shutdown when it completes.
func startCycleExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	r *runner.Runner,
	result *cycleResult,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						logger.Errorf("Panic recovered in cycle execution: %v", rec)
					}
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}()
				if err := r.RunCycle(appCtx); err != nil {
					logger.Errorf("Cycle failed: %v", err)
					result.err = err
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}
