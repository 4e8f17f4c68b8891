package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"catalog_ingest_v1/internal/ingest"
	"catalog_ingest_v1/internal/task"
)

func newScheduleCommand(a *app) *cobra.Command {
	var runNow bool

	ccmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run ingest passes on a cron schedule",
		Long: `
Keeps running and triggers an ingest pass on schedule.cron (seconds precision).
Serves /status, /healthz and /metrics when status.addr is set.
`,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()

			db, err := a.openDB(false)
			if err != nil {
				return err
			}
			reg := newRegistry()
			pipeline, err := a.newPipeline(ctx, db, reg, ingest.OptionsFromConfig(a.cfg))
			if err != nil {
				return err
			}

			tm, err := task.NewTaskManager(pipeline, &task.TaskManagerConfig{
				IngestEnabled: true,
				IngestCron:    a.cfg.Schedule.Cron,
				IngestTimeout: a.cfg.Schedule.Timeout,
			}, a.logger)
			if err != nil {
				return err
			}

			srv, err := a.startStatusServer(db, pipeline, tm, reg)
			if err != nil {
				return err
			}

			tm.Start()
			if runNow {
				if err := tm.TriggerIngest(); err != nil {
					a.logger.Warn("initial run not started", zap.Error(err))
				}
			}

			// 等待退出信号
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			a.logger.Info("shutting down")
			a.shutdownServer(srv)
			tm.Stop()
			return nil
		},
	}

	ccmd.Flags().BoolVar(&runNow, "run-now", false, "trigger one run immediately after start")
	return ccmd
}
