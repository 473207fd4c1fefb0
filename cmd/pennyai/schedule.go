package main

import (
	"os"

	"github.com/spf13/cobra"

	"PennyAI/internal/api"
	"PennyAI/internal/scheduler"
)

var (
	runOnStart bool
	withServer bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on the configured cron and answer Telegram commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner()
		ctx := cmd.Context()
		a, err := buildApp(ctx, cfg, allStages)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.store.EnsureSchema(ctx); err != nil {
			return err
		}

		n, tn := newNotifier(cfg)
		sched := scheduler.NewScheduler(ctx, a.pipeline, a.store, n, log)
		if err := sched.Register(cfg.Schedule.PipelineCron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		if tn != nil {
			go tn.StartPolling(ctx, sched.HandleCommand)
			log.Info().Msg("telegram polling started")
		}
		if runOnStart || os.Getenv("RUN_ON_START") == "true" {
			log.Info().Msg("running pipeline on start")
			go sched.RunNow()
		}

		log.Info().Str("cron", cfg.Schedule.PipelineCron).Msg("scheduler running, press Ctrl+C to stop")

		serveErr := make(chan error, 1)
		if withServer {
			go func() {
				serveErr <- api.NewServer(a.store, log).Run(ctx, cfg.Server.Addr)
			}()
		}
		select {
		case <-ctx.Done():
			if withServer {
				err = <-serveErr
			}
		case err = <-serveErr:
		}
		log.Info().Msg("shutdown signal received, stopping")
		return err
	},
}

func init() {
	scheduleCmd.Flags().BoolVar(&runOnStart, "run-now", false, "Run the pipeline once immediately")
	scheduleCmd.Flags().BoolVar(&withServer, "serve", false, "Also serve the query API")
}
