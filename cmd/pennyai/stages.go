package main

import (
	"github.com/spf13/cobra"

	"PennyAI/internal/notifier"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order: fetch, preprocess, resolve, merge, upload, backfill",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg, allStages)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.RunAll(cmd.Context())
		n, _ := newNotifier(cfg)
		if sendErr := n.SendWithRetry(cmd.Context(), notifier.FormatRunReport(res), 3); sendErr != nil {
			log.Warn().Err(sendErr).Msg("run report not delivered")
		}
		return err
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch recent posts and stage them",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg, needs{posts: true})
		if err != nil {
			return err
		}
		defer a.Close()
		_, err = a.pipeline.Fetch(cmd.Context())
		return err
	},
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Extract cashtags from staged posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg, needs{})
		if err != nil {
			return err
		}
		defer a.Close()
		_, err = a.pipeline.Preprocess(cmd.Context())
		return err
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve staged tickers to exchange listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg, needs{resolver: true})
		if err != nil {
			return err
		}
		defer a.Close()
		tickers, missed, err := a.pipeline.Resolve(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Int("tickers", tickers).Int("not_found", missed).Msg("resolve finished")
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Join staged mentions with their resolved listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg, needs{})
		if err != nil {
			return err
		}
		defer a.Close()
		_, err = a.pipeline.Merge(cmd.Context())
		return err
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Append the staged dataset to the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg, needs{store: true})
		if err != nil {
			return err
		}
		defer a.Close()
		_, _, err = a.pipeline.Upload(cmd.Context())
		return err
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Summarize stored rows that have no annotation yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), cfg, needs{backfill: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.store.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		res, err := a.pipeline.Backfill(cmd.Context())
		log.Info().
			Int("pending", res.Pending).
			Int("succeeded", res.Succeeded).
			Int("failed", res.Failed).
			Int("published", res.Published).
			Msg("backfill finished")
		return err
	},
}
