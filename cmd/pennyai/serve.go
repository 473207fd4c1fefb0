package main

import (
	"github.com/spf13/cobra"

	"PennyAI/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only query API",
	RunE: func(cmd *cobra.Command, args []string) error {
		printBanner()
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		return api.NewServer(st, log).Run(cmd.Context(), cfg.Server.Addr)
	},
}
