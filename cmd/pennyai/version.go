package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/banner"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func printBanner() {
	b := banner.New().SetStyle(banner.StyleDouble).SetWidth(60)
	b.PrintTopLine()
	b.PrintCenteredText("PennyAI")
	b.PrintCenteredText("version " + version)
	b.PrintBottomLine()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// No config is needed to print the version.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("PennyAI version %s\n", version)
	},
}
