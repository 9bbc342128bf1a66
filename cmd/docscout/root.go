package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for docscout.
// Given a topic argument it behaves like "docscout scrape".
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docscout [topic]",
		Short: "Scrape and extract documentation for a library or tool",
		Long: `docscout crawls the documentation site of a library or tool and emits a
structured report: cleaned page text, code blocks, tables, the detected
version, and the most recent changelog entries.

Pages are discovered through robots.txt, sitemaps, and one hop of link
following from the seed URLs. Requests are rate limited per host, retried
with exponential backoff, and cached on disk.

Running "docscout <topic>" is the same as "docscout scrape <topic>".`,
		Version:       getVersion(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runScrapeCmd(cmd, args)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	addScrapeFlags(cmd)

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
