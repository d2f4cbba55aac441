package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print shardsnap version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shardsnap version: %s\n", version)
		if gitCommit != "" {
			fmt.Printf("git commit: %s\n", gitCommit)
		}
		if buildDate != "" {
			fmt.Printf("build date: %s\n", buildDate)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
