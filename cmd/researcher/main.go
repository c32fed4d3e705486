package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:          "researcher",
		Short:        "Research agents grounded in private knowledge",
		SilenceUsage: true,
	}

	root.AddCommand(serveCMD(), migrateCMD(), tokenCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
