package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwanachuomind/backend/internal/cli"
	"github.com/mwanachuomind/backend/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mindd",
		Short: "Mwanachuomind daemon and CLI",
		Long:  "Mwanachuomind daemon for serving the course material API and running document ingestion",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ProcessCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
