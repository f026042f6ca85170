package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ojas-care/ojas/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ojasd",
		Short: "Caregiver companion daemon and CLI",
		Long:  "Caregiver companion daemon for running the API server and querying the dementia knowledge base",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.AskCmd())
	rootCmd.AddCommand(cli.SearchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
