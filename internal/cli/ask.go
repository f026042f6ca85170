package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ojas-care/ojas/internal/config"
	"github.com/ojas-care/ojas/internal/database"
)

// AskCmd returns the ask command: one question through the full
// pipeline from the terminal.
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the caregiver companion a question",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")

	cfg := config.MustLoad()
	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	svc, err := buildAnswerService(cfg, pool)
	if err != nil {
		return err
	}

	result, err := svc.Answer(ctx, query)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	if !result.Retrieval.Context.Empty() {
		fmt.Println("\nSources:")
		seen := make(map[string]struct{})
		for _, c := range result.Retrieval.Context.Entries {
			if _, dup := seen[c.PageTitle]; dup {
				continue
			}
			seen[c.PageTitle] = struct{}{}
			if c.SourceURL != "" {
				fmt.Printf("  - %s (%s)\n", c.PageTitle, c.SourceURL)
			} else {
				fmt.Printf("  - %s\n", c.PageTitle)
			}
		}
	}
	if result.Retrieval.Degraded() {
		fmt.Println("\nnote: retrieval was partially degraded for this answer")
	}
	return nil
}
