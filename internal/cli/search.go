package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ojas-care/ojas/internal/config"
	"github.com/ojas-care/ojas/internal/database"
)

// SearchCmd returns the search command: retrieval only, with scores
// and provenance, for inspecting what the engine would hand to
// generation.
func SearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Run retrieval for a query and print the ranked context",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	result, err := svc.Search(ctx, query)
	if err != nil {
		return err
	}

	fmt.Printf("sub-queries (%d):\n", len(result.SubQueries))
	for _, sq := range result.SubQueries {
		fmt.Printf("  %d. %s\n", sq.Ordinal+1, sq.Text)
	}
	fmt.Printf("\npooled %d candidates, %d unique, %d in context\n\n",
		result.PooledCount, result.UniqueCount, len(result.Context.Entries))

	for i, c := range result.Context.Entries {
		types := make([]string, len(c.SearchTypes))
		for j, st := range c.SearchTypes {
			types[j] = string(st)
		}
		score := c.Similarity
		label := "sim"
		if c.Reranked {
			score = c.RerankScore
			label = "rerank"
		}
		fmt.Printf("%2d. [%s %.3f] chunk %d  %s\n", i+1, label, score, c.ID, c.PageTitle)
		fmt.Printf("    paths: %s\n", strings.Join(types, ", "))
		snippet := c.Content
		if len(snippet) > 160 {
			snippet = snippet[:160] + "..."
		}
		fmt.Printf("    %s\n", snippet)
	}

	if result.Degraded() {
		fmt.Println("\nnote: retrieval was partially degraded")
	}
	return nil
}
