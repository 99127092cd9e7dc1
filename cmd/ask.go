package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/briefing/internal/app"
	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/config"
	"github.com/koopa0/briefing/internal/graph"
)

var askFiles []string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringSliceVarP(&askFiles, "file", "f", nil,
		"document file name to answer over (repeatable)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(ctx); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	question := strings.Join(args, " ")
	q := chain.Query{
		Question:      question,
		SelectedKeys:  askFiles,
		PermittedKeys: askFiles,
		Settings:      cfg.Settings(),
	}

	// Stream tokens straight to stdout; citations print after the answer.
	state, err := a.Graph.Run(ctx, q,
		graph.WithTokenCallback(func(_ context.Context, delta string) error {
			_, writeErr := fmt.Fprint(os.Stdout, delta)
			return writeErr
		}),
	)
	if err != nil {
		return fmt.Errorf("running request: %w", err)
	}
	fmt.Println()

	if len(state.Citations) > 0 {
		fmt.Println("\nSources:")
		for _, c := range state.Citations {
			fmt.Printf("  - %s %v\n", c.FileName, c.PageNumbers)
		}
	}
	return nil
}
