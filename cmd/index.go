package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/koopa0/briefing/internal/app"
	"github.com/koopa0/briefing/internal/config"
	"github.com/koopa0/briefing/internal/index"
	"github.com/koopa0/briefing/internal/prompt"
	"github.com/koopa0/briefing/internal/security"
)

// chunkRunes is the fixed chunk size for the development indexer. The
// production ingestion pipeline chunks semantically; this command exists so
// a local index can be populated without it.
const chunkRunes = 4000

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the local document index",
}

var indexAddCmd = &cobra.Command{
	Use:   "add [file...]",
	Short: "Chunk, embed, and index text files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexAdd,
}

// indexAllowedDirs extends the directories "index add" may read from.
var indexAllowedDirs []string

var indexRemoveCmd = &cobra.Command{
	Use:   "remove [file-name...]",
	Short: "Remove files from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndexRemove,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runIndexStats,
}

func init() {
	indexAddCmd.Flags().StringSliceVar(&indexAllowedDirs, "allow-dir", nil,
		"additional directories files may be read from")
	indexCmd.AddCommand(indexAddCmd, indexRemoveCmd, indexStatsCmd)
	rootCmd.AddCommand(indexCmd)
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
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
	return fn(ctx, a)
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	validator, err := security.NewPathValidator(indexAllowedDirs)
	if err != nil {
		return err
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		tok := prompt.Estimator{}
		for _, path := range args {
			resolved, err := validator.Validate(path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(resolved)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			fileName := filepath.Base(path)
			for i, content := range splitRunes(string(data), chunkRunes) {
				chunk := index.Chunk{
					ID:         uuid.New(),
					FileName:   fileName,
					Content:    content,
					TokenCount: tok.Encode(content),
					Index:      i,
				}
				if err := a.Store.Upsert(ctx, chunk); err != nil {
					return fmt.Errorf("indexing %s: %w", fileName, err)
				}
			}
			fmt.Printf("indexed %s\n", fileName)
		}
		return nil
	})
}

func runIndexRemove(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		for _, fileName := range args {
			if err := a.Store.DeleteFile(ctx, fileName); err != nil {
				return fmt.Errorf("removing %s: %w", fileName, err)
			}
			fmt.Printf("removed %s\n", fileName)
		}
		return nil
	})
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		count, err := a.Store.Count(ctx)
		if err != nil {
			return fmt.Errorf("counting chunks: %w", err)
		}
		fmt.Printf("chunks: %d\n", count)
		return nil
	})
}

// splitRunes splits text into rune-bounded pieces of at most size runes.
func splitRunes(text string, size int) []string {
	var (
		chunks  []string
		builder strings.Builder
	)
	count := 0
	for _, r := range text {
		builder.WriteRune(r)
		count++
		if count == size {
			chunks = append(chunks, builder.String())
			builder.Reset()
			count = 0
		}
	}
	if builder.Len() > 0 {
		chunks = append(chunks, builder.String())
	}
	return chunks
}
