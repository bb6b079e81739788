package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pagecraft/pagecraft/internal/core/domain"
)

var (
	thumbnailID     string
	thumbnailOutput string
)

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail [unit-file...]",
	Short: "Render preview thumbnails for worksheet units",
	Long: `Renders a PNG preview for each unit file ("-" for stdin). A single
unit is written to --output; multiple units are generated concurrently
and written as <unit-id>.png next to --output.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runThumbnail,
}

var thumbnailInvalidateCmd = &cobra.Command{
	Use:   "invalidate [unit-id]",
	Short: "Evict a cached thumbnail",
	Args:  cobra.ExactArgs(1),
	RunE:  runThumbnailInvalidate,
}

func init() {
	thumbnailCmd.Flags().StringVar(&thumbnailID, "id", "", "cache id (defaults to the unit's own id)")
	thumbnailCmd.Flags().StringVarP(&thumbnailOutput, "output", "o", "thumbnail.png", "output file (or directory base for batches)")
	thumbnailCmd.AddCommand(thumbnailInvalidateCmd)
	rootCmd.AddCommand(thumbnailCmd)
}

func runThumbnail(cmd *cobra.Command, args []string) error {
	if thumbnailService == nil {
		return errors.New("thumbnail service not configured")
	}

	ctx := context.Background()

	if len(args) == 1 {
		unit, err := loadUnit(args[0])
		if err != nil {
			return err
		}
		id := thumbnailID
		if id == "" {
			id = unit.ID()
		}
		payload := thumbnailService.GetOrGenerate(ctx, id, unit)
		if len(payload) == 0 {
			return fmt.Errorf("no thumbnail produced for %q", id)
		}
		if err := os.WriteFile(thumbnailOutput, payload, 0o644); err != nil {
			return fmt.Errorf("writing thumbnail: %w", err)
		}
		cmd.Printf("Wrote %s (%d bytes)\n", thumbnailOutput, len(payload))
		return nil
	}

	units := make([]domain.ThumbnailUnit, 0, len(args))
	for _, path := range args {
		unit, err := loadUnit(path)
		if err != nil {
			return err
		}
		units = append(units, domain.ThumbnailUnit{ID: unit.ID(), Unit: unit})
	}

	results := thumbnailService.BatchGenerate(ctx, units)
	dir := filepath.Dir(thumbnailOutput)
	for id, payload := range results {
		path := filepath.Join(dir, id+".png")
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return fmt.Errorf("writing thumbnail: %w", err)
		}
		cmd.Printf("Wrote %s (%d bytes)\n", path, len(payload))
	}
	if len(results) < len(units) {
		cmd.Printf("%d of %d unit(s) could not be rendered\n", len(units)-len(results), len(units))
	}
	return nil
}

func runThumbnailInvalidate(cmd *cobra.Command, args []string) error {
	if thumbnailService == nil {
		return errors.New("thumbnail service not configured")
	}

	thumbnailService.Invalidate(context.Background(), args[0])
	cmd.Printf("Invalidated %s\n", args[0])
	return nil
}
