// Package cli provides the command-line interface for Pagecraft.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configfile "github.com/pagecraft/pagecraft/internal/adapters/driven/config/file"
	proposeropenai "github.com/pagecraft/pagecraft/internal/adapters/driven/proposer/openai"
	"github.com/pagecraft/pagecraft/internal/adapters/driven/renderer/raster"
	"github.com/pagecraft/pagecraft/internal/adapters/driven/storage/memory"
	"github.com/pagecraft/pagecraft/internal/adapters/driven/storage/sqlite"
	synthopenai "github.com/pagecraft/pagecraft/internal/adapters/driven/synthesizer/openai"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
	"github.com/pagecraft/pagecraft/internal/core/services"
	"github.com/pagecraft/pagecraft/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired by initServices and shared by all commands.
// Tests inject mocks here before executing a command.
var (
	configStore      driven.ConfigStore
	editService      driving.EditService
	thumbnailService driving.ThumbnailService
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "pagecraft",
	Short: "AI-assisted worksheet editing",
	Long: `Pagecraft applies natural-language edits to worksheet components
and pages, synthesizing any images an edit introduces and rendering
small previews of the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)
		switch cmd.Name() {
		case "version", "help":
			return nil
		}
		return initServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command. The version string is stamped by the
// build.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

// initServices wires the default adapters. Services already set (by a
// test or an embedding program) are left alone.
func initServices() error {
	if editService != nil && thumbnailService != nil {
		return nil
	}

	if configStore == nil {
		store, err := configfile.NewConfigStore("")
		if err != nil {
			return fmt.Errorf("opening config: %w", err)
		}
		configStore = store
	}

	if editService == nil {
		promptStore, err := configfile.NewPromptStore("")
		if err != nil {
			return fmt.Errorf("opening prompt store: %w", err)
		}
		proposer, err := buildProposer(configStore, promptStore)
		if err != nil {
			return err
		}
		synthesizer, err := buildSynthesizer(configStore)
		if err != nil {
			return err
		}
		editService = services.NewEditPipeline(proposer, services.NewSynthesisOrchestrator(synthesizer))
	}

	if thumbnailService == nil {
		thumbnailStore, err := buildThumbnailStore(configStore)
		if err != nil {
			return err
		}
		thumbnailService = services.NewThumbnailCache(thumbnailStore, raster.New())
	}

	return nil
}

// buildProposer creates the Edit Proposer when an API key is
// configured. Without a key the pipeline reports the proposer as
// unavailable on first use rather than failing startup.
func buildProposer(store driven.ConfigStore, prompts driven.PromptStore) (driven.EditProposer, error) {
	apiKey := store.GetString(driven.ConfigProposerAPIKey)
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		logger.Debug("cli: no proposer API key configured")
		return nil, nil
	}

	proposer, err := proposeropenai.New(proposeropenai.Config{
		APIKey:  apiKey,
		BaseURL: store.GetString(driven.ConfigProposerBaseURL),
		Model:   store.GetString(driven.ConfigProposerModel),
	})
	if err != nil {
		return nil, fmt.Errorf("creating proposer: %w", err)
	}
	proposer.SetPromptStore(prompts)
	return proposer, nil
}

// buildSynthesizer creates the Image Synthesizer when an API key is
// configured, falling back to the proposer's key.
func buildSynthesizer(store driven.ConfigStore) (driven.ImageSynthesizer, error) {
	apiKey := store.GetString(driven.ConfigSynthesizerAPIKey)
	if apiKey == "" {
		apiKey = store.GetString(driven.ConfigProposerAPIKey)
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		logger.Debug("cli: no synthesizer API key configured")
		return nil, nil
	}

	synthesizer, err := synthopenai.New(synthopenai.Config{
		APIKey:  apiKey,
		BaseURL: store.GetString(driven.ConfigSynthesizerBaseURL),
		Model:   store.GetString(driven.ConfigSynthesizerModel),
	})
	if err != nil {
		return nil, fmt.Errorf("creating synthesizer: %w", err)
	}
	return synthesizer, nil
}

// buildThumbnailStore selects the persistent SQLite store when
// configured, the in-memory LRU otherwise.
func buildThumbnailStore(store driven.ConfigStore) (driven.ThumbnailStore, error) {
	if store.GetBool(driven.ConfigThumbnailPersist) {
		db, err := sqlite.NewStore("")
		if err != nil {
			return nil, fmt.Errorf("opening thumbnail database: %w", err)
		}
		return db.ThumbnailStore(), nil
	}
	mem, err := memory.NewThumbnailStore(0)
	if err != nil {
		return nil, fmt.Errorf("creating thumbnail cache: %w", err)
	}
	return mem, nil
}
