package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage application configuration",
	Long: `View and change Pagecraft configuration.

Keys use dot notation, e.g. "proposer.model" or "thumbnails.persist".`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value. API keys may omit the value; they are
then read from the terminal without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Println("Current Configuration")
	cmd.Println("=====================")
	cmd.Println()

	cmd.Println("[Proposer]")
	printKeyStatus(cmd, "Model", configStore.GetString(driven.ConfigProposerModel))
	printKeyStatus(cmd, "Base URL", configStore.GetString(driven.ConfigProposerBaseURL))
	printSecretStatus(cmd, configStore.GetString(driven.ConfigProposerAPIKey))
	cmd.Println()

	cmd.Println("[Synthesizer]")
	printKeyStatus(cmd, "Model", configStore.GetString(driven.ConfigSynthesizerModel))
	printKeyStatus(cmd, "Base URL", configStore.GetString(driven.ConfigSynthesizerBaseURL))
	printSecretStatus(cmd, configStore.GetString(driven.ConfigSynthesizerAPIKey))
	cmd.Println()

	cmd.Println("[Thumbnails]")
	persist := "no"
	if configStore.GetBool(driven.ConfigThumbnailPersist) {
		persist = "yes"
	}
	cmd.Printf("  Persist: %s\n", persist)

	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	value := configStore.GetString(args[0])
	if isSecretKey(args[0]) {
		value = maskAPIKey(value)
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case isSecretKey(key):
		cmd.Print("Enter value: ")
		value = readPassword()
		cmd.Println()
	default:
		return errors.New("value is required")
	}

	var stored any = value
	if value == "true" || value == "false" {
		stored = value == "true"
	}
	if err := configStore.Set(key, stored); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

func printKeyStatus(cmd *cobra.Command, label, value string) {
	if value == "" {
		value = "(default)"
	}
	cmd.Printf("  %s: %s\n", label, value)
}

func printSecretStatus(cmd *cobra.Command, value string) {
	if value == "" {
		cmd.Printf("  API Key: (not set)\n")
		return
	}
	cmd.Printf("  API Key: %s\n", maskAPIKey(value))
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
