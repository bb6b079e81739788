package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
)

var (
	editInstruction string
	editTopic       string
	editAgeGroup    string
	editDifficulty  string
	editLanguage    string
	editPageID      string
	editElementID   string
	editCallerID    string
	editJSON        bool
)

var editCmd = &cobra.Command{
	Use:   "edit [unit-file]",
	Short: "Apply a natural-language edit to a worksheet unit",
	Long: `Applies a natural-language edit to a component or page read from
the given JSON file ("-" for stdin). New or changed images are
synthesized as part of the edit; failures leave the previous image in
place and are reported individually.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVarP(&editInstruction, "instruction", "i", "", "natural-language edit instruction (required)")
	editCmd.Flags().StringVar(&editTopic, "topic", "", "worksheet topic (required)")
	editCmd.Flags().StringVar(&editAgeGroup, "age-group", "", "target age group (required)")
	editCmd.Flags().StringVar(&editDifficulty, "difficulty", "", "exercise difficulty")
	editCmd.Flags().StringVar(&editLanguage, "language", "", "content language")
	editCmd.Flags().StringVar(&editPageID, "page-id", "", "page that contains (or is) the target")
	editCmd.Flags().StringVar(&editElementID, "element-id", "", "component id for component edits")
	editCmd.Flags().StringVar(&editCallerID, "caller-id", "", "caller id recorded with the edit")
	editCmd.Flags().BoolVar(&editJSON, "json", false, "output the full result as JSON")
	_ = editCmd.MarkFlagRequired("instruction")
	_ = editCmd.MarkFlagRequired("topic")
	_ = editCmd.MarkFlagRequired("age-group")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	if editService == nil {
		return errors.New("edit service not configured")
	}

	unit, err := loadUnit(args[0])
	if err != nil {
		return err
	}

	elementID := editElementID
	if unit.Type == domain.UnitComponent && elementID == "" {
		elementID = unit.ID()
	}
	pageID := editPageID
	if unit.Type == domain.UnitPage && pageID == "" {
		pageID = unit.ID()
	}

	req := driving.EditRequest{
		Target: domain.EditTarget{
			UnitType:  unit.Type,
			PageID:    pageID,
			ElementID: elementID,
			Unit:      unit,
		},
		Instruction: editInstruction,
		Context: domain.EditContext{
			Topic:      editTopic,
			AgeGroup:   editAgeGroup,
			Difficulty: editDifficulty,
			Language:   editLanguage,
			CallerID:   editCallerID,
		},
	}

	result, err := editService.ApplyEdit(context.Background(), req)
	if err != nil {
		return fmt.Errorf("edit failed: %w", err)
	}

	if editJSON {
		return outputEditJSON(cmd, result)
	}
	return outputEditSummary(cmd, result)
}

func outputEditJSON(cmd *cobra.Command, result *driving.EditResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputEditSummary(cmd *cobra.Command, result *driving.EditResult) error {
	if !result.Success {
		return fmt.Errorf("edit was not applied: %s", result.Error)
	}

	cmd.Printf("Applied %d change(s):\n", len(result.Changes))
	for i := range result.Changes {
		target := result.Changes[i].TargetID
		if target == "" {
			target = "(unit)"
		}
		cmd.Printf("  [%d] %s: %s\n", i+1, target, result.Changes[i].Description)
	}

	if len(result.ImageFailures) > 0 {
		cmd.Println()
		cmd.Printf("%d image(s) could not be generated:\n", len(result.ImageFailures))
		for i := range result.ImageFailures {
			cmd.Printf("  - %q: %s\n", result.ImageFailures[i].Prompt, result.ImageFailures[i].Reason)
		}
	}

	data, err := json.MarshalIndent(result.Unit, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal unit: %w", err)
	}
	cmd.Println()
	cmd.Println(string(data))
	return nil
}

// loadUnit reads a document unit from a JSON file, or from stdin when
// the path is "-".
func loadUnit(path string) (domain.DocumentUnit, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.DocumentUnit{}, fmt.Errorf("reading unit: %w", err)
	}

	var unit domain.DocumentUnit
	if err := json.Unmarshal(data, &unit); err != nil {
		return domain.DocumentUnit{}, fmt.Errorf("parsing unit: %w", err)
	}
	return unit, nil
}
