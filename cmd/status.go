package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/config"
	"github.com/chukul/capsulectl/internal/identity"
)

var outputJSON bool

type statusView struct {
	Principal string `json:"principal"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Arn       string `json:"arn,omitempty"`
	SavedAt   string `json:"saved_at"`
	File      string `json:"file"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store := internal.NewFileStore(cfg.CredentialsFile, "")
		saved, err := store.Describe()
		if err != nil && !errors.Is(err, internal.ErrNoStoredSession) {
			return err
		}

		var view *statusView
		if saved != nil {
			view = &statusView{
				Principal: saved.Principal,
				Bucket:    identity.BucketName(cfg.Storage.BucketPrefix, saved.Principal),
				Region:    saved.Region,
				AccountID: saved.AccountID,
				Arn:       saved.Arn,
				SavedAt:   internal.FormatTime(saved.CreatedAt),
				File:      store.Path,
			}
		}

		if outputJSON {
			jsonData, err := json.MarshalIndent(view, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(jsonData))
			return nil
		}

		fmt.Print(config.Display(cfg))
		fmt.Println()

		if view == nil {
			fmt.Println("No saved session found.")
			return nil
		}

		header := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%-20s %-28s %-15s %-25s %-10s\n",
			header("USER"), header("BUCKET"), header("REGION"), header("SAVED"), header("STATUS"))
		fmt.Println(strings.Repeat("-", 100))

		// Without a secret the file can be described but not resumed.
		status := color.New(color.FgGreen).Sprint("SAVED")
		if _, err := internal.GetSecret(flagSecret); err != nil {
			status = color.New(color.FgYellow).Sprint("LOCKED")
		}
		region := view.Region
		if region == "" {
			region = "-"
		}
		fmt.Printf("%-20s %-28s %-15s %-25s %-10s\n",
			truncateText(view.Principal, 18),
			truncateText(view.Bucket, 26),
			region,
			fmt.Sprintf("%s (%s)", view.SavedAt, internal.FormatAge(saved.CreatedAt)),
			status,
		)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output results in JSON format for automation")
	rootCmd.AddCommand(statusCmd)
}

func truncateText(text string, n int) string {
	if len(text) > n {
		return text[:n-3] + "..."
	}
	return text
}
