package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/config"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Display the saved session for a shell prompt",
	Long:  `Print the user of the saved session, formatted for shell prompts. Prints nothing when no session is saved.`,
	Run: func(cmd *cobra.Command, args []string) {
		s := savedSession()
		if s == nil {
			return
		}
		if s.Region != "" {
			fmt.Printf("🕰️  %s (%s)", s.Principal, s.Region)
			return
		}
		fmt.Printf("🕰️  %s", s.Principal)
	},
}

var promptInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display saved session info in JSON format",
	Run: func(cmd *cobra.Command, args []string) {
		s := savedSession()
		if s == nil {
			fmt.Println("{}")
			return
		}

		info := map[string]interface{}{
			"principal":  s.Principal,
			"region":     s.Region,
			"account_id": s.AccountID,
			"saved_at":   s.CreatedAt.Unix(),
		}
		output, _ := json.Marshal(info)
		fmt.Println(string(output))
	},
}

// savedSession describes the saved session without decrypting it.
func savedSession() *internal.Session {
	cfg, err := config.Load()
	if err != nil {
		return nil
	}
	s, err := internal.NewFileStore(cfg.CredentialsFile, "").Describe()
	if err != nil {
		return nil
	}
	return s
}

func init() {
	promptCmd.AddCommand(promptInfoCmd)
	rootCmd.AddCommand(promptCmd)
}
