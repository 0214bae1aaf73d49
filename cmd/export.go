package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/config"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the saved session as environment variables",
	Long:  `Print the saved session's key pair as shell export lines, e.g. eval "$(capsulectl export)".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		secret, err := internal.GetSecret(flagSecret)
		if err != nil {
			return fmt.Errorf("you must specify --secret or set %s to decrypt the saved session", internal.SecretEnvVar)
		}

		s, err := internal.NewFileStore(cfg.CredentialsFile, secret).Load()
		if errors.Is(err, internal.ErrNoStoredSession) {
			return errors.New("no saved session found; log in from the menu first")
		}
		if err != nil {
			return err
		}

		// Output shell-compatible export commands
		fmt.Printf("export AWS_ACCESS_KEY_ID=%s\n", s.AccessKey)
		fmt.Printf("export AWS_SECRET_ACCESS_KEY=%s\n", s.SecretKey)
		fmt.Println("unset AWS_SESSION_TOKEN")
		if s.Region != "" {
			fmt.Printf("export AWS_REGION=%s\n", s.Region)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
