package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/ui"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the secret protecting the saved session",
	Long: `Manage the secret used to encrypt the saved session file. It is taken from
--secret, then ` + internal.SecretEnvVar + `, then the macOS Keychain.`,
}

var secretShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current keychain secret",
	Long:  "Reveal the secret stored in your macOS Keychain. The system may ask you to authenticate.",
	Run: func(cmd *cobra.Command, args []string) {
		if !internal.KeychainSupported() {
			fmt.Println("❌ Keychain integration is only available on macOS")
			return
		}
		showKeychainSecret(os.Stdout, internal.KeychainSecret)
	},
}

// showKeychainSecret prints the keychain item only. A secret set in the
// environment is mentioned but never printed in its place.
func showKeychainSecret(w io.Writer, fromKeychain func() (string, error)) {
	secret, err := fromKeychain()
	if err != nil || secret == "" {
		fmt.Fprintln(w, "❌ No secret found in Keychain or it couldn't be accessed.")
	} else {
		fmt.Fprintln(w, "🔐 Your capsulectl Encryption Secret (from Keychain):")
		fmt.Fprintln(w, strings.Repeat("─", 64))
		fmt.Fprintln(w, secret)
		fmt.Fprintln(w, strings.Repeat("─", 64))
		fmt.Fprintln(w, "\n⚠️  KEEP THIS SAFE! You will need it to resume your session on another machine.")
		fmt.Fprintln(w, "   To restore: capsulectl secret import <key>")
	}

	if os.Getenv(internal.SecretEnvVar) != "" {
		fmt.Fprintf(w, "💡 %s is set in this shell and takes precedence over the Keychain.\n", internal.SecretEnvVar)
	}
}

var secretInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a new secret in the keychain",
	Long:  "Generate a random secret and store it in your macOS Keychain. Sessions saved with the old secret can no longer be resumed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !internal.KeychainSupported() {
			fmt.Printf("❌ Keychain integration is only available on macOS. Set %s instead.\n", internal.SecretEnvVar)
			return nil
		}
		if _, err := internal.SetupKeychain(); err != nil {
			return err
		}
		fmt.Println("✅ New secret generated and stored in Keychain.")
		fmt.Println("💡 Run 'capsulectl secret show' to back it up.")
		return nil
	},
}

var secretImportCmd = &cobra.Command{
	Use:   "import [key]",
	Short: "Import a secret into keychain",
	Long:  "Save an existing secret into your macOS Keychain so --secret is no longer needed.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !internal.KeychainSupported() {
			fmt.Println("❌ Keychain integration is only available on macOS")
			return
		}

		var key string
		if len(args) > 0 {
			key = args[0]
		} else {
			var err error
			key, err = ui.GetInput("Enter Secret Key to Import", ui.Masked(), ui.Required())
			if err != nil {
				return
			}
		}

		if strings.TrimSpace(key) == "" {
			fmt.Println("❌ Secret key cannot be empty")
			return
		}

		if err := internal.StoreKeychainSecret(key); err != nil {
			fmt.Printf("❌ Failed to store secret: %v\n", err)
			return
		}

		fmt.Println("✅ Secret imported successfully to Keychain!")
	},
}

func init() {
	secretCmd.AddCommand(secretShowCmd)
	secretCmd.AddCommand(secretInitCmd)
	secretCmd.AddCommand(secretImportCmd)
	rootCmd.AddCommand(secretCmd)
}
