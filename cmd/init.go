package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate shell integration code",
	Long:  `Generate shell integration code for capsulectl. Add the output to your shell config file.`,
	Run: func(cmd *cobra.Command, args []string) {
		shell := detectShell()

		fmt.Printf("# capsulectl Shell Integration for %s\n", shell)
		fmt.Println("# Add this to your shell config file:")
		fmt.Println("# - Bash: ~/.bashrc or ~/.bash_profile")
		fmt.Println("# - Zsh: ~/.zshrc")
		fmt.Println("# - Fish: ~/.config/fish/config.fish")
		fmt.Println()

		switch shell {
		case "fish":
			printFishIntegration()
		default:
			printBashZshIntegration()
		}
	},
}

func detectShell() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		if runtime.GOOS == "windows" {
			return "powershell"
		}
		return "bash"
	}
	return filepath.Base(shell)
}

func printBashZshIntegration() {
	fmt.Println(`# Secret protecting the saved session (not needed with the macOS Keychain)
export CAPSULECTL_SECRET="your-encryption-secret"

# Load the saved session into this shell - usage: capsule-env
capsule-env() {
  eval "$(capsulectl export)"
}

# Show the saved session in your prompt (optional)
capsulectl_prompt() {
  capsulectl prompt 2>/dev/null
}

# Add to your PS1 (Bash) or PROMPT (Zsh):
# PS1='$(capsulectl_prompt) \u@\h:\w\$ '
# PROMPT='$(capsulectl_prompt) %n@%m:%~%# '

# Aliases for common commands
alias cap='capsulectl'
alias capst='capsulectl status'
alias capout='capsulectl logout'`)
}

func printFishIntegration() {
	fmt.Println(`# Secret protecting the saved session (not needed with the macOS Keychain)
set -gx CAPSULECTL_SECRET "your-encryption-secret"

# Load the saved session into this shell - usage: capsule-env
function capsule-env
    capsulectl export | source
end

# Show the saved session in your prompt (optional)
function fish_right_prompt
    capsulectl prompt 2>/dev/null
end

# Aliases for common commands
alias cap='capsulectl'
alias capst='capsulectl status'
alias capout='capsulectl logout'`)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
