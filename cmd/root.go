package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/config"
	"github.com/chukul/capsulectl/internal/log"
	"github.com/chukul/capsulectl/internal/shell"
	"github.com/chukul/capsulectl/internal/ui"
)

var (
	cfgFile    string
	flagSecret string
)

func printLogo() {
	// Gradient colors (Blue -> Purple -> Pink)
	// Blue: 0, 176, 255
	// Purple: 170, 0, 255
	// Pink: 255, 0, 128

	ascii := []string{
		`   ___ __ _ _ __  ___ _   _| | ___  ___| |_| |`,
		`  / __/ _' | '_ \/ __| | | | |/ _ \/ __| __| |`,
		` | (_| (_| | |_) \__ \ |_| | |  __/ (__| |_| |`,
		`  \___\__,_| .__/|___/\__,_|_|\___|\___|\__|_|`,
		`           |_|                               `,
	}

	fmt.Println()
	for _, line := range ascii {
		for i, char := range line {
			ratio := float64(i) / float64(len(line))

			var r, g, b int
			if ratio < 0.5 {
				subRatio := ratio * 2
				r = int(170 * subRatio)
				g = int(176 * (1 - subRatio))
				b = 255
			} else {
				subRatio := (ratio - 0.5) * 2
				r = int(170*(1-subRatio) + 255*subRatio)
				g = 0
				b = int(255*(1-subRatio) + 128*subRatio)
			}

			fmt.Printf("\x1b[38;2;%d;%d;%dm%c\x1b[0m", r, g, b, char)
		}
		fmt.Println()
	}
	fmt.Println("\x1b[1m  Digital Time Capsule: your own instances, bucket and keys on AWS\x1b[0m")
	fmt.Println()
}

var rootCmd = &cobra.Command{
	Use:   "capsulectl",
	Short: "capsulectl is an interactive menu for your time capsule on AWS",
	Long: `capsulectl registers an IAM user scoped to its own bucket and tagged
instances, then lets you launch and manage EC2 instances and move files in
and out of S3 from a numbered menu.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.InitLogger()
		if err := config.Init(cfgFile); err != nil {
			return err
		}
		return config.BindFlags(cmd.Flags(), "profile", "region")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp()
		if err != nil {
			return err
		}
		id, err := a.identityManager(ctx)
		if err != nil {
			return err
		}

		p := ui.NewTerminalPrompter()
		if p.Interactive() {
			printLogo()
		}
		return shell.New(p, id, a.newCompute, a.newStorage).Run(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.capsulectl/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "AWS profile used for registering and deleting users")
	rootCmd.PersistentFlags().String("region", "", "AWS region for new sessions")
	rootCmd.PersistentFlags().StringVar(&flagSecret, "secret", "", "Secret protecting the saved session (or set "+internal.SecretEnvVar+")")
}

// Execute runs the CLI. The first Ctrl-C cancels the running operation;
// a second one exits immediately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
