package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plugmart/autobump/pkg/bump"
	"github.com/plugmart/autobump/pkg/classifier"
	"github.com/plugmart/autobump/pkg/logger"
	"github.com/plugmart/autobump/pkg/presenter"
)

func init() {
	viper.SetEnvPrefix("AUTOBUMP")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.autobump")
	viper.AddConfigPath(".")

	// Config file is optional.
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "autobump",
	Short: "Bump marketplace plugin versions based on changes since their last release",
	Long: `Autobump inspects a plugin marketplace repository, finds the last commit that
changed each plugin's version, classifies everything that happened since with
Claude, and rewrites the registry and plugin manifests with the new versions
in a single commit pushed fast-forward-only.

Run it from the repository root. A rejected push is not an error: the run
exits cleanly and the next invocation recomputes against the moved history.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Error(err, "Invalid log level")
			os.Exit(1)
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		presenter.SetQuiet(viper.GetBool("quiet"))

		// Checked up front so a missing credential fails before any history
		// walk, not halfway through the plan.
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			presenter.Error(errors.New("ANTHROPIC_API_KEY environment variable not set"),
				"An API credential is required to classify changes")
			os.Exit(1)
		}

		runner := bump.NewRunner(bump.Options{
			Root:      viper.GetString("root"),
			MaxDepth:  viper.GetInt("max_depth"),
			DiffLimit: viper.GetInt("diff_limit"),
			Remote:    viper.GetString("remote"),
			Branch:    viper.GetString("branch"),
			DryRun:    viper.GetBool("dry_run"),
			NoPush:    viper.GetBool("no_push"),
		}, classifier.NewAnthropic(viper.GetString("model"), viper.GetInt64("max_tokens")))

		if err := runner.Run(ctx); err != nil {
			presenter.Error(err, "Version bump failed")
			os.Exit(1)
		}
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress non-error console output")

	rootCmd.Flags().String("root", ".", "Repository root to operate on")
	rootCmd.Flags().String("model", "", "Model to use for change classification (overrides config)")
	rootCmd.Flags().Int64("max-tokens", 0, "Maximum completion tokens for the classification call (0 = default)")
	rootCmd.Flags().Int("max-depth", 0, "Maximum commits to scan when locating a plugin's last bump (0 = default)")
	rootCmd.Flags().Int("diff-limit", 0, "Maximum diff characters handed to the classifier (0 = default)")
	rootCmd.Flags().String("remote", "origin", "Remote to push version bumps to")
	rootCmd.Flags().String("branch", "main", "Branch to push version bumps to")
	rootCmd.Flags().Bool("dry-run", false, "Compute and print the bump plan without writing, committing, or pushing")
	rootCmd.Flags().Bool("no-push", false, "Write and commit version bumps but skip the push")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("root", rootCmd.Flags().Lookup("root"))
	viper.BindPFlag("model", rootCmd.Flags().Lookup("model"))
	viper.BindPFlag("max_tokens", rootCmd.Flags().Lookup("max-tokens"))
	viper.BindPFlag("max_depth", rootCmd.Flags().Lookup("max-depth"))
	viper.BindPFlag("diff_limit", rootCmd.Flags().Lookup("diff-limit"))
	viper.BindPFlag("remote", rootCmd.Flags().Lookup("remote"))
	viper.BindPFlag("branch", rootCmd.Flags().Lookup("branch"))
	viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("no_push", rootCmd.Flags().Lookup("no-push"))

	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		presenter.Error(err, "")
		os.Exit(1)
	}
}
