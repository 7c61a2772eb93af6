package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "opspilot",
	Short: "Task workflow analyzer",
	Long: `OpsPilot analyzes a project's task list as a dependency graph.

It detects workflow bottlenecks, forecasts which open tasks are at risk of
slipping, and recommends concrete actions for each bottleneck.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with ctx
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// FormatError renders a command error for the terminal. Errors that are not
// meant for end users point at the debug log, and transient failures say
// that a retry may help.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())

	var cfgErrs config.ValidationErrors
	userFacing := errors.IsUserFacing(err) || errors.As(err, &cfgErrs)
	if errors.IsRetryable(err) {
		b.WriteString("\nThis looks like a temporary failure; retrying may succeed.")
	} else if !userFacing {
		b.WriteString("\nRun again with --log-level debug for details.")
	}
	return b.String()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/opspilot/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	// .env values must be in the environment before viper reads it
	_ = config.LoadDotEnv(viper.GetString("env_file"))

	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	// e.g. OPSPILOT_STORAGE_BACKEND for storage.backend
	config.BindEnv(viper.GetViper())

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
