// Package cmd wires the shelfgate command tree. Every command builds
// its components explicitly from the loaded configuration; there is no
// global component state.
package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/shelfgate/shelfgate/internal/config"
	"github.com/shelfgate/shelfgate/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Effective configuration, loaded once before any RunE fires.
	appConfig *config.Config

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shelfgate",
	Short: "Budget-aware caching gateway for a rate-limited product catalog",
	Long: `shelfgate fronts a cost-metered product catalog API with a shared
read-through cache and a persisted query budget.

Use the subcommands to perform specific operations.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/shelfgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig loads the layered configuration and prepares the CLI logger.
func initConfig() {
	observability.InitCLILogger("shelfgate", verbose)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}
	appConfig = cfg
}
