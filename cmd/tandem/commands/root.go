package commands

import (
	"fmt"

	"github.com/dyluth/tandem/internal/config"
	"github.com/dyluth/tandem/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath   string
	redisURLFlag string
	instanceFlag string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tandem",
	Short: "Tandem - dual-authority task delegation engine",
	Long: `Tandem routes requests between two cooperating authorities, a primary
tower for build and design work and a mirror tower for infrastructure and
operations. Each request becomes exactly one tracked task, duplicates are
suppressed across both towers, and workers can be recruited into swarms.

The engine runs in-process; Redis optionally bridges commands in and events
out so chat bridges, dashboards and this CLI can talk to it.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Errors are printed by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to tandem.yml (default $TANDEM_CONFIG or ./tandem.yml)")
	rootCmd.PersistentFlags().StringVar(&redisURLFlag, "redis-url", "", "Redis URL for the bridge (overrides config and $REDIS_URL)")
	rootCmd.PersistentFlags().StringVarP(&instanceFlag, "name", "n", "", "Instance name (overrides config and $TANDEM_INSTANCE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig resolves the effective configuration: file or built-in
// defaults, then environment, then command-line flags.
func loadConfig() (*config.TandemConfig, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{"Check the file passed with --config or $TANDEM_CONFIG"},
		)
	}
	applyFlags(cfg)
	return cfg, nil
}

func applyFlags(cfg *config.TandemConfig) {
	if redisURLFlag != "" {
		cfg.RedisURL = redisURLFlag
	}
	if instanceFlag != "" {
		cfg.Instance = instanceFlag
	}
}
