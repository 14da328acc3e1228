package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/lu-zhengda/portsniper/internal/app"
	"github.com/lu-zhengda/portsniper/internal/config"
	"github.com/lu-zhengda/portsniper/internal/logging"
	"github.com/lu-zhengda/portsniper/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Set via ldflags at build time.
	version = "dev"

	// Global flags.
	jsonOutput bool
	configPath string
	logLevel   string

	// Populated by the root PersistentPreRunE.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "portsniper",
	Short: "See which process owns each listening port, and kill it",
	Long: `portsniper lists listening TCP ports with the process that owns them,
shows global CPU and memory usage, and kills processes by pid.
Launch without subcommands for the interactive dashboard.`,
	Version:           version,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
			}
		}

		// The dashboard owns the terminal; logs only go out when asked for.
		if logLevel == "" {
			logger = zap.NewNop()
		}
		return tui.Run(newApp(), tui.Options{
			Version:         version,
			RefreshInterval: seconds(cfg.RefreshInterval),
			StatsInterval:   seconds(cfg.StatsInterval),
			ColorEnabled:    cfg.ColorEnabled,
		})
	},
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("portsniper %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	rootCmd.Flags().MarkHidden("generate-completion")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/portsniper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads the config file and builds the logger every command uses.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}

	l, err := logging.New(loaded.LogLevel)
	if err != nil {
		return err
	}

	cfg = loaded
	logger = l
	logger.Debug("config loaded", zap.String("path", configPath), zap.Int("command_timeout", cfg.CommandTimeout))
	return nil
}

func newApp() *app.App {
	return app.New(cfg, logger)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
