package cli

import (
	"fmt"

	"github.com/buemura/rook/internal/config"
	"github.com/buemura/rook/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFlag  string
	outputFlag  string
	verboseFlag bool
	speedFlag   string
	workDirFlag string
	logLevel    string
)

// appConfig and appLog are available after PersistentPreRunE.
var (
	appConfig *config.Config
	appLog    *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rook",
	Short: "Rook - multi-target recon scan orchestrator",
	Long: `Rook runs a fixed pipeline of reconnaissance tools against many targets
at once: host lookup, port scan, SMB, FTP and DNS checks for every target,
web content, subdomain, robots.txt, screenshot, WordPress and header checks
for web targets, plus any extra commands you configure.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			cfg *config.Config
			err error
		)
		if configFlag != "" {
			cfg, err = config.LoadFromFile(configFlag)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.ApplyFlags(cfg, cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Verbose && !cmd.Flags().Changed("log-level") {
			cfg.Log.Level = "debug"
		}

		log, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("configuring logging: %w", err)
		}

		appConfig = cfg
		appLog = log
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default ~/.rook.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json, markdown, html")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&speedFlag, "speed", "s", "careful", "scan speed: careful or fast")
	rootCmd.PersistentFlags().StringVar(&workDirFlag, "work-dir", "", "directory for scan artifacts")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
}
