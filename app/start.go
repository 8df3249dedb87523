package app

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/slidetrans/slidetrans/internal/config"
	"github.com/slidetrans/slidetrans/internal/daemon"
	"github.com/slidetrans/slidetrans/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.PersistentFlags().StringVar(
		&configPath,
		"config",
		"",
		"Path to the configuration directory holding main.toml (default \"./etc/\")",
	)

	rootCmd.AddCommand(startCmd)
}

var (
	configPath string // Path to the configuration directory

	cfg     config.Config
	err     error
	devMode bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the SlideTrans web service",
		PreRun: func(_ *cobra.Command, _ []string) {
			// a .env file can carry SLIDETRANS_CONFIG_JSON during development
			_ = godotenv.Load()

			if cfg, err = config.ReadConfig(configPath); err != nil {
				panic(err)
			}

			if devMode {
				cfg.DevMode = true
			}

			if err = logger.Init(cfg.Log); err != nil {
				panic(err)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			d := daemon.New(&cfg)

			// the daemon blocks in Start until WaitShutdown stops it
			go d.WaitShutdown()

			return d.Start()
		},
	}
)
