package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"proxyctl/internal/app"
	"proxyctl/internal/shared/config"
	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/types"
)

// rootOptions holds the persistent flags and the configuration they resolve to.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg *types.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "proxyctl",
		Short:         "Download, configure and run mihomo in the background",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "proxyctl.ini", "Path to the proxyctl ini file")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory holding mihomo, its config and the pid record")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newStopCmd(opts))
	root.AddCommand(newTunnelCmd(opts))

	return root
}

// load reads the ini file, applies flag overrides and initializes logging.
// Flags win over the environment, which wins over the file.
func (o *rootOptions) load() error {
	cfg, err := config.LoadIni(o.configPath)
	if err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", o.configPath, err)
		return err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.Level = o.logLevel
	}

	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) provisioner() (*app.Provisioner, error) {
	p, err := app.NewProvisioner(o.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return p, nil
}
