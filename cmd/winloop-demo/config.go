//go:build unix

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joeycumines/go-winloop"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// config is the resolved demo configuration. Every field can be set by flag,
// by WINLOOP_* environment variable, or from the config file.
type config struct {
	LogLevel    string        `mapstructure:"log-level"`
	Windows     int           `mapstructure:"windows"`
	Frames      int           `mapstructure:"frames"`
	Scale       float64       `mapstructure:"scale"`
	PumpTimeout time.Duration `mapstructure:"pump-timeout"`
}

func defaultConfig() config {
	return config{
		LogLevel:    "info",
		Windows:     1,
		Frames:      60,
		Scale:       1,
		PumpTimeout: 16 * time.Millisecond,
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:           "winloop-demo",
		Short:         "Drive an application through the winloop event loop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, configFile)
		},
	}

	defaults := defaultConfig()
	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (YAML)")
	flags.String("log-level", defaults.LogLevel, "log level: debug, info, warning, error")
	flags.Int("windows", defaults.Windows, "number of windows to open")
	flags.Int("frames", defaults.Frames, "redraws per window before closing it")
	flags.Float64("scale", defaults.Scale, "scale factor announced by the server")
	flags.Duration("pump-timeout", defaults.PumpTimeout, "pump mode: wait bound per pump")
	cobra.CheckErr(v.BindPFlags(flags))

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the loop until the application exits",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(v)
				if err != nil {
					return err
				}
				return runDemo(cmd.Context(), cfg, cmd.ErrOrStderr(), modeRun)
			},
		},
		&cobra.Command{
			Use:   "pump",
			Short: "Pump the loop from an outer loop, with a bounded timeout",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(v)
				if err != nil {
					return err
				}
				return runDemo(cmd.Context(), cfg, cmd.ErrOrStderr(), modePump)
			},
		},
	)

	return root
}

func initConfig(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix("WINLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if configFile == "" {
		return nil
	}
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", configFile, err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (config, error) {
	cfg := defaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("decoding config: %w", err)
	}
	switch {
	case cfg.Windows < 1:
		return config{}, fmt.Errorf("windows must be positive, got %d", cfg.Windows)
	case cfg.Frames < 1:
		return config{}, fmt.Errorf("frames must be positive, got %d", cfg.Frames)
	case cfg.Scale <= 0:
		return config{}, fmt.Errorf("scale must be positive, got %v", cfg.Scale)
	case cfg.PumpTimeout < 0:
		return config{}, fmt.Errorf("pump-timeout must not be negative, got %v", cfg.PumpTimeout)
	}
	return cfg, nil
}

func parseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logiface.LevelDebug, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "warning", "warn":
		return logiface.LevelWarning, nil
	case "error", "err":
		return logiface.LevelError, nil
	case "disabled", "off":
		return logiface.LevelDisabled, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// newLogger writes JSON lines to w.
func newLogger(w io.Writer, level string) (*logiface.Logger[logiface.Event], error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(lvl),
	).Logger(), nil
}

func exitCode(err error) int {
	var exitErr *winloop.ExitFailureError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
