package config

import (
	"os"
	"regexp"

	"github.com/frostyard/glacierctl/internal/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultInterval        = 1   // seconds between ticks when a device is driven
	DefaultMonitorInterval = 5   // seconds between ticks in display-only mode
	DefaultDelta           = 1.0 // °C change required before the icon is re-rendered
	DefaultDevice          = "aa88:8666"
)

// deviceIDPattern matches "vvvv:pppp" hex vendor/product pairs.
var deviceIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{1,4}:[0-9a-fA-F]{1,4}$`)

type Config struct {
	Interval  int      // polling interval in seconds
	Delta     float64  // minimum temperature change before re-rendering
	Monitor   bool     // display-only mode: no device writes
	Broadcast bool     // drive every configured device, not just the first
	Devices   []string // vendor:product pairs in hex
	Debug     bool
	Verbose   bool
	Telemetry bool
	Database  string // telemetry database path
	Listen    string // optional status API address, e.g. "127.0.0.1:7780"
}

func Load() (*Config, error) {
	errFactory := errors.New()
	config := &Config{}

	flags := pflag.NewFlagSet("glacierctl", pflag.ContinueOnError)
	flags.Int("interval", 0, "Polling interval in seconds")
	flags.Float64("delta", 0, "Temperature change required to re-render the icon")
	flags.Bool("monitor", false, "Display-only mode: do not write to any device")
	flags.Bool("broadcast", false, "Write to every configured device")
	flags.StringSlice("device", nil, "Device to drive as vendorid:productid (hex)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.Bool("telemetry", false, "Record per-tick telemetry")
	flags.String("database", "", "Telemetry database path")
	flags.String("listen", "", "Address for the local status API")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("delta", DefaultDelta)
	v.SetDefault("devices", []string{DefaultDevice})

	if path := os.Getenv("GLACIERCTL_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("glacierctl")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	// Command line flags override config file values
	flags.Visit(func(f *pflag.Flag) {
		if f.Name == "device" {
			devices, _ := flags.GetStringSlice("device")
			v.Set("devices", devices)
			return
		}
		v.Set(f.Name, f.Value.String())
	})

	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	// Display-only mode tolerates a slower default tick
	if config.Interval == 0 {
		if config.Monitor {
			config.Interval = DefaultMonitorInterval
		} else {
			config.Interval = DefaultInterval
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Set log level based on config
	if config.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else if config.Verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	return config, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.Delta <= 0 {
		return errFactory.WithData(errors.ErrInvalidDelta, c.Delta)
	}
	if !c.Monitor && len(c.Devices) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidDevice, "no devices configured")
	}
	for _, id := range c.Devices {
		if !deviceIDPattern.MatchString(id) {
			return errFactory.WithData(errors.ErrInvalidDevice, id)
		}
	}

	return nil
}
