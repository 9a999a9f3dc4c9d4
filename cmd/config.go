package cmd

import (
	"github.com/cottand/tyflow/narrow"
	"github.com/cottand/tyflow/report"
	"github.com/cottand/tyflow/tyflow"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"log/slog"
	"strings"
)

const envConfigPrefix = "TYFLOW"

// Config holds the settings of the check command. Each one can be set by a
// flag, a TYFLOW_ environment variable, or a key of the --config file, in
// that order of precedence
type Config struct {
	LogLevel       slog.Level
	Parallelism    int
	Fuel           int
	FailOnFindings bool
	Types          bool
}

// InitFromViper initializes the config with values from Viper
func (c *Config) InitFromViper(v *viper.Viper) {
	c.LogLevel = slog.Level(v.GetInt("log-level"))
	c.Parallelism = v.GetInt("parallelism")
	c.Fuel = v.GetInt("fuel")
	c.FailOnFindings = v.GetBool("fail-on-findings")
	c.Types = v.GetBool("types")
}

func (c *Config) analysisOptions() tyflow.Options {
	return tyflow.Options{
		Narrow:      narrow.Options{Fuel: c.Fuel},
		Parallelism: c.Parallelism,
	}
}

func (c *Config) reportOptions() report.Options {
	return report.Options{Types: c.Types}
}

// loadConfig reads flags, then the environment, then configFile if set
func loadConfig(flags *pflag.FlagSet, configFile string) (*Config, error) {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envConfigPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", configFile)
		}
	}

	c := &Config{}
	c.InitFromViper(v)
	return c, nil
}
