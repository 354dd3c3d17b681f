package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cosmicwatch/stationcore/pkg/profile"
	"github.com/cosmicwatch/stationcore/pkg/schema"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const envPrefix = "STATION_"

// LoadConfig starts from the station profile, overlays the yaml file when it
// exists, then the env file and finally the process environment.
func LoadConfig(file, envFile string) (schema.Config, error) {
	cfg := profile.Station()

	if file != "" {
		data, err := os.ReadFile(file)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing %s: %w", file, err)
			}
			Log.Debug().Str("file", file).Msg("Loaded station profile overrides")
		case errors.Is(err, os.ErrNotExist):
			Log.Debug().Str("file", file).Msg("No profile file, using defaults")
		default:
			return cfg, err
		}
	}

	env := map[string]string{}
	if envFile != "" {
		e, err := ReadEnv(envFile)
		if err == nil {
			env = e
		} else if !errors.Is(err, os.ErrNotExist) {
			Log.Warn().Err(err).Str("file", envFile).Msg("Reading env file")
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, envPrefix) {
			env[k] = v
		}
	}

	if err := ApplyEnv(&cfg, env); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

// ApplyEnv overrides the few keys that are commonly changed per station.
func ApplyEnv(cfg *schema.Config, env map[string]string) error {
	set := func(key string, dst *string) {
		if v, ok := env[envPrefix+key]; ok && v != "" {
			*dst = v
		}
	}
	set("ACCOUNT", &cfg.Account)
	set("HOME", &cfg.Home)
	set("HOSTNAME", &cfg.Hostname)
	set("ARCHIVE_URL", &cfg.Source.ArchiveURL)
	set("DRIVER_REF", &cfg.Driver.Ref)
	set("BITSTREAM", &cfg.Bringup.Bitstream)
	set("HV_VALUE", &cfg.Bringup.HVValue)
	set("SCHEDULE_CADENCE", &cfg.Schedule.Cadence)
	set("SCHEDULE_SOURCE", &cfg.Schedule.Source)

	if v, ok := env[envPrefix+"DAC_CHANNELS"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sDAC_CHANNELS: %w", envPrefix, err)
		}
		cfg.Bringup.Channels = n
	}
	if v, ok := env[envPrefix+"AUTOSTART_SOURCES"]; ok && v != "" {
		cfg.Autostart.Sources = UniqueSlice(CleanupSlice(strings.Split(v, " ")))
	}
	return nil
}

// Validate rejects profiles the steps cannot work with.
func Validate(cfg schema.Config) error {
	var err error
	if cfg.Account == "" {
		err = multierror.Append(err, errors.New("account is empty"))
	}
	if cfg.Home == "" {
		err = multierror.Append(err, errors.New("home is empty"))
	}
	if cfg.Bringup.Channels < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid dac channel count %d", cfg.Bringup.Channels))
	}
	if _, ok := cfg.PrimaryBus(); !ok {
		err = multierror.Append(err, errors.New("no bus configured"))
	}
	repairs := 0
	for _, t := range cfg.Targets {
		if t.Name == "" || t.Dir == "" {
			err = multierror.Append(err, fmt.Errorf("build target %q needs a name and a dir", t.Name))
		}
		if t.Repair != nil {
			repairs++
		}
	}
	if repairs > 1 {
		Log.Warn().Int("targets", repairs).Msg("More than one target carries a relink rule")
	}
	return err
}
