package config

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/WidgetHost/internal/shared/errs"
)

// fileConfig mirrors Config for the TOML overlay. Pointers distinguish
// absent keys from zero values; durations are Go duration strings.
type fileConfig struct {
	Server struct {
		Port *string `toml:"port"`
		Host *string `toml:"host"`
	} `toml:"server"`
	Logging struct {
		Level       *string `toml:"level"`
		Development *bool   `toml:"development"`
	} `toml:"logging"`
	RateLimit struct {
		RequestsPerSecond *int  `toml:"rps"`
		Burst             *int  `toml:"burst"`
		Enabled           *bool `toml:"enabled"`
	} `toml:"rate_limit"`
	Widgets struct {
		Dir          *string `toml:"dir"`
		MaxInstances *int    `toml:"max_instances"`
		FadeIn       *string `toml:"fade_in"`
		FadeOut      *string `toml:"fade_out"`
		CallTimeout  *string `toml:"call_timeout"`
	} `toml:"widgets"`
	Capability struct {
		RateLimit     *int    `toml:"rate_limit"`
		RateWindow    *string `toml:"rate_window"`
		SweepInterval *string `toml:"sweep_interval"`
		EntryTTL      *string `toml:"entry_ttl"`
		PromptTimeout *string `toml:"prompt_timeout"`
	} `toml:"capability"`
	State struct {
		DBPath      *string `toml:"db_path"`
		Debounce    *string `toml:"debounce"`
		AutoRestore *bool   `toml:"auto_restore"`
	} `toml:"state"`
}

// Overlay applies a TOML document on top of c. Only keys present in the
// document change.
func (c *Config) Overlay(data []byte) error {
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return errs.Wrap(errs.KindInvalidConfig, err, "parse config file")
	}

	set(&c.Server.Port, f.Server.Port)
	set(&c.Server.Host, f.Server.Host)
	set(&c.Logging.Level, f.Logging.Level)
	set(&c.Logging.Development, f.Logging.Development)
	set(&c.RateLimit.RequestsPerSecond, f.RateLimit.RequestsPerSecond)
	set(&c.RateLimit.Burst, f.RateLimit.Burst)
	set(&c.RateLimit.Enabled, f.RateLimit.Enabled)
	set(&c.Widgets.Dir, f.Widgets.Dir)
	set(&c.Widgets.MaxInstances, f.Widgets.MaxInstances)
	set(&c.Capability.RateLimit, f.Capability.RateLimit)
	set(&c.State.DBPath, f.State.DBPath)
	set(&c.State.AutoRestore, f.State.AutoRestore)

	durations := []struct {
		name string
		dst  *time.Duration
		src  *string
	}{
		{"widgets.fade_in", &c.Widgets.FadeIn, f.Widgets.FadeIn},
		{"widgets.fade_out", &c.Widgets.FadeOut, f.Widgets.FadeOut},
		{"widgets.call_timeout", &c.Widgets.CallTimeout, f.Widgets.CallTimeout},
		{"capability.rate_window", &c.Capability.RateWindow, f.Capability.RateWindow},
		{"capability.sweep_interval", &c.Capability.SweepInterval, f.Capability.SweepInterval},
		{"capability.entry_ttl", &c.Capability.EntryTTL, f.Capability.EntryTTL},
		{"capability.prompt_timeout", &c.Capability.PromptTimeout, f.Capability.PromptTimeout},
		{"state.debounce", &c.State.Debounce, f.State.Debounce},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return errs.Wrap(errs.KindInvalidConfig, err, "config file %s", d.name)
		}
		*d.dst = v
	}
	return nil
}

// Encode renders c as a TOML document accepted by Overlay
func (c *Config) Encode() ([]byte, error) {
	doc := map[string]map[string]interface{}{
		"server":     {"port": c.Server.Port, "host": c.Server.Host},
		"logging":    {"level": c.Logging.Level, "development": c.Logging.Development},
		"rate_limit": {"rps": c.RateLimit.RequestsPerSecond, "burst": c.RateLimit.Burst, "enabled": c.RateLimit.Enabled},
		"widgets": {
			"dir":           c.Widgets.Dir,
			"max_instances": c.Widgets.MaxInstances,
			"fade_in":       c.Widgets.FadeIn.String(),
			"fade_out":      c.Widgets.FadeOut.String(),
			"call_timeout":  c.Widgets.CallTimeout.String(),
		},
		"capability": {
			"rate_limit":     c.Capability.RateLimit,
			"rate_window":    c.Capability.RateWindow.String(),
			"sweep_interval": c.Capability.SweepInterval.String(),
			"entry_ttl":      c.Capability.EntryTTL.String(),
			"prompt_timeout": c.Capability.PromptTimeout.String(),
		},
		"state": {
			"db_path":      c.State.DBPath,
			"debounce":     c.State.Debounce.String(),
			"auto_restore": c.State.AutoRestore,
		},
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
