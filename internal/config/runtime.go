package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/statuslight/internal/logging"
)

// Runtime holds the settings that can change while the daemon runs. Nil
// fields were absent from the file and leave the current value alone.
type Runtime struct {
	GlobalBrightness *uint8
	AutoBrightness   *bool
	AutoSync         *bool
	FeedbackDuration *time.Duration
	Logging          logging.Config
}

type runtimeFile struct {
	LED struct {
		GlobalBrightness *int64 `toml:"global_brightness"`
		AutoBrightness   *bool  `toml:"auto_brightness"`
	} `toml:"led"`
	Sync struct {
		AutoSync         *bool  `toml:"auto_sync"`
		FeedbackDuration string `toml:"feedback_duration"`
	} `toml:"sync"`
}

// LoadRuntime reads the hot-reloadable sections of the config file.
func LoadRuntime(path string) (Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Runtime{}, err
	}

	var raw runtimeFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Runtime{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	rt := Runtime{
		AutoBrightness: raw.LED.AutoBrightness,
		AutoSync:       raw.Sync.AutoSync,
		Logging:        LoadLoggingConfig(path),
	}

	if b := raw.LED.GlobalBrightness; b != nil {
		if *b < 0 || *b > 255 {
			return Runtime{}, fmt.Errorf("led.global_brightness: %d out of range 0-255", *b)
		}
		v := uint8(*b)
		rt.GlobalBrightness = &v
	}

	if s := raw.Sync.FeedbackDuration; s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return Runtime{}, fmt.Errorf("sync.feedback_duration: %w", err)
		}
		if d < 0 {
			return Runtime{}, fmt.Errorf("sync.feedback_duration: negative duration %s", s)
		}
		rt.FeedbackDuration = &d
	}

	return rt, nil
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
