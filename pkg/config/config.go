package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		if err != nil {
			return err
		}
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// Config is the explicit configuration of the registry engine. Callers build
// and validate it; the engine itself never reads environment state.
type Config struct {
	Address         string `json:"address"`
	LogLevel        string `json:"log_level"`
	ShutdownTimeout Duration
	StoreURL        string `json:"store_url" validate:"required"`
	SiteID          int64  `json:"site_id"   validate:"required,gt=0"`
	Version         string `json:"version"`

	// EssentialKinds are the dataset kinds that must be healthy for a genome
	// to stay visible in a public release. Their ancestors are treated as
	// essential too.
	EssentialKinds []string `json:"essential_kinds" validate:"required,min=1"`
	// ReleaseExemptKinds may remain unprocessed when a release is finalized.
	ReleaseExemptKinds []string `json:"release_exempt_kinds"`
}

// Default returns a config with the production kind policy filled in.
func Default() *Config {
	return &Config{
		Address:            "localhost:8910",
		LogLevel:           "INFO",
		ShutdownTimeout:    Duration{Duration: time.Minute},
		SiteID:             1,
		EssentialKinds:     []string{"assembly", "genebuild"},
		ReleaseExemptKinds: []string{"vep", "variation", "regulatory_features"},
	}
}

func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
