package loader

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the loader settings.
type Config struct {
	// MaxConcurrentSources bounds the number of sources resolved at once
	// by LoadBatch. Zero means no limit.
	MaxConcurrentSources int `json:"max_concurrent_sources" mapstructure:"max_concurrent_sources"`

	// RetrievalTimeout bounds every live retrieval call. Zero disables the
	// timeout.
	RetrievalTimeout time.Duration `json:"retrieval_timeout" mapstructure:"retrieval_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSources: 8,
		RetrievalTimeout:     10 * time.Second,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.MaxConcurrentSources, validation.Min(0)),
		validation.Field(&c.RetrievalTimeout, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid loader config")
	}
	return nil
}
