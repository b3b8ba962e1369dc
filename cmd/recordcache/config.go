package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/goliatone/go-record-loader/pkg/di"
)

const envPrefix = "RECORDCACHE"

// envKeys are the settings that can be provided through the environment,
// e.g. RECORDCACHE_SQL_DSN.
var envKeys = []string{
	"sql.driver",
	"sql.dsn",
	"sql.max_open_conns",
	"cache.default_policy",
	"cache.cacheable_sources",
	"cache.digest",
	"memory.capacity",
	"memory.ttl",
	"loader.max_concurrent_sources",
	"loader.retrieval_timeout",
}

// loadConfig layers the config file and environment over di.DefaultConfig.
func loadConfig(path string) (di.Config, error) {
	v := viper.NewWithOptions(
		viper.KeyDelimiter("."),
		viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")),
	)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("recordcache")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return di.Config{}, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	config := di.DefaultConfig()
	if err := v.Unmarshal(&config); err != nil {
		return di.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(); err != nil {
		return di.Config{}, err
	}
	return config, nil
}
