package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/davidhonghikim/griot-sub000/pkg/dotdir"
)

// EnvPrefix is the environment variable prefix viper binds.
const EnvPrefix = "GRIOT"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the GRIOT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (GRIOT_API_LISTEN, GRIOT_GENERATION_BACKEND, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. Every key is registered, even when empty, so
// AutomaticEnv can resolve it.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)
	for key, info := range configKeys {
		v.SetDefault(key, info.get(d))
	}
}

// FromViper resolves every config key through the viper precedence chain
// into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{Version: CurrentV}
	for _, key := range ValidConfigKeys() {
		val := v.GetString(key)
		if val == "" {
			continue
		}
		if err := configKeys[key].set(cfg, val); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Lookup returns the resolved value of key, or fallback when it is unset
// or empty.
func Lookup(v *viper.Viper, key, fallback string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return fallback
}
