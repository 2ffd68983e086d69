package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config interface {
	EnvConfig
	StoreConfig
	SessionConfig
	TelegramConfig
}

type mainConfig struct {
	EnvVars
	Store
	Session
	Telegram
}

// New reads the configuration from the environment. Variables that are unset or blank get
// their defaults.
func New() (Config, error) {
	var c mainConfig
	for _, key := range envKeys(reflect.TypeOf(c)) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) == "" {
			// cleanenv only applies env-default to unset variables
			_ = os.Unsetenv(key)
		}
	}
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("[config New] failed to read environment: %w", err)
	}
	return c, nil
}

// Default returns the configuration with every default applied and no environment overlay.
func Default() Config {
	var c mainConfig
	_ = cleanenv.ReadEnv(&c)
	return c
}

func envKeys(t reflect.Type) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			keys = append(keys, envKeys(f.Type)...)
			continue
		}
		if key := f.Tag.Get("env"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
