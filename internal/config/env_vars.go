package config

import (
	"os"
	"strings"
	"time"
)

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetAPIURL() string
	GetRequestTimeout() time.Duration
	GetDefaultTimeZone() string
}

// Defaults apply when a variable is unset or set to an empty value.
const (
	DefaultAppName        = "MedicationAssist"
	DefaultEnv            = "DEV"
	DefaultAPIURL         = "http://localhost:5018/api"
	DefaultRequestTimeout = 15 * time.Second
	DefaultTimeZone       = "Europe/Moscow"
)

type EnvVars struct {
	AppName         string        `env:"APP_NAME" env-default:"MedicationAssist"`
	Env             string        `env:"ENV" env-default:"DEV"`
	APIURL          string        `env:"API_URL" env-default:"http://localhost:5018/api"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"15s"`
	DefaultTimeZone string        `env:"DEFAULT_TIMEZONE" env-default:"Europe/Moscow"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return orDefault(e.AppName, DefaultAppName)
}

func (e EnvVars) GetEnv() string {
	return orDefault(e.Env, DefaultEnv)
}

// GetAPIURL returns the backend base URL without a trailing slash (e.g. "https://api.example.com/api")
func (e EnvVars) GetAPIURL() string {
	return strings.TrimRight(orDefault(strings.TrimSpace(e.APIURL), DefaultAPIURL), "/")
}

func (e EnvVars) GetRequestTimeout() time.Duration {
	if e.RequestTimeout <= 0 {
		return DefaultRequestTimeout
	}
	return e.RequestTimeout
}

func (e EnvVars) GetDefaultTimeZone() string {
	return orDefault(e.DefaultTimeZone, DefaultTimeZone)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func orDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
