package config

import "time"

type TelegramConfig interface {
	GetTelegramPollInterval() time.Duration
	GetTelegramPollMaxAttempts() int
	GetTelegramLinkPollInterval() time.Duration
	GetTelegramLinkPollMaxAttempts() int
	GetTelegramInitData() string
}

type Telegram struct {
	PollInterval    time.Duration `env:"TELEGRAM_POLL_INTERVAL" env-default:"5s"`
	PollMaxAttempts int           `env:"TELEGRAM_POLL_MAX_ATTEMPTS" env-default:"60"`
	InitData        string        `env:"TELEGRAM_INIT_DATA"`

	LinkPollInterval    time.Duration `env:"TELEGRAM_LINK_POLL_INTERVAL" env-default:"2s"`
	LinkPollMaxAttempts int           `env:"TELEGRAM_LINK_POLL_MAX_ATTEMPTS" env-default:"15"`
}

var _ TelegramConfig = Telegram{}

func (t Telegram) GetTelegramPollInterval() time.Duration {
	if t.PollInterval <= 0 {
		return 5 * time.Second
	}
	return t.PollInterval
}

// GetTelegramPollMaxAttempts caps polling at roughly five minutes with the default interval.
func (t Telegram) GetTelegramPollMaxAttempts() int {
	if t.PollMaxAttempts <= 0 {
		return 60
	}
	return t.PollMaxAttempts
}

func (t Telegram) GetTelegramLinkPollInterval() time.Duration {
	if t.LinkPollInterval <= 0 {
		return 2 * time.Second
	}
	return t.LinkPollInterval
}

// GetTelegramLinkPollMaxAttempts gives the user about thirty seconds to press Start in the bot.
func (t Telegram) GetTelegramLinkPollMaxAttempts() int {
	if t.LinkPollMaxAttempts <= 0 {
		return 15
	}
	return t.LinkPollMaxAttempts
}

// GetTelegramInitData is the signed Mini-App payload handed over by the Telegram client, if any.
func (t Telegram) GetTelegramInitData() string {
	return t.InitData
}
