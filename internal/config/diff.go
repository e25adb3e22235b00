package config

import (
	"reflect"
	"strings"

	logx "playerstatus/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus safe
// structured attrs for logging (never includes secrets like the telegram token).
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", strings.TrimSpace(newCfg.Logging.Level)),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Resolver != newCfg.Resolver {
		changed = append(changed, "resolver")
		attrs = append(attrs,
			logx.String("resolver.lookup_timeout", strings.TrimSpace(newCfg.Resolver.LookupTimeout)),
			logx.String("resolver.poll_interval", strings.TrimSpace(newCfg.Resolver.PollInterval)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Announce, newCfg.Announce) {
		changed = append(changed, "announce")
		attrs = append(attrs,
			logx.Bool("announce.welcome", newCfg.Announce.WelcomeEnabled),
			logx.Bool("announce.goodbye", newCfg.Announce.GoodbyeEnabled),
			logx.Int("announce.scheduled_count", len(newCfg.Announce.Scheduled)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		if newCfg.Storage != nil {
			attrs = append(attrs, logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)))
		}
	}

	// Telegram (never log token)
	if !telegramEqual(oldCfg.Telegram, newCfg.Telegram) {
		changed = append(changed, "telegram")
		if newCfg.Telegram != nil {
			attrs = append(attrs,
				logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
				logx.Bool("telegram.chat_set", newCfg.Telegram.ChatID != 0),
			)
		}
	}

	return changed, attrs
}

func telegramEqual(a, b *TelegramConfig) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}
