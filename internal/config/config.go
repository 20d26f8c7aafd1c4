package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string   `env:"TOKEN,required"`
		DefaultLanguage  string   `env:"LANG,default=en"`
		EnabledHandlers  []string `env:"HANDLERS,default=verification"`
		LogLevel         int      `env:"LOG_LEVEL,default=4"`
		DotPath          string   `env:"DOT_PATH,default=~/.quizgate"`
		DBPath           string   `env:"DB_PATH,default=bot.db"`
		MetricsAddr      string   `env:"METRICS_LISTEN_ADDR,default=:2112"`

		Verification Verification
		Redis        Redis
	}

	Verification struct {
		ChallengeTimeout time.Duration `env:"CHALLENGE_TIMEOUT,default=120s"`
		KickDuration     time.Duration `env:"KICK_DURATION,default=120s"`
		AdminCacheTTL    time.Duration `env:"ADMIN_CACHE_TTL,default=360s"`
	}

	// Redis is optional; the preview cache is wired only when Addr is set.
	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD"`
		DB       int    `env:"REDIS_DB,default=0"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("QG_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		expanded, err := homedir.Expand(cfg.DotPath)
		if err != nil {
			globalErr = fmt.Errorf("expand dot path: %w", err)
			return
		}
		cfg.DotPath = expanded
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

// LanguageOrDefault guards user-supplied language codes before they hit
// the i18n layer.
func (c Config) LanguageOrDefault(lang string) string {
	lang = strings.TrimSpace(strings.ToLower(lang))
	if len(lang) != 2 {
		return c.DefaultLanguage
	}
	return lang
}
