package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"quizgate/internal/config"
	"quizgate/internal/db"
)

type service struct {
	bot *api.BotAPI
	db  db.Client
	cfg config.Config
}

func NewService(bot *api.BotAPI, client db.Client, cfg config.Config) *service {
	return &service{
		bot: bot,
		db:  client,
		cfg: cfg,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetDB() db.Client {
	return s.db
}

func (s *service) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	settings, err := s.db.GetSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
		settings.Language = s.cfg.DefaultLanguage
	}
	return settings, nil
}

func (s *service) SetSettings(ctx context.Context, settings *db.Settings) error {
	return s.db.SetSettings(ctx, settings)
}

// GetLanguage picks the chat language, falling back to the user's client
// language, then the configured default.
func (s *service) GetLanguage(ctx context.Context, chatID int64, user *api.User) string {
	settings, err := s.db.GetSettings(ctx, chatID)
	if err != nil {
		log.WithField("error", err.Error()).Debug("cant get settings for language")
	}
	if settings != nil && settings.Language != "" {
		return settings.Language
	}
	if user != nil && user.LanguageCode != "" {
		return s.cfg.LanguageOrDefault(user.LanguageCode)
	}
	return s.cfg.DefaultLanguage
}
