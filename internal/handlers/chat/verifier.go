// Package handlers hosts the join-verification flow: new members get
// restricted and quizzed, with admin overrides and timed cleanup.
package handlers

import (
	"context"
	"math/rand"
	"sync"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
	log "github.com/sirupsen/logrus"

	"quizgate/internal/config"
	"quizgate/internal/db"
)

const (
	updateTypeCallbackQuery  updateType = "callback_query"
	updateTypeNewChatMembers updateType = "new_chat_members"
	updateTypeMyChatMember   updateType = "my_chat_member"
	updateTypeIgnore         updateType = "ignore"

	expiredVerificationsInterval = 1 * time.Minute
)

type updateType string

// chatOps is the slice of Telegram the flow mutates through;
// telegram.Operations implements it.
type chatOps interface {
	RestrictUser(ctx context.Context, chatID, userID int64) error
	RestoreUser(ctx context.Context, chatID, userID int64) error
	BanUser(ctx context.Context, chatID, userID int64, until time.Time) error
	UnbanUser(ctx context.Context, chatID, userID int64) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendMessage(ctx context.Context, msg api.MessageConfig) (api.Message, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup *api.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error
	ChatAdministrators(ctx context.Context, chatID int64) ([]api.ChatMember, error)
	ChatMember(ctx context.Context, chatID, userID int64) (api.ChatMember, error)
}

type verifierStore interface {
	GetSettings(ctx context.Context, chatID int64) (*db.Settings, error)
	SetSettings(ctx context.Context, settings *db.Settings) error

	UpsertVerification(ctx context.Context, v *db.Verification) error
	GetVerification(ctx context.Context, chatID, userID int64) (*db.Verification, error)
	DeleteVerification(ctx context.Context, chatID, userID int64) error
	GetExpiredVerifications(ctx context.Context, now time.Time) ([]*db.Verification, error)
}

type quizGateway interface {
	Refresh(ctx context.Context) error
	QuestionIDs(ctx context.Context) ([]int64, error)
	Question(ctx context.Context, id int64) (*db.Question, error)
	Answer(ctx context.Context, id int64) (*db.Answer, error)
}

type jobScheduler interface {
	Once(id string, delay time.Duration, fn func())
	Cancel(id string) bool
}

// languageResolver picks the reply language for a chat and user;
// bot.Service implements it.
type languageResolver interface {
	GetLanguage(ctx context.Context, chatID int64, user *api.User) string
}

type Verifier struct {
	store      verifierStore
	ops        chatOps
	quiz       quizGateway
	sched      jobScheduler
	langs      languageResolver
	adminCache *AdminCache
	cfg        config.Config

	rngMu sync.Mutex
	rng   *rand.Rand

	logger         *log.Entry
	workerCancel   context.CancelFunc
	workerWG       sync.WaitGroup
	startStopMutex sync.Mutex
	started        bool
}

func NewVerifier(store verifierStore, ops chatOps, quiz quizGateway, sched jobScheduler, langs languageResolver, cfg config.Config) *Verifier {
	rng := rand.New(mt19937.New())
	rng.Seed(time.Now().UnixNano())

	return &Verifier{
		store:      store,
		ops:        ops,
		quiz:       quiz,
		sched:      sched,
		langs:      langs,
		adminCache: NewAdminCache(cfg.Verification.AdminCacheTTL),
		cfg:        cfg,
		rng:        rng,
		logger:     log.WithField("handler", "verifier"),
	}
}

func (v *Verifier) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error) {
	entry := v.logger

	if chat == nil {
		entry.Debug("chat is nil")
		return true, nil
	}
	entry = entry.WithField("chat_id", chat.ID)

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	switch v.determineUpdateType(u) {
	case updateTypeCallbackQuery:
		if !isVerificationCallback(u.CallbackQuery.Data) {
			return true, nil
		}
		if user == nil {
			entry.Debug("missing user information")
			return true, nil
		}
		return false, v.handleCallback(ctx, u, chat, user)
	case updateTypeMyChatMember:
		return true, v.handleOwnStatusChange(ctx, u.MyChatMember)
	case updateTypeNewChatMembers:
		settings, err := v.settings(ctx, chat.ID)
		if err != nil {
			return true, err
		}
		if !settings.VerificationEnabled {
			entry.Debug("verification is disabled for this chat")
			return true, nil
		}
		return true, v.handleNewMembers(ctx, u, chat, settings)
	default:
		return true, nil
	}
}

func (v *Verifier) determineUpdateType(u *api.Update) updateType {
	switch {
	case u.CallbackQuery != nil:
		return updateTypeCallbackQuery
	case u.MyChatMember != nil:
		return updateTypeMyChatMember
	case u.Message != nil && len(u.Message.NewChatMembers) > 0:
		return updateTypeNewChatMembers
	}
	return updateTypeIgnore
}

// handleOwnStatusChange clears the sticky "not enough rights" flag once
// the bot is (re)promoted to administrator, which re-arms the flow for
// the chat.
func (v *Verifier) handleOwnStatusChange(ctx context.Context, upd *api.ChatMemberUpdated) error {
	if upd == nil || !(upd.NewChatMember.IsAdministrator() || upd.NewChatMember.IsCreator()) {
		return nil
	}
	settings, err := v.settings(ctx, upd.Chat.ID)
	if err != nil {
		return err
	}
	if !settings.NotEnoughRights {
		return nil
	}
	settings.NotEnoughRights = false
	if err := v.store.SetSettings(ctx, settings); err != nil {
		return errors.WithMessage(err, "cant clear not-enough-rights flag")
	}
	v.logger.WithField("chat_id", upd.Chat.ID).Info("bot promoted, verification re-armed")
	return nil
}

func (v *Verifier) settings(ctx context.Context, chatID int64) (*db.Settings, error) {
	settings, err := v.store.GetSettings(ctx, chatID)
	if err != nil {
		return nil, errors.WithMessage(err, "get settings")
	}
	if settings == nil {
		settings = db.DefaultSettings(chatID)
		settings.Language = v.cfg.DefaultLanguage
		settings.ChallengeTimeout = v.cfg.Verification.ChallengeTimeout.Nanoseconds()
		settings.KickDuration = v.cfg.Verification.KickDuration.Nanoseconds()
	}
	return settings, nil
}

func (v *Verifier) intn(n int) int {
	v.rngMu.Lock()
	defer v.rngMu.Unlock()
	return v.rng.Intn(n)
}

func (v *Verifier) shuffle(n int, swap func(i, j int)) {
	v.rngMu.Lock()
	defer v.rngMu.Unlock()
	v.rng.Shuffle(n, swap)
}
