// Package telegram wraps the raw bot client with the operations the
// verification flow needs, plus error classification for the flow's
// taxonomy: permission failures, already-gone messages, no-op edits.
package telegram

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
)

// Operations provides the Telegram mutations used by handlers.
type Operations struct {
	bot *api.BotAPI
}

func NewOperations(bot *api.BotAPI) *Operations {
	return &Operations{bot: bot}
}

var readOnlyPermissions = api.ChatPermissions{}

var fullPermissions = api.ChatPermissions{
	CanSendMessages:       true,
	CanSendAudios:         true,
	CanSendDocuments:      true,
	CanSendPhotos:         true,
	CanSendVideos:         true,
	CanSendVideoNotes:     true,
	CanSendVoiceNotes:     true,
	CanSendPolls:          true,
	CanSendOtherMessages:  true,
	CanAddWebPagePreviews: true,
	CanChangeInfo:         true,
	CanInviteUsers:        true,
	CanPinMessages:        true,
	CanManageTopics:       true,
}

// RestrictUser drops a member to read-only.
func (o *Operations) RestrictUser(ctx context.Context, chatID, userID int64) error {
	return o.restrict(ctx, chatID, userID, readOnlyPermissions)
}

// RestoreUser returns a member to full permissions.
func (o *Operations) RestoreUser(ctx context.Context, chatID, userID int64) error {
	return o.restrict(ctx, chatID, userID, fullPermissions)
}

func (o *Operations) restrict(ctx context.Context, chatID, userID int64, permissions api.ChatPermissions) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := o.bot.Request(api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		Permissions: &permissions,
	})
	return errors.WithMessage(err, "cant restrict")
}

// BanUser bans a member. A zero until makes the ban permanent; otherwise
// the platform lifts it at the given time.
func (o *Operations) BanUser(ctx context.Context, chatID, userID int64, until time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	cfg := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	}
	if !until.IsZero() {
		cfg.UntilDate = until.Unix()
	}
	_, err := o.bot.Request(cfg)
	return errors.WithMessage(err, "cant ban")
}

// UnbanUser lifts a ban. OnlyIfBanned keeps the call from kicking a
// member who is currently in the chat.
func (o *Operations) UnbanUser(ctx context.Context, chatID, userID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := o.bot.Request(api.UnbanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		OnlyIfBanned: true,
	})
	return errors.WithMessage(err, "cant unban")
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID))
	return err
}

func (o *Operations) SendMessage(ctx context.Context, msg api.MessageConfig) (api.Message, error) {
	select {
	case <-ctx.Done():
		return api.Message{}, ctx.Err()
	default:
	}
	return o.bot.Send(msg)
}

// EditMessage rewrites a message's text in MarkdownV2, optionally with a
// new inline keyboard. Passing nil markup strips the keyboard.
func (o *Operations) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup *api.InlineKeyboardMarkup) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	edit := api.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = api.ModeMarkdownV2
	edit.ReplyMarkup = markup
	_, err := o.bot.Request(edit)
	return err
}

func (o *Operations) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := o.bot.Request(api.CallbackConfig{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       showAlert,
	})
	return err
}

func (o *Operations) ChatAdministrators(ctx context.Context, chatID int64) ([]api.ChatMember, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return o.bot.GetChatAdministrators(api.ChatAdministratorsConfig{
		ChatConfig: api.ChatConfig{ChatID: chatID},
	})
}

func (o *Operations) ChatMember(ctx context.Context, chatID, userID int64) (api.ChatMember, error) {
	select {
	case <-ctx.Done():
		return api.ChatMember{}, ctx.Err()
	default:
	}
	return o.bot.GetChatMember(api.GetChatMemberConfig{
		ChatConfigWithUser: api.ChatConfigWithUser{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
	})
}

// IsNotEnoughRights reports the "bot lacks admin rights" failure that
// must flip the per-chat sticky flag.
func IsNotEnoughRights(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not enough rights")
}

// IsMessageNotModified reports the benign edit-to-identical-content error.
func IsMessageNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

// IsMessageGone reports deletion failures that are safe to swallow: the
// message no longer exists or the bot may not delete it.
func IsMessageGone(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "message to delete not found") ||
		strings.Contains(msg, "message can't be deleted")
}
