package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"quizgate/internal/bot"
	"quizgate/internal/db"
	"quizgate/internal/event"
	"quizgate/internal/i18n"
	"quizgate/internal/infrastructure/telegram"
	"quizgate/internal/observability"
)

func (v *Verifier) handleCallback(ctx context.Context, u *api.Update, chat *api.Chat, presser *api.User) error {
	query := u.CallbackQuery
	entry := v.logger.WithFields(map[string]any{
		"method":  "handleCallback",
		"chat_id": chat.ID,
		"user_id": presser.ID,
	})

	settings, err := v.settings(ctx, chat.ID)
	if err != nil {
		return err
	}
	lang := v.langs.GetLanguage(ctx, chat.ID, presser)

	callback, err := parseCallback(query.Data)
	if err != nil {
		entry.WithError(err).WithField("data", query.Data).Warn("rejecting callback")
		if ackErr := v.ops.AnswerCallback(ctx, query.ID, "", false); ackErr != nil {
			entry.WithError(ackErr).Warn("cant answer callback")
		}
		if errors.Is(err, errUnknownAction) {
			return v.notify(ctx, chat.ID, 0, i18n.Get("Received a malformed command, check the logs.", lang))
		}
		return nil
	}

	switch callback.Kind {
	case CallbackAdmin:
		return v.handleAdminCallback(ctx, query, chat, presser, callback)
	case CallbackChallenge:
		return v.handleChallengeCallback(ctx, query, chat, presser, callback, settings)
	}
	return nil
}

func (v *Verifier) handleAdminCallback(ctx context.Context, query *api.CallbackQuery, chat *api.Chat, presser *api.User, callback Callback) error {
	entry := v.logger.WithFields(map[string]any{
		"method":  "handleAdminCallback",
		"chat_id": chat.ID,
		"presser": presser.ID,
		"target":  callback.UserID,
		"verdict": callback.Verdict,
	})
	lang := v.langs.GetLanguage(ctx, chat.ID, presser)

	admins, err := v.adminCache.Get(ctx, chat.ID, v.ops.ChatAdministrators)
	if err != nil {
		return errors.WithMessage(err, "cant fetch chat administrators")
	}
	if !isAdmin(admins, presser.ID) {
		entry.Debug("non-admin pressed an admin button")
		return v.ops.AnswerCallback(ctx, query.ID, i18n.Get("You are not an admin here!", lang), true)
	}

	targetMention := v.mentionByID(ctx, chat.ID, callback.UserID)
	presserMention := bot.MentionMarkdownV2(presser)

	var (
		toast      string
		resolution string
		markup     *api.InlineKeyboardMarkup
		outcome    string
	)
	switch callback.Verdict {
	case VerdictPass:
		if err := v.ops.RestoreUser(ctx, chat.ID, callback.UserID); err != nil {
			return errors.WithMessage(err, "cant restore")
		}
		v.cancelResolutionJobs(chat.ID, callback.UserID)
		toast = i18n.Get("Passed", lang)
		resolution = fmt.Sprintf(i18n.Get("%s was let in by %s", lang), targetMention, presserMention)
		outcome = event.OutcomeAdminPass
	case VerdictKick:
		// a zero until makes the ban permanent, unlike the timed
		// failure ban: the admin explicitly rejected this member
		if err := v.ops.BanUser(ctx, chat.ID, callback.UserID, time.Time{}); err != nil {
			return errors.WithMessage(err, "cant ban")
		}
		v.sched.Cancel(kickJobName(chat.ID, callback.UserID))
		toast = i18n.Get("Kicked", lang)
		resolution = fmt.Sprintf(i18n.Get("%s was kicked by %s", lang), targetMention, presserMention)
		markup = v.overrideKeyboard(callback.UserID, lang, VerdictUnban)
		outcome = event.OutcomeAdminKick
	case VerdictUnban:
		if err := v.ops.UnbanUser(ctx, chat.ID, callback.UserID); err != nil {
			return errors.WithMessage(err, "cant unban")
		}
		v.cancelResolutionJobs(chat.ID, callback.UserID)
		toast = i18n.Get("Unbanned", lang)
		resolution = fmt.Sprintf(i18n.Get("%s was unbanned by %s", lang), targetMention, presserMention)
		outcome = event.OutcomeAdminUnban
	}

	if err := v.store.DeleteVerification(ctx, chat.ID, callback.UserID); err != nil {
		entry.WithError(err).Warn("cant delete verification record")
	}
	if err := v.ops.AnswerCallback(ctx, query.ID, toast, false); err != nil {
		entry.WithError(err).Warn("cant answer callback")
	}
	if query.Message != nil {
		if err := v.ops.EditMessage(ctx, chat.ID, query.Message.MessageID, resolution, markup); err != nil && !telegram.IsMessageNotModified(err) {
			return errors.WithMessage(err, "cant edit challenge message")
		}
	}

	event.Bus.Enqueue(event.NewVerificationOutcome(chat.ID, callback.UserID, outcome))
	observability.RecordVerificationOutcome(outcome)
	entry.Info("admin verdict applied")
	return nil
}

func (v *Verifier) handleChallengeCallback(ctx context.Context, query *api.CallbackQuery, chat *api.Chat, presser *api.User, callback Callback, settings *db.Settings) error {
	entry := v.logger.WithFields(map[string]any{
		"method":  "handleChallengeCallback",
		"chat_id": chat.ID,
		"user_id": presser.ID,
	})
	lang := v.langs.GetLanguage(ctx, chat.ID, presser)

	if presser.ID != callback.UserID {
		entry.Debug("answer pressed by another member")
		return v.ops.AnswerCallback(ctx, query.ID, i18n.Get("This is not your verification!", lang), true)
	}

	verification, err := v.store.GetVerification(ctx, chat.ID, callback.UserID)
	if err != nil {
		return errors.WithMessage(err, "cant load verification")
	}
	if verification == nil {
		entry.Debug("no pending verification for this callback")
		return v.ops.AnswerCallback(ctx, query.ID, "", false)
	}

	answer, err := v.quiz.Answer(ctx, callback.AnswerID)
	if err != nil {
		return errors.WithMessage(err, "cant load answer")
	}
	if answer.QuestionID != callback.QuestionID {
		entry.Warn("answer does not belong to the callback's question")
		return v.ops.AnswerCallback(ctx, query.ID, "", false)
	}

	observability.ObserveChallengeDuration(time.Since(verification.CreatedAt))

	if answer.IsCorrect {
		return v.resolvePass(ctx, query, chat, presser, verification)
	}
	return v.resolveFail(ctx, query, chat, presser, verification, settings)
}

func (v *Verifier) resolvePass(ctx context.Context, query *api.CallbackQuery, chat *api.Chat, member *api.User, verification *db.Verification) error {
	entry := v.logger.WithFields(map[string]any{
		"method":  "resolvePass",
		"chat_id": chat.ID,
		"user_id": member.ID,
	})
	lang := v.langs.GetLanguage(ctx, chat.ID, member)

	if err := v.ops.AnswerCallback(ctx, query.ID, i18n.Get("Verification passed", lang), false); err != nil {
		entry.WithError(err).Warn("cant answer callback")
	}
	if err := v.ops.RestoreUser(ctx, chat.ID, member.ID); err != nil {
		return errors.WithMessage(err, "cant restore")
	}
	v.cancelResolutionJobs(chat.ID, member.ID)
	if err := v.store.DeleteVerification(ctx, chat.ID, member.ID); err != nil {
		entry.WithError(err).Warn("cant delete verification record")
	}

	text := fmt.Sprintf(i18n.Get("%s passed verification", lang), bot.MentionMarkdownV2(member))
	markup := v.overrideKeyboard(member.ID, lang, VerdictKick)
	if err := v.ops.EditMessage(ctx, chat.ID, verification.ChallengeMessageID, text, markup); err != nil && !telegram.IsMessageNotModified(err) {
		return errors.WithMessage(err, "cant edit challenge message")
	}

	event.Bus.Enqueue(event.NewVerificationOutcome(chat.ID, member.ID, event.OutcomePass))
	observability.RecordVerificationOutcome(event.OutcomePass)
	entry.Info("verification passed")
	return nil
}

func (v *Verifier) resolveFail(ctx context.Context, query *api.CallbackQuery, chat *api.Chat, member *api.User, verification *db.Verification, settings *db.Settings) error {
	entry := v.logger.WithFields(map[string]any{
		"method":  "resolveFail",
		"chat_id": chat.ID,
		"user_id": member.ID,
	})
	lang := v.langs.GetLanguage(ctx, chat.ID, member)
	kickDuration := settings.GetKickDuration()

	toast := fmt.Sprintf(i18n.Get("Verification failed, try again in %d seconds", lang), int(kickDuration.Seconds()))
	if err := v.ops.AnswerCallback(ctx, query.ID, toast, true); err != nil {
		entry.WithError(err).Warn("cant answer callback")
	}
	if err := v.ops.BanUser(ctx, chat.ID, member.ID, time.Now().Add(kickDuration)); err != nil {
		return errors.WithMessage(err, "cant ban")
	}
	v.cancelResolutionJobs(chat.ID, member.ID)
	if err := v.store.DeleteVerification(ctx, chat.ID, member.ID); err != nil {
		entry.WithError(err).Warn("cant delete verification record")
	}

	text := fmt.Sprintf(i18n.Get("%s failed verification and was removed", lang), bot.MentionMarkdownV2(member))
	markup := v.overrideKeyboard(member.ID, lang, VerdictKick, VerdictUnban)
	if err := v.ops.EditMessage(ctx, chat.ID, verification.ChallengeMessageID, text, markup); err != nil && !telegram.IsMessageNotModified(err) {
		return errors.WithMessage(err, "cant edit challenge message")
	}

	event.Bus.Enqueue(event.NewVerificationOutcome(chat.ID, member.ID, event.OutcomeFail))
	observability.RecordVerificationOutcome(event.OutcomeFail)
	entry.Info("verification failed")
	return nil
}

func (v *Verifier) cancelResolutionJobs(chatID, userID int64) {
	v.sched.Cancel(kickJobName(chatID, userID))
	v.sched.Cancel(cleanJoinJobName(chatID, userID))
	v.sched.Cancel(cleanChallengeJobName(chatID, userID))
}

// overrideKeyboard is the post-resolution admin row. Labels mirror the
// verdicts they trigger.
func (v *Verifier) overrideKeyboard(userID int64, lang string, verdicts ...AdminVerdict) *api.InlineKeyboardMarkup {
	buttons := make([]api.InlineKeyboardButton, 0, len(verdicts))
	for _, verdict := range verdicts {
		var label string
		switch verdict {
		case VerdictPass:
			label = "✅ " + i18n.Get("Pass", lang)
		case VerdictKick:
			label = "🚫 " + i18n.Get("Kick", lang)
		case VerdictUnban:
			label = "♻️ " + i18n.Get("Unban", lang)
		}
		buttons = append(buttons, api.NewInlineKeyboardButtonData(label, adminCallbackData(verdict, userID)))
	}
	markup := api.NewInlineKeyboardMarkup(api.NewInlineKeyboardRow(buttons...))
	return &markup
}

// mentionByID resolves a user id into a MarkdownV2 mention, falling back
// to the bare id when the member cant be fetched.
func (v *Verifier) mentionByID(ctx context.Context, chatID, userID int64) string {
	member, err := v.ops.ChatMember(ctx, chatID, userID)
	if err != nil || member.User == nil {
		return api.EscapeText(api.ModeMarkdownV2, strconv.FormatInt(userID, 10))
	}
	return bot.MentionMarkdownV2(member.User)
}
