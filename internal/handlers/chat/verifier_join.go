package handlers

import (
	"context"
	"fmt"
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

func (v *Verifier) handleNewMembers(ctx context.Context, u *api.Update, chat *api.Chat, settings *db.Settings) error {
	entry := v.logger.WithField("method", "handleNewMembers").WithField("chat_id", chat.ID)

	if err := v.quiz.Refresh(ctx); err != nil {
		entry.WithError(err).Warn("cant refresh quiz bank")
	}

	// members added by an admin are vouched for, all of them auto-pass
	inviter := u.Message.From
	admins, err := v.adminCache.Get(ctx, chat.ID, v.ops.ChatAdministrators)
	if err != nil {
		entry.WithError(err).Warn("cant fetch chat administrators")
	} else if inviter != nil && isAdmin(admins, inviter.ID) {
		entry.WithField("inviter_id", inviter.ID).Debug("members invited by an admin")
		lang := v.langs.GetLanguage(ctx, chat.ID, inviter)
		return v.notify(ctx, chat.ID, u.Message.MessageID,
			i18n.Get("Looks like an admin invited you, no verification needed!", lang))
	}

	for i := range u.Message.NewChatMembers {
		member := u.Message.NewChatMembers[i]
		if member.IsBot {
			entry.WithField("user_id", member.ID).Debug("skipping bot account")
			continue
		}
		if err := v.challengeMember(ctx, u.Message, chat, &member, settings); err != nil {
			return errors.WithMessagef(err, "cant challenge user %d", member.ID)
		}
	}
	return nil
}

func (v *Verifier) challengeMember(ctx context.Context, joinMsg *api.Message, chat *api.Chat, member *api.User, settings *db.Settings) error {
	entry := v.logger.WithFields(map[string]any{
		"method":  "challengeMember",
		"chat_id": chat.ID,
		"user_id": member.ID,
	})
	lang := v.langs.GetLanguage(ctx, chat.ID, member)

	if settings.NotEnoughRights {
		entry.Debug("bot lacks rights in this chat, skipping")
		return nil
	}

	questionIDs, err := v.quiz.QuestionIDs(ctx)
	if err != nil {
		return errors.WithMessage(err, "cant list questions")
	}
	if len(questionIDs) == 0 {
		entry.Warn("quiz bank is empty")
		return v.notify(ctx, chat.ID, joinMsg.MessageID,
			i18n.Get("No quiz questions are configured for this chat, ask the admins to add some.", lang))
	}

	if err := v.ops.RestrictUser(ctx, chat.ID, member.ID); err != nil {
		if telegram.IsNotEnoughRights(err) {
			entry.Warn("not enough rights to restrict, disarming chat")
			settings.NotEnoughRights = true
			if setErr := v.store.SetSettings(ctx, settings); setErr != nil {
				return errors.WithMessage(setErr, "cant persist not-enough-rights flag")
			}
			return nil
		}
		return errors.WithMessage(err, "cant restrict")
	}

	question, err := v.quiz.Question(ctx, questionIDs[v.intn(len(questionIDs))])
	if err != nil {
		return errors.WithMessage(err, "cant load question")
	}

	timeout := settings.GetChallengeTimeout()
	challengeMsg, err := v.sendChallenge(ctx, chat.ID, joinMsg.MessageID, member, question, timeout, lang)
	if err != nil {
		if _, apologyErr := v.ops.SendMessage(ctx, api.NewMessage(chat.ID,
			i18n.Get("Something went wrong, please leave and rejoin the group.", lang))); apologyErr != nil {
			entry.WithError(apologyErr).Error("cant send apology")
		}
		return errors.WithMessage(err, "cant send challenge")
	}

	now := time.Now()
	verification := &db.Verification{
		ChatID:             chat.ID,
		UserID:             member.ID,
		QuestionID:         question.ID,
		JoinMessageID:      joinMsg.MessageID,
		ChallengeMessageID: challengeMsg.MessageID,
		State:              db.VerificationPending,
		CreatedAt:          now,
		ExpiresAt:          now.Add(timeout),
	}
	if err := v.store.UpsertVerification(ctx, verification); err != nil {
		return errors.WithMessage(err, "cant persist verification")
	}

	v.scheduleResolutionJobs(verification, settings)
	entry.WithField("question_id", question.ID).Info("challenge issued")
	return nil
}

func (v *Verifier) sendChallenge(ctx context.Context, chatID int64, joinMessageID int, member *api.User, question *db.Question, timeout time.Duration, lang string) (api.Message, error) {
	keyboard := v.challengeKeyboard(member.ID, question, lang)

	text := bot.MentionMarkdownV2(member) + ", " +
		api.EscapeText(api.ModeMarkdownV2, i18n.Get("Welcome!", lang)) + "\n\n" +
		api.EscapeText(api.ModeMarkdownV2, question.Text) + "\n\n" +
		api.EscapeText(api.ModeMarkdownV2,
			fmt.Sprintf(i18n.Get("Answer within %d seconds", lang), int(timeout.Seconds())))

	msg := api.NewMessage(chatID, text)
	msg.ParseMode = api.ModeMarkdownV2
	msg.ReplyMarkup = keyboard
	msg.ReplyParameters.MessageID = joinMessageID
	msg.ReplyParameters.ChatID = chatID
	msg.ReplyParameters.AllowSendingWithoutReply = true
	msg.DisableNotification = true
	return v.ops.SendMessage(ctx, msg)
}

// challengeKeyboard lays out one shuffled answer per row and a trailing
// admin override row.
func (v *Verifier) challengeKeyboard(userID int64, question *db.Question, lang string) api.InlineKeyboardMarkup {
	answers := make([]db.Answer, len(question.Answers))
	copy(answers, question.Answers)
	v.shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})

	rows := make([][]api.InlineKeyboardButton, 0, len(answers)+1)
	for _, answer := range answers {
		rows = append(rows, api.NewInlineKeyboardRow(
			api.NewInlineKeyboardButtonData(answer.Text, challengeCallbackData(userID, question.ID, answer.ID)),
		))
	}
	rows = append(rows, api.NewInlineKeyboardRow(
		api.NewInlineKeyboardButtonData("✅ "+i18n.Get("Pass", lang), adminCallbackData(VerdictPass, userID)),
		api.NewInlineKeyboardButtonData("🚫 "+i18n.Get("Kick", lang), adminCallbackData(VerdictKick, userID)),
	))
	return api.NewInlineKeyboardMarkup(rows...)
}

// scheduleResolutionJobs arms the three timers backing a challenge. Each
// is keyed by (chat, user) so a rejoin replaces the previous set.
func (v *Verifier) scheduleResolutionJobs(verification *db.Verification, settings *db.Settings) {
	chatID, userID := verification.ChatID, verification.UserID
	timeout := settings.GetChallengeTimeout()
	kickDuration := settings.GetKickDuration()
	joinMessageID := verification.JoinMessageID
	challengeMessageID := verification.ChallengeMessageID

	v.sched.Once(kickJobName(chatID, userID), timeout, func() {
		v.expireVerification(context.Background(), chatID, userID, kickDuration)
	})
	v.sched.Once(cleanJoinJobName(chatID, userID), timeout, func() {
		v.deleteMessageQuietly(context.Background(), chatID, joinMessageID)
	})
	v.sched.Once(cleanChallengeJobName(chatID, userID), timeout, func() {
		v.deleteMessageQuietly(context.Background(), chatID, challengeMessageID)
	})
}

// expireVerification is the timeout path: ban for the kick duration,
// drop the record, account the outcome.
func (v *Verifier) expireVerification(ctx context.Context, chatID, userID int64, kickDuration time.Duration) {
	entry := v.logger.WithFields(map[string]any{
		"method":  "expireVerification",
		"chat_id": chatID,
		"user_id": userID,
	})

	if err := v.ops.BanUser(ctx, chatID, userID, time.Now().Add(kickDuration)); err != nil {
		entry.WithError(err).Error("cant ban on timeout")
	}
	if err := v.store.DeleteVerification(ctx, chatID, userID); err != nil {
		entry.WithError(err).Error("cant delete verification record")
	}
	event.Bus.Enqueue(event.NewVerificationOutcome(chatID, userID, event.OutcomeTimeout))
	observability.RecordVerificationOutcome(event.OutcomeTimeout)
	entry.Info("challenge timed out")
}

func (v *Verifier) deleteMessageQuietly(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := v.ops.DeleteMessage(ctx, chatID, messageID); err != nil {
		if telegram.IsMessageGone(err) {
			v.logger.WithError(err).WithField("chat_id", chatID).Warn("message already gone")
			return
		}
		v.logger.WithError(err).WithField("chat_id", chatID).Warn("cant delete message")
	}
}

func (v *Verifier) notify(ctx context.Context, chatID int64, replyTo int, text string) error {
	msg := api.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyParameters.MessageID = replyTo
		msg.ReplyParameters.ChatID = chatID
		msg.ReplyParameters.AllowSendingWithoutReply = true
	}
	_, err := v.ops.SendMessage(ctx, msg)
	return errors.WithMessage(err, "cant send notice")
}
