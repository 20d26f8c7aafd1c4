package db

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type VerificationState string

const (
	VerificationPending VerificationState = "pending"
	VerificationExpired VerificationState = "expired"
)

type (
	// Settings is the per-chat configuration row. NotEnoughRights is the
	// sticky "bot cant restrict here" flag; it is set when a restrict
	// call fails for missing rights and cleared when the bot is promoted.
	Settings struct {
		ID                  int64  `db:"id"`
		Language            string `db:"language"`
		VerificationEnabled bool   `db:"verification_enabled"`
		NotEnoughRights     bool   `db:"not_enough_rights"`
		ChallengeTimeout    int64  `db:"challenge_timeout"`
		KickDuration        int64  `db:"kick_duration"`
	}

	// Verification is the explicit per-(chat, user) challenge record.
	// Only pending rows persist; resolution deletes the row.
	Verification struct {
		ChatID             int64             `db:"chat_id"`
		UserID             int64             `db:"user_id"`
		QuestionID         int64             `db:"question_id"`
		JoinMessageID      int               `db:"join_message_id"`
		ChallengeMessageID int               `db:"challenge_message_id"`
		State              VerificationState `db:"state"`
		CreatedAt          time.Time         `db:"created_at"`
		ExpiresAt          time.Time         `db:"expires_at"`
	}

	Question struct {
		ID      int64  `db:"id"`
		Text    string `db:"text"`
		Answers []Answer
	}

	Answer struct {
		ID         int64  `db:"id"`
		QuestionID int64  `db:"question_id"`
		Text       string `db:"text"`
		IsCorrect  bool   `db:"is_correct"`
	}
)

const (
	defaultChallengeTimeout = 120 * time.Second
	defaultKickDuration     = 120 * time.Second
)

func DefaultSettings(chatID int64) *Settings {
	return &Settings{
		ID:                  chatID,
		Language:            "en",
		VerificationEnabled: true,
		ChallengeTimeout:    defaultChallengeTimeout.Nanoseconds(),
		KickDuration:        defaultKickDuration.Nanoseconds(),
	}
}

func (s *Settings) GetChallengeTimeout() time.Duration {
	if s == nil || s.ChallengeTimeout <= 0 {
		return defaultChallengeTimeout
	}
	return time.Duration(s.ChallengeTimeout)
}

func (s *Settings) GetKickDuration() time.Duration {
	if s == nil || s.KickDuration <= 0 {
		return defaultKickDuration
	}
	return time.Duration(s.KickDuration)
}

// CorrectAnswer returns the first answer flagged correct, or nil.
func (q *Question) CorrectAnswer() *Answer {
	if q == nil {
		return nil
	}
	for i := range q.Answers {
		if q.Answers[i].IsCorrect {
			return &q.Answers[i]
		}
	}
	return nil
}
