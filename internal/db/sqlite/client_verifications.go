package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"quizgate/internal/db"
)

func (c *sqliteClient) UpsertVerification(ctx context.Context, v *db.Verification) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	query := `
		INSERT INTO verifications (
			chat_id, user_id, question_id, join_message_id, challenge_message_id, state, created_at, expires_at
		) VALUES (:chat_id, :user_id, :question_id, :join_message_id, :challenge_message_id, :state, :created_at, :expires_at)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			question_id = excluded.question_id,
			join_message_id = excluded.join_message_id,
			challenge_message_id = excluded.challenge_message_id,
			state = excluded.state,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`
	_, err := c.db.NamedExecContext(ctx, query, v)
	return err
}

func (c *sqliteClient) GetVerification(ctx context.Context, chatID, userID int64) (*db.Verification, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var v db.Verification
	err := c.db.GetContext(ctx, &v, `
		SELECT chat_id, user_id, question_id, join_message_id, challenge_message_id, state, created_at, expires_at
		FROM verifications
		WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (c *sqliteClient) DeleteVerification(ctx context.Context, chatID, userID int64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `DELETE FROM verifications WHERE chat_id = ? AND user_id = ?`, chatID, userID)
	return err
}

func (c *sqliteClient) GetExpiredVerifications(ctx context.Context, now time.Time) ([]*db.Verification, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var vs []*db.Verification
	err := c.db.SelectContext(ctx, &vs, `
		SELECT chat_id, user_id, question_id, join_message_id, challenge_message_id, state, created_at, expires_at
		FROM verifications
		WHERE state = ? AND expires_at <= ?
	`, db.VerificationPending, now)
	return vs, err
}
