package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"quizgate/internal/db"
)

// ReplaceQuizBank swaps the whole question bank in one transaction.
func (c *sqliteClient) ReplaceQuizBank(ctx context.Context, questions []db.Question) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_answers`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM quiz_questions`); err != nil {
		return err
	}

	qStmt, err := tx.PreparexContext(ctx, `INSERT INTO quiz_questions (id, text) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer qStmt.Close()
	aStmt, err := tx.PreparexContext(ctx, `INSERT INTO quiz_answers (id, question_id, text, is_correct) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer aStmt.Close()

	for _, q := range questions {
		if _, err := qStmt.ExecContext(ctx, q.ID, q.Text); err != nil {
			return errors.WithMessagef(err, "insert question %d", q.ID)
		}
		for _, a := range q.Answers {
			if _, err := aStmt.ExecContext(ctx, a.ID, q.ID, a.Text, a.IsCorrect); err != nil {
				return errors.WithMessagef(err, "insert answer %d", a.ID)
			}
		}
	}

	return tx.Commit()
}

func (c *sqliteClient) GetQuestionIDs(ctx context.Context) ([]int64, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var ids []int64
	err := c.db.SelectContext(ctx, &ids, `SELECT id FROM quiz_questions ORDER BY id`)
	return ids, err
}

func (c *sqliteClient) GetQuestion(ctx context.Context, id int64) (*db.Question, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var q db.Question
	err := c.db.GetContext(ctx, &q, `SELECT id, text FROM quiz_questions WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	if err := c.db.SelectContext(ctx, &q.Answers, `
		SELECT id, question_id, text, is_correct FROM quiz_answers WHERE question_id = ? ORDER BY id
	`, id); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *sqliteClient) GetAnswer(ctx context.Context, id int64) (*db.Answer, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var a db.Answer
	err := c.db.GetContext(ctx, &a, `SELECT id, question_id, text, is_correct FROM quiz_answers WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, db.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
