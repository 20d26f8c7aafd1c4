package db

import (
	"context"
	"time"
)

type Client interface {
	Close() error

	GetSettings(ctx context.Context, chatID int64) (*Settings, error)
	SetSettings(ctx context.Context, settings *Settings) error

	UpsertVerification(ctx context.Context, v *Verification) error
	GetVerification(ctx context.Context, chatID, userID int64) (*Verification, error)
	DeleteVerification(ctx context.Context, chatID, userID int64) error
	GetExpiredVerifications(ctx context.Context, now time.Time) ([]*Verification, error)

	ReplaceQuizBank(ctx context.Context, questions []Question) error
	GetQuestionIDs(ctx context.Context) ([]int64, error)
	GetQuestion(ctx context.Context, id int64) (*Question, error)
	GetAnswer(ctx context.Context, id int64) (*Answer, error)
}
