// Package quiz is the question/answer gateway for the verification flow.
// The bank lives in SQLite and is seeded from an embedded YAML file on
// the first refresh.
package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"quizgate/internal/db"
	"quizgate/internal/infra"
	"quizgate/resources"
)

const previewTTL = 8 * time.Hour

type quizStore interface {
	ReplaceQuizBank(ctx context.Context, questions []db.Question) error
	GetQuestionIDs(ctx context.Context) ([]int64, error)
	GetQuestion(ctx context.Context, id int64) (*db.Question, error)
	GetAnswer(ctx context.Context, id int64) (*db.Answer, error)
}

type previewCache interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Service struct {
	store    quizStore
	previews previewCache

	// one-shot refresh barrier, deliberately not shared with any other
	// synchronization concern
	refreshMu   sync.Mutex
	isRefreshed bool

	logger *log.Entry
}

// NewService creates the gateway. previews may be nil, then question
// lookups always hit the store.
func NewService(store quizStore, previews previewCache) *Service {
	return &Service{
		store:    store,
		previews: previews,
		logger:   log.WithField("object", "QuizService"),
	}
}

// Refresh loads the embedded bank into the store at most once per
// process lifetime; later calls are no-ops.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if s.isRefreshed {
		return nil
	}
	questions, err := loadSeedBank()
	if err != nil {
		return err
	}
	if err := s.store.ReplaceQuizBank(ctx, questions); err != nil {
		return errors.WithMessage(err, "cant replace quiz bank")
	}
	s.isRefreshed = true
	s.logger.WithField("questions", len(questions)).Info("quiz bank refreshed")
	return nil
}

func (s *Service) QuestionIDs(ctx context.Context) ([]int64, error) {
	return s.store.GetQuestionIDs(ctx)
}

// Question returns the question with its ordered answers, read through
// the preview cache when one is configured.
func (s *Service) Question(ctx context.Context, id int64) (*db.Question, error) {
	key := fmt.Sprintf("question:%d", id)
	if s.previews != nil {
		var cached db.Question
		found, err := s.previews.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithField("error", err.Error()).Warn("preview cache read failed")
		} else if found {
			return &cached, nil
		}
	}
	question, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.previews != nil {
		if err := s.previews.Set(ctx, key, *question, previewTTL); err != nil {
			s.logger.WithField("error", err.Error()).Warn("preview cache write failed")
		}
	}
	return question, nil
}

func (s *Service) Answer(ctx context.Context, id int64) (*db.Answer, error) {
	return s.store.GetAnswer(ctx, id)
}

type (
	seedBank struct {
		Questions []seedQuestion `yaml:"questions"`
	}
	seedQuestion struct {
		ID      int64        `yaml:"id"`
		Text    string       `yaml:"text"`
		Answers []seedAnswer `yaml:"answers"`
	}
	seedAnswer struct {
		ID      int64  `yaml:"id"`
		Text    string `yaml:"text"`
		Correct bool   `yaml:"correct"`
	}
)

func loadSeedBank() ([]db.Question, error) {
	data, err := resources.FS.ReadFile(infra.GetResourcesPath("quiz", "questions.yml"))
	if err != nil {
		return nil, errors.WithMessage(err, "cant read quiz seed")
	}
	var bank seedBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, errors.WithMessage(err, "cant unmarshal quiz seed")
	}
	questions := make([]db.Question, 0, len(bank.Questions))
	for _, sq := range bank.Questions {
		q := db.Question{ID: sq.ID, Text: sq.Text}
		for _, sa := range sq.Answers {
			q.Answers = append(q.Answers, db.Answer{
				ID:         sa.ID,
				QuestionID: sq.ID,
				Text:       sa.Text,
				IsCorrect:  sa.Correct,
			})
		}
		questions = append(questions, q)
	}
	return questions, nil
}
