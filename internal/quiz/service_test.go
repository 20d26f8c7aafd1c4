package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"quizgate/internal/db"
)

type fakeQuizStore struct {
	questions    map[int64]*db.Question
	replaceCalls int
	questionGets int
}

func newFakeQuizStore() *fakeQuizStore {
	return &fakeQuizStore{questions: map[int64]*db.Question{}}
}

func (s *fakeQuizStore) ReplaceQuizBank(_ context.Context, questions []db.Question) error {
	s.replaceCalls++
	s.questions = map[int64]*db.Question{}
	for i := range questions {
		q := questions[i]
		s.questions[q.ID] = &q
	}
	return nil
}

func (s *fakeQuizStore) GetQuestionIDs(context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.questions))
	for id := range s.questions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeQuizStore) GetQuestion(_ context.Context, id int64) (*db.Question, error) {
	s.questionGets++
	q, ok := s.questions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return q, nil
}

func (s *fakeQuizStore) GetAnswer(_ context.Context, id int64) (*db.Answer, error) {
	for _, q := range s.questions {
		for i := range q.Answers {
			if q.Answers[i].ID == id {
				return &q.Answers[i], nil
			}
		}
	}
	return nil, db.ErrNotFound
}

type fakePreviews struct {
	entries map[string]db.Question
	getErr  error
	sets    int
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{entries: map[string]db.Question{}}
}

func (p *fakePreviews) Get(_ context.Context, key string, out any) (bool, error) {
	if p.getErr != nil {
		return false, p.getErr
	}
	q, ok := p.entries[key]
	if !ok {
		return false, nil
	}
	*(out.(*db.Question)) = q
	return true, nil
}

func (p *fakePreviews) Set(_ context.Context, key string, value any, _ time.Duration) error {
	p.sets++
	p.entries[key] = value.(db.Question)
	return nil
}

func TestRefreshSeedsBankExactlyOncePerProcess(t *testing.T) {
	t.Parallel()

	store := newFakeQuizStore()
	s := NewService(store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Refresh(ctx); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if store.replaceCalls != 1 {
		t.Fatalf("expected a single bank replacement, got %d", store.replaceCalls)
	}
	if len(store.questions) == 0 {
		t.Fatalf("expected seeded questions")
	}
	for id, q := range store.questions {
		if q.CorrectAnswer() == nil {
			t.Fatalf("question %d has no correct answer", id)
		}
	}
}

func TestQuestionReadsThroughPreviewCache(t *testing.T) {
	t.Parallel()

	store := newFakeQuizStore()
	previews := newFakePreviews()
	s := NewService(store, previews)
	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ids, err := s.QuestionIDs(ctx)
	if err != nil || len(ids) == 0 {
		t.Fatalf("question ids: %v %v", ids, err)
	}

	first, err := s.Question(ctx, ids[0])
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	second, err := s.Question(ctx, ids[0])
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if store.questionGets != 1 {
		t.Fatalf("expected one store hit, got %d", store.questionGets)
	}
	if previews.sets != 1 {
		t.Fatalf("expected one cache write, got %d", previews.sets)
	}
	if first.Text != second.Text || len(first.Answers) != len(second.Answers) {
		t.Fatalf("cached question diverged: %#v != %#v", first, second)
	}
}

func TestQuestionSurvivesCacheFailures(t *testing.T) {
	t.Parallel()

	store := newFakeQuizStore()
	previews := newFakePreviews()
	previews.getErr = errors.New("redis is down")
	s := NewService(store, previews)
	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ids, _ := s.QuestionIDs(ctx)

	if _, err := s.Question(ctx, ids[0]); err != nil {
		t.Fatalf("cache failures must not break lookups: %v", err)
	}
	if store.questionGets != 1 {
		t.Fatalf("expected the store to serve, got %d hits", store.questionGets)
	}
}

func TestQuestionWithoutCacheHitsStoreEveryTime(t *testing.T) {
	t.Parallel()

	store := newFakeQuizStore()
	s := NewService(store, nil)
	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ids, _ := s.QuestionIDs(ctx)

	for i := 0; i < 2; i++ {
		if _, err := s.Question(ctx, ids[0]); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}
	if store.questionGets != 2 {
		t.Fatalf("expected two store hits without a cache, got %d", store.questionGets)
	}
}

func TestAnswerLookup(t *testing.T) {
	t.Parallel()

	store := newFakeQuizStore()
	s := NewService(store, nil)
	ctx := context.Background()
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	ids, _ := s.QuestionIDs(ctx)
	question, err := s.Question(ctx, ids[0])
	if err != nil {
		t.Fatalf("question: %v", err)
	}

	answer, err := s.Answer(ctx, question.Answers[0].ID)
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer.QuestionID != question.ID {
		t.Fatalf("answer %d does not belong to question %d", answer.ID, question.ID)
	}

	if _, err := s.Answer(ctx, 99999); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
