package bot

import (
	"context"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"

	"quizgate/internal/config"
	"quizgate/internal/db"
)

type fakeService struct{}

func (fakeService) GetBot() *api.BotAPI { return nil }
func (fakeService) GetDB() db.Client    { return nil }
func (fakeService) GetSettings(context.Context, int64) (*db.Settings, error) {
	return nil, nil
}
func (fakeService) SetSettings(context.Context, *db.Settings) error { return nil }
func (fakeService) GetLanguage(context.Context, int64, *api.User) string {
	return "en"
}

type recordingHandler struct {
	calls   int
	proceed bool
	err     error
}

func (h *recordingHandler) Handle(context.Context, *api.Update, *api.Chat, *api.User) (bool, error) {
	h.calls++
	return h.proceed, h.err
}

func freshUpdate(chatID int64) *api.Update {
	return &api.Update{
		Message: &api.Message{
			MessageID: 1,
			Date:      int(time.Now().Unix()),
			Chat:      api.Chat{ID: chatID},
			From:      &api.User{ID: 777},
			Text:      "hi",
		},
	}
}

func newTestProcessor(t *testing.T, handlers ...Handler) *UpdateProcessor {
	t.Helper()
	names := make([]string, 0, len(handlers))
	for i, h := range handlers {
		name := "test_" + string(rune('a'+i)) + t.Name()
		RegisterUpdateHandler(name, h)
		names = append(names, name)
	}
	return NewUpdateProcessor(fakeService{}, names)
}

func TestProcessRejectsNilUpdate(t *testing.T) {
	up := newTestProcessor(t)
	if err := up.Process(context.Background(), nil); err == nil {
		t.Fatalf("expected an error for a nil update")
	}
}

func TestProcessSkipsStaleUpdates(t *testing.T) {
	h := &recordingHandler{proceed: true}
	up := newTestProcessor(t, h)

	stale := freshUpdate(-100)
	stale.Message.Date = int(time.Now().Add(-UpdateTimeout - time.Minute).Unix())
	if err := up.Process(context.Background(), stale); err != nil {
		t.Fatalf("process stale: %v", err)
	}
	if h.calls != 0 {
		t.Fatalf("stale updates must not reach handlers, got %d calls", h.calls)
	}
}

func TestProcessStopsChainWhenHandlerClaimsUpdate(t *testing.T) {
	first := &recordingHandler{proceed: false}
	second := &recordingHandler{proceed: true}
	up := newTestProcessor(t, first, second)

	if err := up.Process(context.Background(), freshUpdate(-100)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if first.calls != 1 || second.calls != 0 {
		t.Fatalf("chain must stop after a claiming handler, got %d/%d", first.calls, second.calls)
	}
}

func TestProcessRunsWholeChainOnProceed(t *testing.T) {
	first := &recordingHandler{proceed: true}
	second := &recordingHandler{proceed: true}
	up := newTestProcessor(t, first, second)

	if err := up.Process(context.Background(), freshUpdate(-100)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both handlers called, got %d/%d", first.calls, second.calls)
	}
}

func TestGetUNPrefersUsername(t *testing.T) {
	t.Parallel()

	if got := GetUN(&api.User{UserName: "handle", FirstName: "First"}); got != "handle" {
		t.Fatalf("unexpected username: %q", got)
	}
	if got := GetUN(&api.User{FirstName: "First", LastName: "Last"}); got != "First Last" {
		t.Fatalf("unexpected fallback: %q", got)
	}
	if got := GetUN(nil); got != "" {
		t.Fatalf("nil user must yield empty, got %q", got)
	}
}

func TestMentionMarkdownV2EscapesName(t *testing.T) {
	t.Parallel()

	mention := MentionMarkdownV2(&api.User{ID: 7, FirstName: "Dot.Name"})
	if mention != `[Dot\.Name](tg://user?id=7)` {
		t.Fatalf("unexpected mention: %q", mention)
	}
}

func TestLanguageOrDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Config{DefaultLanguage: "en"}
	if got := cfg.LanguageOrDefault(" RU "); got != "ru" {
		t.Fatalf("unexpected language: %q", got)
	}
	if got := cfg.LanguageOrDefault("weird"); got != "en" {
		t.Fatalf("expected the default for invalid codes, got %q", got)
	}
	if got := cfg.LanguageOrDefault(""); got != "en" {
		t.Fatalf("expected the default for empty codes, got %q", got)
	}
}
