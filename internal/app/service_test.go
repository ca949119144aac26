package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	"trivia-room-service/internal/infra/memory"
)

type nopSink struct {
	mu     sync.Mutex
	events int
}

func (s *nopSink) Send(string, app.Event) {
	s.mu.Lock()
	s.events++
	s.mu.Unlock()
}

func newTestService() *app.GameService {
	sets := memory.NewSetRepository(memory.NewStaticSetLoader(map[string]domain.QuestionSet{
		"set-1": {
			ID:    "set-1",
			Title: "Test Set",
			Questions: []domain.Question{
				{Prompt: "Pick right", Correct: "right", Distractors: []string{"wrong-a", "wrong-b"}},
			},
		},
	}), 5*time.Minute)
	registry := app.NewRegistry(&nopSink{}, app.Timing{QuestionDuration: time.Hour, RevealDelay: time.Hour}, nil)
	return app.NewGameService(registry, sets, "set-1")
}

func TestCreateRoomUsesDefaultSet(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	code, hostID, err := service.CreateRoom(ctx, "host-conn", "Alice", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if code == "" || hostID == "" {
		t.Fatalf("expected code and host id, got %q %q", code, hostID)
	}
	if names := service.PlayerNames(code); len(names) != 1 || names[0] != "Alice" {
		t.Fatalf("roster after create: %v", names)
	}
}

func TestCreateRoomUnknownSet(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if _, _, err := service.CreateRoom(ctx, "host-conn", "Alice", "missing"); err != domain.ErrSetNotFound {
		t.Fatalf("expected set error, got %v", err)
	}
}

func TestJoinFlow(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	code, _, err := service.CreateRoom(ctx, "host-conn", "Alice", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	userID, players, hostConnID, err := service.Join(code, "Bob", "bob-conn")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if userID == "" {
		t.Fatalf("expected a participant id")
	}
	if hostConnID != "host-conn" {
		t.Fatalf("roster push target: %q", hostConnID)
	}
	if len(players) != 2 || players[0] != "Alice" || players[1] != "Bob" {
		t.Fatalf("roster: %v", players)
	}

	if _, _, _, err := service.Join("000000", "Carol", "carol-conn"); err != domain.ErrRoomNotFound {
		t.Fatalf("expected room error, got %v", err)
	}
}

func TestStartAndSubmitGuards(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	if service.Start("000000") {
		t.Fatalf("start of unknown room must fail")
	}

	code, hostID, err := service.CreateRoom(ctx, "host-conn", "Alice", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if !service.Start(code) {
		t.Fatalf("start failed")
	}
	if service.Start(code) {
		t.Fatalf("second start must fail")
	}

	if err := service.SubmitAnswer(code, "ghost", 1); err != domain.ErrNotAMember {
		t.Fatalf("expected membership error, got %v", err)
	}
	if err := service.SubmitAnswer(code, hostID, 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.SubmitAnswer("000000", hostID, 2); err != domain.ErrRoomNotFound {
		t.Fatalf("expected room error, got %v", err)
	}
}

func TestRejoinGuards(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	code, hostID, err := service.CreateRoom(ctx, "host-conn", "Alice", "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if err := service.Rejoin("000000", hostID, "new-conn"); err != domain.ErrRoomNotFound {
		t.Fatalf("expected room error, got %v", err)
	}
	if err := service.Rejoin(code, "ghost", "new-conn"); err != domain.ErrNotAMember {
		t.Fatalf("expected membership error, got %v", err)
	}
	if err := service.Rejoin(code, hostID, "new-conn"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
}
