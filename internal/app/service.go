package app

import (
	"context"

	"trivia-room-service/internal/domain"
)

// QuestionSource loads question sets (from cache or a backing store).
type QuestionSource interface {
	GetSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// GameService contains the room/session use cases the gateway calls into.
type GameService struct {
	registry   *Registry
	sets       QuestionSource
	defaultSet string
}

func NewGameService(registry *Registry, sets QuestionSource, defaultSet string) *GameService {
	return &GameService{registry: registry, sets: sets, defaultSet: defaultSet}
}

// CreateRoom loads the requested question set (the configured default when
// setID is empty) and allocates a room with the caller as host.
func (s *GameService) CreateRoom(ctx context.Context, hostConnID, hostName, setID string) (string, string, error) {
	if setID == "" {
		setID = s.defaultSet
	}
	set, err := s.sets.GetSet(ctx, setID)
	if err != nil {
		return "", "", err
	}
	code, hostID := s.registry.Create(hostConnID, hostName, set.Questions)
	return code, hostID, nil
}

// Join mints a durable participant id and registers the connection in the
// room. It returns the new id, the updated roster and the host connection
// the roster push should go to.
func (s *GameService) Join(code, name, connID string) (string, []string, string, error) {
	room, ok := s.registry.Lookup(code)
	if !ok {
		return "", nil, "", domain.ErrRoomNotFound
	}
	userID := s.registry.NewParticipantID()
	players, err := room.Join(userID, name, connID)
	if err != nil {
		return "", nil, "", err
	}
	return userID, players, room.HostConnID(), nil
}

// Start begins the quiz. False means the room is unknown or already
// running; callers treat both as a no-op.
func (s *GameService) Start(code string) bool {
	room, ok := s.registry.Lookup(code)
	if !ok {
		return false
	}
	return room.Start()
}

// SubmitAnswer records a choice for the active question.
func (s *GameService) SubmitAnswer(code, userID string, choice int) error {
	room, ok := s.registry.Lookup(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.SubmitAnswer(userID, choice)
}

// Rejoin re-attaches a participant after a reconnect.
func (s *GameService) Rejoin(code, userID, connID string) error {
	room, ok := s.registry.Lookup(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Rejoin(userID, connID)
}

// Detach marks the participant's connection as gone. Membership is kept so
// the participant can rejoin later.
func (s *GameService) Detach(code, userID, connID string) {
	room, ok := s.registry.Lookup(code)
	if !ok {
		return
	}
	room.Detach(userID, connID)
}

// PlayerNames returns the roster for code, empty when the room is unknown.
func (s *GameService) PlayerNames(code string) []string {
	return s.registry.PlayerNames(code)
}
