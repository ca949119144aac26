package app

import "trivia-room-service/internal/domain"

// Event names shared with the web client. Inbound names live in the
// transport package; these are the ones the room machinery emits.
const (
	EventNewQuestion   = "new_question"
	EventAnswerAck     = "answer_submitted"
	EventRevealAnswers = "reveal_answers"
	EventLeaderboard   = "leaderboard_update"
)

// Event is one outbound message addressed to a single connection.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EventSink delivers events to transport connections. The websocket gateway
// implements it over live connections; tests use a recorder. A send to a
// connection id that is no longer attached must be dropped, never fail.
type EventSink interface {
	Send(connID string, event Event)
}

// QuestionPayload is broadcast when a room enters a question.
type QuestionPayload struct {
	QuestionIndex int                   `json:"questionIndex"`
	Question      domain.ClientQuestion `json:"question"`
	TimeLimit     int                   `json:"timeLimit"`
}

// AnswerAckPayload confirms a recorded submission to its sender.
type AnswerAckPayload struct {
	QuestionIndex int `json:"questionIndex"`
}

// RevealPayload is sent per participant after the question timer expires.
// YourAnswer is absent when the participant did not submit.
type RevealPayload struct {
	QuestionIndex int      `json:"questionIndex"`
	CorrectAnswer string   `json:"correctAnswer"`
	CorrectNames  []string `json:"correctNames"`
	YourAnswer    *int     `json:"yourAnswer,omitempty"`
}

// LeaderboardPayload carries [name, score] pairs, best first.
type LeaderboardPayload struct {
	Leaderboard [][]any `json:"leaderboard"`
}

// NewLeaderboardPayload converts scoreboard entries into the pair form the
// client renders.
func NewLeaderboardPayload(entries []domain.LeaderboardEntry) LeaderboardPayload {
	pairs := make([][]any, 0, len(entries))
	for _, e := range entries {
		pairs = append(pairs, []any{e.Name, e.Score})
	}
	return LeaderboardPayload{Leaderboard: pairs}
}
