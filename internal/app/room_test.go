package app

import (
	"sync"
	"testing"
	"time"

	"trivia-room-service/internal/domain"
)

// recordingSink captures events per connection and mirrors them onto a
// buffered channel for tests that react to broadcasts.
type recordingSink struct {
	mu      sync.Mutex
	events  []sinkEvent
	signals chan sinkEvent
}

type sinkEvent struct {
	connID string
	event  Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{signals: make(chan sinkEvent, 256)}
}

func (s *recordingSink) Send(connID string, event Event) {
	s.mu.Lock()
	s.events = append(s.events, sinkEvent{connID: connID, event: event})
	s.mu.Unlock()
	select {
	case s.signals <- sinkEvent{connID: connID, event: event}:
	default:
	}
}

func (s *recordingSink) byType(eventType string) []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEvent
	for _, e := range s.events {
		if e.event.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) forConn(connID string) []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEvent
	for _, e := range s.events {
		if e.connID == connID {
			out = append(out, e)
		}
	}
	return out
}

// idleTiming keeps timers from firing during state-inspection tests.
var idleTiming = Timing{QuestionDuration: time.Hour, RevealDelay: time.Hour}

func sampleQuestions(n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, domain.Question{
			Prompt:      "Pick the last choice",
			Correct:     "right",
			Distractors: []string{"wrong-a", "wrong-b", "wrong-c"},
		})
	}
	return qs
}

func TestJoinRosterOrderAndLateJoinRejected(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(2), sink, idleTiming)

	joins := []struct{ id, name, conn string }{
		{"u1", "Alice", "c1"},
		{"u2", "Bob", "c2"},
		{"u3", "Carol", "c3"},
	}
	for _, j := range joins {
		if _, err := room.Join(j.id, j.name, j.conn); err != nil {
			t.Fatalf("join %s: %v", j.name, err)
		}
	}

	got := room.PlayerNames()
	want := []string{"Alice", "Bob", "Carol"}
	if len(got) != len(want) {
		t.Fatalf("roster size: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("roster order: got %v want %v", got, want)
		}
	}

	if !room.Start() {
		t.Fatalf("start failed")
	}
	if _, err := room.Join("u4", "Dave", "c4"); err != domain.ErrQuizStarted {
		t.Fatalf("expected ErrQuizStarted after start, got %v", err)
	}
	if names := room.PlayerNames(); len(names) != 3 {
		t.Fatalf("rejected join must not grow roster, got %v", names)
	}
}

func TestStartIsIdempotentSafe(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(2), sink, idleTiming)
	_, _ = room.Join("u1", "Alice", "c1")

	if !room.Start() {
		t.Fatalf("first start should succeed")
	}
	if err := room.SubmitAnswer("u1", 3); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if room.Start() {
		t.Fatalf("second start must return false")
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.current != 0 || room.phase != phaseInQuestion {
		t.Fatalf("second start must not reset the cycle: index=%d phase=%d", room.current, room.phase)
	}
	if led := room.answers[0]; led == nil || led.choices["u1"] != 3 {
		t.Fatalf("second start must not clear the ledger: %+v", room.answers[0])
	}
}

func TestCorrectChoiceIsLastSlotAndScoresMatch(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(1), sink, idleTiming)
	_, _ = room.Join("u1", "Alice", "c1")
	_, _ = room.Join("u2", "Bob", "c2")
	room.Start()

	questions := sink.byType(EventNewQuestion)
	if len(questions) != 2 {
		t.Fatalf("expected question broadcast to both participants, got %d", len(questions))
	}
	payload := questions[0].event.Payload.(QuestionPayload)
	correctPos := len(payload.Question.Choices) - 1
	if payload.Question.Choices[correctPos] != "right" {
		t.Fatalf("correct answer must occupy the last slot, got %v", payload.Question.Choices)
	}

	if err := room.SubmitAnswer("u1", correctPos); err != nil {
		t.Fatalf("submit correct: %v", err)
	}
	if err := room.SubmitAnswer("u2", 0); err != nil {
		t.Fatalf("submit wrong: %v", err)
	}

	room.mu.Lock()
	room.revealLocked()
	room.mu.Unlock()

	reveals := sink.byType(EventRevealAnswers)
	if len(reveals) != 2 {
		t.Fatalf("expected per-participant reveals, got %d", len(reveals))
	}
	for _, r := range reveals {
		p := r.event.Payload.(RevealPayload)
		if p.CorrectAnswer != "right" {
			t.Fatalf("correct answer text: %q", p.CorrectAnswer)
		}
		if len(p.CorrectNames) != 1 || p.CorrectNames[0] != "Alice" {
			t.Fatalf("correct names: %v", p.CorrectNames)
		}
		switch r.connID {
		case "c1":
			if p.YourAnswer == nil || *p.YourAnswer != correctPos {
				t.Fatalf("alice's own answer missing or wrong: %v", p.YourAnswer)
			}
		case "c2":
			if p.YourAnswer == nil || *p.YourAnswer != 0 {
				t.Fatalf("bob's own answer missing or wrong: %v", p.YourAnswer)
			}
		}
	}

	lb := room.Leaderboard()
	if len(lb) != 1 || lb[0].Name != "Alice" || lb[0].Score != 1 {
		t.Fatalf("only the correct position scores: %+v", lb)
	}
}

func TestLatestSubmissionWins(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(1), sink, idleTiming)
	_, _ = room.Join("u1", "Alice", "c1")
	room.Start()

	correctPos := 3
	if err := room.SubmitAnswer("u1", 0); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := room.SubmitAnswer("u1", correctPos); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	room.mu.Lock()
	room.revealLocked()
	room.mu.Unlock()

	lb := room.Leaderboard()
	if len(lb) != 1 || lb[0].Score != 1 {
		t.Fatalf("latest submission must be the one scored: %+v", lb)
	}
}

func TestLeaderboardDescendingStableOnTies(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(1), sink, idleTiming)
	_, _ = room.Join("a", "A", "c1")
	_, _ = room.Join("b", "B", "c2")
	_, _ = room.Join("c", "C", "c3")

	room.mu.Lock()
	room.scores = map[string]int{"a": 3, "b": 5, "c": 5}
	room.scoreOrder = []string{"a", "b", "c"}
	room.mu.Unlock()

	lb := room.Leaderboard()
	want := []domain.LeaderboardEntry{{Name: "B", Score: 5}, {Name: "C", Score: 5}, {Name: "A", Score: 3}}
	if len(lb) != len(want) {
		t.Fatalf("leaderboard size: %+v", lb)
	}
	for i := range want {
		if lb[i] != want[i] {
			t.Fatalf("leaderboard order: got %+v want %+v", lb, want)
		}
	}
}

func TestRejoinReplaysCurrentQuestionToRejoinerOnly(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(4), sink, idleTiming)
	_, _ = room.Join("u1", "Alice", "c1")
	_, _ = room.Join("u2", "Bob", "c2")
	room.Start()

	// Simulate a running game at question 2.
	room.mu.Lock()
	room.current = 2
	room.phase = phaseInQuestion
	room.mu.Unlock()

	before := len(sink.forConn("c2"))

	if err := room.Rejoin("u1", "c1-new"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	replayed := sink.forConn("c1-new")
	if len(replayed) != 2 {
		t.Fatalf("expected question + leaderboard replay, got %d events", len(replayed))
	}
	if replayed[0].event.Type != EventNewQuestion {
		t.Fatalf("first replay event: %s", replayed[0].event.Type)
	}
	if q := replayed[0].event.Payload.(QuestionPayload); q.QuestionIndex != 2 {
		t.Fatalf("replayed index: %d", q.QuestionIndex)
	}
	if replayed[1].event.Type != EventLeaderboard {
		t.Fatalf("second replay event: %s", replayed[1].event.Type)
	}
	if after := len(sink.forConn("c2")); after != before {
		t.Fatalf("rejoin must not broadcast to other participants")
	}
}

func TestRejoinBeforeStartAndAfterEndReplaysNothing(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(1), sink, idleTiming)
	_, _ = room.Join("u1", "Alice", "c1")

	if err := room.Rejoin("u1", "c1-new"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if got := sink.forConn("c1-new"); len(got) != 0 {
		t.Fatalf("lobby rejoin must not replay, got %v", got)
	}

	if err := room.Rejoin("ghost", "c9"); err != domain.ErrNotAMember {
		t.Fatalf("unknown participant: %v", err)
	}

	room.Start()
	room.mu.Lock()
	room.current = len(room.questions)
	room.enterQuestionLocked()
	room.mu.Unlock()

	before := len(sink.forConn("c1-new"))
	if err := room.Rejoin("u1", "c1-new"); err != nil {
		t.Fatalf("rejoin after end: %v", err)
	}
	if after := len(sink.forConn("c1-new")); after != before {
		t.Fatalf("ended rejoin must not replay")
	}
}

func TestStaleTimerFireIsNoOp(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(1), sink, idleTiming)

	fired := false
	room.mu.Lock()
	room.armTimerLocked(5*time.Millisecond, func() { fired = true })
	room.cancelTimerLocked()
	room.mu.Unlock()

	time.Sleep(40 * time.Millisecond)

	room.mu.Lock()
	defer room.mu.Unlock()
	if fired {
		t.Fatalf("canceled timer must not act")
	}
}

func TestQuizRunsToCompletion(t *testing.T) {
	sink := newRecordingSink()
	timing := Timing{QuestionDuration: 40 * time.Millisecond, RevealDelay: 20 * time.Millisecond}
	room := newRoom("123456", "host-conn", sampleQuestions(3), sink, timing)
	_, _ = room.Join("u1", "Alice", "c1")
	_, _ = room.Join("u2", "Bob", "c2")

	room.Start()

	correctPos := 3
	deadline := time.After(5 * time.Second)
	for !room.Finished() {
		select {
		case ev := <-sink.signals:
			if ev.event.Type != EventNewQuestion {
				continue
			}
			// Everyone answers correctly as soon as the question lands.
			if err := room.SubmitAnswer("u1", correctPos); err != nil {
				t.Fatalf("submit u1: %v", err)
			}
			if err := room.SubmitAnswer("u2", correctPos); err != nil {
				t.Fatalf("submit u2: %v", err)
			}
		case <-deadline:
			t.Fatalf("quiz did not finish in time")
		}
	}

	lb := room.Leaderboard()
	if len(lb) != 2 {
		t.Fatalf("expected both participants on the final leaderboard, got %+v", lb)
	}
	for _, entry := range lb {
		if entry.Score != 3 {
			t.Fatalf("every participant answered all 3 correctly, got %+v", lb)
		}
	}

	if reveals := sink.byType(EventRevealAnswers); len(reveals) != 6 {
		t.Fatalf("expected 3 reveal cycles x 2 participants, got %d", len(reveals))
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if room.timer != nil {
		t.Fatalf("no timer may stay armed after the quiz ends")
	}
	if room.phase != phaseEnded {
		t.Fatalf("expected terminal phase, got %d", room.phase)
	}
}

func TestSubmitAfterEndIsSilentlyIgnored(t *testing.T) {
	sink := newRecordingSink()
	room := newRoom("123456", "host-conn", sampleQuestions(1), sink, idleTiming)
	_, _ = room.Join("u1", "Alice", "c1")
	room.Start()

	room.mu.Lock()
	room.current = len(room.questions)
	room.enterQuestionLocked()
	room.mu.Unlock()

	acksBefore := len(sink.byType(EventAnswerAck))
	if err := room.SubmitAnswer("u1", 3); err != nil {
		t.Fatalf("late submit must not error: %v", err)
	}
	if acks := len(sink.byType(EventAnswerAck)); acks != acksBefore {
		t.Fatalf("late submit must not be acked")
	}
}
