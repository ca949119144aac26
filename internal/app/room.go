package app

import (
	"sort"
	"sync"
	"time"

	"trivia-room-service/internal/domain"
)

type phase int

const (
	phaseLobby phase = iota
	phaseInQuestion
	phaseRevealing
	phaseEnded
)

// Timing controls the shared clock of the question cycle.
type Timing struct {
	QuestionDuration time.Duration
	RevealDelay      time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.QuestionDuration <= 0 {
		t.QuestionDuration = 15 * time.Second
	}
	if t.RevealDelay <= 0 {
		t.RevealDelay = 5 * time.Second
	}
	return t
}

type participant struct {
	id     string
	name   string
	connID string // empty while disconnected
}

// ledger records submitted choices for one question index. Insertion order
// is preserved and an overwrite keeps the original position, so reveal and
// scoring walk submissions in first-seen order.
type ledger struct {
	choices map[string]int
	order   []string
}

func newLedger() *ledger {
	return &ledger{choices: make(map[string]int)}
}

func (l *ledger) record(userID string, choice int) {
	if _, ok := l.choices[userID]; !ok {
		l.order = append(l.order, userID)
	}
	l.choices[userID] = choice
}

// Room is one quiz session: membership, the active question cursor, the
// answer ledger, the score table and the question timer. All mutation is
// serialized through its own mutex; timer callbacks re-acquire it and are
// validated against a token so a stale fire is a no-op.
type Room struct {
	code       string
	hostConnID string
	sink       EventSink
	timing     Timing

	mu           sync.Mutex
	questions    []domain.Question
	participants map[string]*participant
	joinOrder    []string
	started      bool
	phase        phase
	current      int
	answers      map[int]*ledger
	scores       map[string]int
	scoreOrder   []string
	timer        *time.Timer
	timerToken   uint64
	lastActivity time.Time
	now          func() time.Time
}

func newRoom(code, hostConnID string, questions []domain.Question, sink EventSink, timing Timing) *Room {
	return newRoomWithClock(code, hostConnID, questions, sink, timing, time.Now)
}

// newRoomWithClock allows deterministic activity timestamps in tests.
func newRoomWithClock(code, hostConnID string, questions []domain.Question, sink EventSink, timing Timing, now func() time.Time) *Room {
	return &Room{
		code:         code,
		hostConnID:   hostConnID,
		sink:         sink,
		timing:       timing.withDefaults(),
		questions:    questions,
		participants: make(map[string]*participant),
		answers:      make(map[int]*ledger),
		scores:       make(map[string]int),
		lastActivity: now(),
		now:          now,
	}
}

// Code returns the room's code.
func (r *Room) Code() string { return r.code }

// HostConnID returns the connection that created the room; roster pushes
// are addressed to it.
func (r *Room) HostConnID() string { return r.hostConnID }

// Join inserts or refreshes a membership entry and returns the roster in
// join order. Joins are rejected once the quiz has started.
func (r *Room) Join(userID, name, connID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil, domain.ErrQuizStarted
	}
	if p, ok := r.participants[userID]; ok {
		p.name = name
		p.connID = connID
	} else {
		r.participants[userID] = &participant{id: userID, name: name, connID: connID}
		r.joinOrder = append(r.joinOrder, userID)
	}
	r.touchLocked()
	return r.rosterLocked(), nil
}

// Start flips the room out of the lobby and broadcasts the first question.
// It returns false without touching state when the quiz is already running.
func (r *Room) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return false
	}
	r.started = true
	r.current = 0
	// Defensive reset; a fresh room is already empty.
	r.scores = make(map[string]int)
	r.scoreOrder = nil
	r.answers = make(map[int]*ledger)
	r.touchLocked()
	r.enterQuestionLocked()
	return true
}

// SubmitAnswer records (or overwrites) the participant's choice for the
// currently active question and acks the submitting connection. Submissions
// before start or after the quiz ended are ignored without error, matching
// the client contract: no correctness feedback leaks before reveal.
func (r *Room) SubmitAnswer(userID string, choice int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.phase == phaseEnded {
		return nil
	}
	p, ok := r.participants[userID]
	if !ok {
		return domain.ErrNotAMember
	}
	led := r.answers[r.current]
	if led == nil {
		led = newLedger()
		r.answers[r.current] = led
	}
	led.record(userID, choice)
	r.touchLocked()
	if p.connID != "" {
		r.sink.Send(p.connID, Event{Type: EventAnswerAck, Payload: AnswerAckPayload{QuestionIndex: r.current}})
	}
	return nil
}

// Rejoin attaches a new connection id to a known participant. While the
// quiz is running it replays the current question and leaderboard to the
// reconnecting connection only; timers are left untouched.
func (r *Room) Rejoin(userID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[userID]
	if !ok {
		return domain.ErrNotAMember
	}
	p.connID = connID
	r.touchLocked()

	if r.started && r.current < len(r.questions) {
		q := r.questions[r.current]
		r.sink.Send(connID, Event{Type: EventNewQuestion, Payload: QuestionPayload{
			QuestionIndex: r.current,
			Question:      q.Client(),
			TimeLimit:     int(r.timing.QuestionDuration / time.Second),
		}})
		r.sink.Send(connID, Event{Type: EventLeaderboard, Payload: NewLeaderboardPayload(r.leaderboardLocked())})
	}
	return nil
}

// Detach clears the participant's connection id when it still matches the
// departing connection. Membership is retained; the participant can rejoin.
func (r *Room) Detach(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[userID]; ok && p.connID == connID {
		p.connID = ""
	}
}

// PlayerNames returns display names in join order.
func (r *Room) PlayerNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

// Leaderboard snapshots the score table, best score first, stable on ties
// in first-score order. Participants who never scored are not listed.
func (r *Room) Leaderboard() []domain.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaderboardLocked()
}

// Finished reports whether the room reached the terminal state.
func (r *Room) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == phaseEnded
}

// evictable reports whether the sweep may destroy the room: terminal, or
// idle longer than ttl.
func (r *Room) evictable(now time.Time, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase == phaseEnded || now.Sub(r.lastActivity) > ttl
}

func (r *Room) rosterLocked() []string {
	names := make([]string, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		names = append(names, r.participants[id].name)
	}
	return names
}

func (r *Room) leaderboardLocked() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(r.scoreOrder))
	for _, id := range r.scoreOrder {
		entries = append(entries, domain.LeaderboardEntry{
			Name:  r.participants[id].name,
			Score: r.scores[id],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

func (r *Room) touchLocked() {
	r.lastActivity = r.now()
}

// enterQuestionLocked starts the cycle for the current index, or ends the
// quiz when the index has run past the question list.
func (r *Room) enterQuestionLocked() {
	r.cancelTimerLocked()
	if r.current >= len(r.questions) {
		r.phase = phaseEnded
		r.broadcastLeaderboardLocked()
		return
	}
	r.phase = phaseInQuestion
	q := r.questions[r.current]
	r.broadcastLocked(Event{Type: EventNewQuestion, Payload: QuestionPayload{
		QuestionIndex: r.current,
		Question:      q.Client(),
		TimeLimit:     int(r.timing.QuestionDuration / time.Second),
	}})
	r.armTimerLocked(r.timing.QuestionDuration, r.revealLocked)
}

// revealLocked scores the ledger for the current question, tells every
// participant the outcome and schedules the advance to the next index.
func (r *Room) revealLocked() {
	r.phase = phaseRevealing
	r.touchLocked()

	q := r.questions[r.current]
	correct := q.CorrectChoice()
	led := r.answers[r.current]

	correctNames := make([]string, 0)
	if led != nil {
		for _, id := range led.order {
			if led.choices[id] != correct {
				continue
			}
			correctNames = append(correctNames, r.participants[id].name)
			if _, ok := r.scores[id]; !ok {
				r.scoreOrder = append(r.scoreOrder, id)
			}
			r.scores[id]++
		}
	}

	for _, id := range r.joinOrder {
		p := r.participants[id]
		if p.connID == "" {
			continue
		}
		payload := RevealPayload{
			QuestionIndex: r.current,
			CorrectAnswer: q.Correct,
			CorrectNames:  correctNames,
		}
		if led != nil {
			if choice, ok := led.choices[id]; ok {
				own := choice
				payload.YourAnswer = &own
			}
		}
		r.sink.Send(p.connID, Event{Type: EventRevealAnswers, Payload: payload})
	}

	r.broadcastLeaderboardLocked()

	r.armTimerLocked(r.timing.RevealDelay, func() {
		r.current++
		r.enterQuestionLocked()
	})
}

func (r *Room) broadcastLeaderboardLocked() {
	r.broadcastLocked(Event{Type: EventLeaderboard, Payload: NewLeaderboardPayload(r.leaderboardLocked())})
}

func (r *Room) broadcastLocked(ev Event) {
	for _, id := range r.joinOrder {
		if p := r.participants[id]; p.connID != "" {
			r.sink.Send(p.connID, ev)
		}
	}
}

// armTimerLocked replaces any pending timer with a new one-shot. The token
// captured by the callback invalidates fires that race a phase change.
func (r *Room) armTimerLocked(d time.Duration, fn func()) {
	r.cancelTimerLocked()
	token := r.timerToken
	r.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.timerToken != token {
			return
		}
		fn()
	})
}

func (r *Room) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerToken++
}
