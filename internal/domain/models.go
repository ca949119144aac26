package domain

// Question models an MCQ question with one correct answer and a fixed set
// of distractors.
type Question struct {
	Prompt      string   `json:"prompt"`
	Correct     string   `json:"correct"`
	Distractors []string `json:"distractors"`
}

// CorrectChoice is the position the correct answer occupies in the client
// projection. Choices are laid out distractors-first, so it is always the
// last slot.
func (q Question) CorrectChoice() int {
	return len(q.Distractors)
}

// Client returns the participant-safe projection of the question: prompt
// plus the full choice list with the correct answer in the last position
// and no correctness flags. Field names follow the wire contract the web
// client expects.
func (q Question) Client() ClientQuestion {
	choices := make([]string, 0, len(q.Distractors)+1)
	choices = append(choices, q.Distractors...)
	choices = append(choices, q.Correct)
	return ClientQuestion{Prompt: q.Prompt, Choices: choices}
}

// ClientQuestion is what participants see while a question is open.
type ClientQuestion struct {
	Prompt  string   `json:"Question"`
	Choices []string `json:"Choices"`
}

// QuestionSet is an ordered, immutable sequence of questions a room plays
// through. Rooms snapshot the Questions slice at creation.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Author    string     `json:"author"`
	Questions []Question `json:"questions"`
}

// LeaderboardEntry is one row of a room's scoreboard.
type LeaderboardEntry struct {
	Name  string
	Score int
}
