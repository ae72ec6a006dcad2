package domain

import "time"

// Question is a question bank entry. The bank is read-only from this service.
type Question struct {
	ID            int64    `json:"id"`
	Board         string   `json:"board"`
	Institution   string   `json:"institution"`
	Exam          string   `json:"exam"`
	Level         string   `json:"level"`
	Subject       string   `json:"subject"`
	Topic         string   `json:"topic"`
	Prompt        string   `json:"prompt"`
	AuxText       string   `json:"auxText,omitempty"`
	Alternatives  []string `json:"alternatives"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuestionField names a metadata column of the question bank.
type QuestionField string

const (
	FieldBoard       QuestionField = "board"
	FieldInstitution QuestionField = "institution"
	FieldExam        QuestionField = "exam"
	FieldLevel       QuestionField = "level"
	FieldSubject     QuestionField = "subject"
	FieldTopic       QuestionField = "topic"
)

// Valid reports whether f is a known metadata field.
func (f QuestionField) Valid() bool {
	switch f {
	case FieldBoard, FieldInstitution, FieldExam, FieldLevel, FieldSubject, FieldTopic:
		return true
	}
	return false
}

// QuestionSnapshot is a copy of a question taken when an exam is assembled.
type QuestionSnapshot struct {
	QuestionID    int64    `json:"questionId" validate:"required,gt=0"`
	Prompt        string   `json:"prompt" validate:"required"`
	AuxText       string   `json:"auxText,omitempty"`
	Alternatives  []string `json:"alternatives"`
	CorrectAnswer string   `json:"correctAnswer" validate:"required"`
	Explanation   string   `json:"explanation,omitempty"`
	Subject       string   `json:"subject,omitempty"`
	Topic         string   `json:"topic,omitempty"`
}

// Snapshot copies the fields an exam definition keeps from q.
func (q Question) Snapshot() QuestionSnapshot {
	alternatives := make([]string, len(q.Alternatives))
	copy(alternatives, q.Alternatives)
	return QuestionSnapshot{
		QuestionID:    q.ID,
		Prompt:        q.Prompt,
		AuxText:       q.AuxText,
		Alternatives:  alternatives,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Subject:       q.Subject,
		Topic:         q.Topic,
	}
}

// Exam is an immutable simulado: a named, ordered set of question snapshots.
type Exam struct {
	ID              string             `json:"id"`
	ParticipantName string             `json:"participantName"`
	ExamName        string             `json:"examName"`
	Questions       []QuestionSnapshot `json:"questions"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// Question returns the snapshot with the given id.
func (e Exam) Question(id int64) (QuestionSnapshot, bool) {
	for _, q := range e.Questions {
		if q.QuestionID == id {
			return q, true
		}
	}
	return QuestionSnapshot{}, false
}

// AnswerInput is one line of an intake request.
// CorrectAnswer is accepted for compatibility but replaced by the exam snapshot.
type AnswerInput struct {
	QuestionID    int64   `json:"questionId"`
	GivenAnswer   *string `json:"givenAnswer"`
	CorrectAnswer *string `json:"correctAnswer,omitempty"`
}

// AnswerLine is a persisted per-question response.
type AnswerLine struct {
	Position      int     `json:"position"`
	QuestionID    int64   `json:"questionId"`
	GivenAnswer   *string `json:"givenAnswer"`
	CorrectAnswer *string `json:"correctAnswer"`
}

// Correct reports whether both answers are present and equal.
func (l AnswerLine) Correct() bool {
	return l.GivenAnswer != nil && l.CorrectAnswer != nil && *l.GivenAnswer == *l.CorrectAnswer
}

// Incorrect reports whether both answers are present and differ.
func (l AnswerLine) Incorrect() bool {
	return l.GivenAnswer != nil && l.CorrectAnswer != nil && *l.GivenAnswer != *l.CorrectAnswer
}

// Submission is one participant's attempt at an exam.
type Submission struct {
	ID              string       `json:"id"`
	ExamID          string       `json:"examId"`
	ParticipantName string       `json:"participantName"`
	CreatedAt       time.Time    `json:"createdAt"`
	Lines           []AnswerLine `json:"lines"`
}

// SubmissionTally is the per-submission aggregate the leaderboard ranks.
type SubmissionTally struct {
	SubmissionID    string
	ParticipantName string
	CreatedAt       time.Time
	CorrectCount    int
	IncorrectCount  int
}

// QuestionResult is one row of a score report.
type QuestionResult struct {
	QuestionID    int64   `json:"questionId"`
	Prompt        string  `json:"prompt"`
	CorrectAnswer *string `json:"correctAnswer"`
	GivenAnswer   *string `json:"givenAnswer"`
	IsCorrect     bool    `json:"isCorrect"`
}

// ScoreReport is the correctness breakdown of a single submission.
type ScoreReport struct {
	SubmissionID    string           `json:"submissionId"`
	ExamID          string           `json:"examId"`
	ExamName        string           `json:"examName"`
	ParticipantName string           `json:"participantName"`
	PerQuestion     []QuestionResult `json:"perQuestion"`
	CorrectCount    int              `json:"correctCount"`
	TotalCount      int              `json:"totalCount"`
	ScorePercent    float64          `json:"scorePercent"`
	Score           string           `json:"score"`
}

// LeaderboardEntry is a ranked submission.
type LeaderboardEntry struct {
	Rank            int       `json:"rank"`
	SubmissionID    string    `json:"submissionId"`
	ParticipantName string    `json:"participantName"`
	CorrectCount    int       `json:"correctCount"`
	IncorrectCount  int       `json:"incorrectCount"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

// Leaderboard captures the ranked submissions of one exam.
type Leaderboard struct {
	ExamID    string             `json:"examId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
