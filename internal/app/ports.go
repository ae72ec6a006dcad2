package app

import (
	"context"

	"simulado-service/internal/domain"
)

// ExamStore persists exam definitions. Definitions are append-only.
type ExamStore interface {
	InsertExam(ctx context.Context, exam domain.Exam) error
}

// ExamRepository serves exam definitions (from cache/backing store).
type ExamRepository interface {
	GetExam(ctx context.Context, examID string) (domain.Exam, error)
}

// SubmissionStore persists submissions and answers the read-side projections.
type SubmissionStore interface {
	// InsertSubmission stores the submission row and every answer line, or nothing.
	InsertSubmission(ctx context.Context, sub domain.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error)
	// TallyExam returns one tally per submission of the exam, in no particular order.
	TallyExam(ctx context.Context, examID string) ([]domain.SubmissionTally, error)
}

// QuestionStore is the read-only question bank, used only while assembling exams.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id int64) (domain.Question, error)
	DistinctValues(ctx context.Context, field domain.QuestionField) ([]string, error)
}

// LeaderboardCache keeps built leaderboards until the next submission to the exam.
// Every exam has a generation that Invalidate advances; a board is only stored
// when it was built at the current generation.
type LeaderboardCache interface {
	Get(ctx context.Context, examID string) (domain.Leaderboard, bool)
	Generation(ctx context.Context, examID string) (int64, error)
	// Put stores lb unless the exam was invalidated after gen was read.
	Put(ctx context.Context, lb domain.Leaderboard, gen int64) error
	Invalidate(ctx context.Context, examID string) error
}
