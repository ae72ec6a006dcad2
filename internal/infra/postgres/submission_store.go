package postgres

import (
	"context"
	"errors"
	"fmt"

	"simulado-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SubmissionStore persists submissions and their answer lines.
type SubmissionStore struct {
	pool *pgxpool.Pool
}

func NewSubmissionStore(pool *pgxpool.Pool) *SubmissionStore {
	return &SubmissionStore{pool: pool}
}

// InsertSubmission runs as a single transaction: the submission row goes first
// (lines reference it), then every line in one batch. Any failure rolls back all of it.
func (s *SubmissionStore) InsertSubmission(ctx context.Context, sub domain.Submission) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO submissions (id, exam_id, participant_name, created_at)
			 VALUES ($1, $2, $3, $4)`,
			sub.ID, sub.ExamID, sub.ParticipantName, sub.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}

		batch := &pgx.Batch{}
		for _, line := range sub.Lines {
			batch.Queue(
				`INSERT INTO question_answers (submission_id, position, question_id, given_answer, correct_answer)
				 VALUES ($1, $2, $3, $4, $5)`,
				sub.ID, line.Position, line.QuestionID, line.GivenAnswer, line.CorrectAnswer)
		}
		results := tx.SendBatch(ctx, batch)
		for i := range sub.Lines {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert answer line %d: %w", i+1, err)
			}
		}
		return results.Close()
	})
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err, "submissions_exam_id_fkey") {
		return domain.ErrExamNotFound
	}
	return storeErr("submission transaction", err)
}

func (s *SubmissionStore) GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error) {
	if !validID(submissionID) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}

	var sub domain.Submission
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, exam_id::text, participant_name, created_at
		 FROM submissions WHERE id = $1`, submissionID).
		Scan(&sub.ID, &sub.ExamID, &sub.ParticipantName, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, storeErr("load submission", err)
	}
	sub.CreatedAt = sub.CreatedAt.UTC()

	rows, err := s.pool.Query(ctx,
		`SELECT position, question_id, given_answer, correct_answer
		 FROM question_answers
		 WHERE submission_id = $1
		 ORDER BY position`, submissionID)
	if err != nil {
		return domain.Submission{}, storeErr("query answer lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.AnswerLine
		if err := rows.Scan(&line.Position, &line.QuestionID, &line.GivenAnswer, &line.CorrectAnswer); err != nil {
			return domain.Submission{}, storeErr("scan answer line", err)
		}
		sub.Lines = append(sub.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Submission{}, storeErr("iterate answer lines", err)
	}
	return sub, nil
}

// TallyExam counts correct and incorrect lines per submission. NULL on either
// side of the comparison makes it unknown, so such lines land in neither count.
func (s *SubmissionStore) TallyExam(ctx context.Context, examID string) ([]domain.SubmissionTally, error) {
	if !validID(examID) {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT s.id::text, s.participant_name, s.created_at,
		        COUNT(qa.id) FILTER (WHERE qa.given_answer = qa.correct_answer),
		        COUNT(qa.id) FILTER (WHERE qa.given_answer <> qa.correct_answer)
		 FROM submissions s
		 LEFT JOIN question_answers qa ON qa.submission_id = s.id
		 WHERE s.exam_id = $1
		 GROUP BY s.id, s.participant_name, s.created_at`, examID)
	if err != nil {
		return nil, storeErr("tally submissions", err)
	}
	defer rows.Close()

	var tallies []domain.SubmissionTally
	for rows.Next() {
		var t domain.SubmissionTally
		if err := rows.Scan(&t.SubmissionID, &t.ParticipantName, &t.CreatedAt, &t.CorrectCount, &t.IncorrectCount); err != nil {
			return nil, storeErr("scan tally", err)
		}
		t.CreatedAt = t.CreatedAt.UTC()
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate tallies", err)
	}
	return tallies, nil
}
