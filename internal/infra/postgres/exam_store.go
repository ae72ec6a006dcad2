package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"simulado-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ExamStore persists exam definitions; questions are kept as a JSONB snapshot.
type ExamStore struct {
	pool *pgxpool.Pool
}

func NewExamStore(pool *pgxpool.Pool) *ExamStore {
	return &ExamStore{pool: pool}
}

func (s *ExamStore) InsertExam(ctx context.Context, exam domain.Exam) error {
	questions, err := json.Marshal(exam.Questions)
	if err != nil {
		return fmt.Errorf("marshal exam questions: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO exams (id, participant_name, exam_name, questions, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5)`,
		exam.ID, exam.ParticipantName, exam.ExamName, string(questions), exam.CreatedAt)
	if err != nil {
		return storeErr("insert exam", err)
	}
	return nil
}

// LoadExam reads one exam definition.
func (s *ExamStore) LoadExam(ctx context.Context, examID string) (domain.Exam, error) {
	if !validID(examID) {
		return domain.Exam{}, domain.ErrExamNotFound
	}

	var (
		exam domain.Exam
		raw  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, participant_name, exam_name, questions, created_at
		 FROM exams WHERE id = $1`, examID).
		Scan(&exam.ID, &exam.ParticipantName, &exam.ExamName, &raw, &exam.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	if err != nil {
		return domain.Exam{}, storeErr("load exam", err)
	}
	if err := json.Unmarshal(raw, &exam.Questions); err != nil {
		return domain.Exam{}, storeErr("unmarshal exam questions", err)
	}
	exam.CreatedAt = exam.CreatedAt.UTC()
	return exam, nil
}
