package memory

import (
	"context"
	"fmt"
	"sync"

	"simulado-service/internal/domain"
)

// ExamStore keeps exam definitions in a map (useful for tests/demos).
type ExamStore struct {
	mu    sync.RWMutex
	exams map[string]domain.Exam
}

func NewExamStore() *ExamStore {
	return &ExamStore{exams: make(map[string]domain.Exam)}
}

func (s *ExamStore) InsertExam(_ context.Context, exam domain.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[exam.ID]; ok {
		return domain.StoreFailure("insert exam", fmt.Errorf("duplicate exam id %s", exam.ID))
	}
	s.exams[exam.ID] = cloneExam(exam)
	return nil
}

func (s *ExamStore) LoadExam(_ context.Context, examID string) (domain.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exam, ok := s.exams[examID]
	if !ok {
		return domain.Exam{}, domain.ErrExamNotFound
	}
	return cloneExam(exam), nil
}

func cloneExam(exam domain.Exam) domain.Exam {
	questions := make([]domain.QuestionSnapshot, len(exam.Questions))
	for i, q := range exam.Questions {
		q.Alternatives = append([]string(nil), q.Alternatives...)
		questions[i] = q
	}
	exam.Questions = questions
	return exam
}
