package memory

import (
	"context"
	"sort"

	"simulado-service/internal/domain"
)

// QuestionStore is a read-only question bank backed by a map (useful for tests/demos).
type QuestionStore struct {
	questions map[int64]domain.Question
}

func NewQuestionStore(questions ...domain.Question) *QuestionStore {
	s := &QuestionStore{questions: make(map[int64]domain.Question, len(questions))}
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	return s
}

func (s *QuestionStore) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	q.Alternatives = append([]string(nil), q.Alternatives...)
	return q, nil
}

func (s *QuestionStore) DistinctValues(_ context.Context, field domain.QuestionField) ([]string, error) {
	if !field.Valid() {
		return nil, domain.Invalid("unknown question field %q", field)
	}
	set := make(map[string]struct{})
	for _, q := range s.questions {
		if v := fieldValue(q, field); v != "" {
			set[v] = struct{}{}
		}
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func fieldValue(q domain.Question, field domain.QuestionField) string {
	switch field {
	case domain.FieldBoard:
		return q.Board
	case domain.FieldInstitution:
		return q.Institution
	case domain.FieldExam:
		return q.Exam
	case domain.FieldLevel:
		return q.Level
	case domain.FieldSubject:
		return q.Subject
	case domain.FieldTopic:
		return q.Topic
	}
	return ""
}
