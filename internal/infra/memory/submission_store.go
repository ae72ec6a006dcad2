package memory

import (
	"context"
	"fmt"
	"sync"

	"simulado-service/internal/domain"
)

// SubmissionStore is an in-memory implementation of app.SubmissionStore.
// A submission and its lines are checked in full before anything is stored.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]domain.Submission
	byExam      map[string][]string
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[string]domain.Submission),
		byExam:      make(map[string][]string),
	}
}

func (s *SubmissionStore) InsertSubmission(_ context.Context, sub domain.Submission) error {
	seen := make(map[int64]struct{}, len(sub.Lines))
	for _, line := range sub.Lines {
		if _, dup := seen[line.QuestionID]; dup {
			return domain.StoreFailure("insert answer lines",
				fmt.Errorf("duplicate question %d in submission %s", line.QuestionID, sub.ID))
		}
		seen[line.QuestionID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[sub.ID]; ok {
		return domain.StoreFailure("insert submission", fmt.Errorf("duplicate submission id %s", sub.ID))
	}
	s.submissions[sub.ID] = cloneSubmission(sub)
	s.byExam[sub.ExamID] = append(s.byExam[sub.ExamID], sub.ID)
	return nil
}

func (s *SubmissionStore) GetSubmission(_ context.Context, submissionID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(sub), nil
}

func (s *SubmissionStore) TallyExam(_ context.Context, examID string) ([]domain.SubmissionTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byExam[examID]
	tallies := make([]domain.SubmissionTally, 0, len(ids))
	for _, id := range ids {
		sub := s.submissions[id]
		t := domain.SubmissionTally{
			SubmissionID:    sub.ID,
			ParticipantName: sub.ParticipantName,
			CreatedAt:       sub.CreatedAt,
		}
		for _, line := range sub.Lines {
			switch {
			case line.Correct():
				t.CorrectCount++
			case line.Incorrect():
				t.IncorrectCount++
			}
		}
		tallies = append(tallies, t)
	}
	return tallies, nil
}

// Len reports how many submissions are stored.
func (s *SubmissionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.submissions)
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	sub.Lines = append([]domain.AnswerLine(nil), sub.Lines...)
	return sub
}
