package memory

import (
	"context"
	"sync"

	"simulado-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// ExamLoader fetches exam definitions from the backing store.
type ExamLoader interface {
	LoadExam(ctx context.Context, examID string) (domain.Exam, error)
}

// ExamRepository keeps up to capacity exam definitions in memory. Definitions
// are immutable, so entries never expire; once full, the definition loaded
// first is evicted. A capacity <= 0 means unbounded.
type ExamRepository struct {
	loader   ExamLoader
	capacity int
	sf       singleflight.Group

	mu    sync.RWMutex
	exams map[string]domain.Exam
	order []string
}

func NewExamRepository(loader ExamLoader, capacity int) *ExamRepository {
	return &ExamRepository{
		loader:   loader,
		capacity: capacity,
		exams:    make(map[string]domain.Exam),
	}
}

func (r *ExamRepository) GetExam(ctx context.Context, examID string) (domain.Exam, error) {
	r.mu.RLock()
	exam, ok := r.exams[examID]
	r.mu.RUnlock()
	if ok {
		return exam, nil
	}

	result, err, _ := r.sf.Do(examID, func() (interface{}, error) {
		exam, err := r.loader.LoadExam(ctx, examID)
		if err != nil {
			return domain.Exam{}, err
		}
		r.remember(exam)
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

// Len reports how many definitions are held.
func (r *ExamRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.exams)
}

func (r *ExamRepository) remember(exam domain.Exam) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.exams[exam.ID]; ok {
		return
	}
	if r.capacity > 0 && len(r.order) >= r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.exams, oldest)
	}
	r.exams[exam.ID] = exam
	r.order = append(r.order, exam.ID)
}
