package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"simulado-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ExamLoader fetches exam definitions from the backing store.
type ExamLoader interface {
	LoadExam(ctx context.Context, examID string) (domain.Exam, error)
}

// ExamRepository caches exam definitions in Redis and falls back to a loader on cache miss.
// Definitions are stored as JSON: SET exam:{examID}:definition {json} EX ttl
type ExamRepository struct {
	client *redis.Client
	loader ExamLoader
	ttl    time.Duration
	log    *zap.Logger
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewExamRepository(client *redis.Client, loader ExamLoader, ttl time.Duration, log *zap.Logger) *ExamRepository {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExamRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ExamRepository) GetExam(ctx context.Context, examID string) (domain.Exam, error) {
	if exam, ok := r.cached(ctx, examID); ok {
		return exam, nil
	}

	result, err, _ := r.sf.Do(examID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if exam, ok := r.cached(ctx, examID); ok {
			return exam, nil
		}

		exam, err := r.loader.LoadExam(ctx, examID)
		if err != nil {
			return domain.Exam{}, err
		}

		raw, err := json.Marshal(exam)
		if err != nil {
			return exam, nil
		}
		if err := r.client.Set(ctx, r.key(examID), raw, r.ttlWithJitter()).Err(); err != nil {
			r.log.Warn("exam cache write failed", zap.String("examId", examID), zap.Error(err))
		}
		return exam, nil
	})
	if err != nil {
		return domain.Exam{}, err
	}
	return result.(domain.Exam), nil
}

func (r *ExamRepository) cached(ctx context.Context, examID string) (domain.Exam, bool) {
	raw, err := r.client.Get(ctx, r.key(examID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn("exam cache read failed", zap.String("examId", examID), zap.Error(err))
		}
		return domain.Exam{}, false
	}
	var exam domain.Exam
	if err := json.Unmarshal(raw, &exam); err != nil {
		return domain.Exam{}, false
	}
	return exam, true
}

func (r *ExamRepository) key(examID string) string {
	return "exam:" + examID + ":definition"
}

func (r *ExamRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
