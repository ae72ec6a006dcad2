package app

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"simulado-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("simulado-service/app")

// ExamService contains the exam, intake, report and leaderboard use cases.
type ExamService struct {
	exams       ExamStore
	examCache   ExamRepository
	submissions SubmissionStore
	questions   QuestionStore
	boards      LeaderboardCache
	hub         *LeaderboardHub
	log         *zap.Logger
	now         func() time.Time
	newID       func() string
	validate    *validator.Validate
}

// Option customizes an ExamService.
type Option func(*ExamService)

// WithLeaderboardCache keeps built leaderboards until the next submission.
func WithLeaderboardCache(cache LeaderboardCache) Option {
	return func(s *ExamService) { s.boards = cache }
}

// WithHub shares a hub between services; a private one is created otherwise.
func WithHub(hub *LeaderboardHub) Option {
	return func(s *ExamService) { s.hub = hub }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *ExamService) { s.log = log }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *ExamService) { s.now = now }
}

// WithIDGenerator is used by tests for deterministic ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *ExamService) { s.newID = newID }
}

func NewExamService(exams ExamStore, examCache ExamRepository, submissions SubmissionStore, questions QuestionStore, opts ...Option) *ExamService {
	s := &ExamService{
		exams:       exams,
		examCache:   examCache,
		submissions: submissions,
		questions:   questions,
		log:         zap.NewNop(),
		now:         time.Now,
		newID:       uuid.NewString,
		validate:    newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewLeaderboardHub()
	}
	return s
}

type createExamInput struct {
	ParticipantName string                    `json:"participantName" validate:"required"`
	ExamName        string                    `json:"examName" validate:"required"`
	Questions       []domain.QuestionSnapshot `json:"questions" validate:"required,min=1,dive"`
}

type submitInput struct {
	ExamID          string               `json:"examId" validate:"required"`
	ParticipantName string               `json:"participantName" validate:"required"`
	Answers         []domain.AnswerInput `json:"answers" validate:"required,min=1"`
}

// CreateExam stores an immutable exam definition and returns its id.
func (s *ExamService) CreateExam(ctx context.Context, participantName, examName string, questions []domain.QuestionSnapshot) (string, error) {
	ctx, span := tracer.Start(ctx, "ExamService.CreateExam")
	defer span.End()

	in := createExamInput{
		ParticipantName: strings.TrimSpace(participantName),
		ExamName:        strings.TrimSpace(examName),
		Questions:       questions,
	}
	if err := s.check(in); err != nil {
		return "", err
	}

	snapshots := make([]domain.QuestionSnapshot, 0, len(questions))
	seen := make(map[int64]struct{}, len(questions))
	for i, q := range questions {
		if _, dup := seen[q.QuestionID]; dup {
			return "", domain.Invalid("questions[%d]: question %d listed twice", i, q.QuestionID)
		}
		seen[q.QuestionID] = struct{}{}
		q.Alternatives = append([]string(nil), q.Alternatives...)
		snapshots = append(snapshots, q)
	}

	exam := domain.Exam{
		ID:              s.newID(),
		ParticipantName: in.ParticipantName,
		ExamName:        in.ExamName,
		Questions:       snapshots,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.exams.InsertExam(ctx, exam); err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("exam.id", exam.ID))
	s.log.Info("exam created",
		zap.String("examId", exam.ID),
		zap.String("examName", exam.ExamName),
		zap.Int("questions", len(exam.Questions)))
	return exam.ID, nil
}

// AssembleExam snapshots questions from the bank and stores them as a new exam.
func (s *ExamService) AssembleExam(ctx context.Context, participantName, examName string, questionIDs []int64) (string, error) {
	ctx, span := tracer.Start(ctx, "ExamService.AssembleExam")
	defer span.End()

	if len(questionIDs) == 0 {
		return "", domain.Invalid("questionIds is required")
	}
	snapshots := make([]domain.QuestionSnapshot, 0, len(questionIDs))
	for _, id := range questionIDs {
		q, err := s.questions.GetQuestion(ctx, id)
		if err != nil {
			return "", err
		}
		snapshots = append(snapshots, q.Snapshot())
	}
	return s.CreateExam(ctx, participantName, examName, snapshots)
}

// GetExam returns a stored exam definition.
func (s *ExamService) GetExam(ctx context.Context, examID string) (domain.Exam, error) {
	examID = strings.TrimSpace(examID)
	if examID == "" {
		return domain.Exam{}, domain.Invalid("examId is required")
	}
	return s.examCache.GetExam(ctx, examID)
}

// Question looks a question up in the bank.
func (s *ExamService) Question(ctx context.Context, id int64) (domain.Question, error) {
	if id <= 0 {
		return domain.Question{}, domain.Invalid("question id must be positive")
	}
	return s.questions.GetQuestion(ctx, id)
}

// DistinctValues lists the values a metadata field takes across the bank.
func (s *ExamService) DistinctValues(ctx context.Context, field domain.QuestionField) ([]string, error) {
	if !field.Valid() {
		return nil, domain.Invalid("unknown question field %q", field)
	}
	return s.questions.DistinctValues(ctx, field)
}

// SubmitAnswers records one attempt at an exam. The returned id is only handed
// out once the submission and all of its lines are committed.
func (s *ExamService) SubmitAnswers(ctx context.Context, examID, participantName string, answers []domain.AnswerInput) (string, error) {
	ctx, span := tracer.Start(ctx, "ExamService.SubmitAnswers")
	defer span.End()

	in := submitInput{
		ExamID:          strings.TrimSpace(examID),
		ParticipantName: strings.TrimSpace(participantName),
		Answers:         answers,
	}
	if err := s.check(in); err != nil {
		return "", err
	}

	exam, err := s.examCache.GetExam(ctx, in.ExamID)
	if err != nil {
		return "", err
	}
	lines, err := snapshotLines(exam, answers)
	if err != nil {
		return "", err
	}

	sub := domain.Submission{
		ID:              s.newID(),
		ExamID:          exam.ID,
		ParticipantName: in.ParticipantName,
		CreatedAt:       s.now().UTC(),
		Lines:           lines,
	}
	if err := s.submissions.InsertSubmission(ctx, sub); err != nil {
		s.log.Error("submission rejected by store", zap.String("examId", exam.ID), zap.Error(err))
		return "", err
	}
	span.SetAttributes(attribute.String("submission.id", sub.ID))
	s.log.Info("submission stored",
		zap.String("submissionId", sub.ID),
		zap.String("examId", exam.ID),
		zap.Int("answers", len(lines)))

	s.refreshLeaderboard(ctx, exam.ID)
	return sub.ID, nil
}

// refreshLeaderboard drops the cached leaderboard and pushes a rebuilt one to
// live subscribers. The submission is already durable, so failures are only logged.
func (s *ExamService) refreshLeaderboard(ctx context.Context, examID string) {
	if s.boards != nil {
		if err := s.boards.Invalidate(ctx, examID); err != nil {
			s.log.Warn("leaderboard cache invalidation failed", zap.String("examId", examID), zap.Error(err))
		}
	}
	if s.hub.Subscribers(examID) == 0 {
		return
	}
	lb, gen, err := s.leaderboard(ctx, examID)
	if err != nil {
		s.log.Warn("leaderboard rebuild failed", zap.String("examId", examID), zap.Error(err))
		return
	}
	s.hub.publish(lb, gen)
}

// ScoreReport builds the correctness breakdown of one submission.
func (s *ExamService) ScoreReport(ctx context.Context, submissionID string) (domain.ScoreReport, error) {
	ctx, span := tracer.Start(ctx, "ExamService.ScoreReport")
	defer span.End()

	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return domain.ScoreReport{}, domain.Invalid("submissionId is required")
	}
	sub, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return domain.ScoreReport{}, err
	}
	exam, err := s.examCache.GetExam(ctx, sub.ExamID)
	if err != nil {
		return domain.ScoreReport{}, err
	}
	return buildScoreReport(exam, sub)
}

// Leaderboard ranks every submission of an exam by correct answers.
func (s *ExamService) Leaderboard(ctx context.Context, examID string) (domain.Leaderboard, error) {
	ctx, span := tracer.Start(ctx, "ExamService.Leaderboard")
	defer span.End()

	examID = strings.TrimSpace(examID)
	if examID == "" {
		return domain.Leaderboard{}, domain.Invalid("examId is required")
	}
	lb, _, err := s.leaderboard(ctx, examID)
	return lb, err
}

// leaderboard serves the cached board or rebuilds it. The returned generation
// is the one read before tallying; a board is never cached or published as
// newer than the invalidations it has seen.
func (s *ExamService) leaderboard(ctx context.Context, examID string) (domain.Leaderboard, int64, error) {
	var (
		gen       int64
		cacheable = s.boards != nil
	)
	if cacheable {
		var err error
		if gen, err = s.boards.Generation(ctx, examID); err != nil {
			s.log.Warn("leaderboard generation read failed", zap.String("examId", examID), zap.Error(err))
			cacheable = false
		} else if lb, ok := s.boards.Get(ctx, examID); ok {
			return lb, gen, nil
		}
	}

	tallies, err := s.submissions.TallyExam(ctx, examID)
	if err != nil {
		return domain.Leaderboard{}, 0, err
	}
	if len(tallies) == 0 {
		return domain.Leaderboard{}, 0, domain.ErrNoSubmissions
	}
	lb := domain.Leaderboard{
		ExamID:    examID,
		Entries:   rankTallies(tallies),
		UpdatedAt: s.now().UTC(),
	}

	if cacheable {
		if err := s.boards.Put(ctx, lb, gen); err != nil {
			s.log.Warn("leaderboard cache write failed", zap.String("examId", examID), zap.Error(err))
		}
	}
	return lb, gen, nil
}

// Subscribe returns a channel that receives the exam's leaderboard now (if anyone
// has submitted) and after every later submission.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ExamService) Subscribe(ctx context.Context, examID string) (<-chan domain.Leaderboard, func(), error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, nil, err
	}

	ch, cancel := s.hub.subscribe(exam.ID)
	lb, gen, err := s.leaderboard(ctx, exam.ID)
	switch {
	case err == nil:
		s.hub.offer(ch, lb, gen)
	case errors.Is(err, domain.ErrNoSubmissions):
	default:
		cancel()
		return nil, nil, err
	}
	return ch, cancel, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// check runs struct validation and reports the first failure as ErrValidation.
func (s *ExamService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.Invalid("%v", err)
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return domain.Invalid("%s is required", field)
	case "min":
		return domain.Invalid("%s must not be empty", field)
	default:
		return domain.Invalid("%s is invalid", field)
	}
}
