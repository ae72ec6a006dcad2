package app_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"simulado-service/internal/app"
	"simulado-service/internal/domain"
	"simulado-service/internal/infra/memory"
)

type fixture struct {
	service     *app.ExamService
	submissions *memory.SubmissionStore
	bank        *mutableBank
	clock       *stepClock
}

func newFixture(t *testing.T, opts ...app.Option) fixture {
	t.Helper()
	exams := memory.NewExamStore()
	submissions := memory.NewSubmissionStore()
	bank := &mutableBank{questions: map[int64]domain.Question{
		10: {ID: 10, Subject: "Matemática", Prompt: "2 + 2?", Alternatives: []string{"3", "4"}, CorrectAnswer: "B"},
		11: {ID: 11, Subject: "Português", Prompt: "Crase?", CorrectAnswer: "A"},
	}}
	clock := &stepClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC), step: time.Second}
	ids := &sequence{}

	base := []app.Option{
		app.WithLeaderboardCache(memory.NewLeaderboardCache(time.Minute)),
		app.WithClock(clock.Now),
		app.WithIDGenerator(ids.Next),
	}
	service := app.NewExamService(exams, memory.NewExamRepository(exams, 64), submissions, bank, append(base, opts...)...)
	return fixture{service: service, submissions: submissions, bank: bank, clock: clock}
}

func (f fixture) createExam(t *testing.T, correct ...string) string {
	t.Helper()
	questions := make([]domain.QuestionSnapshot, 0, len(correct))
	for i, c := range correct {
		questions = append(questions, domain.QuestionSnapshot{
			QuestionID:    int64(i + 1),
			Prompt:        fmt.Sprintf("Q%d", i+1),
			CorrectAnswer: c,
		})
	}
	id, err := f.service.CreateExam(context.Background(), "Ana", "Simulado", questions)
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	return id
}

func (f fixture) submit(t *testing.T, examID, name string, given ...string) string {
	t.Helper()
	id, err := f.service.SubmitAnswers(context.Background(), examID, name, answers(given...))
	if err != nil {
		t.Fatalf("submit %s: %v", name, err)
	}
	return id
}

// answers maps given[i] to question i+1; an empty string leaves the question unanswered.
func answers(given ...string) []domain.AnswerInput {
	out := make([]domain.AnswerInput, 0, len(given))
	for i, g := range given {
		in := domain.AnswerInput{QuestionID: int64(i + 1)}
		if g != "" {
			g := g
			in.GivenAnswer = &g
		}
		out = append(out, in)
	}
	return out
}

func TestScoreReportCountsCorrectAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, "A", "B", "C")
	subID := f.submit(t, examID, "Ana", "A", "X", "C")

	report, err := f.service.ScoreReport(ctx, subID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.CorrectCount != 2 || report.TotalCount != 3 {
		t.Fatalf("expected 2/3, got %d/%d", report.CorrectCount, report.TotalCount)
	}
	if math.Abs(report.ScorePercent-200.0/3) > 1e-12 {
		t.Fatalf("expected 66.666..., got %v", report.ScorePercent)
	}
	if report.Score != "66.66666666666667%" {
		t.Fatalf("unexpected formatted score %q", report.Score)
	}
	want := []bool{true, false, true}
	for i, r := range report.PerQuestion {
		if r.IsCorrect != want[i] {
			t.Fatalf("line %d: expected isCorrect=%v", i, want[i])
		}
		if r.Prompt != fmt.Sprintf("Q%d", i+1) {
			t.Fatalf("line %d: unexpected prompt %q", i, r.Prompt)
		}
	}
	if report.ExamName != "Simulado" || report.ParticipantName != "Ana" || report.ExamID != examID {
		t.Fatalf("unexpected report header %+v", report)
	}

	again, err := f.service.ScoreReport(ctx, subID)
	if err != nil {
		t.Fatalf("second report: %v", err)
	}
	if again.Score != report.Score || again.CorrectCount != report.CorrectCount {
		t.Fatalf("report is not stable: %+v vs %+v", again, report)
	}
}

func TestScoreReportUnansweredQuestionIsIncorrect(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A", "B")
	subID := f.submit(t, examID, "Ana", "A", "")

	report, err := f.service.ScoreReport(context.Background(), subID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.CorrectCount != 1 || report.Score != "50%" {
		t.Fatalf("expected 1 correct and 50%%, got %+v", report)
	}
	if report.PerQuestion[1].GivenAnswer != nil || report.PerQuestion[1].IsCorrect {
		t.Fatalf("expected unanswered line, got %+v", report.PerQuestion[1])
	}
}

func TestScoreReportUnknownSubmission(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.ScoreReport(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = f.service.ScoreReport(context.Background(), " ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLeaderboardRanksByCorrectCount(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A", "B", "C")
	f.submit(t, examID, "Ana", "A", "B", "X")
	f.submit(t, examID, "Bea", "A", "B", "C")

	lb, err := f.service.Leaderboard(context.Background(), examID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", lb.Entries)
	}
	first, second := lb.Entries[0], lb.Entries[1]
	if first.Rank != 1 || first.ParticipantName != "Bea" || first.CorrectCount != 3 {
		t.Fatalf("unexpected leader %+v", first)
	}
	if second.Rank != 2 || second.ParticipantName != "Ana" || second.CorrectCount != 2 || second.IncorrectCount != 1 {
		t.Fatalf("unexpected runner-up %+v", second)
	}
}

func TestLeaderboardTiesGoToEarlierSubmission(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A", "B")
	f.submit(t, examID, "Ana", "A", "X")
	f.submit(t, examID, "Bea", "X", "B")
	f.submit(t, examID, "Caio", "A", "B")

	lb, err := f.service.Leaderboard(context.Background(), examID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	names := []string{lb.Entries[0].ParticipantName, lb.Entries[1].ParticipantName, lb.Entries[2].ParticipantName}
	if names[0] != "Caio" || names[1] != "Ana" || names[2] != "Bea" {
		t.Fatalf("unexpected order %v", names)
	}
	for i, e := range lb.Entries {
		if e.Rank != i+1 {
			t.Fatalf("entry %d has rank %d", i, e.Rank)
		}
	}
}

func TestLeaderboardWithoutSubmissions(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A")

	_, err := f.service.Leaderboard(context.Background(), examID)
	if !errors.Is(err, domain.ErrNoSubmissions) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no submissions error, got %v", err)
	}
}

func TestLeaderboardReflectsNewSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, "A")
	f.submit(t, examID, "Ana", "A")

	lb, err := f.service.Leaderboard(ctx, examID)
	if err != nil || len(lb.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v %v", lb.Entries, err)
	}

	f.submit(t, examID, "Bea", "A")
	lb, err = f.service.Leaderboard(ctx, examID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("cached board survived a submission: %+v", lb.Entries)
	}
}

func TestLeaderboardBuiltDuringSubmissionIsNotCached(t *testing.T) {
	ctx := context.Background()
	exams := memory.NewExamStore()
	submissions := &gatedSubmissions{
		SubmissionStore: memory.NewSubmissionStore(),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	service := app.NewExamService(exams, memory.NewExamRepository(exams, 64), submissions, &mutableBank{},
		app.WithLeaderboardCache(memory.NewLeaderboardCache(time.Minute)))

	examID, err := service.CreateExam(ctx, "Ana", "Simulado", []domain.QuestionSnapshot{{QuestionID: 1, Prompt: "Q1", CorrectAnswer: "A"}})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	if _, err := service.SubmitAnswers(ctx, examID, "Ana", answers("A")); err != nil {
		t.Fatalf("submit ana: %v", err)
	}

	type result struct {
		lb  domain.Leaderboard
		err error
	}
	done := make(chan result, 1)
	submissions.armed.Store(true)
	go func() {
		lb, err := service.Leaderboard(ctx, examID)
		done <- result{lb, err}
	}()

	<-submissions.entered
	if _, err := service.SubmitAnswers(ctx, examID, "Bea", answers("A")); err != nil {
		t.Fatalf("submit bea: %v", err)
	}
	close(submissions.release)

	stale := <-done
	if stale.err != nil || len(stale.lb.Entries) != 1 {
		t.Fatalf("expected the in-flight build to see only Ana, got %+v %v", stale.lb.Entries, stale.err)
	}

	lb, err := service.Leaderboard(ctx, examID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != submissions.Len() {
		t.Fatalf("leaderboard has %d entries for %d committed submissions", len(lb.Entries), submissions.Len())
	}
}

func TestSubmitAnswersRejectsEmptyAnswers(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A", "B")

	_, err := f.service.SubmitAnswers(context.Background(), examID, "Ana", nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = f.service.SubmitAnswers(context.Background(), examID, "Ana", []domain.AnswerInput{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := f.submissions.Len(); n != 0 {
		t.Fatalf("expected nothing stored, got %d submissions", n)
	}
}

func TestSubmitAnswersRequiresOneAnswerPerQuestion(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A", "B")
	a := "A"

	cases := map[string][]domain.AnswerInput{
		"missing question":   answers("A"),
		"duplicate question": {{QuestionID: 1, GivenAnswer: &a}, {QuestionID: 1, GivenAnswer: &a}},
		"unknown question":   {{QuestionID: 1, GivenAnswer: &a}, {QuestionID: 99, GivenAnswer: &a}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.SubmitAnswers(context.Background(), examID, "Ana", in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if n := f.submissions.Len(); n != 0 {
		t.Fatalf("expected nothing stored, got %d submissions", n)
	}
}

func TestSubmitAnswersValidation(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A")
	ctx := context.Background()

	if _, err := f.service.SubmitAnswers(ctx, examID, "  ", answers("A")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank participant, got %v", err)
	}
	if _, err := f.service.SubmitAnswers(ctx, "", "Ana", answers("A")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank exam id, got %v", err)
	}
	if _, err := f.service.SubmitAnswers(ctx, "missing", "Ana", answers("A")); !errors.Is(err, domain.ErrExamNotFound) {
		t.Fatalf("expected exam not found, got %v", err)
	}
}

func TestSubmitAnswersIgnoresClientCorrectAnswer(t *testing.T) {
	f := newFixture(t)
	examID := f.createExam(t, "A")
	given, claimed := "Z", "Z"

	subID, err := f.service.SubmitAnswers(context.Background(), examID, "Ana", []domain.AnswerInput{
		{QuestionID: 1, GivenAnswer: &given, CorrectAnswer: &claimed},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	report, err := f.service.ScoreReport(context.Background(), subID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.CorrectCount != 0 || *report.PerQuestion[0].CorrectAnswer != "A" {
		t.Fatalf("expected snapshot answer A to win, got %+v", report.PerQuestion[0])
	}
}

func TestScoringUsesSnapshotNotLiveBank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	examID, err := f.service.AssembleExam(ctx, "Ana", "Misto", []int64{10, 11})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, a := "B", "A"
	subID, err := f.service.SubmitAnswers(ctx, examID, "Ana", []domain.AnswerInput{
		{QuestionID: 10, GivenAnswer: &b},
		{QuestionID: 11, GivenAnswer: &a},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	f.bank.set(10, "D", "edited prompt")

	report, err := f.service.ScoreReport(ctx, subID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.CorrectCount != 2 {
		t.Fatalf("editing the bank changed the score: %+v", report)
	}
	if report.PerQuestion[0].Prompt != "2 + 2?" {
		t.Fatalf("expected snapshot prompt, got %q", report.PerQuestion[0].Prompt)
	}

	exam, err := f.service.GetExam(ctx, examID)
	if err != nil {
		t.Fatalf("get exam: %v", err)
	}
	if exam.Questions[0].CorrectAnswer != "B" || exam.Questions[0].Subject != "Matemática" {
		t.Fatalf("exam snapshot changed: %+v", exam.Questions[0])
	}
}

func TestCreateExamValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := domain.QuestionSnapshot{QuestionID: 1, Prompt: "Q", CorrectAnswer: "A"}

	cases := map[string]func() error{
		"no questions": func() error {
			_, err := f.service.CreateExam(ctx, "Ana", "X", nil)
			return err
		},
		"blank exam name": func() error {
			_, err := f.service.CreateExam(ctx, "Ana", " ", []domain.QuestionSnapshot{q})
			return err
		},
		"missing correct answer": func() error {
			_, err := f.service.CreateExam(ctx, "Ana", "X", []domain.QuestionSnapshot{{QuestionID: 1, Prompt: "Q"}})
			return err
		},
		"duplicate question": func() error {
			_, err := f.service.CreateExam(ctx, "Ana", "X", []domain.QuestionSnapshot{q, q})
			return err
		},
		"no question ids": func() error {
			_, err := f.service.AssembleExam(ctx, "Ana", "X", nil)
			return err
		},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := f.service.AssembleExam(ctx, "Ana", "X", []int64{404}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestDistinctValuesAndQuestionLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	values, err := f.service.DistinctValues(ctx, domain.FieldSubject)
	if err != nil {
		t.Fatalf("distinct: %v", err)
	}
	if len(values) != 2 || values[0] != "Matemática" || values[1] != "Português" {
		t.Fatalf("unexpected subjects %v", values)
	}
	if _, err := f.service.DistinctValues(ctx, domain.QuestionField("color")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.service.Question(ctx, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	q, err := f.service.Question(ctx, 11)
	if err != nil || q.CorrectAnswer != "A" {
		t.Fatalf("unexpected question %+v %v", q, err)
	}
}

func TestSubmitAnswersSurfacesStoreFailure(t *testing.T) {
	exams := memory.NewExamStore()
	service := app.NewExamService(exams, memory.NewExamRepository(exams, 64), failingSubmissions{}, &mutableBank{})
	examID, err := service.CreateExam(context.Background(), "Ana", "X", []domain.QuestionSnapshot{{QuestionID: 1, Prompt: "Q", CorrectAnswer: "A"}})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}

	id, err := service.SubmitAnswers(context.Background(), examID, "Ana", answers("A"))
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if id != "" {
		t.Fatalf("no id may be returned for a failed intake, got %q", id)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	examID := f.createExam(t, "A")

	ch, cancel, err := f.service.Subscribe(ctx, examID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	select {
	case lb := <-ch:
		t.Fatalf("no board expected before the first submission, got %+v", lb)
	default:
	}

	f.submit(t, examID, "Ana", "A")
	update := receive(t, ch)
	if len(update.Entries) != 1 || update.Entries[0].CorrectCount != 1 {
		t.Fatalf("unexpected update %+v", update.Entries)
	}

	second, cancelSecond, err := f.service.Subscribe(ctx, examID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelSecond()
	if initial := receive(t, second); len(initial.Entries) != 1 {
		t.Fatalf("expected current board on subscribe, got %+v", initial.Entries)
	}

	if _, _, err := f.service.Subscribe(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func receive(t *testing.T, ch <-chan domain.Leaderboard) domain.Leaderboard {
	t.Helper()
	select {
	case lb := <-ch:
		return lb
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for leaderboard")
	}
	return domain.Leaderboard{}
}

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type sequence struct {
	mu sync.Mutex
	n  int
}

func (s *sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

// mutableBank is a question bank tests can edit after an exam was assembled.
type mutableBank struct {
	mu        sync.Mutex
	questions map[int64]domain.Question
}

func (b *mutableBank) set(id int64, correct, prompt string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.questions[id]
	q.CorrectAnswer = correct
	q.Prompt = prompt
	b.questions[id] = q
}

func (b *mutableBank) GetQuestion(_ context.Context, id int64) (domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (b *mutableBank) DistinctValues(ctx context.Context, field domain.QuestionField) ([]string, error) {
	b.mu.Lock()
	qs := make([]domain.Question, 0, len(b.questions))
	for _, q := range b.questions {
		qs = append(qs, q)
	}
	b.mu.Unlock()
	return memory.NewQuestionStore(qs...).DistinctValues(ctx, field)
}

// gatedSubmissions pauses the next TallyExam after it has read the tallies.
type gatedSubmissions struct {
	*memory.SubmissionStore
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSubmissions) TallyExam(ctx context.Context, examID string) ([]domain.SubmissionTally, error) {
	tallies, err := g.SubmissionStore.TallyExam(ctx, examID)
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return tallies, err
}

type failingSubmissions struct{}

func (failingSubmissions) InsertSubmission(context.Context, domain.Submission) error {
	return domain.StoreFailure("insert answer lines", errors.New("connection reset"))
}

func (failingSubmissions) GetSubmission(context.Context, string) (domain.Submission, error) {
	return domain.Submission{}, domain.ErrSubmissionNotFound
}

func (failingSubmissions) TallyExam(context.Context, string) ([]domain.SubmissionTally, error) {
	return nil, nil
}
