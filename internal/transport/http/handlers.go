package http

import (
	"net/http"
	"strconv"

	"simulado-service/internal/app"
	"simulado-service/internal/domain"

	"go.uber.org/zap"
)

// API serves the exam, intake, report and leaderboard use cases over JSON.
type API struct {
	service *app.ExamService
	metrics *Metrics
	log     *zap.Logger
}

func NewAPI(service *app.ExamService, metrics *Metrics, log *zap.Logger) *API {
	return &API{service: service, metrics: metrics, log: log}
}

type createExamRequest struct {
	ParticipantName string                    `json:"participantName"`
	ExamName        string                    `json:"examName"`
	Questions       []domain.QuestionSnapshot `json:"questions"`
	QuestionIDs     []int64                   `json:"questionIds"`
}

type createExamResponse struct {
	ExamID string `json:"examId"`
}

type submitAnswersRequest struct {
	ParticipantName string               `json:"participantName"`
	Answers         []domain.AnswerInput `json:"answers"`
}

type submitAnswersResponse struct {
	SubmissionID string `json:"submissionId"`
}

// HandleCreateExam stores a simulado from inline snapshots or from bank question ids.
func (a *API) HandleCreateExam(w http.ResponseWriter, r *http.Request) {
	const op = "create_exam"
	var req createExamRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, op, err)
		return
	}

	var (
		examID string
		err    error
	)
	switch {
	case len(req.Questions) > 0 && len(req.QuestionIDs) > 0:
		err = domain.Invalid("send either questions or questionIds, not both")
	case len(req.QuestionIDs) > 0:
		examID, err = a.service.AssembleExam(r.Context(), req.ParticipantName, req.ExamName, req.QuestionIDs)
	default:
		examID, err = a.service.CreateExam(r.Context(), req.ParticipantName, req.ExamName, req.Questions)
	}
	if err != nil {
		a.fail(w, op, err)
		return
	}
	a.succeed(w, op, http.StatusCreated, createExamResponse{ExamID: examID})
}

func (a *API) HandleGetExam(w http.ResponseWriter, r *http.Request) {
	const op = "get_exam"
	exam, err := a.service.GetExam(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, op, err)
		return
	}
	a.succeed(w, op, http.StatusOK, exam)
}

func (a *API) HandleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	const op = "submit_answers"
	var req submitAnswersRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, op, err)
		return
	}
	submissionID, err := a.service.SubmitAnswers(r.Context(), r.PathValue("id"), req.ParticipantName, req.Answers)
	if err != nil {
		a.fail(w, op, err)
		return
	}
	a.succeed(w, op, http.StatusCreated, submitAnswersResponse{SubmissionID: submissionID})
}

func (a *API) HandleScoreReport(w http.ResponseWriter, r *http.Request) {
	const op = "score_report"
	report, err := a.service.ScoreReport(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, op, err)
		return
	}
	a.succeed(w, op, http.StatusOK, report)
}

func (a *API) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "leaderboard"
	lb, err := a.service.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, op, err)
		return
	}
	a.succeed(w, op, http.StatusOK, lb)
}

func (a *API) HandleQuestion(w http.ResponseWriter, r *http.Request) {
	const op = "get_question"
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		a.fail(w, op, domain.Invalid("question id must be an integer"))
		return
	}
	q, err := a.service.Question(r.Context(), id)
	if err != nil {
		a.fail(w, op, err)
		return
	}
	a.succeed(w, op, http.StatusOK, q)
}

func (a *API) HandleQuestionField(w http.ResponseWriter, r *http.Request) {
	const op = "question_field"
	values, err := a.service.DistinctValues(r.Context(), domain.QuestionField(r.PathValue("field")))
	if err != nil {
		a.fail(w, op, err)
		return
	}
	a.succeed(w, op, http.StatusOK, values)
}
