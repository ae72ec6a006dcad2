package http

import (
	"net/http"

	"simulado-service/internal/app"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the REST API, the leaderboard stream, health and metrics.
func NewRouter(service *app.ExamService, reg *prometheus.Registry, log *zap.Logger) http.Handler {
	metrics := NewMetrics(reg)
	api := NewAPI(service, metrics, log)
	ws := NewWSHandler(service, log)

	mux := http.NewServeMux()
	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, metrics.Instrument(route, h))
	}
	handle("POST /api/exams", "/api/exams", api.HandleCreateExam)
	handle("GET /api/exams/{id}", "/api/exams/{id}", api.HandleGetExam)
	handle("POST /api/exams/{id}/submissions", "/api/exams/{id}/submissions", api.HandleSubmitAnswers)
	handle("GET /api/exams/{id}/leaderboard", "/api/exams/{id}/leaderboard", api.HandleLeaderboard)
	handle("GET /api/submissions/{id}/report", "/api/submissions/{id}/report", api.HandleScoreReport)
	handle("GET /api/questions/{id}", "/api/questions/{id}", api.HandleQuestion)
	handle("GET /api/questions/fields/{field}", "/api/questions/fields/{field}", api.HandleQuestionField)

	mux.HandleFunc("GET /ws/leaderboard", ws.ServeWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}
