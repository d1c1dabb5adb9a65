package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// QuizOptions are the start choices offered to players.
type QuizOptions struct {
	QuestionCounts []int `json:"questionCounts"`
	TimeLimits     []int `json:"timeLimits"`
}

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	AllowedOrigins   []string
	LeaderboardLimit int
	Options          QuizOptions
	Metrics          http.Handler
}

// NewRouter wires the websocket endpoint, the leaderboard API and health/metrics.
func NewRouter(service *app.QuizService, log *zap.Logger, cfg RouterConfig) http.Handler {
	ws := NewWSHandler(service, log, cfg.LeaderboardLimit)
	leaderboard := &leaderboardHandler{service: service, defaultLimit: cfg.LeaderboardLimit}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/leaderboard", leaderboard).Methods(http.MethodGet)
	api.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cfg.Options)
	}).Methods(http.MethodGet)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

type leaderboardHandler struct {
	service      *app.QuizService
	defaultLimit int
}

// ServeHTTP answers GET /api/leaderboard?filter=all|today|week&limit=N.
// A store outage is a 503, never an empty board.
func (h *leaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseLeaderboardFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "validation", Message: err.Error()})
		return
	}

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorPayload{Code: "validation", Message: "invalid limit: must be a positive integer"})
			return
		}
		limit = n
	}

	view, err := h.service.Leaderboard(r.Context(), filter, limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, toErrorPayload(err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
