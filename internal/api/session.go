package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"classim/internal/curriculum"
	"classim/internal/domain"
	"classim/internal/roster"
)

// GoalWriter produces the long-form goal explanation that seeds a curriculum.
// An empty return means generation failed and a static fallback is used.
type GoalWriter interface {
	GoalExplanation(ctx context.Context, subject domain.Subject, schoolType domain.SchoolType, grade int, topicName, lessonGoal string) string
}

// SessionHandler handles session lifecycle endpoints.
type SessionHandler struct {
	*Handler
	goals GoalWriter

	// OnDelete runs after a session row is removed, so any live simulation
	// for it can be stopped. Optional.
	OnDelete func(sessionID string)

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSessionHandler creates a session handler. A nil rng uses a fresh source.
func NewSessionHandler(base *Handler, goals GoalWriter, rng *rand.Rand) *SessionHandler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &SessionHandler{Handler: base, goals: goals, rng: rng}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)
		r.Get("/topics", h.ListTopics)
		r.Get("/{sessionID}", h.GetSession)
		r.Delete("/{sessionID}", h.DeleteSession)
		r.Get("/{sessionID}/utterances", h.ListUtterances)
	})
}

type createSessionRequest struct {
	SchoolType domain.SchoolType `json:"schoolType"`
	Grade      int               `json:"grade"`
	Subject    domain.Subject    `json:"subject"`
	TopicID    string            `json:"topicId"`
}

// CreateSession generates a roster and curriculum and persists a new session.
// Every request field is optional; omitted fields are randomized.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.buildSession(r.Context(), req)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.CreateSession(r.Context(), session); err != nil {
		slog.Error("Failed to persist session", "error", err, "session_id", session.ID)
		h.internalError(w, "failed to create session", err)
		return
	}

	slog.Info("Session created",
		"session_id", session.ID,
		"school_type", session.SchoolType,
		"grade", session.Grade,
		"subject", session.Subject,
		"topic", session.TopicName)

	JSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) buildSession(ctx context.Context, req createSessionRequest) (*domain.Session, error) {
	h.mu.Lock()
	gen := roster.NewGenerator(h.rng)

	schoolType := req.SchoolType
	if schoolType == "" {
		schoolType = gen.SchoolType()
	}
	if !validSchoolType(schoolType) {
		h.mu.Unlock()
		return nil, errors.New("unknown school type")
	}

	grade := req.Grade
	if grade == 0 {
		grade = gen.Grade(schoolType)
	}
	if !validGrade(schoolType, grade) {
		h.mu.Unlock()
		return nil, errors.New("grade out of range for school type")
	}

	subject := req.Subject
	if subject == "" {
		subject = gen.Subject(schoolType, grade)
	}
	if !validSubject(schoolType, grade, subject) {
		h.mu.Unlock()
		return nil, errors.New("subject not taught at this school type and grade")
	}

	var topic domain.LessonTopic
	if req.TopicID != "" {
		found := curriculum.TopicByID(req.TopicID)
		if found == nil {
			h.mu.Unlock()
			return nil, errors.New("unknown topic")
		}
		topic = *found
	} else {
		topic = gen.Topic(subject, schoolType, grade)
	}

	teacher := gen.Teacher()
	students := gen.Students()
	h.mu.Unlock()

	goalExplanation := h.goals.GoalExplanation(ctx, subject, schoolType, grade, topic.TopicName, topic.LessonGoal)
	if goalExplanation == "" {
		goalExplanation = curriculum.FallbackGoalExplanation(topic.TopicName, topic.LessonGoal)
	}

	return &domain.Session{
		ID:              uuid.NewString(),
		SchoolType:      schoolType,
		Grade:           grade,
		Subject:         subject,
		TopicName:       topic.TopicName,
		LessonGoal:      topic.LessonGoal,
		Curriculum:      curriculum.BuildCurriculum(subject, schoolType, grade, topic, goalExplanation),
		Teacher:         teacher,
		Students:        students,
		GoalExplanation: goalExplanation,
		CreatedAt:       time.Now(),
	}, nil
}

func validSchoolType(s domain.SchoolType) bool {
	switch s {
	case domain.SchoolElementary, domain.SchoolMiddle, domain.SchoolHigh:
		return true
	}
	return false
}

func validGrade(schoolType domain.SchoolType, grade int) bool {
	if schoolType == domain.SchoolElementary {
		return grade >= 1 && grade <= 6
	}
	return grade >= 1 && grade <= 3
}

func validSubject(schoolType domain.SchoolType, grade int, subject domain.Subject) bool {
	for _, s := range curriculum.AvailableSubjects(schoolType, grade) {
		if s == subject {
			return true
		}
	}
	return false
}

// ListSessions returns all stored sessions, newest first.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListSessions(r.Context())
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		h.internalError(w, "failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	JSON(w, http.StatusOK, sessions)
}

// GetSession returns one session by ID.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session", "error", err, "session_id", sessionID)
		h.internalError(w, "failed to get session", err)
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, session)
}

// DeleteSession removes a session and its transcript.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session for delete", "error", err, "session_id", sessionID)
		h.internalError(w, "failed to delete session", err)
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.repo.DeleteSession(r.Context(), sessionID); err != nil {
		slog.Error("Failed to delete session", "error", err, "session_id", sessionID)
		h.internalError(w, "failed to delete session", err)
		return
	}

	if h.OnDelete != nil {
		h.OnDelete(sessionID)
	}

	slog.Info("Session deleted", "session_id", sessionID)
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListUtterances returns a session's persisted transcript in emission order.
func (h *SessionHandler) ListUtterances(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session for transcript", "error", err, "session_id", sessionID)
		h.internalError(w, "failed to get transcript", err)
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	utterances, err := h.repo.ListUtterances(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to list utterances", "error", err, "session_id", sessionID)
		h.internalError(w, "failed to get transcript", err)
		return
	}
	if utterances == nil {
		utterances = []*domain.Utterance{}
	}
	JSON(w, http.StatusOK, utterances)
}

type topicFilter struct {
	subject    domain.Subject
	schoolType domain.SchoolType
	grade      int
}

// ListTopics returns the lesson topic catalog, optionally filtered by
// subject, schoolType and grade query parameters.
func (h *SessionHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := topicFilter{
		subject:    domain.Subject(q.Get("subject")),
		schoolType: domain.SchoolType(q.Get("schoolType")),
	}
	if g := q.Get("grade"); g != "" {
		grade, err := parseGrade(g)
		if err != nil {
			Error(w, http.StatusBadRequest, "invalid grade")
			return
		}
		filter.grade = grade
	}

	topics := curriculum.AllTopics()
	filtered := make([]domain.LessonTopic, 0, len(topics))
	for _, t := range topics {
		if filter.subject != "" && t.Subject != filter.subject {
			continue
		}
		if filter.schoolType != "" && t.SchoolType != filter.schoolType {
			continue
		}
		if filter.grade != 0 && t.Grade != filter.grade {
			continue
		}
		filtered = append(filtered, t)
	}
	JSON(w, http.StatusOK, filtered)
}

func parseGrade(s string) (int, error) {
	grade, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if grade < 1 || grade > 6 {
		return 0, errors.New("grade out of range")
	}
	return grade, nil
}
