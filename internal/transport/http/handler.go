package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bruhbug-service/internal/entity"
	"bruhbug-service/internal/idgen"
	"bruhbug-service/internal/metrics"
	"bruhbug-service/internal/repository/redisstore"
	"bruhbug-service/internal/service"
)

// Sessions is the session store as seen by the API.
type Sessions interface {
	UserResolver
	Save(ctx context.Context, sess entity.Session) error
	SaveProfile(ctx context.Context, user entity.User) error
	Delete(ctx context.Context, token string) error
}

// EventSource feeds the realtime endpoint.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan entity.RecordEvent, error)
}

type Options struct {
	// DevLogin exposes POST /auth/dev-login.
	DevLogin       bool
	SessionTTL     time.Duration
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

type Handler struct {
	svc      *service.RoastService
	sessions Sessions
	events   EventSource
	metrics  *metrics.Metrics
	log      *zap.Logger

	devLogin   bool
	sessionTTL time.Duration
	origins    []string
	upgrader   websocket.Upgrader
}

func NewHandler(svc *service.RoastService, sessions Sessions, events EventSource, opts Options) *Handler {
	h := &Handler{
		svc:        svc,
		sessions:   sessions,
		events:     events,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		devLogin:   opts.DevLogin,
		sessionTTL: opts.SessionTTL,
		origins:    opts.AllowedOrigins,
	}
	if h.metrics == nil {
		h.metrics = metrics.Nop()
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	h.log = h.log.Named("http")
	if h.sessionTTL <= 0 {
		h.sessionTTL = 7 * 24 * time.Hour
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

type executionDTO struct {
	BugDescription string `json:"bugDescription"`
	DocumentID     string `json:"documentId"`
	// Shared defaults to true.
	Shared *bool `json:"shared,omitempty"`
}

type executionResp struct {
	DocumentID string `json:"documentId"`
}

type roastResp struct {
	DocumentID string `json:"documentId"`
	Roast      string `json:"roast"`
}

type listResp struct {
	Documents []*entity.BugRecord `json:"documents"`
	Total     int                 `json:"total"`
}

type devLoginDTO struct {
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Handle      string `json:"handle,omitempty"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

type loginResp struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      entity.User `json:"user"`
}

func (d executionDTO) request() service.SubmitRequest {
	shared := true
	if d.Shared != nil {
		shared = *d.Shared
	}
	return service.SubmitRequest{Description: d.BugDescription, DocumentID: d.DocumentID, Shared: shared}
}

// CreateExecution godoc
// @Summary Trigger the roast worker
// @Description Enqueues the worker for documentId and returns without waiting for it. The record appears under GET /bugs/{id} once the roast is written.
// @Tags executions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body executionDTO true "bug description and client-minted document id"
// @Success 202 {object} executionResp
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 409 {object} apiError
// @Failure 503 {object} apiError
// @Router /executions [post]
func (h *Handler) CreateExecution(w http.ResponseWriter, r *http.Request) {
	var dto executionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	req := dto.request()
	if err := h.svc.Trigger(r.Context(), UserFrom(r.Context()), req); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, executionResp{DocumentID: strings.TrimSpace(req.DocumentID)})
}

// CreateRoast godoc
// @Summary Roast a bug synchronously
// @Description Runs the worker inline and returns the roast as soon as it is generated. The record write finishes in the background.
// @Tags executions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body executionDTO true "bug description and client-minted document id"
// @Success 200 {object} roastResp
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 502 {object} apiError
// @Router /roasts [post]
func (h *Handler) CreateRoast(w http.ResponseWriter, r *http.Request) {
	var dto executionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	req := dto.request()
	roast, err := h.svc.Roast(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roastResp{DocumentID: strings.TrimSpace(req.DocumentID), Roast: roast})
}

// GetBug godoc
// @Summary Get a bug record
// @Description Owners always see their records; others only shared ones.
// @Tags bugs
// @Produce json
// @Param id path string true "document id (uuid)"
// @Success 200 {object} entity.BugRecord
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /bugs/{id} [get]
func (h *Handler) GetBug(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !idgen.Valid(id) {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := h.svc.GetRecord(r.Context(), UserFrom(r.Context()), id)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListMine godoc
// @Summary List my bug records
// @Tags bugs
// @Produce json
// @Security BearerAuth
// @Param limit query int false "max records (1-50)"
// @Success 200 {object} listResp
// @Failure 401 {object} apiError
// @Router /bugs/mine [get]
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.MyRecords(r.Context(), UserFrom(r.Context()), limitParam(r))
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResp(recs))
}

// ListFeed godoc
// @Summary Public feed
// @Description Shared, completed records of other users, newest first.
// @Tags bugs
// @Produce json
// @Param limit query int false "max records (1-50)"
// @Success 200 {object} listResp
// @Router /bugs/feed [get]
func (h *Handler) ListFeed(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.PublicFeed(r.Context(), UserFrom(r.Context()), limitParam(r))
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResp(recs))
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} entity.User
// @Failure 401 {object} apiError
// @Router /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFrom(r.Context()))
}

// Logout godoc
// @Summary End the current session
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/session [delete]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if tok := tokenFrom(r); tok != "" {
		if err := h.sessions.Delete(r.Context(), tok); err != nil {
			h.writeServiceErr(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

// DevLogin godoc
// @Summary Create a session without OAuth
// @Description Only mounted in development. Creates (or reuses) a user id, stores its profile and opens a session.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body devLoginDTO false "profile"
// @Success 200 {object} loginResp
// @Router /auth/dev-login [post]
func (h *Handler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var dto devLoginDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json")
			return
		}
	}

	user := entity.User{
		ID: strings.TrimSpace(dto.UserID),
		Prefs: entity.Preferences{
			DisplayName: strings.TrimSpace(dto.DisplayName),
			Handle:      strings.TrimSpace(dto.Handle),
			AvatarRef:   strings.TrimSpace(dto.AvatarRef),
		},
	}
	if user.ID == "" {
		user.ID = idgen.NewID()
	}

	tok, err := redisstore.NewToken()
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	sess := entity.Session{Token: tok, UserID: user.ID, ExpiresAt: time.Now().Add(h.sessionTTL).UTC()}

	if err := h.sessions.SaveProfile(r.Context(), user); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    tok,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.log.Info("dev login", zap.String("user_id", user.ID))
	writeJSON(w, http.StatusOK, loginResp{Token: tok, ExpiresAt: sess.ExpiresAt, User: user})
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func newListResp(recs []*entity.BugRecord) listResp {
	if recs == nil {
		recs = []*entity.BugRecord{}
	}
	return listResp{Documents: recs, Total: len(recs)}
}
