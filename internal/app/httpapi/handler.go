// Package httpapi exposes the routine and sleep log services over REST.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"

	app "github.com/winddownhq/winddown/internal/app"
	"github.com/winddownhq/winddown/internal/app/domain/routine"
	"github.com/winddownhq/winddown/internal/app/domain/sleeplog"
	"github.com/winddownhq/winddown/internal/app/metrics"
	"github.com/winddownhq/winddown/internal/app/services/sleeplogs"
	apperrors "github.com/winddownhq/winddown/internal/errors"
	"github.com/winddownhq/winddown/internal/httputil"
	"github.com/winddownhq/winddown/internal/logging"
	"github.com/winddownhq/winddown/internal/middleware"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config carries the handler's optional collaborators.
type Config struct {
	DB        *sqlx.DB // nil when the memory backend is active
	Logger    *logging.Logger
	AuditMax  int
	AuditFile string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	db    *sqlx.DB
	log   *logging.Logger
	audit *auditLog
}

// NewHandler returns a router exposing the core REST API. Authentication is
// layered on by the caller; handlers only require that an acting user is
// already present in the request context.
func NewHandler(application *app.Application, cfg Config) (http.Handler, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.New("httpapi", "info", "json")
	}

	sink, err := newFileAuditSink(cfg.AuditFile)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}

	h := &handler{
		app:   application,
		db:    cfg.DB,
		log:   log,
		audit: newAuditLog(cfg.AuditMax, sink),
	}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware(), h.record)

	r.HandleFunc("/healthz", h.handleHealth).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/audit", h.handleAudit).Methods("GET")

	r.HandleFunc("/routines", h.handleCreateRoutine).Methods("POST")
	r.HandleFunc("/routines", h.handleListRoutines).Methods("GET")
	r.HandleFunc("/routines/{id}", h.handleGetRoutine).Methods("GET")
	r.HandleFunc("/routines/{id}", h.handleUpdateRoutine).Methods("PATCH")
	r.HandleFunc("/routines/{id}/archive", h.handleArchiveRoutine).Methods("POST")

	r.HandleFunc("/sleep-logs", h.handleCreateSleepLog).Methods("POST")
	r.HandleFunc("/sleep-logs", h.handleListSleepLogs).Methods("GET")
	r.HandleFunc("/sleep-logs/{id}", h.handleUpdateSleepLog).Methods("PATCH")

	return r, nil
}

// record captures every API request in the audit log.
func (h *handler) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		h.audit.add(auditEntry{
			Time:       time.Now().UTC(),
			User:       middleware.GetUserID(r.Context()),
			Role:       middleware.GetUserRole(r.Context()),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			TraceID:    logging.GetTraceID(r.Context()),
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

// --- routines ---

type stepPayload struct {
	Title            string `json:"title" validate:"required"`
	Description      string `json:"description"`
	MinutesBeforeBed *int   `json:"minutes_before_bed"`
	OrderIndex       *int   `json:"order_index" validate:"omitempty,gte=1"`
}

type createRoutinePayload struct {
	Name                string        `json:"name" validate:"required"`
	GoalDescription     string        `json:"goal_description"`
	TargetBedTimeLocal  string        `json:"target_bed_time_local"`
	TargetWakeTimeLocal string        `json:"target_wake_time_local"`
	TimeZone            string        `json:"time_zone"`
	Notes               string        `json:"notes"`
	Steps               []stepPayload `json:"steps" validate:"omitempty,dive"`
}

type updateRoutinePayload struct {
	Name                *string        `json:"name" validate:"omitempty,min=1"`
	GoalDescription     *string        `json:"goal_description"`
	TargetBedTimeLocal  *string        `json:"target_bed_time_local"`
	TargetWakeTimeLocal *string        `json:"target_wake_time_local"`
	TimeZone            *string        `json:"time_zone"`
	Notes               *string        `json:"notes"`
	Active              *bool          `json:"active"`
	Steps               *[]stepPayload `json:"steps" validate:"omitempty,dive"`
}

func (h *handler) handleCreateRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var payload createRoutinePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.ValidationFailed(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if err := validatePayload(&payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, _, err := h.app.Routines.Create(r.Context(), userID, routine.NewRoutine{
		Name:                payload.Name,
		GoalDescription:     payload.GoalDescription,
		TargetBedTimeLocal:  payload.TargetBedTimeLocal,
		TargetWakeTimeLocal: payload.TargetWakeTimeLocal,
		TimeZone:            payload.TimeZone,
		Notes:               payload.Notes,
		Steps:               stepInputs(payload.Steps),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordRoutineOperation("create")
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": created.ID})
}

func (h *handler) handleUpdateRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var payload updateRoutinePayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.ValidationFailed(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if err := validatePayload(&payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	patch := routine.Patch{
		Name:                payload.Name,
		GoalDescription:     payload.GoalDescription,
		TargetBedTimeLocal:  payload.TargetBedTimeLocal,
		TargetWakeTimeLocal: payload.TargetWakeTimeLocal,
		TimeZone:            payload.TimeZone,
		Notes:               payload.Notes,
		Active:              payload.Active,
	}
	if payload.Steps != nil {
		patch.Steps = stepInputs(*payload.Steps)
	}

	if _, err := h.app.Routines.Update(r.Context(), userID, mux.Vars(r)["id"], patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordRoutineOperation("update")
	httputil.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *handler) handleArchiveRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := h.app.Routines.Archive(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordRoutineOperation("archive")
	httputil.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *handler) handleGetRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	rt, steps, err := h.app.Routines.GetWithSteps(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordRoutineOperation("get")
	httputil.WriteJSON(w, http.StatusOK, struct {
		Routine routine.Routine `json:"routine"`
		Steps   []routine.Step  `json:"steps"`
	}{Routine: rt, Steps: steps})
}

func (h *handler) handleListRoutines(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	includeInactive := false
	if raw := r.URL.Query().Get("include_inactive"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(w, r, apperrors.ValidationFailed("include_inactive must be a boolean"))
			return
		}
		includeInactive = parsed
	}

	items, err := h.app.Routines.List(r.Context(), userID, includeInactive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordRoutineOperation("list")
	httputil.WriteJSON(w, http.StatusOK, struct {
		Items []routine.Routine `json:"items"`
		Total int               `json:"total"`
	}{Items: items, Total: len(items)})
}

// --- sleep logs ---

type createSleepLogPayload struct {
	RoutineID    *string    `json:"routine_id"`
	SleepDate    *time.Time `json:"sleep_date"`
	BedTime      *time.Time `json:"bed_time"`
	WakeTime     *time.Time `json:"wake_time"`
	QualityScore *int       `json:"sleep_quality_score" validate:"omitempty,gte=1,lte=10"`
	Notes        string     `json:"notes"`
}

type updateSleepLogPayload struct {
	RoutineID    *string    `json:"routine_id"`
	SleepDate    *time.Time `json:"sleep_date"`
	BedTime      *time.Time `json:"bed_time"`
	WakeTime     *time.Time `json:"wake_time"`
	QualityScore *int       `json:"sleep_quality_score" validate:"omitempty,gte=1,lte=10"`
	Notes        *string    `json:"notes"`
}

func (h *handler) handleCreateSleepLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var payload createSleepLogPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.ValidationFailed(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if err := validatePayload(&payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.app.SleepLogs.Create(r.Context(), userID, sleeplog.NewLog{
		RoutineID:    payload.RoutineID,
		SleepDate:    payload.SleepDate,
		BedTime:      payload.BedTime,
		WakeTime:     payload.WakeTime,
		QualityScore: payload.QualityScore,
		Notes:        payload.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordSleepLogOperation("create")
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"id": created.ID})
}

func (h *handler) handleUpdateSleepLog(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	var payload updateSleepLogPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		h.writeError(w, r, apperrors.ValidationFailed(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if err := validatePayload(&payload); err != nil {
		h.writeError(w, r, err)
		return
	}

	patch := sleeplog.Patch{
		RoutineID:    payload.RoutineID,
		SleepDate:    payload.SleepDate,
		BedTime:      payload.BedTime,
		WakeTime:     payload.WakeTime,
		QualityScore: payload.QualityScore,
		Notes:        payload.Notes,
	}

	if _, err := h.app.SleepLogs.Update(r.Context(), userID, mux.Vars(r)["id"], patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordSleepLogOperation("update")
	httputil.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *handler) handleListSleepLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	opts := sleeplog.ListOptions{}
	query := r.URL.Query()
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, apperrors.ValidationFailed("page must be an integer"))
			return
		}
		opts.Page = n
	}
	if raw := query.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, apperrors.ValidationFailed("page_size must be an integer"))
			return
		}
		opts.PageSize = n
	}
	if raw := query.Get("routine_id"); raw != "" {
		opts.RoutineID = &raw
	}
	opts = opts.Normalize()

	items, err := h.app.SleepLogs.List(r.Context(), userID, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.RecordSleepLogOperation("list")
	httputil.WriteJSON(w, http.StatusOK, struct {
		Items    []sleeplog.Log `json:"items"`
		Page     int            `json:"page"`
		PageSize int            `json:"page_size"`
		Total    int            `json:"total"`
	}{Items: items, Page: opts.Page, PageSize: opts.PageSize, Total: len(items)})
}

// --- operational endpoints ---

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "database": "memory"}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("health check database ping failed")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unavailable",
				"database": "unreachable",
			})
			return
		}
		resp["database"] = "ok"
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if _, ok := httputil.RequireUserID(w, r); !ok {
		return
	}
	if middleware.GetUserRole(r.Context()) != "admin" {
		httputil.WriteErrorResponse(w, r, http.StatusForbidden, string(apperrors.CodeForbidden),
			"audit log requires the admin role", nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.writeError(w, r, apperrors.ValidationFailed("limit must be an integer"))
			return
		}
		limit = n
	}

	items := h.audit.listLimit(limit)
	httputil.WriteJSON(w, http.StatusOK, struct {
		Items []auditEntry `json:"items"`
		Total int          `json:"total"`
	}{Items: items, Total: len(items)})
}

// --- helpers ---

func stepInputs(in []stepPayload) []routine.StepInput {
	steps := make([]routine.StepInput, 0, len(in))
	for _, s := range in {
		steps = append(steps, routine.StepInput{
			Title:            s.Title,
			Description:      s.Description,
			MinutesBeforeBed: s.MinutesBeforeBed,
			OrderIndex:       s.OrderIndex,
		})
	}
	return steps
}

func validatePayload(payload interface{}) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		f := fields[0]
		return apperrors.ValidationFailed(fmt.Sprintf("%s failed on the %s rule", f.Field(), f.Tag()))
	}
	return apperrors.ValidationFailed("invalid request payload")
}

// writeError translates a failure into the classified response envelope. Not
// found deliberately covers both missing rows and rows owned by another user.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if serviceErr := apperrors.GetServiceError(err); serviceErr != nil {
		httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
		return
	}

	switch {
	case errors.Is(err, sleeplogs.ErrRoutineNotOwned):
		httputil.WriteErrorResponse(w, r, http.StatusForbidden, string(apperrors.CodeForbidden),
			"routine belongs to another user", nil)
	case errors.Is(err, sql.ErrNoRows):
		httputil.WriteErrorResponse(w, r, http.StatusNotFound, string(apperrors.CodeNotFound),
			"resource not found", nil)
	default:
		h.log.WithContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteErrorResponse(w, r, http.StatusInternalServerError, string(apperrors.CodeInternal),
			"internal error", nil)
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
