// Package api exposes HTTP handlers for the health profile service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"example.com/healthprofile/internal/auth"
	"example.com/healthprofile/internal/display"
	"example.com/healthprofile/internal/domain"
	"example.com/healthprofile/internal/gateway"
	"example.com/healthprofile/internal/persistence"
	"example.com/healthprofile/internal/profile"
)

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the logger handed to per-request gateways.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithLocale sets the locale used when a request carries no Accept-Language.
func WithLocale(locale string) Option {
	return func(h *Handler) {
		h.locale = locale
	}
}

// WithClock overrides the time source passed to gateways and aggregators.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// Handler serves the profile screen and record entry over HTTP. Every
// request gets its own gateway scoped to the caller.
type Handler struct {
	store  domain.HealthStore
	logger *log.Logger
	locale string
	now    func() time.Time
}

// NewHandler builds a Handler. A nil store makes every data route answer
// 503.
func NewHandler(store domain.HealthStore, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		logger: log.New(log.Writer(), "[api] ", log.LstdFlags),
		locale: "en",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/authorization", h.authorization)
	mux.HandleFunc("/v1/profile", h.profile)
	mux.HandleFunc("/v1/profile/bmi", h.saveBMI)
	mux.HandleFunc("/v1/characteristics", h.characteristics)
	mux.HandleFunc("/v1/samples", h.samples)
	mux.HandleFunc("/v1/workouts", h.workouts)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// gatewayFor authenticates the request, checks scope and builds the
// caller's gateway. It writes the error response itself.
func (h *Handler) gatewayFor(w http.ResponseWriter, r *http.Request, scope string) (*gateway.Gateway, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	gw := gateway.New(h.store, claims.Owner(), gateway.WithLogger(h.logger), gateway.WithClock(h.now))
	if !gw.Available() {
		writeDomainError(w, domain.ErrStoreUnavailable)
		return nil, false
	}
	return gw, true
}

func (h *Handler) formatter(r *http.Request) *display.Formatter {
	return display.ForAcceptLanguage(r.Header.Get("Accept-Language"), h.locale)
}

func (h *Handler) authorization(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	gw, ok := h.gatewayFor(w, r, auth.ScopeHealthWrite)
	if !ok {
		return
	}

	var req AuthorizationRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	authReq, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if err := gw.Authorize(r.Context(), authReq); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthorizationResponse{
		Read:  recordTypeNames(authReq.Read()),
		Write: recordTypeNames(authReq.Write()),
	})
}

// refresh runs one profile session to convergence and returns its state.
func (h *Handler) refresh(r *http.Request, gw *gateway.Gateway) (*profile.Aggregator, profile.Snapshot) {
	agg := profile.New(gw, profile.WithLogger(h.logger), profile.WithClock(h.now))
	select {
	case <-agg.Refresh(r.Context()):
	case <-r.Context().Done():
	}
	return agg, agg.Snapshot()
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	gw, ok := h.gatewayFor(w, r, auth.ScopeHealthRead)
	if !ok {
		return
	}

	agg, snap := h.refresh(r, gw)
	defer agg.Close()
	writeJSON(w, http.StatusOK, toProfileResponse(h.formatter(r), snap))
}

func (h *Handler) saveBMI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	gw, ok := h.gatewayFor(w, r, auth.ScopeHealthWrite)
	if !ok {
		return
	}

	agg, snap := h.refresh(r, gw)
	defer agg.Close()
	if err := agg.SaveCurrentBMI(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileResponse(h.formatter(r), snap))
}

func (h *Handler) characteristics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	gw, ok := h.gatewayFor(w, r, auth.ScopeHealthWrite)
	if !ok {
		return
	}

	var req CharacteristicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	c, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	if err := gw.EnterCharacteristics(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) samples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	gw, ok := h.gatewayFor(w, r, auth.ScopeHealthWrite)
	if !ok {
		return
	}

	var req SampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	rt, quantity, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	sample, err := gw.EnterSample(r.Context(), rt, quantity, req.At)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSampleView(sample))
}

func (h *Handler) workouts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listWorkouts(w, r)
	case http.MethodPost:
		h.createWorkout(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.gatewayFor(w, r, auth.ScopeHealthRead)
	if !ok {
		return
	}

	query := r.URL.Query()
	kind := domain.ActivityRunning
	if raw := query.Get("activity"); raw != "" {
		parsed, err := domain.ParseActivityKind(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		kind = parsed
	}

	limit := 20
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	workouts, next, err := gw.ReadWorkoutsPage(r.Context(), kind, cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	f := h.formatter(r)
	items := make([]WorkoutView, 0, len(workouts))
	for _, wk := range workouts {
		items = append(items, toWorkoutView(f, wk))
	}
	writeJSON(w, http.StatusOK, ListWorkoutsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) createWorkout(w http.ResponseWriter, r *http.Request) {
	gw, ok := h.gatewayFor(w, r, auth.ScopeHealthWrite)
	if !ok {
		return
	}

	var req CreateWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	in, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	workout, err := gw.SaveWorkout(r.Context(), in)
	if err != nil && workout.ID == "" {
		writeDomainError(w, err)
		return
	}

	resp := CreateWorkoutResponse{Workout: toWorkoutView(h.formatter(r), workout)}
	for _, linkErr := range linkedSampleErrors(err) {
		resp.LinkedSampleErrors = append(resp.LinkedSampleErrors, LinkedSampleErrorView{
			RecordType: string(linkErr.Type),
			Detail:     linkErr.Err.Error(),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func linkedSampleErrors(err error) []*domain.LinkedSampleError {
	if err == nil {
		return nil
	}
	var out []*domain.LinkedSampleError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, linkedSampleErrors(e)...)
		}
		return out
	}
	var linkErr *domain.LinkedSampleError
	if errors.As(err, &linkErr) {
		out = append(out, linkErr)
	}
	return out
}

// decodeOptional decodes a JSON body when one is present.
func decodeOptional(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
	case errors.Is(err, domain.ErrAuthorizationDenied):
		writeError(w, http.StatusForbidden, "authorization_denied", err.Error())
	case errors.Is(err, domain.ErrNothingToSave):
		writeError(w, http.StatusConflict, "nothing_to_save", "there is no BMI data to save")
	case errors.Is(err, domain.ErrInvalidWorkout),
		errors.Is(err, domain.ErrUnitMismatch),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrUnknownRecordType):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
