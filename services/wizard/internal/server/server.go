package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"marinehub/internal/ratelimit"
	"marinehub/internal/util"
	"marinehub/pkg/payment"
	"marinehub/pkg/scheduling"
	"marinehub/pkg/upload"
	"marinehub/pkg/wizard"
	"marinehub/services/wizard/internal/app"
	"marinehub/services/wizard/internal/store"
)

const widgetCSP = "default-src 'none'; frame-src https://calendly.com https://*.calendly.com; style-src 'unsafe-inline'; frame-ancestors 'self'"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App               *app.App
	SignatureLimiter  *ratelimit.FixedWindowLimiter
	TrustedProxyCIDRs []string
	AllowedOrigins    []string
	MaxUploadBytes    int64
}

// Server exposes the wizard over HTTP.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	trusted        *util.TrustedProxies
	origins        []string
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.SignatureLimiter == nil {
		return nil, errors.New("server: signature rate limiter is required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("server: trusted proxies: %w", err)
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 256 << 20
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.SignatureLimiter,
		trusted:        trusted,
		origins:        cfg.AllowedOrigins,
		maxUploadBytes: maxBytes,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.origins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /wizard/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /wizard/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /wizard/sessions/{id}", s.handleDiscardSession)
	s.mux.HandleFunc("PATCH /wizard/sessions/{id}/fields", s.handleUpdateFields)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/next", s.handleNext)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/previous", s.handlePrevious)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/uploads", s.handleUpload)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/uploads/cancel", s.handleCancelUpload)
	s.mux.HandleFunc("DELETE /wizard/sessions/{id}/uploads/{index}", s.handleRemoveUpload)
	s.mux.HandleFunc("GET /wizard/sessions/{id}/scheduling/widget", s.handleWidget)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/scheduling/messages", s.handleSchedulingMessage)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/payment/intent", s.handlePaymentIntent)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/payment/complete", s.handlePaymentComplete)
	s.mux.HandleFunc("POST /wizard/sessions/{id}/submit", s.handleSubmit)

	s.mux.HandleFunc("POST /uploads/signature", s.handleSignature)
	s.mux.HandleFunc("DELETE /repairs/{id}", s.handleDeleteRepair)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	Mode     wizard.Mode `json:"mode"`
	RepairID string      `json:"repairId"`
}

type sessionResponse struct {
	ID             string            `json:"id"`
	Steps          []wizard.StepKind `json:"steps"`
	Current        wizard.StepKind   `json:"current"`
	DiagnosticFee  string            `json:"diagnosticFee,omitempty"`
	ListenerActive bool              `json:"listenerActive"`
	State          *wizard.FormState `json:"state"`
}

func (s *Server) sessionView(sess *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:             sess.ID,
		Steps:          wizard.Steps(sess.State.Mode),
		Current:        sess.State.Current(),
		ListenerActive: s.app.ListenerActive(sess.ID),
		State:          sess.State,
	}
	if sess.State.Mode == wizard.ModeNew {
		if fee, err := payment.FeeFor(sess.State.Draft.ServiceType); err == nil {
			resp.DiagnosticFee = fee.StringFixed(2)
		}
	}
	return resp
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, _ := bearerToken(r)
	if req.Mode == wizard.ModeEdit && token == "" {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "bearer token required to edit a request")
		return
	}
	sess, err := s.app.CreateSession(r.Context(), token, req.Mode, req.RepairID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.sessionView(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(sess))
}

func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DiscardSession(r.Context(), r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateFields(w http.ResponseWriter, r *http.Request) {
	var patch wizard.FieldPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	sess, err := s.app.UpdateFields(r.Context(), r.PathValue("id"), patch)
	s.writeSession(w, r, sess, err)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Next(r.Context(), r.PathValue("id"))
	s.writeSession(w, r, sess, err)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Previous(r.Context(), r.PathValue("id"))
	s.writeSession(w, r, sess, err)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds the request size limit")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_multipart", "multipart form with files is required")
		return
	}
	defer r.MultipartForm.RemoveAll()
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_multipart", "no files in the \"files\" field")
		return
	}
	files, closeAll, err := openParts(headers)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_multipart", "could not read uploaded file")
		return
	}
	defer closeAll()
	sess, err := s.app.Upload(r.Context(), r.PathValue("id"), files)
	s.writeSession(w, r, sess, err)
}

func openParts(headers []*multipart.FileHeader) ([]upload.File, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	files := make([]upload.File, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, f)
		files = append(files, upload.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Content:     f,
		})
	}
	return files, closeAll, nil
}

func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	cancelled := s.app.CancelUpload(r.PathValue("id"))
	writeJSON(w, http.StatusAccepted, map[string]bool{"cancelled": cancelled})
}

func (s *Server) handleRemoveUpload(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_index", "upload index must be an integer")
		return
	}
	sess, err := s.app.RemoveUpload(r.Context(), r.PathValue("id"), index)
	s.writeSession(w, r, sess, err)
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	html, err := s.app.Widget(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("Content-Security-Policy", widgetCSP)
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, html)
}

func (s *Server) handleSchedulingMessage(w http.ResponseWriter, r *http.Request) {
	var msg scheduling.Message
	if !decodeJSON(w, r, &msg) {
		return
	}
	id := r.PathValue("id")
	if err := s.app.RelayMessage(r.Context(), id, msg); err != nil {
		writeAppError(w, r, err)
		return
	}
	sess, err := s.app.GetSession(r.Context(), id)
	s.writeSession(w, r, sess, err)
}

func (s *Server) handlePaymentIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := s.app.PaymentIntent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

func (s *Server) handlePaymentComplete(w http.ResponseWriter, r *http.Request) {
	var result payment.Result
	if !decodeJSON(w, r, &result) {
		return
	}
	sess, err := s.app.CompletePayment(r.Context(), r.PathValue("id"), result)
	s.writeSession(w, r, sess, err)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "bearer token required")
		return
	}
	saved, err := s.app.Submit(r.Context(), r.PathValue("id"), token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"repair": saved})
}

type signatureRequest struct {
	Params map[string]string `json:"params"`
}

func (s *Server) handleSignature(w http.ResponseWriter, r *http.Request) {
	if _, ok := bearerToken(r); !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "bearer token required")
		return
	}
	if !s.allowRate(w, r) {
		return
	}
	var req signatureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sig, err := s.app.Sign(r.Context(), req.Params)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (s *Server) handleDeleteRepair(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "bearer token required")
		return
	}
	if err := s.app.DeleteRepair(r.Context(), token, r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request) bool {
	key := "signature|" + util.ClientIP(r, s.trusted)
	if s.limiter.Allow(r.Context(), key) {
		return true
	}
	util.LoggerFromContext(r.Context()).Warn("signature rate limited", "ip", util.ClientIP(r, s.trusted))
	w.Header().Set("Retry-After", strconv.Itoa(s.limiter.RetryAfter()))
	writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many signature requests")
	return false
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, sess *store.Session, err error) {
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionView(sess))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"requestId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, RequestID: util.RequestIDFromRequest(r)})
}
