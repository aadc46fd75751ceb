package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/judge"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/rbac"
)

// CreateSessionHandler starts a practice session for the caller. Omitted
// policy fields fall back to the server defaults.
func CreateSessionHandler(svc *practice.Service, defaults practice.SessionConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		cfg := defaults
		if r.Body != nil {
			var req struct {
				MaxAttempts    *int  `json:"max_attempts"`
				AllowReveal    *bool `json:"allow_reveal"`
				RevealForfeits *bool `json:"reveal_forfeits"`
				TargetCount    *int  `json:"target_count"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				if req.MaxAttempts != nil {
					cfg.MaxAttempts = *req.MaxAttempts
				}
				if req.AllowReveal != nil {
					cfg.AllowReveal = *req.AllowReveal
				}
				if req.RevealForfeits != nil {
					cfg.RevealForfeits = *req.RevealForfeits
				}
				if req.TargetCount != nil {
					cfg.TargetCount = *req.TargetCount
				}
			}
		}
		sess, err := svc.CreateSession(r.Context(), sub, cfg)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sess)
	}
}

// GetSessionHandler exposes the aggregator counters. Learners may only read
// their own sessions.
func GetSessionHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		sess, err := svc.GetSession(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		sub := auth.SubjectFromContext(r.Context())
		if sess.UserID != sub && role != "author" && role != "admin" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sess)
	}
}

// DeliverInstanceHandler is the generator-facing endpoint: it stores the
// public+secret payload pair and returns the opaque key plus the public
// payload only.
func DeliverInstanceHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		var req struct {
			Kind          string          `json:"kind"`
			PublicPayload json.RawMessage `json:"public_payload"`
			SecretPayload json.RawMessage `json:"secret_payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Kind == "" || len(req.SecretPayload) == 0 {
			http.Error(w, "kind and secret_payload required", http.StatusBadRequest)
			return
		}
		inst, key, err := svc.Deliver(r.Context(), sessionID, req.Kind, req.PublicPayload, req.SecretPayload)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"key":            key,
			"id":             inst.ID,
			"kind":           inst.Kind,
			"public_payload": inst.PublicPayload,
		})
	}
}

// SubmitHandler accepts {key, answer} or {key, reveal:true}. Exactly one of
// answer / reveal must be present.
func SubmitHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			Key    json.RawMessage `json:"key"`
			Answer json.RawMessage `json:"answer,omitempty"`
			Reveal bool            `json:"reveal,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		hasAnswer := len(req.Answer) > 0 && string(req.Answer) != "null"
		if hasAnswer == req.Reveal {
			http.Error(w, "exactly one of answer or reveal=true required", http.StatusBadRequest)
			return
		}

		var resp practice.SubmitResponse
		var err error
		if req.Reveal {
			resp, err = svc.Reveal(r.Context(), sub, req.Key)
		} else {
			resp, err = svc.Submit(r.Context(), sub, req.Key, req.Answer)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// ListAttemptsHandler returns the audit log for an instance the caller owns.
// POST because the opaque key travels in the body, not the URL.
func ListAttemptsHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			Key json.RawMessage `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		attempts, err := svc.Attempts(r.Context(), sub, req.Key)
		if err != nil {
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"attempts": attempts})
	}
}

// writeErr maps the practice error taxonomy onto HTTP statuses. Every
// user-facing condition gets its own signal; grader misconfiguration stays a
// generic 500 (already logged server-side with full context).
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, practice.ErrMissingKey),
		errors.Is(err, practice.ErrInvalidKey),
		errors.Is(err, practice.ErrUnknownKind),
		errors.Is(err, grading.ErrBadAnswer):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, practice.ErrForbidden),
		errors.Is(err, practice.ErrRevealDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, practice.ErrInstanceNotFound),
		errors.Is(err, practice.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, practice.ErrAttemptsExhausted),
		errors.Is(err, practice.ErrAlreadyFinalized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, judge.ErrTimeout):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
