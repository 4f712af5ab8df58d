// Package identity provides anonymous per-device learner identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/piwrite/studio/internal/domain"
	"github.com/piwrite/studio/internal/store"
)

const (
	// LearnerCookieName is the cookie carrying the anonymous learner id.
	LearnerCookieName = "studio_learner_id"
	// SessionHeaderName optionally distinguishes browser tabs of one learner.
	SessionHeaderName = "X-Studio-Session-ID"

	learnerCookieAge = 180 * 24 * time.Hour
)

type contextKey int

const (
	learnerIDKey contextKey = iota
	gradeLevelKey
	sessionIDKey
)

var learnerIDPattern = regexp.MustCompile(`^lrn_[a-f0-9]{32}$`)

// LearnerIDFromContext extracts the learner id from the request context.
func LearnerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(learnerIDKey).(string); ok {
		return v
	}
	return ""
}

// GradeLevelFromContext extracts the learner's grade level from the request
// context.
func GradeLevelFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(gradeLevelKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the per-tab session id, or "" when the
// client sent none.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

func sessionIDFromRequest(r *http.Request) string {
	if v := r.Header.Get(SessionHeaderName); v != "" {
		return v
	}
	// Browsers cannot set headers on websocket upgrades; fall back to a
	// query parameter there.
	return r.URL.Query().Get("session_id")
}

func generateLearnerID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate learner id: %w", err)
	}
	return "lrn_" + hex.EncodeToString(buf), nil
}

func isValidLearnerID(id string) bool {
	return learnerIDPattern.MatchString(id)
}

func setLearnerCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     LearnerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(learnerCookieAge.Seconds()),
		Expires:  time.Now().Add(learnerCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateLearnerID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(LearnerCookieName); err == nil && isValidLearnerID(c.Value) {
		setLearnerCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateLearnerID()
	if err != nil {
		return "", err
	}
	setLearnerCookie(w, id, isDev)
	return id, nil
}

// ensureLearner creates the learner record on first sight and refreshes
// last_seen_at on every request. Returns the learner's grade level.
func ensureLearner(ctx context.Context, repo store.Repository, learnerID, defaultGrade string) (string, error) {
	learner, err := repo.GetLearner(ctx, learnerID)
	if err != nil {
		return "", err
	}
	now := time.Now()
	if learner != nil {
		if err := repo.UpdateLearnerLastSeen(ctx, learnerID, now); err != nil {
			return "", err
		}
		return learner.GradeLevel, nil
	}

	err = repo.UpsertLearner(ctx, &domain.Learner{
		ID:         learnerID,
		GradeLevel: defaultGrade,
		CreatedAt:  now,
		LastSeenAt: now,
	})
	if err != nil {
		return "", err
	}
	return defaultGrade, nil
}

// Middleware injects anonymous per-device learner identity.
func Middleware(repo store.Repository, defaultGrade string, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			learnerID, err := getOrCreateLearnerID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish learner identity"}`, http.StatusInternalServerError)
				return
			}

			grade, err := ensureLearner(r.Context(), repo, learnerID, defaultGrade)
			if err != nil {
				http.Error(w, `{"error":"failed to initialize learner"}`, http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), learnerIDKey, learnerID)
			ctx = context.WithValue(ctx, gradeLevelKey, grade)
			ctx = context.WithValue(ctx, sessionIDKey, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
