// Package oauth keeps provider tokens stored in the oauth_tokens table fresh.
// It performs jittered checks and refreshes when expiry falls within a
// configured window. The chat bridge uses it for the bot's IRC token.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/onnwee/markov-chatter/db"
)

// RefreshFunc performs provider-specific refresh and returns the new token.
type RefreshFunc func(ctx context.Context, refreshToken string) (db.OAuthToken, error)

// Refresher periodically refreshes one provider's token row.
type Refresher struct {
	DB       *sql.DB
	Provider string
	Interval time.Duration // how often to wake up and check
	Window   time.Duration // refresh when remaining lifetime <= window
	Refresh  RefreshFunc
	// OnRefresh, if set, receives every newly persisted access token.
	OnRefresh func(accessToken string)
}

// Start launches the refresh loop in a goroutine; it stops when ctx is done.
func (r *Refresher) Start(ctx context.Context) {
	if r.Interval <= 0 {
		r.Interval = 5 * time.Minute
	}
	if r.Window <= 0 {
		r.Window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across restarts.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(r.Interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			r.CheckOnce(ctx)
			// per-iteration jitter of +-20% of interval
			jitterRange := int64(r.Interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			nextSleep := r.Interval + time.Duration(rand.Int63n(jitterRange*2)-jitterRange)
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
		}
	}()
}

// CheckOnce refreshes the token if it is inside the window. It reports
// whether a new token was persisted.
func (r *Refresher) CheckOnce(ctx context.Context) bool {
	tok, ok, err := db.GetOAuthToken(ctx, r.DB, r.Provider)
	if err != nil {
		slog.Debug("token lookup failed", slog.String("provider", r.Provider), slog.Any("err", err), slog.String("component", "oauth"))
		return false
	}
	if !ok || tok.RefreshToken == "" {
		return false
	}
	if time.Until(tok.ExpiresAt) > r.Window {
		return false
	}
	ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
	next, err := r.Refresh(ctx2, tok.RefreshToken)
	cancel()
	if err != nil {
		slog.Warn("token refresh failed", slog.String("provider", r.Provider), slog.Any("err", err), slog.String("component", "oauth"))
		return false
	}
	if next.RefreshToken == "" {
		next.RefreshToken = tok.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = tok.Scope
	}
	next.Scope = strings.TrimSpace(next.Scope)
	if err := db.UpsertOAuthToken(ctx, r.DB, r.Provider, next); err != nil {
		slog.Warn("token persist failed", slog.String("provider", r.Provider), slog.Any("err", err), slog.String("component", "oauth"))
		return false
	}
	slog.Info("token refreshed", slog.String("provider", r.Provider), slog.Time("expires_at", next.ExpiresAt), slog.String("component", "oauth"))
	if r.OnRefresh != nil {
		r.OnRefresh(next.AccessToken)
	}
	return true
}
