package twitchapi

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// TokenFunc returns the current bot chat token.
type TokenFunc func(ctx context.Context) (string, error)

// Identity resolves the bot's account name from its chat token, caching the
// answer. When validation fails it falls back to Fallback (normally
// TWITCH_BOT_USERNAME) and retries after RetryAfter.
type Identity struct {
	Client     *Client
	Token      TokenFunc
	Fallback   string
	RetryAfter time.Duration

	mu        sync.Mutex
	login     string
	nextRetry time.Time
}

// AccountName returns the lower-cased login of the bot account.
func (id *Identity) AccountName(ctx context.Context) (string, error) {
	id.mu.Lock()
	defer id.mu.Unlock()
	if id.login != "" {
		return id.login, nil
	}
	fallback := strings.ToLower(id.Fallback)
	if id.Token == nil || time.Now().Before(id.nextRetry) {
		return id.orFallback(fallback, nil)
	}

	tok, err := id.Token(ctx)
	if err == nil {
		var info *TokenInfo
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		info, err = id.Client.ValidateToken(vctx, tok)
		cancel()
		if err == nil {
			id.login = strings.ToLower(info.Login)
			if fallback != "" && fallback != id.login {
				slog.Warn("TWITCH_BOT_USERNAME differs from token owner; using token owner",
					slog.String("configured", fallback), slog.String("login", id.login), slog.String("component", "twitchapi"))
			}
			return id.login, nil
		}
	}
	retry := id.RetryAfter
	if retry <= 0 {
		retry = time.Minute
	}
	id.nextRetry = time.Now().Add(retry)
	slog.Warn("bot identity lookup failed", slog.Any("err", err), slog.String("component", "twitchapi"))
	return id.orFallback(fallback, err)
}

func (id *Identity) orFallback(fallback string, err error) (string, error) {
	if fallback != "" {
		return fallback, nil
	}
	if err == nil {
		err = ErrInvalidToken
	}
	return "", err
}
