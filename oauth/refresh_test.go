package oauth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/markov-chatter/db"
	"github.com/onnwee/markov-chatter/testutil"
)

func seedToken(t *testing.T, database *sql.DB, provider string, expiry time.Time) {
	t.Helper()
	err := db.UpsertOAuthToken(context.Background(), database, provider, db.OAuthToken{
		AccessToken: "old-access", RefreshToken: "old-refresh", ExpiresAt: expiry, Scope: "chat:read",
	})
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}
	t.Cleanup(func() { _, _ = database.Exec(`DELETE FROM oauth_tokens WHERE provider=$1`, provider) })
}

func TestCheckOnceOutsideWindow(t *testing.T) {
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "test-far", time.Now().Add(time.Hour))

	called := false
	r := &Refresher{DB: database, Provider: "test-far", Window: 30 * time.Minute, Refresh: func(context.Context, string) (db.OAuthToken, error) {
		called = true
		return db.OAuthToken{}, nil
	}}
	if r.CheckOnce(context.Background()) || called {
		t.Error("refresh should not run for a token expiring in 1 hour with a 30 minute window")
	}
}

func TestCheckOnceWithinWindow(t *testing.T) {
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "test-soon", time.Now().Add(5*time.Minute))

	var pushed string
	newExpiry := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	r := &Refresher{
		DB: database, Provider: "test-soon", Window: 15 * time.Minute,
		Refresh: func(_ context.Context, rt string) (db.OAuthToken, error) {
			if rt != "old-refresh" {
				t.Errorf("refresh called with %q, want old-refresh", rt)
			}
			// empty refresh token and scope keep the stored values
			return db.OAuthToken{AccessToken: "new-access", ExpiresAt: newExpiry}, nil
		},
		OnRefresh: func(tok string) { pushed = tok },
	}
	if !r.CheckOnce(context.Background()) {
		t.Fatal("expected refresh")
	}
	if pushed != "new-access" {
		t.Errorf("OnRefresh got %q", pushed)
	}
	tok, ok, err := db.GetOAuthToken(context.Background(), database, "test-soon")
	if err != nil || !ok {
		t.Fatalf("GetOAuthToken: ok=%v err=%v", ok, err)
	}
	if tok.AccessToken != "new-access" || tok.RefreshToken != "old-refresh" || tok.Scope != "chat:read" || !tok.ExpiresAt.Equal(newExpiry) {
		t.Errorf("stored token = %+v", tok)
	}
}

func TestCheckOnceRefreshError(t *testing.T) {
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "test-err", time.Now().Add(time.Minute))
	r := &Refresher{DB: database, Provider: "test-err", Refresh: func(context.Context, string) (db.OAuthToken, error) {
		return db.OAuthToken{}, errors.New("twitch down")
	}}
	if r.CheckOnce(context.Background()) {
		t.Fatal("failed refresh reported as success")
	}
	tok, _, _ := db.GetOAuthToken(context.Background(), database, "test-err")
	if tok.AccessToken != "old-access" {
		t.Errorf("token overwritten after failed refresh: %+v", tok)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{DB: database, Provider: "test-none", Interval: 20 * time.Millisecond, Refresh: func(context.Context, string) (db.OAuthToken, error) {
		return db.OAuthToken{}, nil
	}}
	r.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
}
