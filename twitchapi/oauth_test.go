package twitchapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onnwee/markov-chatter/testutil"
)

func TestValidateToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockValidateResponse("good-token", "StreamerBot", "1234")
	c := &Client{BaseURL: mock.URL}

	tests := []struct {
		name      string
		token     string
		wantLogin string
		wantErr   error
	}{
		{"bare token", "good-token", "StreamerBot", nil},
		{"irc prefixed token", "oauth:good-token", "StreamerBot", nil},
		{"invalid token", "bad-token", "", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := c.ValidateToken(context.Background(), tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateToken() error = %v", err)
			}
			if info.Login != tt.wantLogin || info.UserID != "1234" {
				t.Fatalf("info = %+v", info)
			}
		})
	}
}

func TestValidateTokenEmpty(t *testing.T) {
	if _, err := (&Client{}).ValidateToken(context.Background(), "oauth:"); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestRefreshToken(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockRefreshResponse("new-access", "new-refresh", 14400)
	c := &Client{BaseURL: mock.URL}

	res, err := c.RefreshToken(context.Background(), "id", "secret", "old-refresh")
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if res.AccessToken != "new-access" || res.RefreshToken != "new-refresh" || res.ExpiresIn != 14400 {
		t.Fatalf("res = %+v", res)
	}
	if _, err := c.RefreshToken(context.Background(), "", "secret", "old-refresh"); err == nil {
		t.Fatal("expected error for missing client id")
	}
}

func TestRefreshTokenHTTPError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	c := &Client{BaseURL: mock.URL}
	if _, err := c.RefreshToken(context.Background(), "id", "secret", "r"); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestComputeExpiry(t *testing.T) {
	if d := time.Until(ComputeExpiry(0)); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("ComputeExpiry(0) = +%v, want about 60m", d)
	}
	if d := time.Until(ComputeExpiry(120)); d < 110*time.Second || d > 130*time.Second {
		t.Errorf("ComputeExpiry(120) = +%v", d)
	}
}
