package chat

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/onnwee/markov-chatter/bot"
	"github.com/onnwee/markov-chatter/db"
	"github.com/onnwee/markov-chatter/telemetry"
	"github.com/onnwee/markov-chatter/twitchapi"
)

// TokenProvider is the oauth_tokens provider key for the bot's chat token.
const TokenProvider = "twitch"

// ErrNotConnected is returned by Post before the IRC session is up.
var ErrNotConnected = errors.New("twitch chat not connected")

// Handler consumes inbound chat messages; *bot.Bot implements it.
type Handler interface {
	Handle(ctx context.Context, msg bot.Message) bot.Outcome
}

// Bridge relays messages between Twitch IRC and a Handler.
type Bridge struct {
	client    *twitch.Client
	channel   string
	handler   Handler
	connected atomic.Bool
	ctx       context.Context
}

// NewBridge prepares an IRC client for username/token joined to channel.
func NewBridge(username, token, channel string, h Handler) *Bridge {
	br := &Bridge{
		client:  twitch.NewClient(username, ircToken(token)),
		channel: channel,
		handler: h,
		ctx:     context.Background(),
	}
	br.client.OnConnect(func() {
		br.connected.Store(true)
		slog.Info("twitch chat connected", slog.String("channel", channel), slog.String("component", "chat"))
	})
	br.client.OnPrivateMessage(br.onPrivateMessage)
	br.client.Join(channel)
	return br
}

// Post implements bot.Poster.
func (br *Bridge) Post(_ context.Context, channel, text string) error {
	if !br.connected.Load() {
		return ErrNotConnected
	}
	if channel == "" {
		channel = br.channel
	}
	br.client.Say(channel, text)
	return nil
}

// SetToken swaps the IRC token; it takes effect on the next (re)connect.
func (br *Bridge) SetToken(token string) { br.client.SetIRCToken(ircToken(token)) }

// Run connects and blocks until ctx is cancelled or the connection fails for good.
func (br *Bridge) Run(ctx context.Context) error {
	br.ctx = ctx
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = br.client.Disconnect()
		case <-done:
		}
	}()
	defer close(done)

	err := br.client.Connect()
	br.connected.Store(false)
	if errors.Is(err, twitch.ErrClientDisconnected) || ctx.Err() != nil {
		slog.Info("twitch chat disconnected", slog.String("component", "chat"))
		return nil
	}
	if err != nil {
		slog.Error("twitch chat connect error", slog.Any("err", err), slog.String("component", "chat"))
	}
	return err
}

func (br *Bridge) onPrivateMessage(pm twitch.PrivateMessage) {
	msg := ToMessage(pm)
	corr := msg.ID
	if corr == "" {
		corr = uuid.New().String()
	}
	ctx := telemetry.WithCorrelation(br.ctx, corr)
	br.handler.Handle(ctx, msg)
}

// ToMessage converts an IRC PRIVMSG into the bot's inbound message.
func ToMessage(pm twitch.PrivateMessage) bot.Message {
	return bot.Message{
		ID:      pm.ID,
		Channel: pm.Channel,
		Author:  pm.User.Name,
		Text:    pm.Message,
	}
}

// ResolveToken returns the configured token, or the stored "twitch" token when
// envToken is empty and a database is available.
func ResolveToken(ctx context.Context, envToken string, database *sql.DB) (string, error) {
	if envToken != "" {
		return envToken, nil
	}
	if database == nil {
		return "", errors.New("no TWITCH_OAUTH_TOKEN and no database to read a stored token from")
	}
	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tok, ok, err := db.GetOAuthToken(qctx, database, TokenProvider)
	if err != nil {
		return "", err
	}
	if !ok || tok.AccessToken == "" {
		return "", errors.New("no stored twitch token")
	}
	return tok.AccessToken, nil
}

// ircToken adds the "oauth:" prefix the IRC PASS command expects.
func ircToken(token string) string { return "oauth:" + twitchapi.NormalizeToken(token) }
