// Package chat connects the bot to Twitch IRC.
//
// Bridge joins TWITCH_CHANNEL as TWITCH_BOT_USERNAME, feeds every PRIVMSG to
// bot.Bot.Handle and posts generated sentences back with Say. go-twitch-irc
// invokes callbacks from its single reader goroutine, so messages arrive one
// at a time; the bot's own lock covers any other callers.
//
// Credentials: the IRC client needs a user (bot) OAuth token with
// chat:read/chat:edit scopes. If TWITCH_OAUTH_TOKEN is not provided, the
// package reuses the stored token from the oauth_tokens table for provider
// "twitch", which oauth.Refresher keeps fresh.
package chat
