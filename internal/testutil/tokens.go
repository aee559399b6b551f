// Package testutil provides shared fixtures for novabot tests.
package testutil

// Safe test credentials that won't trigger secret scanning.
// Keep them obviously fake; never paste real-looking tokens into tests.
const (
	// FakeDiscordToken is a safe test bot token for Discord.
	FakeDiscordToken = "test-discord-bot-token"

	// FakeOpenRouterKey is a safe test API key for OpenRouter.
	FakeOpenRouterKey = "test-openrouter-api-key"

	// FakeLinearAPIKey is a safe test API key for Linear.
	FakeLinearAPIKey = "test-linear-api-key"

	// FakeLinearTeamID is a safe test team id for Linear.
	FakeLinearTeamID = "test-team-id"
)
