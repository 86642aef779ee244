// Package discord is the REST side of the chat platform: typed payloads,
// an HTTP client authenticated as a user account, and a small cache of the
// channels and guilds announced on the gateway.
package discord
