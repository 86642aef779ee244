// Package commands holds the prefix command registry: extensions that
// contribute commands, matching of message content to a command (with
// quoted arguments and subcommands), and the typed errors a failed
// invocation produces.
package commands
