// Package bot is the glue around gateway, discord and commands that makes
// the selfbot. It:
//   - keeps per-session counters (messages, mentions, commands, socket
//     events), reset on every READY;
//   - routes commands found in messages sent by the logged-in account;
//   - announces itself after a requested restart and clears the signal;
//   - keeps the broadcast game status in sync with the desired one.
//
// Lifecycle:
//   - build with New(Options{...});
//   - LoadExtensions(cfg.Extensions);
//   - open the gateway and call Run(ctx) until it returns.
//
// Example:
//
//	b := bot.New(bot.Options{Conn: gw, API: api, State: state, Store: store,
//	    Registry: commands.NewRegistry(), Prefixes: cfg.Prefix, Log: logs.App})
//	b.LoadExtensions(cfg.Extensions)
//	if err := gw.Open(ctx); err != nil { return err }
//	err := b.Run(ctx) // bot.ErrRestart after "debug restart"
package bot
