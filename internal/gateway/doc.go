// Package gateway implements the realtime websocket connection of the chat
// platform for a user account.
//
// The client dials the gateway, waits for HELLO, starts heartbeating at the
// announced interval and IDENTIFYs with the raw user token. Every frame it
// receives is delivered on Events() as a DispatchEvent, including heartbeat
// acks and other non-dispatch opcodes; lifecycle transitions arrive on the
// same channel as StateEvent. Frames are JSON, handled as structpb values via
// protojson.
//
// Resilience:
//   - writes are serialized with a mutex and a write deadline;
//   - an unacknowledged heartbeat drops the connection (zombie detection);
//   - RECONNECT and INVALID_SESSION start a fresh session, so READY is sent
//     again after every reconnect;
//   - redials back off exponentially from 1s up to 30s.
//
// Example:
//
//	gw := gateway.New(cfg.GatewayURL, cfg.Token, logs.Client)
//	if err := gw.Open(ctx); err != nil { return err }
//	for ev := range gw.Events() {
//	    switch ev := ev.(type) {
//	    case gateway.DispatchEvent:
//	        fmt.Println(ev.Frame.Op, ev.Frame.Type)
//	    case gateway.StateEvent:
//	        fmt.Println("state:", ev.State)
//	    }
//	}
package gateway
