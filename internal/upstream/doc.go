// Package upstream talks to the smart-home controller that owns
// authoritative valve entity state (Home Assistant).
//
// Two surfaces:
//
//   - Client wraps the REST API: a prefix-filtered entity listing used
//     for the startup bulk fetch, and the single set-value service call
//     used by the command path.
//   - Link maintains the WebSocket event stream. Each connection attempt
//     walks a fixed state machine (connect, await auth challenge, send
//     credentials, subscribe, stream events); any error from any state
//     drops back to disconnected and a fixed-delay reconnect is armed.
//
// A rejected credential closes the attempt like any other failure and
// still follows the reconnect path. Callers cannot distinguish bad
// credentials from network failure without reading logs; this mirrors
// the upstream protocol, which offers no retryable auth handshake.
//
// Only events whose entity ID carries the configured prefix are
// delivered; everything else on the event stream is discarded here so
// consumers never see foreign entities.
package upstream
