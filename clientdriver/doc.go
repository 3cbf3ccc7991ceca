// Package clientdriver implements the app-facing, sans-I/O client side
// of the protocol: a pure Event -> []Action state machine layered over
// mls.ClientGroup (MLS membership) and senderkey.Store (per-epoch
// message encryption). The driver performs no network or disk I/O
// itself; the caller executes the Actions it returns.
package clientdriver
