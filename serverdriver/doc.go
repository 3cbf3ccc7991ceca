// Package serverdriver is the single-threaded event/action core of the
// room server: session handshake, KeyPackage publish/fetch, Welcome
// routing, and room frame dispatch.
//
// Like every other component in this module, Driver is Sans-IO: it
// never performs network I/O, only returns a slice of Actions for the
// transport layer to execute. This keeps the same orchestration logic
// usable from a real listener and from the deterministic simulation
// harness.
package serverdriver
