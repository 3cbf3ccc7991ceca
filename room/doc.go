// Package room orchestrates MLS frame validation and sequencing for
// rooms, sitting between the connection layer and Storage.
//
//	Server
//	  - Connections (session layer, registry package)
//	  - RoomManager (group layer) <- this package
//	      - per-room MLS state
//	      - Sequencer (total ordering)
//	  - Storage (persistence)
//
// Like the rest of the protocol, RoomManager is Sans-IO: every method
// returns a slice of Actions for the caller to execute rather than
// performing broadcast or persistence itself.
package room
