package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the fixed size in bytes of every frame header.
	HeaderSize = 128

	// MaxPayloadSize is the maximum number of payload bytes a frame may carry.
	MaxPayloadSize = 16 * 1024 * 1024

	// ProtocolVersion is the only version this implementation understands.
	ProtocolVersion = 1

	// SignedPrefixSize is the number of leading header bytes covered by the
	// Ed25519 signature: everything up to but not including the signature
	// and reserved fields.
	SignedPrefixSize = 51
)

// Magic identifies the protocol in every frame header.
var Magic = [4]byte{'K', 'L', 'N', 'D'}

const (
	offMagic        = 0
	offVersion      = 4
	offOpcode       = 5
	offPayloadSize  = 7
	offRoomID       = 11
	offSenderID     = 27
	offLogIndex     = 35
	offEpoch        = 43
	offSignature    = 51
	offReserved     = 115
	reservedSize    = HeaderSize - offReserved
	roomIDSize      = 16
	signatureSize   = 64
)

// Opcode discriminates the closed set of frame types the protocol defines.
type Opcode uint16

const (
	OpcodeHello Opcode = iota
	OpcodeHelloReply
	OpcodePing
	OpcodePong
	OpcodeGoodbye
	OpcodeError
	OpcodeAppMessage
	OpcodeAppReceipt
	OpcodeAppReaction
	OpcodeKeyPackage
	OpcodeKeyPackagePublish
	OpcodeKeyPackageFetch
	OpcodeProposal
	OpcodeCommit
	OpcodeExternalCommit
	OpcodeWelcome
	OpcodeGroupInfo
	OpcodeGroupInfoRequest
	OpcodeSyncRequest
	OpcodeSyncResponse
	OpcodeRedact
	OpcodeBan
	OpcodeKick

	opcodeCount
)

func (o Opcode) String() string {
	names := [...]string{
		"Hello", "HelloReply", "Ping", "Pong", "Goodbye", "Error",
		"AppMessage", "AppReceipt", "AppReaction", "KeyPackage",
		"KeyPackagePublish", "KeyPackageFetch", "Proposal", "Commit",
		"ExternalCommit", "Welcome", "GroupInfo", "GroupInfoRequest",
		"SyncRequest", "SyncResponse", "Redact", "Ban", "Kick",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return fmt.Sprintf("Opcode(%d)", uint16(o))
}

// valid reports whether o is a member of the closed opcode set.
func (o Opcode) valid() bool {
	return o < opcodeCount
}

// FrameHeader carries the fields used for O(1) routing without touching
// the payload. Signature may be left zero when no signing key is bound.
type FrameHeader struct {
	Version     uint8
	Opcode      Opcode
	PayloadSize uint32
	RoomID      [16]byte
	SenderID    uint64
	// LogIndex is assigned by the server for ordered opcodes; it is
	// reused as the recipient id when Opcode == OpcodeWelcome.
	LogIndex  uint64
	Epoch     uint64
	Signature [64]byte
}

// RecipientID returns LogIndex reinterpreted as a recipient id, valid only
// when Opcode == OpcodeWelcome.
func (h FrameHeader) RecipientID() uint64 {
	return h.LogIndex
}

// Frame is the wire unit: a fixed header plus an opaque payload.
type Frame struct {
	Header  FrameHeader
	Payload []byte
}

// New constructs a Frame, setting header.PayloadSize from len(payload).
func New(header FrameHeader, payload []byte) (*Frame, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &ProtocolError{
			Kind:    ErrPayloadTooLarge,
			Size:    uint32(len(payload)),
			MaxSize: MaxPayloadSize,
		}
	}
	if !header.Opcode.valid() {
		return nil, &ProtocolError{Kind: ErrInvalidOpcode, Opcode: header.Opcode}
	}

	header.PayloadSize = uint32(len(payload))
	if header.Version == 0 {
		header.Version = ProtocolVersion
	}

	return &Frame{Header: header, Payload: payload}, nil
}

// Encode writes the frame as exactly HeaderSize+len(Payload) bytes.
func (f *Frame) Encode() []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))

	copy(buf[offMagic:offMagic+4], Magic[:])
	buf[offVersion] = f.Header.Version
	binary.BigEndian.PutUint16(buf[offOpcode:], uint16(f.Header.Opcode))
	binary.BigEndian.PutUint32(buf[offPayloadSize:], f.Header.PayloadSize)
	copy(buf[offRoomID:offRoomID+roomIDSize], f.Header.RoomID[:])
	binary.BigEndian.PutUint64(buf[offSenderID:], f.Header.SenderID)
	binary.BigEndian.PutUint64(buf[offLogIndex:], f.Header.LogIndex)
	binary.BigEndian.PutUint64(buf[offEpoch:], f.Header.Epoch)
	copy(buf[offSignature:offSignature+signatureSize], f.Header.Signature[:])
	// buf[offReserved:HeaderSize] is left zeroed.

	copy(buf[HeaderSize:], f.Payload)

	return buf
}

// SignedPrefix returns the deterministic header bytes the Ed25519
// signature is computed over: everything before the signature field.
func (f *Frame) SignedPrefix() []byte {
	full := f.Encode()
	prefix := make([]byte, SignedPrefixSize)
	copy(prefix, full[:SignedPrefixSize])
	return prefix
}

// Decode parses a byte slice into a Frame. Trailing bytes beyond
// HeaderSize+payload_size are ignored; the caller is responsible for
// transport-level framing.
func Decode(b []byte) (*Frame, error) {
	if len(b) < HeaderSize {
		return nil, &ProtocolError{
			Kind:     ErrFrameTruncated,
			Expected: HeaderSize,
			Actual:   len(b),
		}
	}

	if !bytes.Equal(b[offMagic:offMagic+4], Magic[:]) {
		return nil, &ProtocolError{Kind: ErrInvalidMagic}
	}

	version := b[offVersion]
	if version != ProtocolVersion {
		return nil, &ProtocolError{Kind: ErrUnsupportedVersion, Version: version}
	}

	opcode := Opcode(binary.BigEndian.Uint16(b[offOpcode:]))
	if !opcode.valid() {
		return nil, &ProtocolError{Kind: ErrInvalidOpcode, Opcode: opcode}
	}

	payloadSize := binary.BigEndian.Uint32(b[offPayloadSize:])
	if payloadSize > MaxPayloadSize {
		return nil, &ProtocolError{
			Kind:    ErrPayloadTooLarge,
			Size:    payloadSize,
			MaxSize: MaxPayloadSize,
		}
	}

	need := HeaderSize + int(payloadSize)
	if len(b) < need {
		return nil, &ProtocolError{
			Kind:     ErrFrameTruncated,
			Expected: need,
			Actual:   len(b),
		}
	}

	var header FrameHeader
	header.Version = version
	header.Opcode = opcode
	header.PayloadSize = payloadSize
	copy(header.RoomID[:], b[offRoomID:offRoomID+roomIDSize])
	header.SenderID = binary.BigEndian.Uint64(b[offSenderID:])
	header.LogIndex = binary.BigEndian.Uint64(b[offLogIndex:])
	header.Epoch = binary.BigEndian.Uint64(b[offEpoch:])
	copy(header.Signature[:], b[offSignature:offSignature+signatureSize])

	payload := make([]byte, payloadSize)
	copy(payload, b[HeaderSize:need])

	return &Frame{Header: header, Payload: payload}, nil
}
