package protocol

import "errors"

// MagicCookie prefixes every datagram of the protocol.
const MagicCookie uint32 = 0xabcddcba

// Message types, the byte following the cookie.
const (
	TypeOffer   byte = 0x2
	TypeRequest byte = 0x3
	TypePayload byte = 0x4
)

// Wire sizes in bytes.
const (
	OfferLen         = 9  // cookie(4) + type(1) + udpPort(2) + tcpPort(2)
	RequestLen       = 13 // cookie(4) + type(1) + fileSize(8)
	PayloadHeaderLen = 21 // cookie(4) + type(1) + total(8) + index(8)
)

const (
	// SegmentSize is the payload capacity of one UDP segment.
	SegmentSize = 1024

	// MaxDatagram caps the receive buffer for protocol datagrams.
	MaxDatagram = 2048

	// BroadcastPort is the well-known port offers are broadcast to.
	BroadcastPort = 13117

	// MaxSizeLineLen bounds the ASCII size line read from a TCP client:
	// 20 digits of a uint64 plus CR LF.
	MaxSizeLineLen = 22
)

// ErrInvalidMessage is wrapped by every decode failure. Callers must not use
// any field of a message that failed to decode.
var ErrInvalidMessage = errors.New("invalid message")

// Offer is broadcast by a server to advertise its transfer ports.
type Offer struct {
	UDPPort uint16
	TCPPort uint16
}

// Request asks a server for a UDP transfer of FileSize bytes.
type Request struct {
	FileSize uint64
}

// Payload is one segment of a UDP transfer.
type Payload struct {
	TotalSegments uint64
	Index         uint64
	Data          []byte
}
