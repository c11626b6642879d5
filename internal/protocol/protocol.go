package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Marshal encodes the offer into its 9-byte wire form.
func (o Offer) Marshal() []byte {
	buf := make([]byte, OfferLen)
	putHeader(buf, TypeOffer)
	binary.BigEndian.PutUint16(buf[5:7], o.UDPPort)
	binary.BigEndian.PutUint16(buf[7:9], o.TCPPort)
	return buf
}

// Marshal encodes the request into its 13-byte wire form.
func (r Request) Marshal() []byte {
	buf := make([]byte, RequestLen)
	putHeader(buf, TypeRequest)
	binary.BigEndian.PutUint64(buf[5:13], r.FileSize)
	return buf
}

// Marshal encodes the payload into a freshly allocated datagram.
func (p *Payload) Marshal() []byte {
	return p.AppendTo(make([]byte, 0, PayloadHeaderLen+len(p.Data)))
}

// AppendTo appends the encoded payload to buf and returns the extended slice.
// Senders reuse one buffer per session this way.
func (p *Payload) AppendTo(buf []byte) []byte {
	var hdr [PayloadHeaderLen]byte
	putHeader(hdr[:], TypePayload)
	binary.BigEndian.PutUint64(hdr[5:13], p.TotalSegments)
	binary.BigEndian.PutUint64(hdr[13:21], p.Index)
	buf = append(buf, hdr[:]...)
	return append(buf, p.Data...)
}

func putHeader(buf []byte, msgType byte) {
	binary.BigEndian.PutUint32(buf[0:4], MagicCookie)
	buf[4] = msgType
}

// checkHeader validates length, cookie and type together.
func checkHeader(b []byte, want byte, minLen int) error {
	if len(b) < minLen {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidMessage, len(b), minLen)
	}
	cookie := binary.BigEndian.Uint32(b[0:4])
	if cookie != MagicCookie || b[4] != want {
		return fmt.Errorf("%w: cookie 0x%08x type 0x%x, want cookie 0x%08x type 0x%x",
			ErrInvalidMessage, cookie, b[4], MagicCookie, want)
	}
	return nil
}

// ParseOffer decodes an Offer datagram.
func ParseOffer(b []byte) (*Offer, error) {
	if err := checkHeader(b, TypeOffer, OfferLen); err != nil {
		return nil, err
	}
	return &Offer{
		UDPPort: binary.BigEndian.Uint16(b[5:7]),
		TCPPort: binary.BigEndian.Uint16(b[7:9]),
	}, nil
}

// ParseRequest decodes a Request datagram.
func ParseRequest(b []byte) (*Request, error) {
	if err := checkHeader(b, TypeRequest, RequestLen); err != nil {
		return nil, err
	}
	return &Request{FileSize: binary.BigEndian.Uint64(b[5:13])}, nil
}

// ParsePayload decodes a Payload datagram. Data aliases b; copy it if b is
// about to be reused.
func ParsePayload(b []byte) (*Payload, error) {
	if err := checkHeader(b, TypePayload, PayloadHeaderLen); err != nil {
		return nil, err
	}
	p := &Payload{
		TotalSegments: binary.BigEndian.Uint64(b[5:13]),
		Index:         binary.BigEndian.Uint64(b[13:21]),
		Data:          b[PayloadHeaderLen:],
	}
	if p.Index >= p.TotalSegments {
		return nil, fmt.Errorf("%w: segment index %d out of range (total %d)",
			ErrInvalidMessage, p.Index, p.TotalSegments)
	}
	return p, nil
}

// Parse decodes any protocol datagram and returns *Offer, *Request or
// *Payload.
func Parse(b []byte) (interface{}, error) {
	if len(b) < 5 {
		return nil, fmt.Errorf("%w: %d bytes, too short for a header", ErrInvalidMessage, len(b))
	}

	switch b[4] {
	case TypeOffer:
		return ParseOffer(b)
	case TypeRequest:
		return ParseRequest(b)
	case TypePayload:
		return ParsePayload(b)
	default:
		return nil, fmt.Errorf("%w: unknown message type 0x%x", ErrInvalidMessage, b[4])
	}
}

// WriteSizeLine writes the TCP request: n in ASCII decimal followed by '\n'.
func WriteSizeLine(w io.Writer, n uint64) error {
	_, err := io.WriteString(w, strconv.FormatUint(n, 10)+"\n")
	return err
}

// ReadSizeLine reads the TCP request line written by WriteSizeLine. At most
// MaxSizeLineLen bytes are consumed looking for the newline.
func ReadSizeLine(r *bufio.Reader) (uint64, error) {
	var line []byte
	for len(line) < MaxSizeLineLen {
		c, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("reading size line: %w", err)
		}
		if c == '\n' {
			n, err := strconv.ParseUint(strings.TrimSpace(string(line)), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: bad size line %q", ErrInvalidMessage, line)
			}
			return n, nil
		}
		line = append(line, c)
	}
	return 0, fmt.Errorf("%w: size line longer than %d bytes", ErrInvalidMessage, MaxSizeLineLen)
}
