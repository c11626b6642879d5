package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestOfferRoundTrip(t *testing.T) {
	for _, want := range []Offer{
		{UDPPort: 54321, TCPPort: 12345},
		{UDPPort: 0, TCPPort: 0},
		{UDPPort: 65535, TCPPort: 1},
	} {
		b := want.Marshal()
		if len(b) != OfferLen {
			t.Fatalf("offer length: got %d, want %d", len(b), OfferLen)
		}

		got, err := ParseOffer(b)
		if err != nil {
			t.Fatalf("parse error: %v", err)
		}
		if *got != want {
			t.Errorf("round trip: got %+v, want %+v", *got, want)
		}
	}
}

func TestOfferWireLayout(t *testing.T) {
	b := Offer{UDPPort: 0x0102, TCPPort: 0x0304}.Marshal()
	want := []byte{0xab, 0xcd, 0xdc, 0xba, 0x02, 0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(b, want) {
		t.Errorf("offer bytes: got %x, want %x", b, want)
	}
}

func TestShortInputIsInvalid(t *testing.T) {
	full := Offer{UDPPort: 1, TCPPort: 2}.Marshal()
	for n := 0; n < OfferLen; n++ {
		_, err := ParseOffer(full[:n])
		if !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("ParseOffer(%d bytes): got %v, want ErrInvalidMessage", n, err)
		}
		if _, err := Parse(full[:n]); err == nil {
			t.Errorf("Parse(%d bytes): expected error", n)
		}
	}

	req := Request{FileSize: 10}.Marshal()
	if _, err := ParseRequest(req[:RequestLen-1]); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("short request: got %v", err)
	}

	p := (&Payload{TotalSegments: 1, Index: 0}).Marshal()
	if _, err := ParsePayload(p[:PayloadHeaderLen-1]); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("short payload: got %v", err)
	}
}

func TestWrongCookieOrType(t *testing.T) {
	b := Offer{UDPPort: 1, TCPPort: 2}.Marshal()
	b[0] = 0x00
	if _, err := ParseOffer(b); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("bad cookie: got %v", err)
	}

	// A valid request is not a valid offer even though it is long enough.
	req := Request{FileSize: 5}.Marshal()
	if _, err := ParseOffer(req); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("request parsed as offer: got %v", err)
	}

	unknown := Offer{}.Marshal()
	unknown[4] = 0x7
	if _, err := Parse(unknown); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	b := Request{FileSize: 1 << 40}.Marshal()
	if len(b) != RequestLen {
		t.Fatalf("request length: got %d", len(b))
	}

	msg, err := Parse(b)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	req, ok := msg.(*Request)
	if !ok {
		t.Fatalf("expected *Request, got %T", msg)
	}
	if req.FileSize != 1<<40 {
		t.Errorf("file size: got %d", req.FileSize)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	data := []byte("segment data")
	b := (&Payload{TotalSegments: 3, Index: 2, Data: data}).Marshal()
	if len(b) != PayloadHeaderLen+len(data) {
		t.Fatalf("payload length: got %d", len(b))
	}

	p, err := ParsePayload(b)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if p.TotalSegments != 3 || p.Index != 2 {
		t.Errorf("header: got total=%d index=%d", p.TotalSegments, p.Index)
	}
	if !bytes.Equal(p.Data, data) {
		t.Errorf("data: got %q", p.Data)
	}
}

func TestPayloadIndexOutOfRange(t *testing.T) {
	b := (&Payload{TotalSegments: 3, Index: 3}).Marshal()
	if _, err := ParsePayload(b); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestAppendToReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, MaxDatagram)
	b := (&Payload{TotalSegments: 2, Index: 1, Data: []byte{1, 2, 3}}).AppendTo(buf)
	if &b[0] != &buf[:1][0] {
		t.Error("AppendTo allocated although capacity was sufficient")
	}
}

func TestSegmentMath(t *testing.T) {
	if n := SegmentCount(0, SegmentSize); n != 0 {
		t.Errorf("SegmentCount(0): got %d, want 0", n)
	}
	if n := SegmentCount(1024, SegmentSize); n != 1 {
		t.Errorf("SegmentCount(1024): got %d, want 1", n)
	}

	const size = 2500
	if n := SegmentCount(size, SegmentSize); n != 3 {
		t.Fatalf("SegmentCount(2500): got %d, want 3", n)
	}
	want := []int{1024, 1024, 452}
	for i, w := range want {
		if got := SegmentLen(size, uint64(i), SegmentSize); got != w {
			t.Errorf("SegmentLen(2500, %d): got %d, want %d", i, got, w)
		}
	}
	if got := SegmentLen(size, 3, SegmentSize); got != 0 {
		t.Errorf("SegmentLen past end: got %d", got)
	}
}

func TestSizeLine(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSizeLine(&buf, 2500); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "2500\n" {
		t.Fatalf("size line: got %q", buf.String())
	}

	n, err := ReadSizeLine(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2500 {
		t.Errorf("size: got %d", n)
	}

	// Windows-style line endings are tolerated.
	n, err = ReadSizeLine(bufio.NewReader(strings.NewReader("42\r\n")))
	if err != nil || n != 42 {
		t.Errorf("CRLF: got %d, %v", n, err)
	}
}

func TestSizeLineRejectsGarbage(t *testing.T) {
	for _, in := range []string{"abc\n", "-1\n", strings.Repeat("9", 40) + "\n"} {
		if _, err := ReadSizeLine(bufio.NewReader(strings.NewReader(in))); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("%q: got %v", in, err)
		}
	}

	_, err := ReadSizeLine(bufio.NewReader(strings.NewReader("123")))
	if !errors.Is(err, io.EOF) {
		t.Errorf("unterminated line: got %v", err)
	}
}

func TestFiller(t *testing.T) {
	b := make([]byte, 8)
	Fill(b)
	if string(b) != "00000000" {
		t.Errorf("filler: got %q", b)
	}
}
