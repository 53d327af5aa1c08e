package pulse

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/smazurov/statuslight/internal/color"
)

// fakePort records writes and answers reads from a canned reply.
type fakePort struct {
	serial.Port
	written bytes.Buffer
	reply   []byte
	timeout time.Duration
	closed  bool
}

func (p *fakePort) Write(b []byte) (int, error) {
	return p.written.Write(b)
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reply) == 0 {
		return 0, nil
	}
	n := copy(b, p.reply)
	p.reply = p.reply[n:]
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

type packet struct {
	typ     byte
	payload []byte
}

func parsePackets(t *testing.T, data []byte) []packet {
	t.Helper()
	var out []packet
	for len(data) > 0 {
		if len(data) < 3 {
			t.Fatalf("truncated header: %x", data)
		}
		typ := data[0]
		n := int(binary.LittleEndian.Uint16(data[1:3]))
		data = data[3:]
		if len(data) < n+4 {
			t.Fatalf("truncated packet of type %d", typ)
		}
		payload := data[:n]
		if sum := binary.LittleEndian.Uint32(data[n : n+4]); sum != crc32.ChecksumIEEE(payload) {
			t.Fatalf("packet type %d checksum %#x mismatch", typ, sum)
		}
		out = append(out, packet{typ: typ, payload: payload})
		data = data[n+4:]
	}
	return out
}

func TestSerialChannel_Commit(t *testing.T) {
	port := &fakePort{reply: []byte{bridgeAck}}
	ch := newSerialChannel(port, DefaultMemBlock)
	enc := newTestEncoder(t, ch, OrderGRB)

	if err := enc.Transmit(context.Background(), []color.Color{color.Blue}); err != nil {
		t.Fatalf("Transmit failed: %v", err)
	}

	packets := parsePackets(t, port.written.Bytes())
	if len(packets) != 2 {
		t.Fatalf("got %d packets, want symbols + commit", len(packets))
	}
	if packets[0].typ != packetSymbols || packets[1].typ != packetCommit {
		t.Fatalf("packet types = %d, %d", packets[0].typ, packets[1].typ)
	}

	payload := packets[0].payload
	if len(payload) != 25*4 {
		t.Fatalf("symbol payload is %d bytes, want %d", len(payload), 25*4)
	}
	symbols := make([]Symbol, 0, 25)
	for i := 0; i < len(payload); i += 4 {
		symbols = append(symbols, SymbolFromWord(binary.LittleEndian.Uint32(payload[i:])))
	}
	data, err := Decode(symbols, DefaultTiming)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0, 0, 255}) {
		t.Errorf("wire bytes = %x, want 0000ff", data)
	}

	if port.timeout <= 0 || port.timeout > DefaultTimeout {
		t.Errorf("read timeout = %s, want within (0, %s]", port.timeout, DefaultTimeout)
	}
}

func TestSerialChannel_NoAckTimesOut(t *testing.T) {
	port := &fakePort{}
	ch := newSerialChannel(port, DefaultMemBlock)
	enc := newTestEncoder(t, ch, OrderGRB)

	err := enc.Transmit(context.Background(), []color.Color{color.Red})
	if !errors.Is(err, ErrTransmitTimeout) {
		t.Fatalf("Transmit error = %v, want ErrTransmitTimeout", err)
	}

	packets := parsePackets(t, port.written.Bytes())
	last := packets[len(packets)-1]
	if last.typ != packetHalt {
		t.Errorf("last packet type = %d, want halt", last.typ)
	}
}

func TestSerialChannel_Nak(t *testing.T) {
	port := &fakePort{reply: []byte{bridgeNak}}
	ch := newSerialChannel(port, DefaultMemBlock)
	enc := newTestEncoder(t, ch, OrderGRB)

	err := enc.Transmit(context.Background(), []color.Color{color.Red})
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("Transmit error = %v, want *EncodeError", err)
	}
	if encErr.Op != "flush" {
		t.Errorf("EncodeError.Op = %q, want flush", encErr.Op)
	}
}

func TestSerialChannel_Close(t *testing.T) {
	port := &fakePort{}
	ch := newSerialChannel(port, DefaultMemBlock)

	if err := ch.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	if _, err := ch.Write([]Symbol{{}}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
}
