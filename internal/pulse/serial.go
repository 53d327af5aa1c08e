package pulse

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Serial bridge packet types. A packet is the type byte, a little-endian
// uint16 payload length, the payload, then the CRC32 (IEEE) of the payload.
const (
	packetSymbols byte = iota
	packetCommit
	packetHalt
)

const (
	bridgeAck byte = 0x06
	bridgeNak byte = 0x15
)

// SerialConfig configures a SerialChannel.
type SerialConfig struct {
	Device string
	Baud   int
	// MemBlock is how many symbols the bridge buffers per commit.
	MemBlock int
}

// SerialChannel forwards symbol words to a microcontroller that owns the
// pulse peripheral. Flush commits the buffered words and waits for the
// bridge to acknowledge that they were clocked out.
type SerialChannel struct {
	mu       sync.Mutex
	port     serial.Port
	memBlock int
	pending  []uint32
	packet   []byte
}

// OpenSerial opens the bridge device.
func OpenSerial(cfg SerialConfig) (*SerialChannel, error) {
	if cfg.Device == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "serial device not set")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	if cfg.MemBlock <= 0 {
		cfg.MemBlock = DefaultMemBlock
	}

	port, err := serial.Open(cfg.Device, &serial.Mode{
		BaudRate: cfg.Baud,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	return newSerialChannel(port, cfg.MemBlock), nil
}

func newSerialChannel(port serial.Port, memBlock int) *SerialChannel {
	return &SerialChannel{
		port:     port,
		memBlock: memBlock,
		pending:  make([]uint32, 0, memBlock),
	}
}

// Resolution is fixed by the bridge firmware.
func (c *SerialChannel) Resolution() uint32 {
	return DefaultTiming.Resolution
}

func (c *SerialChannel) Write(symbols []Symbol) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return 0, ErrClosed
	}

	n := min(c.memBlock-len(c.pending), len(symbols))
	for _, s := range symbols[:n] {
		c.pending = append(c.pending, s.Word())
	}
	return n, nil
}

func (c *SerialChannel) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return ErrClosed
	}
	if len(c.pending) == 0 {
		return nil
	}

	payload := make([]byte, 0, 4*len(c.pending))
	for _, w := range c.pending {
		payload = binary.LittleEndian.AppendUint32(payload, w)
	}
	c.pending = c.pending[:0]

	if err := c.writePacket(packetSymbols, payload); err != nil {
		return err
	}
	if err := c.writePacket(packetCommit, nil); err != nil {
		return err
	}
	return c.readAck(ctx)
}

func (c *SerialChannel) writePacket(typ byte, payload []byte) error {
	c.packet = append(c.packet[:0], typ)
	c.packet = binary.LittleEndian.AppendUint16(c.packet, uint16(len(payload)))
	c.packet = append(c.packet, payload...)
	c.packet = binary.LittleEndian.AppendUint32(c.packet, crc32.ChecksumIEEE(payload))

	if _, err := c.port.Write(c.packet); err != nil {
		return errors.Wrapf(err, "failed to write %d-byte packet", len(c.packet))
	}
	return nil
}

func (c *SerialChannel) readAck(ctx context.Context) error {
	timeout := serial.NoTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}
	if err := c.port.SetReadTimeout(timeout); err != nil {
		return errors.Wrap(err, "failed to set read timeout")
	}

	var reply [1]byte
	n, err := c.port.Read(reply[:])
	switch {
	case err != nil && !errors.Is(err, io.EOF):
		return errors.Wrap(err, "failed to read bridge reply")
	case n == 0:
		// go.bug.st/serial reports a read timeout as zero bytes and no error.
		return errors.Wrap(context.DeadlineExceeded, "waiting for bridge ack")
	case reply[0] == bridgeNak:
		return errors.New("bridge rejected frame")
	case reply[0] != bridgeAck:
		return errors.Errorf("unexpected bridge reply 0x%02x", reply[0])
	}
	return nil
}

func (c *SerialChannel) Halt() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = c.pending[:0]
	if c.port == nil {
		return nil
	}
	return c.writePacket(packetHalt, nil)
}

func (c *SerialChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return errors.Wrap(err, "failed to close serial port")
}
