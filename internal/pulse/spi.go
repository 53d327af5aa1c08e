package pulse

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// SPIConfig configures an SPIChannel.
type SPIConfig struct {
	// Port is the periph SPI port name, e.g. "/dev/spidev0.0" or "SPI0.0".
	// Empty selects the first port.
	Port string
	// Frequency is the SPI clock. One SPI bit is the shortest pulse the
	// channel can produce, so 3.33 MHz gives 300ns steps.
	Frequency physic.Frequency
	// MaxTransfer is the largest single SPI transfer in bytes.
	MaxTransfer int
}

// DefaultSPIConfig drives the data line from MOSI at 3.33 MHz.
var DefaultSPIConfig = SPIConfig{
	Frequency:   3333 * physic.KiloHertz,
	MaxTransfer: 4096,
}

// SPIChannel produces pulses by streaming a bit pattern out of MOSI.
// Durations are quantized to whole SPI bits.
type SPIChannel struct {
	mu   sync.Mutex
	port spi.PortCloser
	conn spi.Conn

	resolution  uint32
	ticksPerBit uint32
	maxBits     int

	buf  []byte
	bits int
}

// OpenSPI initializes the host drivers and opens the SPI port.
func OpenSPI(cfg SPIConfig) (*SPIChannel, error) {
	if cfg.Frequency == 0 {
		cfg.Frequency = DefaultSPIConfig.Frequency
	}
	if cfg.MaxTransfer <= 0 {
		cfg.MaxTransfer = DefaultSPIConfig.MaxTransfer
	}

	hz := uint32(cfg.Frequency / physic.Hertz)
	if hz == 0 || hz > DefaultTiming.Resolution {
		return nil, fmt.Errorf("%w: spi frequency %s out of range", ErrInvalidConfig, cfg.Frequency)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize host drivers: %w", err)
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.Port, err)
	}

	conn, err := port.Connect(cfg.Frequency, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", cfg.Port, err)
	}

	return &SPIChannel{
		port:        port,
		conn:        conn,
		resolution:  DefaultTiming.Resolution,
		ticksPerBit: (DefaultTiming.Resolution + hz/2) / hz,
		maxBits:     cfg.MaxTransfer * 8,
		buf:         make([]byte, 0, cfg.MaxTransfer),
	}, nil
}

// Resolution reports the 10 MHz tick the symbols are expressed in; the SPI
// clock is coarser and pulses are rounded to it.
func (c *SPIChannel) Resolution() uint32 {
	return c.resolution
}

func (c *SPIChannel) Write(symbols []Symbol) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return 0, ErrClosed
	}

	for i, s := range symbols {
		n0, n1 := c.spiBits(s.Duration0), c.spiBits(s.Duration1)
		if c.bits+n0+n1 > c.maxBits {
			return i, nil
		}
		c.appendBits(s.Level0, n0)
		c.appendBits(s.Level1, n1)
	}
	return len(symbols), nil
}

func (c *SPIChannel) spiBits(ticks uint16) int {
	n := (uint32(ticks) + c.ticksPerBit/2) / c.ticksPerBit
	return int(max(n, 1))
}

func (c *SPIChannel) appendBits(level Level, n int) {
	for range n {
		if c.bits%8 == 0 {
			c.buf = append(c.buf, 0)
		}
		if level == High {
			c.buf[len(c.buf)-1] |= 0x80 >> (c.bits % 8)
		}
		c.bits++
	}
}

// Flush performs the SPI transfer. The transfer itself is synchronous, so
// ctx is only checked before it starts.
func (c *SPIChannel) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrClosed
	}
	if c.bits == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.conn.Tx(c.buf, nil)
	c.buf = c.buf[:0]
	c.bits = 0
	if err != nil {
		return fmt.Errorf("spi transfer: %w", err)
	}
	return nil
}

// Halt drops buffered bits and clocks out a zero byte so MOSI idles low.
func (c *SPIChannel) Halt() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf = c.buf[:0]
	c.bits = 0
	if c.conn == nil {
		return nil
	}
	return c.conn.Tx([]byte{0}, nil)
}

func (c *SPIChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port, c.conn = nil, nil
	return err
}
