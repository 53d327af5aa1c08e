package led

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"periph.io/x/periph/conn/physic"

	"github.com/smazurov/statuslight/internal/logging"
	"github.com/smazurov/statuslight/internal/pulse"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Driver names accepted by Config.Driver.
const (
	DriverAuto   = "auto"
	DriverSPI    = "spi"
	DriverSerial = "serial"
	DriverSim    = "sim"
	DriverSysfs  = "sysfs"
	DriverGPIO   = "gpio"
	DriverNoop   = "noop"
)

// Config selects and configures the LED driver.
type Config struct {
	Driver string
	Count  int
	Order  pulse.Order
	// Timeout bounds a single pulse transmission.
	Timeout time.Duration

	SPIPort      string
	SPIFrequency physic.Frequency

	SerialDevice string
	SerialBaud   int

	// SysfsName is the multicolor LED under SysfsRoot. Empty picks the first
	// multicolor LED found.
	SysfsName string
	SysfsRoot string

	GPIORed       string
	GPIOGreen     string
	GPIOBlue      string
	GPIOActiveLow bool
}

// New creates the configured driver. With DriverAuto the board is probed and
// the no-op driver is used when nothing suitable is found.
func New(cfg Config, logger logging.Logger) (Driver, error) {
	if cfg.Count < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPixelCount, cfg.Count)
	}
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = sysfsLEDPath
	}

	name := strings.ToLower(cfg.Driver)
	if name == "" || name == DriverAuto {
		name = detect(cfg, logger)
	}

	pulseCfg := pulse.Config{Order: cfg.Order, Timeout: cfg.Timeout}

	switch name {
	case DriverSPI:
		ch, err := pulse.OpenSPI(pulse.SPIConfig{Port: cfg.SPIPort, Frequency: cfg.SPIFrequency})
		if err != nil {
			return nil, err
		}
		return wrap(newPulseDriver(DriverSPI, cfg.SPIPort, ch, pulseCfg, cfg.Count))

	case DriverSerial:
		ch, err := pulse.OpenSerial(pulse.SerialConfig{Device: cfg.SerialDevice, Baud: cfg.SerialBaud})
		if err != nil {
			return nil, err
		}
		return wrap(newPulseDriver(DriverSerial, cfg.SerialDevice, ch, pulseCfg, cfg.Count))

	case DriverSim:
		return wrap(newPulseDriver(DriverSim, "memory", pulse.NewSimChannel(), pulseCfg, cfg.Count))

	case DriverSysfs:
		ledName := cfg.SysfsName
		if ledName == "" {
			ledName = findMulticolorLED(cfg.SysfsRoot)
		}
		if ledName == "" {
			return nil, fmt.Errorf("no multicolor LED under %s", cfg.SysfsRoot)
		}
		return wrap(newSysfs(cfg.SysfsRoot, ledName))

	case DriverGPIO:
		return wrap(newGPIO(cfg.GPIORed, cfg.GPIOGreen, cfg.GPIOBlue, cfg.GPIOActiveLow))

	case DriverNoop:
		return newNoop(logger, cfg.Count), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// NewPulseDriver wraps an already opened pulse channel.
func NewPulseDriver(name string, ch pulse.Channel, cfg pulse.Config, pixels int) (Driver, error) {
	if pixels < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPixelCount, pixels)
	}
	return wrap(newPulseDriver(name, "", ch, cfg, pixels))
}

// wrap keeps a failed constructor from yielding a non-nil Driver holding a
// nil pointer.
func wrap[D Driver](d D, err error) (Driver, error) {
	if err != nil {
		return nil, err
	}
	return d, nil
}

// detect picks a driver from what the board exposes.
func detect(cfg Config, logger logging.Logger) string {
	boardModel := detectBoard()

	if logger != nil {
		logger.Info("Detecting board for LED output", "board_model", boardModel)
	}

	switch {
	case cfg.SysfsName != "" || findMulticolorLED(cfg.SysfsRoot) != "":
		if logger != nil {
			logger.Info("Found multicolor LED, using sysfs driver")
		}
		return DriverSysfs

	case cfg.SerialDevice != "":
		if logger != nil {
			logger.Info("Serial bridge configured, using serial driver", "device", cfg.SerialDevice)
		}
		return DriverSerial

	case strings.Contains(boardModel, "Raspberry Pi"):
		if logger != nil {
			logger.Info("Detected Raspberry Pi, using SPI pulse driver")
		}
		return DriverSPI

	default:
		if logger != nil {
			logger.Info("No LED support detected, using no-op driver", "board_model", boardModel)
		}
		return DriverNoop
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}

// findMulticolorLED returns the first LED under root with a multi_intensity
// attribute.
func findMulticolorLED(root string) string {
	matches, err := filepath.Glob(filepath.Join(root, "*", "multi_intensity"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return filepath.Base(filepath.Dir(matches[0]))
}
