package led

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/smazurov/statuslight/internal/color"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Driver using the Linux multicolor LED class
// (/sys/class/leds/<name>/multi_intensity).
type sysfs struct {
	ledPath       string
	index         [3]int // position of red, green, blue in multi_intensity
	maxBrightness int
}

// newSysfs opens a multicolor LED. root is normally sysfsLEDPath.
func newSysfs(root, name string) (*sysfs, error) {
	ledPath := filepath.Join(root, name)

	// Check if LED exists
	if _, err := os.Stat(filepath.Join(ledPath, "multi_intensity")); err != nil {
		return nil, fmt.Errorf("multicolor LED %q not found at %s: %w", name, ledPath, err)
	}

	index, err := readMultiIndex(filepath.Join(ledPath, "multi_index"))
	if err != nil {
		return nil, err
	}

	maxBrightness := 255
	if data, err := os.ReadFile(filepath.Join(ledPath, "max_brightness")); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && v > 0 {
			maxBrightness = v
		}
	}

	// Take manual control away from any kernel trigger
	if err := os.WriteFile(filepath.Join(ledPath, "trigger"), []byte("none"), 0644); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to set LED trigger to none: %w", err)
	}

	return &sysfs{
		ledPath:       ledPath,
		index:         index,
		maxBrightness: maxBrightness,
	}, nil
}

// readMultiIndex maps the kernel channel order ("red green blue" or any
// permutation) to positions.
func readMultiIndex(path string) ([3]int, error) {
	index := [3]int{0, 1, 2}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return index, nil
	}
	if err != nil {
		return index, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) != 3 {
		return index, fmt.Errorf("%s lists %d channels, want 3", path, len(fields))
	}
	for pos, name := range fields {
		switch name {
		case "red":
			index[0] = pos
		case "green":
			index[1] = pos
		case "blue":
			index[2] = pos
		default:
			return index, fmt.Errorf("%s: unsupported channel %q", path, name)
		}
	}
	return index, nil
}

// Transmit writes the first pixel as channel intensities. Brightness is left
// at max so the color carries all scaling.
func (s *sysfs) Transmit(_ context.Context, pixels []color.Color) error {
	if len(pixels) == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidPixelCount)
	}
	c := pixels[0]

	var values [3]uint8
	values[s.index[0]] = c.R
	values[s.index[1]] = c.G
	values[s.index[2]] = c.B

	intensity := fmt.Sprintf("%d %d %d", values[0], values[1], values[2])
	if err := os.WriteFile(filepath.Join(s.ledPath, "multi_intensity"), []byte(intensity), 0644); err != nil {
		return fmt.Errorf("failed to set LED intensity: %w", err)
	}

	brightness := 0
	if !c.IsBlack() {
		brightness = s.maxBrightness
	}
	if err := os.WriteFile(filepath.Join(s.ledPath, "brightness"), []byte(strconv.Itoa(brightness)), 0644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}

	return nil
}

func (s *sysfs) Info() Info {
	return Info{Driver: DriverSysfs, Target: s.ledPath, Order: "rgb", Pixels: 1}
}

// Close turns the LED off.
func (s *sysfs) Close() error {
	return s.Transmit(context.Background(), []color.Color{color.Black})
}
