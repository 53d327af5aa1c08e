package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/statuslight/cmd"
	"github.com/smazurov/statuslight/internal/config"
	"github.com/smazurov/statuslight/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config  string `help:"Path to configuration file" short:"c" default:"config.toml"`
	EnvFile string `help:"Optional .env file loaded before the environment is read" default:".env"`

	// Server settings
	Port       string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Access-Control-Allow-Origin value" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Auth settings, empty disables auth
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// LED settings
	LEDDriver           string        `help:"LED driver (auto, spi, serial, sim, sysfs, gpio, noop)" default:"auto" toml:"led.driver" env:"LED_DRIVER"`
	LEDCount            int           `help:"Number of pixels on the strip" default:"1" toml:"led.count" env:"LED_COUNT"`
	LEDOrder            string        `help:"Wire byte order (grb, rgb)" default:"grb" toml:"led.order" env:"LED_ORDER"`
	LEDTimeout          time.Duration `help:"Timeout for one transmission" default:"100ms" toml:"led.timeout" env:"LED_TIMEOUT"`
	LEDTickPeriod       time.Duration `help:"Animation frame period" default:"33ms" toml:"led.tick_period" env:"LED_TICK_PERIOD"`
	LEDGlobalBrightness int           `help:"Global brightness 0-255" default:"128" toml:"led.global_brightness" env:"LED_GLOBAL_BRIGHTNESS"`
	LEDAutoBrightness   bool          `help:"Auto-brightness flag" default:"false" toml:"led.auto_brightness" env:"LED_AUTO_BRIGHTNESS"`

	SPIPort        string `help:"SPI port for the pulse channel, empty for the first one" default:"" toml:"spi.port" env:"SPI_PORT"`
	SPIFrequencyHz int    `help:"SPI clock in Hz" default:"10000000" toml:"spi.frequency_hz" env:"SPI_FREQUENCY_HZ"`

	SerialDevice string `help:"Serial device of the LED bridge" default:"/dev/ttyACM0" toml:"serial.device" env:"SERIAL_DEVICE"`
	SerialBaud   int    `help:"Serial baud rate" default:"115200" toml:"serial.baud" env:"SERIAL_BAUD"`

	SysfsName string `help:"Multicolor LED name under /sys/class/leds, empty to detect" default:"" toml:"sysfs.name" env:"SYSFS_NAME"`

	GPIORed       string `help:"GPIO pin of the red channel" default:"" toml:"gpio.red" env:"GPIO_RED"`
	GPIOGreen     string `help:"GPIO pin of the green channel" default:"" toml:"gpio.green" env:"GPIO_GREEN"`
	GPIOBlue      string `help:"GPIO pin of the blue channel" default:"" toml:"gpio.blue" env:"GPIO_BLUE"`
	GPIOActiveLow bool   `help:"Common-anode wiring" default:"false" toml:"gpio.active_low" env:"GPIO_ACTIVE_LOW"`

	// Sync bus settings
	SyncQueueSize          int           `help:"Sync event queue capacity" default:"20" toml:"sync.queue_size" env:"SYNC_QUEUE_SIZE"`
	SyncSendTimeout        time.Duration `help:"How long a producer waits on a full queue" default:"100ms" toml:"sync.send_timeout" env:"SYNC_SEND_TIMEOUT"`
	SyncAutoSync           bool          `help:"Dispatch queued events" default:"true" toml:"sync.auto_sync" env:"SYNC_AUTO_SYNC"`
	SyncFeedbackBrightness int           `help:"Button feedback brightness 0-255" default:"255" toml:"sync.feedback_brightness" env:"SYNC_FEEDBACK_BRIGHTNESS"`
	SyncFeedbackDuration   time.Duration `help:"Button feedback duration" default:"300ms" toml:"sync.feedback_duration" env:"SYNC_FEEDBACK_DURATION"`

	// MQTT settings, empty broker disables the bridge
	MQTTBroker   string `help:"MQTT broker URL (tcp://host:1883)" default:"" toml:"mqtt.broker" env:"MQTT_BROKER"`
	MQTTClientID string `help:"MQTT client ID" default:"statuslight" toml:"mqtt.client_id" env:"MQTT_CLIENT_ID"`
	MQTTPrefix   string `help:"MQTT topic prefix" default:"statuslight" toml:"mqtt.prefix" env:"MQTT_PREFIX"`
	MQTTUsername string `help:"MQTT username" default:"" toml:"mqtt.username" env:"MQTT_USERNAME"`
	MQTTPassword string `help:"MQTT password" default:"" toml:"mqtt.password" env:"MQTT_PASSWORD"`
	MQTTQoS      int    `help:"MQTT QoS (0-2)" default:"0" toml:"mqtt.qos" env:"MQTT_QOS"`

	// systemd settings
	SystemdUnit string `help:"Unit name used by the service endpoints" default:"statuslight.service" toml:"systemd.unit" env:"SYSTEMD_UNIT"`
	SystemdUser bool   `help:"Connect to the user manager instead of the system one" default:"false" toml:"systemd.user" env:"SYSTEMD_USER"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStatus string `help:"Status arbitrator logging level" default:"info" toml:"logging.status" env:"LOGGING_STATUS"`
	LoggingSync   string `help:"Sync bus logging level" default:"info" toml:"logging.sync" env:"LOGGING_SYNC"`
	LoggingLED    string `help:"LED driver logging level" default:"info" toml:"logging.led" env:"LOGGING_LED"`
	LoggingAPI    string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingMQTT   string `help:"MQTT bridge logging level" default:"info" toml:"logging.mqtt" env:"LOGGING_MQTT"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if envErr := config.LoadDotEnv(opts.EnvFile); envErr != nil {
			slog.Warn("Failed to load env file", "error", envErr)
		}
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"status": opts.LoggingStatus,
				"sync":   opts.LoggingSync,
				"led":    opts.LoggingLED,
				"api":    opts.LoggingAPI,
				"mqtt":   opts.LoggingMQTT,
			},
		})
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		hooks.OnStart(func() {
			defer close(done)

			d, err := newDaemon(opts, logger)
			if err != nil {
				logger.Error("Failed to initialize", "error", err)
				os.Exit(1)
			}
			if err := d.Run(ctx); err != nil {
				logger.Error("Daemon stopped with error", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-done:
			case <-time.After(shutdownTimeout + time.Second):
				logger.Warn("Shutdown timed out")
			}
		})
	})

	cli.Root().AddCommand(cmd.CreatePreviewCmd())
	cli.Root().AddCommand(cmd.CreateEncodeCmd())

	cli.Run()
}
