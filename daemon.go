package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"periph.io/x/periph/conn/physic"

	"github.com/smazurov/statuslight/internal/api"
	"github.com/smazurov/statuslight/internal/config"
	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/led"
	"github.com/smazurov/statuslight/internal/logging"
	"github.com/smazurov/statuslight/internal/metrics"
	"github.com/smazurov/statuslight/internal/mqtt"
	"github.com/smazurov/statuslight/internal/pulse"
	"github.com/smazurov/statuslight/internal/status"
	"github.com/smazurov/statuslight/internal/syncbus"
	"github.com/smazurov/statuslight/internal/systemd"
	"github.com/smazurov/statuslight/internal/version"
)

const shutdownTimeout = 5 * time.Second

// daemon owns every long-running component.
type daemon struct {
	opts     *Options
	logger   *slog.Logger
	eventBus *events.Bus
	driver   led.Driver
	surface  *led.Surface
	status   *status.Arbitrator
	sync     *syncbus.Bus
	server   *api.Server
	bridge   *mqtt.Bridge
	watcher  *config.Watcher[config.Runtime]
	notifier *systemd.Notifier
	service  *systemd.Manager
}

func ledConfig(opts *Options) (led.Config, error) {
	order, err := pulse.ParseOrder(opts.LEDOrder)
	if err != nil {
		return led.Config{}, err
	}
	return led.Config{
		Driver:        opts.LEDDriver,
		Count:         opts.LEDCount,
		Order:         order,
		Timeout:       opts.LEDTimeout,
		SPIPort:       opts.SPIPort,
		SPIFrequency:  physic.Frequency(opts.SPIFrequencyHz) * physic.Hertz,
		SerialDevice:  opts.SerialDevice,
		SerialBaud:    opts.SerialBaud,
		SysfsName:     opts.SysfsName,
		GPIORed:       opts.GPIORed,
		GPIOGreen:     opts.GPIOGreen,
		GPIOBlue:      opts.GPIOBlue,
		GPIOActiveLow: opts.GPIOActiveLow,
	}, nil
}

func brightness(name string, v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%s: %d out of range 0-255", name, v)
	}
	return uint8(v), nil
}

// newDaemon builds the component graph. Components that own hardware are
// released again when a later step fails.
func newDaemon(opts *Options, logger *slog.Logger) (d *daemon, err error) {
	logger.Info("Starting statuslight", "version", version.String())

	global, err := brightness("led.global_brightness", opts.LEDGlobalBrightness)
	if err != nil {
		return nil, err
	}
	feedback, err := brightness("sync.feedback_brightness", opts.SyncFeedbackBrightness)
	if err != nil {
		return nil, err
	}
	if opts.MQTTQoS < 0 || opts.MQTTQoS > 2 {
		return nil, fmt.Errorf("mqtt.qos: %d out of range 0-2", opts.MQTTQoS)
	}

	d = &daemon{
		opts:     opts,
		logger:   logger,
		eventBus: events.New(),
		notifier: systemd.NewNotifier(logging.GetLogger("systemd")),
	}

	ledCfg, err := ledConfig(opts)
	if err != nil {
		return nil, err
	}
	d.driver, err = led.New(ledCfg, logging.GetLogger("led"))
	if err != nil {
		return nil, fmt.Errorf("led driver: %w", err)
	}
	defer func() {
		if err != nil {
			d.close()
		}
	}()
	logger.Info("LED driver ready", "driver", d.driver.Info().Driver, "target", d.driver.Info().Target)

	d.surface, err = led.NewSurface(d.driver, opts.LEDCount)
	if err != nil {
		return nil, err
	}

	d.status, err = status.New(d.surface,
		status.WithTickPeriod(opts.LEDTickPeriod),
		status.WithGlobalBrightness(global),
		status.WithEventBus(d.eventBus),
	)
	if err != nil {
		return nil, fmt.Errorf("status arbitrator: %w", err)
	}
	if opts.LEDAutoBrightness {
		_ = d.status.SetAutoBrightness(true)
	}

	d.sync, err = syncbus.New(d.status,
		syncbus.WithQueueSize(opts.SyncQueueSize),
		syncbus.WithSendTimeout(opts.SyncSendTimeout),
		syncbus.WithFeedback(feedback, opts.SyncFeedbackDuration),
		syncbus.WithEventBus(d.eventBus),
	)
	if err != nil {
		return nil, fmt.Errorf("sync bus: %w", err)
	}
	if !opts.SyncAutoSync {
		_ = d.sync.SetAutoSync(false)
	}

	// A missing D-Bus only disables the service endpoints.
	if svc, svcErr := systemd.NewManager(context.Background(), opts.SystemdUnit, opts.SystemdUser); svcErr != nil {
		logger.Info("systemd manager unavailable", "error", svcErr)
	} else {
		d.service = svc
	}

	apiOpts := &api.Options{
		AuthUsername:   opts.AuthUsername,
		AuthPassword:   opts.AuthPassword,
		CORSOrigin:     opts.CORSOrigin,
		Status:         d.status,
		Sync:           d.sync,
		LEDs:           d.surface,
		EventBus:       d.eventBus,
		MetricsHandler: metrics.Handler(),
	}
	if d.service != nil {
		apiOpts.Systemd = d.service
	}
	d.server = api.NewServer(apiOpts)

	if opts.MQTTBroker != "" {
		d.bridge, err = mqtt.New(mqtt.Config{
			Broker:   opts.MQTTBroker,
			ClientID: opts.MQTTClientID,
			Prefix:   opts.MQTTPrefix,
			Username: opts.MQTTUsername,
			Password: opts.MQTTPassword,
			QoS:      byte(opts.MQTTQoS),
		}, d.sync, d.status, d.eventBus)
		if err != nil {
			return nil, err
		}
	}

	d.watcher = config.NewConfigWatcher(opts.Config, config.LoadRuntime, logging.GetLogger("config"))
	d.watcher.OnReload(d.applyRuntime)

	logging.OnEntry(func(e logging.Entry) {
		d.eventBus.Publish(api.LogEntryEvent(e))
	})
	return d, nil
}

// applyRuntime applies a reloaded config file. Absent keys keep their
// current value.
func (d *daemon) applyRuntime(rt config.Runtime) {
	if rt.GlobalBrightness != nil {
		_ = d.status.SetBrightness(*rt.GlobalBrightness)
	}
	if rt.AutoBrightness != nil {
		_ = d.status.SetAutoBrightness(*rt.AutoBrightness)
	}
	if rt.AutoSync != nil {
		_ = d.sync.SetAutoSync(*rt.AutoSync)
	}
	if rt.FeedbackDuration != nil {
		b, _ := d.sync.Feedback()
		_ = d.sync.SetFeedback(b, *rt.FeedbackDuration)
	}

	if err := logging.SetLevel("", rt.Logging.Level); err != nil {
		d.logger.Warn("Ignoring logging level", "error", err)
	}
	for module, level := range rt.Logging.Modules {
		if err := logging.SetLevel(module, level); err != nil {
			d.logger.Warn("Ignoring module logging level", "module", module, "error", err)
		}
	}
	d.logger.Info("Applied reloaded config")
}

// Run starts every component and blocks until ctx is canceled or one of
// them fails, then tears down in dependency order.
func (d *daemon) Run(ctx context.Context) error {
	defer d.close()

	if err := d.watcher.Start(); err != nil {
		d.logger.Warn("Config hot reload disabled", "error", err)
	}

	errg, ctx := errgroup.WithContext(ctx)

	errg.Go(func() error { return d.status.Run(ctx) })
	errg.Go(func() error { return d.sync.Run(ctx) })

	errg.Go(func() error {
		if err := d.server.Start(d.opts.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	errg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return d.server.Shutdown(shutdownCtx)
	})

	if d.bridge != nil {
		errg.Go(func() error { return d.bridge.Run(ctx) })
	}

	errg.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				d.logger.Info("SIGHUP received, reloading config")
				d.watcher.Reload()
			}
		}
	})

	errg.Go(func() error {
		return d.notifier.RunWatchdog(ctx, func() bool { return d.sync.QueueLen() < d.sync.QueueCap() })
	})

	if err := d.sync.HandleSystemStartup(); err != nil {
		d.logger.Warn("Failed to queue startup event", "error", err)
	}
	d.notifier.Ready()
	d.notifier.Status("Serving on " + d.opts.Port)

	err := errg.Wait()
	d.notifier.Stopping()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// close releases components in reverse dependency order: the event queue
// first, then the frame clock (which blacks out the LED), then the driver.
func (d *daemon) close() {
	if d.watcher != nil {
		_ = d.watcher.Stop()
	}
	if d.sync != nil {
		_ = d.sync.Close()
	}
	if d.status != nil {
		_ = d.status.Close()
	}
	if d.driver != nil {
		if err := d.driver.Close(); err != nil {
			d.logger.Warn("Failed to close LED driver", "error", err)
		}
	}
	if d.service != nil {
		d.service.Close()
	}
}
