// Command envnode runs an environmental sensor node: it samples motion,
// switch and temperature inputs, drives cooling fans and publishes readings
// to the configured transports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/envnode/internal/config"
	"github.com/sweeney/envnode/internal/display"
	"github.com/sweeney/envnode/internal/fan"
	"github.com/sweeney/envnode/internal/gpio"
	"github.com/sweeney/envnode/internal/led"
	"github.com/sweeney/envnode/internal/logging"
	"github.com/sweeney/envnode/internal/metrics"
	"github.com/sweeney/envnode/internal/scheduler"
	"github.com/sweeney/envnode/internal/sensors"
	"github.com/sweeney/envnode/internal/status"
	"github.com/sweeney/envnode/internal/timing"
	"github.com/sweeney/envnode/internal/web"
	"github.com/sweeney/envnode/internal/wifi"
)

var version = "dev"

type options struct {
	configURL    string
	deviceID     string
	deviceIDFile string
	idPins       []int
	gpioChip     string
	i2cBus       string
	motionPin    int
	switchPin    int
	ledPin       int
	w1Dir        string
	thermalZone  string
	httpAddr     string
	restartDelay time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.configURL, "config-url", "/etc/envnode/config.json", "Configuration document URL or file path")
	flag.StringVar(&opts.deviceID, "device-id", "", "Device id (overrides -device-id-file and the id pins)")
	flag.StringVar(&opts.deviceIDFile, "device-id-file", "", "File containing the device id")
	idPins := flag.String("id-pins", "0,1,2,3", "BCM pins encoding the device id, LSB first (empty to skip)")
	flag.StringVar(&opts.gpioChip, "gpio-chip", gpio.DefaultChip, "GPIO character device")
	flag.StringVar(&opts.i2cBus, "i2c-bus", "", "I2C bus name (empty for the first bus)")
	flag.IntVar(&opts.motionPin, "motion-pin", gpio.DefaultPinMotion, "BCM pin for the motion sensor")
	flag.IntVar(&opts.switchPin, "switch-pin", gpio.DefaultPinSwitch, "BCM pin for the switch")
	flag.IntVar(&opts.ledPin, "led-pin", gpio.DefaultPinLED, "BCM pin for the alive LED (-1 to disable)")
	flag.StringVar(&opts.w1Dir, "w1-dir", sensors.DefaultW1Dir, "1-Wire devices directory")
	flag.StringVar(&opts.thermalZone, "thermal-zone", sensors.DefaultThermalZone, "Internal temperature file")
	flag.StringVar(&opts.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.DurationVar(&opts.restartDelay, "restart-delay", 30*time.Second, "Delay before restarting after a fatal error")
	printState := flag.Bool("print-state", false, "Print current readings and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	pins, err := parsePins(*idPins)
	if err != nil {
		log.Fatalf("fatal: -id-pins: %v", err)
	}
	opts.idPins = pins

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console := log.New(os.Stderr, "", log.LstdFlags)
	if *printState {
		if err := printOnce(opts, console, os.Stdout); err != nil {
			log.Fatalf("fatal: %v", err)
		}
		return
	}

	supervise(ctx, opts.restartDelay, console, func(ctx context.Context) error {
		return run(ctx, opts, console)
	}, sleepContext)
	console.Printf("shutdown complete")
}

// supervise reruns run after every failure, waiting delay in between, until
// ctx is cancelled.
func supervise(ctx context.Context, delay time.Duration, logger logging.Logger, run func(context.Context) error, sleep func(context.Context, time.Duration) error) {
	for attempt := 1; ; attempt++ {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("main loop exited")
		}
		logger.Printf("fatal: %v; restarting in %v (attempt %d)", err, delay, attempt)
		if sleep(ctx, delay) != nil {
			return
		}
	}
}

// hardware is the set of buses and inputs opened at bootstrap.
type hardware struct {
	bus     i2c.BusCloser
	chip    *gpio.Chip
	sensors *sensors.Manager
}

func openHardware(opts options, console, logger logging.Logger) (*hardware, error) {
	hw := &hardware{}
	if _, err := host.Init(); err != nil {
		console.Printf("periph: host init: %v", err)
	} else if bus, err := i2creg.Open(opts.i2cBus); err != nil {
		console.Printf("i2c: open %q: %v", opts.i2cBus, err)
	} else {
		hw.bus = bus
	}

	chip, err := gpio.OpenChip(opts.gpioChip)
	if err != nil {
		hw.Close()
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	hw.chip = chip

	var motion, sw gpio.Input
	if motion, err = chip.RequestInput(opts.motionPin); err != nil {
		hw.Close()
		return nil, fmt.Errorf("motion input: %w", err)
	}
	if sw, err = chip.RequestInput(opts.switchPin); err != nil {
		motion.Close()
		hw.Close()
		return nil, fmt.Errorf("switch input: %w", err)
	}

	temp, err := sensors.Select(providers(hw.bus, opts), logger)
	if err != nil {
		logger.Printf("sensors: %v", err)
	}
	hw.sensors = sensors.NewManager(motion, sw, temp, logger)
	return hw, nil
}

// providers lists the temperature sensors to probe; the I2C parts are
// skipped when no bus could be opened.
func providers(bus i2c.Bus, opts options) []sensors.Provider {
	all := sensors.DefaultProviders(bus, opts.w1Dir, opts.thermalZone)
	if bus != nil {
		return all
	}
	var out []sensors.Provider
	for _, p := range all {
		if p.Name == sensors.TypeDS18B20 || p.Name == sensors.TypeInternal {
			out = append(out, p)
		}
	}
	return out
}

func (hw *hardware) Close() {
	if hw.sensors != nil {
		hw.sensors.Close()
	}
	if hw.chip != nil {
		hw.chip.Close()
	}
	if hw.bus != nil {
		hw.bus.Close()
	}
}

// stepOpener acquires step fan outputs from chip.
func stepOpener(chip *gpio.Chip) fan.StepOpener {
	return func(pins []int) (fan.CountOutput, error) {
		bank, err := chip.RequestOutputs(pins)
		if err != nil {
			return nil, err
		}
		return bank, nil
	}
}

// run performs one full bootstrap and drives the scheduler until ctx is
// cancelled or a fatal error occurs.
func run(ctx context.Context, opts options, console *log.Logger) error {
	sink := logging.NewSink(console, nil)

	hw, err := openHardware(opts, console, sink)
	if err != nil {
		return err
	}
	defer hw.Close()

	var disp display.Display = display.Nop{}
	if hw.bus != nil {
		screen, err := display.OpenOLED(hw.bus, console)
		if err != nil {
			console.Printf("display: %v", err)
		} else {
			sink.SetDisplay(screen)
			disp = screen
		}
	}
	defer disp.Close()

	id, err := deviceIDSource{
		flag:     opts.deviceID,
		file:     opts.deviceIDFile,
		readPins: chipIDReader(hw.chip, opts.idPins),
		hostname: os.Hostname,
	}.resolve(sink)
	if err != nil {
		return err
	}
	sink.Printf("envnode %s starting as %s", version, id)

	clock := timing.NewSystemClock()
	var indicator scheduler.Indicator
	if opts.ledPin >= 0 {
		out, err := hw.chip.RequestOutput(opts.ledPin)
		if err != nil {
			sink.Printf("led: %v", err)
		} else {
			blinker := led.New(out, false, sink)
			blinker.Start(clock.Ticks(), time.Second)
			defer blinker.Close()
			indicator = blinker
		}
	}

	m := metrics.New()
	tracker := status.NewTracker(time.Now(), status.Config{
		ConfigURL: opts.configURL,
		HTTPAddr:  opts.httpAddr,
		Version:   version,
	})
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, m.Handler(), nil)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sink.Printf("http server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		sink.Printf("http status server listening on %s", opts.httpAddr)
	}

	loader := &config.Loader{URL: opts.configURL, DeviceID: id, Logger: sink}
	dev, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, err := scheduler.New(scheduler.Deps{
		DeviceID:  id,
		Version:   version,
		Clock:     clock,
		Config:    loader,
		Sensors:   hw.sensors,
		Logger:    sink,
		Factories: scheduler.DefaultFactories(fan.OpenPWM, stepOpener(hw.chip)),
		Display:   disp,
		LED:       indicator,
		RSSI:      func() (int, error) { return wifi.RSSI(wifi.DefaultPath, "") },
		Tracker:   tracker,
		Metrics:   m,
	}, dev)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	return s.Run(ctx)
}

// printOnce reads every sensor once and writes the result to w.
func printOnce(opts options, console *log.Logger, w io.Writer) error {
	hw, err := openHardware(opts, console, console)
	if err != nil {
		return err
	}
	defer hw.Close()
	return printReadings(w, hw.sensors)
}

func printReadings(w io.Writer, r scheduler.SensorReader) error {
	motion, err := r.ReadMotion()
	if err != nil {
		return fmt.Errorf("read motion: %w", err)
	}
	sw, err := r.ReadSwitch()
	if err != nil {
		return fmt.Errorf("read switch: %w", err)
	}
	fmt.Fprintf(w, "Motion: %s, Switch: %s\n", motion.State, sw.State)

	t, err := r.ReadTemperature()
	if err != nil {
		fmt.Fprintf(w, "Temperature: unavailable (%v)\n", err)
		return nil
	}
	fmt.Fprintf(w, "Temperature: %.1fF (%.1fC) from %s\n", t.TemperatureF, t.TemperatureC(), t.SensorType)
	if t.Humidity != nil {
		fmt.Fprintf(w, "Humidity: %.1f%%\n", *t.Humidity)
	}
	if t.PressureInHg != nil {
		fmt.Fprintf(w, "Pressure: %.2finHg\n", *t.PressureInHg)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
