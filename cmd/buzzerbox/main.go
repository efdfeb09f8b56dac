package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-buzzerbox/internal/app"
	"github.com/coreman2200/funtimes-buzzerbox/internal/config"
	"github.com/coreman2200/funtimes-buzzerbox/internal/console"
	"github.com/coreman2200/funtimes-buzzerbox/internal/led"
)

func main() {
	// ---- Flags (override config.yaml and the environment) ----
	var (
		configPath = flag.String("config", "buzzerbox.yaml", "path to config file")
		sink       = flag.String("sink", "", "led sink: spi | nrzled | screen | sim")
		leds       = flag.Int("leds", 0, "LEDs per strip")
		brightness = flag.Float64("brightness", -1, "global brightness 0..1")
		fps        = flag.Int("fps", 0, "maximum frames per second")
		addr       = flag.String("addr", "", "preview HTTP listen address")
		tty        = flag.String("console", "", "console device path, or stdio")
		level      = flag.String("log-level", "", "log level")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
		saveConfig = flag.Bool("save-config", false, "write the effective config to -config and exit")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// ---- Config: defaults < file < env < flags ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	if err := config.ApplyEnv(cfg); err != nil {
		log.Fatal().Err(err).Msg("environment")
	}
	if *sink != "" {
		cfg.Sink = *sink
	}
	if *leds > 0 {
		cfg.LEDsPerStrip = *leds
	}
	if *brightness >= 0 {
		cfg.Brightness = *brightness
	}
	if *fps > 0 {
		cfg.FPS = *fps
	}
	if *addr != "" {
		cfg.Preview.Addr = *addr
	}
	if *tty != "" {
		cfg.Console.Device = *tty
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if *simOnly {
		cfg.Sink = "sim"
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if *saveConfig {
		if err := config.Save(*configPath, cfg); err != nil {
			log.Fatal().Err(err).Msg("save config")
		}
		log.Info().Str("path", *configPath).Msg("config written")
		return
	}

	// ---- Hardware ----
	hw := app.IO{In: os.Stdin, Out: os.Stdout}
	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("periph host init failed; GPIO and SPI unavailable")
		cfg.Sink = "sim"
	} else {
		hw.ButtonA = pin(cfg.GPIO.ButtonA)
		hw.ButtonB = pin(cfg.GPIO.ButtonB)
		hw.LampA = pin(cfg.GPIO.LampA)
		hw.LampB = pin(cfg.GPIO.LampB)
		hw.Running = pin(cfg.GPIO.Running)
	}
	if hw.Sinks, err = app.OpenSinks(cfg); err != nil {
		log.Fatal().Err(err).Msg("open sinks")
	}
	if cfg.Console.Device != "stdio" {
		f, err := console.OpenSerial(cfg.Console.Device, cfg.Console.Baud)
		if err != nil {
			log.Fatal().Err(err).Str("device", cfg.Console.Device).Msg("open console")
		}
		defer f.Close()
		hw.In, hw.Out = f, f
	}

	core, err := app.InitCore(cfg, hw)
	if err != nil {
		log.Fatal().Err(err).Msg("init")
	}

	// ---- Preview server ----
	var srv *http.Server
	if cfg.Preview.Addr != "" {
		mux := http.NewServeMux()
		core.Hub.Routes(mux)
		srv = &http.Server{
			Addr:         cfg.Preview.Addr,
			Handler:      withCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Preview.Addr).Str("sink", cfg.Sink).Msg("preview server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("preview server stopped")
			}
		}()
	}

	// ---- Run until signalled ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runErr := core.Run(ctx)
	log.Info().Msg("shutting down")

	if srv != nil {
		_ = srv.Close()
	}
	if err := core.Close(); err != nil {
		log.Warn().Err(err).Msg("close")
	}
	if runErr != nil {
		if errors.Is(runErr, led.ErrFrameOverrun) {
			log.Fatal().Err(runErr).Msg("frame timing lost")
		}
		log.Fatal().Err(runErr).Msg("main loop")
	}
}

// pin resolves a periph pin name; an empty or unknown name yields nil.
func pin(name string) gpio.PinIO {
	if name == "" {
		return nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		log.Warn().Str("pin", name).Msg("unknown gpio")
		return nil
	}
	return p
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}

