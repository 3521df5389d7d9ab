// Command presence runs the mmWave person-localization pipeline: it
// configures the sensor over its CLI port, decodes the binary frame stream,
// and emits one JSON record per frame to stdout, SQLite, and the HTTP API.
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
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/radian-data/presence.report/internal/api"
	"github.com/radian-data/presence.report/internal/config"
	"github.com/radian-data/presence.report/internal/db"
	"github.com/radian-data/presence.report/internal/mmwave"
	"github.com/radian-data/presence.report/internal/output"
	"github.com/radian-data/presence.report/internal/presence"
	"github.com/radian-data/presence.report/internal/serialmux"
	"github.com/radian-data/presence.report/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Replay a recorded frame dump instead of opening serial ports")
	replayFile  = flag.String("replay", "fixtures/frames.bin", "Frame dump to replay in dev mode")
	cliPort     = flag.String("cli-port", "/dev/ttyUSB0", "Sensor CLI (command) serial port")
	dataPort    = flag.String("data-port", "/dev/ttyUSB1", "Sensor binary data serial port")
	listen      = flag.String("listen", ":8080", "HTTP listen address (empty disables the API)")
	dbPath      = flag.String("db", "presence.db", "SQLite database path (empty disables persistence)")
	profilePath = flag.String("profile", "", "Sensor profile .cfg to apply at startup")
	tuningPath  = flag.String("config", "", "Tuning JSON file (MMW_* env vars override it)")
)

func main() {
	flag.Parse()

	// `presence migrate <action>` manages the schema and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		if err := db.RunMigrateCommand(args[1:], *dbPath); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	log.Printf("presence %s (%s)", version.Version, version.GitSHA)

	params, err := loadParams()
	if err != nil {
		log.Fatalf("load tuning: %v", err)
	}

	mux, dataSrc, controller, err := openSensor()
	if err != nil {
		log.Fatalf("open sensor: %v", err)
	}
	defer mux.Close()
	if closer, ok := dataSrc.(io.Closer); ok {
		defer closer.Close()
	}

	latest := output.NewLatestSink()
	sinks := []presence.Sink{output.NewNDJSONSink(os.Stdout), latest}

	var database *db.DB
	var runID string
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer database.Close()

		profileName := ""
		if *profilePath != "" {
			profileName = filepath.Base(*profilePath)
		}
		runID, err = database.StartRun(profileName, params)
		if err != nil {
			log.Fatalf("start run: %v", err)
		}
		sinks = append(sinks, output.NewDBSink(database, runID))
	}

	pipe := presence.NewPipeline(mmwave.NewFrameReader(dataSrc), params, nil)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// manage IO on the CLI port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("cli monitor: %v", err)
		}
		log.Print("cli monitor terminated")
	}()

	// configure the sensor and run the frame pipeline
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop() // a dead stream takes the whole process down

		if controller != nil {
			if err := applyProfile(controller); err != nil {
				log.Printf("configure sensor: %v", err)
				return
			}
			defer func() {
				// Stop streaming between frames so no partial frame is
				// abandoned on the wire.
				if err := controller.Stop(); err != nil {
					log.Printf("sensor stop: %v", err)
				}
			}()
		}

		err := pipe.Run(ctx, output.NewMultiSink(sinks...))
		if err != nil && !errors.Is(err, context.Canceled) {
			if errors.Is(err, io.EOF) {
				log.Print("frame stream ended")
				return
			}
			log.Printf("pipeline: %v", err)
		}
	}()

	// HTTP server
	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runServer(ctx, mux, database, latest, runID, params)
		}()
	}

	wg.Wait()
	log.Print("graceful shutdown complete")
}

// loadParams builds the pipeline tuning: file values override defaults,
// environment variables override both.
func loadParams() (presence.Params, error) {
	cfg := config.EmptyTuningConfig()
	if *tuningPath != "" {
		loaded, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			return presence.Params{}, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return presence.Params{}, err
	}
	return cfg.Params(), nil
}

// openSensor opens the CLI mux and the binary data source. In dev mode both
// are replaced: the mux is a no-op and frames come from a recorded dump.
func openSensor() (serialmux.SerialMuxInterface, io.Reader, *mmwave.Controller, error) {
	if *devMode {
		f, err := os.Open(*replayFile)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open replay file: %w", err)
		}
		return serialmux.NewDisabledSerialMux(), f, nil, nil
	}

	mux, err := serialmux.NewRealSerialMux(*cliPort, serialmux.CLIPortOptions())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open cli port %s: %w", *cliPort, err)
	}

	data, err := serialmux.OpenDataPort(*dataPort, serialmux.DataPortOptions())
	if err != nil {
		mux.Close()
		return nil, nil, nil, fmt.Errorf("open data port %s: %w", *dataPort, err)
	}

	return mux, data, mmwave.NewController(mux), nil
}

func applyProfile(controller *mmwave.Controller) error {
	if *profilePath != "" {
		f, err := os.Open(*profilePath)
		if err != nil {
			return fmt.Errorf("open profile: %w", err)
		}
		defer f.Close()
		if err := controller.ApplyProfile(f); err != nil {
			return err
		}
	}
	return controller.Start()
}

func runServer(ctx context.Context, m serialmux.SerialMuxInterface, database *db.DB, latest *output.LatestSink, runID string, params presence.Params) {
	mux := http.NewServeMux()

	// admin debugging routes (accessible only over localhost/Tailscale)
	m.AttachAdminRoutes(mux)
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("attach db admin routes: %v", err)
		}
	}

	apiMux := api.NewServer(m, database, latest, runID, params).ServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("/command", apiMux)

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
