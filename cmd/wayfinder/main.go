package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/detection"
	"github.com/banshee-data/wayfinder/internal/journal"
	"github.com/banshee-data/wayfinder/internal/monitor"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/sensors"
	"github.com/banshee-data/wayfinder/internal/serialmux"
	"github.com/banshee-data/wayfinder/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to a detection config JSON file (defaults are used when empty)")
	listen       = flag.String("listen", ":8080", "HTTP listen address")
	healthListen = flag.String("health-listen", "localhost:50051", "gRPC health listen address (empty disables)")
	journalPath  = flag.String("journal", "", "SQLite warning journal path (empty disables)")
	autoStart    = flag.Bool("start", false, "Start detection immediately")
	debugLog     = flag.Bool("debug", false, "Enable debug logging")
	showVersion  = flag.Bool("version", false, "Print version and exit")

	serialPort  = flag.String("serial-port", "", "Range sensor serial port (overrides config)")
	udpAddr     = flag.String("udp", "", "Depth camera UDP listen address (overrides config)")
	pcapFile    = flag.String("pcap", "", "Depth camera PCAP capture to replay (overrides config)")
	snapshotURL = flag.String("snapshot-url", "", "Camera JPEG snapshot URL for the vision fallback (overrides config)")
	replaySpeed = flag.Float64("replay-speed", 1.0, "PCAP replay speed multiplier (0 replays as fast as possible)")
	replayLoop  = flag.Bool("replay-loop", false, "Loop the PCAP replay")
)

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.DetectionConfig, error) {
	cfg := config.EmptyDetectionConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadDetectionConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}
	overrides := []struct {
		flag  *string
		field **string
	}{
		{serialPort, &cfg.SerialPort},
		{udpAddr, &cfg.DepthCameraUDP},
		{pcapFile, &cfg.DepthCameraPCAP},
		{snapshotURL, &cfg.CameraSnapshotURL},
	}
	for _, o := range overrides {
		if *o.flag != "" {
			v := *o.flag
			*o.field = &v
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	monitoring.SetDebug(*debugLog)
	log.Printf("starting %s", version.String())

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live := serialmux.NewLive()
	registry := sensors.FromConfig(cfg, sensors.Options{
		SerialLive:  live,
		ReplaySpeed: *replaySpeed,
		ReplayLoop:  *replayLoop,
	})
	controller := detection.NewController(detection.ConfigFromDetection(cfg), registry)
	defer controller.Close()

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:        *listen,
		Detector:       controller,
		SessionContext: ctx,
	})
	mux := ws.ServeMux()
	live.AttachAdminRoutes(mux)

	var wg sync.WaitGroup

	if *journalPath != "" {
		j, err := journal.Open(*journalPath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer j.Close()
		if err := j.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach journal routes: %v", err)
		}
		record := j.Follow(controller)
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(ctx)
			log.Print("journal routine terminated")
		}()
	}

	if *healthListen != "" {
		h, err := monitor.ListenHealth(*healthListen)
		if err != nil {
			log.Fatalf("failed to start health service: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Serve(ctx, controller); err != nil {
				log.Printf("health service error: %v", err)
			}
			log.Print("health routine terminated")
		}()
	}

	if *autoStart {
		if err := controller.Start(ctx); err != nil {
			log.Printf("detection not started: %v", err)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ws.Start(ctx); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	controller.Stop()
	wg.Wait()
	log.Print("wayfinder stopped")
}
