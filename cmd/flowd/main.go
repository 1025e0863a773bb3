//go:build !rp2040 && !rp2350

// Command flowd runs the flow HAL on a simulated board and serves it to
// Prometheus, MQTT, InfluxDB and an admin HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"flowcode-go/bus"
	"flowcode-go/services/flowctl"
	"flowcode-go/services/gateway"
	"flowcode-go/services/gateway/config"
	"flowcode-go/services/gateway/httpapi"
	"flowcode-go/services/gateway/mqttlink"
	"flowcode-go/services/gateway/simulate"
	"flowcode-go/services/gateway/storage"
	"flowcode-go/services/hal"
	"flowcode-go/x/logx"
)

const (
	busQueueLen     = 64
	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "flowd.yaml", "Path to configuration file")
	validateConfig := flag.Bool("validate-config", false, "Validate configuration file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if *validateConfig {
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("configuration OK")
		return
	}
	if err != nil {
		logx.Initialize("error")
		logx.Fatal().Err(err).Msg("failed to load configuration")
	}
	logx.Initialize(cfg.Logging.Level)
	logx.Info().Int("devices", len(cfg.Devices)).Int("simulated_flows", len(cfg.Simulate)).Msg("starting flowd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logx.Fatal().Err(err).Msg("flowd failed")
	}
	logx.Info().Msg("flowd stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	b := bus.NewBus(busQueueLen)
	var wg sync.WaitGroup
	goRun := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	sim := hal.NewSim()
	goRun(func() { sim.Run(ctx, b.NewConnection("hal")) })

	cfgConn := b.NewConnection("config")
	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "hal"), cfg.HALConfig(), true))

	ctlConn := b.NewConnection("flowctl")
	client := flowctl.New(ctlConn, cfg.HTTP.CallTimeout)
	goRun(func() { flowctl.NewDispenser(ctlConn, client, cfg.DispenseRules()).Run(ctx) })

	var store gateway.Store
	if cfg.InfluxDB.URL != "" {
		s, err := storage.NewInfluxDBStorage(ctx, storage.Config{
			URL:             cfg.InfluxDB.URL,
			Token:           cfg.InfluxDB.Token,
			Organization:    cfg.InfluxDB.Organization,
			Bucket:          cfg.InfluxDB.Bucket,
			BreakerFailures: cfg.InfluxDB.BreakerFailures,
			BreakerTimeout:  cfg.InfluxDB.BreakerTimeout,
		})
		if err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
		defer s.Close()
		store = s
	}

	var pub gateway.Publisher
	if cfg.MQTT.Broker != "" {
		mcfg := mqttlink.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			Prefix:         cfg.MQTT.Prefix,
			ConnectRetries: cfg.MQTT.ConnectRetries,
			CommandRate:    cfg.MQTT.CommandRate,
			CommandBurst:   cfg.MQTT.CommandBurst,
		}
		mc, err := mqttlink.Connect(ctx, mcfg)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		link := mqttlink.New(mc, mcfg, client)
		goRun(func() {
			if err := link.Run(ctx); err != nil {
				logx.Error().Err(err).Msg("mqtt link stopped")
			}
		})
		pub = link
	}

	goRun(func() { gateway.New(b.NewConnection("gateway"), pub, store).Run(ctx) })

	flows := make([]simulate.Flow, 0, len(cfg.Simulate))
	for _, f := range cfg.Simulate {
		valve := -1
		if f.ValvePin != nil {
			valve = *f.ValvePin
		}
		flows = append(flows, simulate.Flow{
			Pin: f.Pin, LPM: f.LPM, PulsesPerLitre: f.PulsesPerLitre,
			ValvePin: valve, ValveActiveLow: f.ValveActiveLow,
		})
	}
	goRun(func() { simulate.New(sim, flows, simulate.DefaultStep).Run(ctx) })

	limiter := rate.NewLimiter(rate.Limit(cfg.HTTP.CommandRate), cfg.HTTP.CommandBurst)
	server := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(client, limiter, cfg.HTTP.CallTimeout))
	goRun(func() {
		logx.Info().Str("addr", server.Addr).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error().Err(err).Msg("HTTP server failed")
		}
	})

	<-ctx.Done()
	logx.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		logx.Warn().Err(err).Msg("HTTP shutdown")
	}
	wg.Wait()
	return nil
}
