package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Duplex/internal/adapters/http"
	"github.com/dkeye/Duplex/internal/adapters/platform"
	"github.com/dkeye/Duplex/internal/adapters/rtc"
	signaladapter "github.com/dkeye/Duplex/internal/adapters/signal"
	"github.com/dkeye/Duplex/internal/call"
	"github.com/dkeye/Duplex/internal/config"
	"github.com/dkeye/Duplex/internal/devices"
	"github.com/dkeye/Duplex/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	provider := platform.NewMediaDevices()
	catalog := devices.NewCatalog(provider.Bind)

	saved := config.NewSavedDeviceIDs(cfg)
	cfg.Watch(saved)

	resolvers := map[domain.DeviceType]*devices.Resolver{
		domain.DeviceTypePlayback: devices.NewResolver(catalog, domain.DeviceTypePlayback, saved.Playback),
		domain.DeviceTypeCapture:  devices.NewResolver(catalog, domain.DeviceTypeCapture, saved.Capture),
		domain.DeviceTypeCamera:   devices.NewResolver(catalog, domain.DeviceTypeCamera, saved.Camera),
	}
	defer func() {
		for _, r := range resolvers {
			r.Close()
		}
	}()

	var (
		callsMu sync.Mutex
		calls   []*call.Context
	)
	state := &router.State{
		Catalog:   catalog,
		Resolvers: resolvers,
		Calls: func() []*call.Context {
			callsMu.Lock()
			defer callsMu.Unlock()
			return append([]*call.Context(nil), calls...)
		},
	}

	if cfg.SignalingURL != "" {
		// Remote call: signaling rides a websocket to an external server.
		outgoing, err := startRemoteCall(ctx, cfg)
		if err != nil {
			log.Error().Err(err).Str("url", cfg.SignalingURL).Msg("remote call failed to start")
		} else {
			callsMu.Lock()
			calls = append(calls, outgoing)
			callsMu.Unlock()
			defer outgoing.Stop()
		}
	} else {
		// Loopback demo call: both ends live in this process and exchange
		// signaling over an in-memory pair.
		caller, callee, err := startLoopbackCall(cfg)
		if err != nil {
			log.Error().Err(err).Msg("loopback call failed to start")
		} else {
			callsMu.Lock()
			calls = append(calls, caller, callee)
			callsMu.Unlock()
			defer caller.Stop()
			defer callee.Stop()
		}
	}

	r := router.SetupRouter(cfg, state)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Info().Str("addr", addr).Str("version", call.Version()).Msg("Duplex started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func startLoopbackCall(cfg *config.Config) (*call.Context, *call.Context, error) {
	connA, err := rtc.NewConnection(rtc.Config{STUNServers: cfg.StunServers, Capture: cfg.Capture})
	if err != nil {
		return nil, nil, err
	}
	connB, err := rtc.NewConnection(rtc.Config{STUNServers: cfg.StunServers})
	if err != nil {
		connA.Close()
		return nil, nil, err
	}

	endA, endB := signaladapter.NewLoopbackPair()

	caller := call.NewContext(call.Config{
		Outgoing:          true,
		MaxLayer:          call.MaxLayer(),
		AllowP2P:          true,
		SendSignalingData: endA.Send,
		Connection:        connA,
		RetryInterval:     cfg.RetryInterval,
	})
	callee := call.NewContext(call.Config{
		MaxLayer:          call.MaxLayer(),
		AllowP2P:          true,
		SendSignalingData: endB.Send,
		Connection:        connB,
		RetryInterval:     cfg.RetryInterval,
	})
	endA.OnReceive(caller.ReceiveSignalingData)
	endB.OnReceive(callee.ReceiveSignalingData)
	return caller, callee, nil
}

func startRemoteCall(ctx context.Context, cfg *config.Config) (*call.Context, error) {
	conn, err := rtc.NewConnection(rtc.Config{STUNServers: cfg.StunServers, Capture: cfg.Capture})
	if err != nil {
		return nil, err
	}
	client, err := signaladapter.DialWS(ctx, cfg.SignalingURL)
	if err != nil {
		conn.Close()
		return nil, err
	}
	outgoing := call.NewContext(call.Config{
		Outgoing:          true,
		MaxLayer:          call.MaxLayer(),
		AllowP2P:          true,
		SendSignalingData: client.Send,
		Connection:        conn,
		RetryInterval:     cfg.RetryInterval,
	})
	client.OnReceive(outgoing.ReceiveSignalingData)
	return outgoing, nil
}
