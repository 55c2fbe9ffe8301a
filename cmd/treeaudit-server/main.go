// treeaudit gRPC server
// Serves the audit trail of one revision history
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/treeaudit/internal/config"
	"github.com/nainya/treeaudit/internal/logger"
	"github.com/nainya/treeaudit/internal/metrics"
	"github.com/nainya/treeaudit/internal/server"
)

var (
	configPath  = flag.String("config", "", "YAML config file")
	port        = flag.Int("port", 50051, "The server port")
	metricsPort = flag.Int("metrics-port", 9090, "Observability HTTP port, 0 disables it")
	dataPath    = flag.String("data", "", "Revision log base path")
	logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	logJSON     = flag.Bool("log-json", false, "Emit JSON logs instead of console output")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "treeaudit-server: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "treeaudit-server: %v\n", err)
		os.Exit(1)
	}

	logger.InitGlobalLogger(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log := logger.GetGlobalLogger()

	listenPort, err := strconv.Atoi(cfg.Listen)
	if err != nil {
		log.Fatal().Err(err).Str("listen", cfg.Listen).Msg("Invalid listen port")
	}
	log.LogServerStart(listenPort, cfg.DataPath)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.RunUptime(ctx, 10*time.Second)

	auditServer, err := server.NewServer(server.Options{
		DataPath:        cfg.DataPath,
		CheckpointEvery: cfg.CheckpointEvery,
		SnapshotCache:   cfg.SnapshotCache,
		Logger:          log,
		Metrics:         m,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}
	defer auditServer.Close()

	lis, err := net.Listen("tcp", ":"+cfg.Listen)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(100*1024*1024), // 100 MB
		grpc.MaxSendMsgSize(100*1024*1024), // 100 MB
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log)),
	)
	server.Register(grpcServer, auditServer)

	// Reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	var obs *server.ObservabilityServer
	if cfg.MetricsPort > 0 {
		obs = server.NewObservabilityServer(cfg.MetricsPort, reg, auditServer, log)
		go func() {
			if err := obs.Start(); err != nil {
				log.Error().Err(err).Msg("Observability server stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.LogServerShutdown()
		if obs != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			obs.Shutdown(shutdownCtx)
		}
		cancel()
		grpcServer.GracefulStop()
	}()

	log.LogServerReady(listenPort)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatal().Err(err).Msg("Failed to serve")
	}
}

// applyFlags overrides config values with flags given on the command line
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Listen = strconv.Itoa(*port)
		case "metrics-port":
			cfg.MetricsPort = *metricsPort
		case "data":
			cfg.DataPath = *dataPath
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-json":
			cfg.Log.Pretty = !*logJSON
		}
	})
}
