package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CefBoud/kafkanet/broker"
	"github.com/CefBoud/kafkanet/config"
	log "github.com/CefBoud/kafkanet/logging"
	"github.com/CefBoud/kafkanet/metrics"
	"github.com/CefBoud/kafkanet/server"
	"github.com/CefBoud/kafkanet/types"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	serveFlags = config.Default()
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a broker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.IntVar(&serveFlags.BrokerID, "broker-id", serveFlags.BrokerID, "broker id")
	flags.StringVar(&serveFlags.LogDir, "log-dir", serveFlags.LogDir, "storage root for topic partitions")
	flags.StringVar(&serveFlags.BrokerHost, "host", serveFlags.BrokerHost, "host to listen on")
	flags.Uint32Var(&serveFlags.BrokerPort, "port", serveFlags.BrokerPort, "port to listen on")
	flags.Uint32Var(&serveFlags.AdminPort, "admin-port", serveFlags.AdminPort, "port of the admin HTTP endpoint, 0 disables it")
	flags.StringVar(&serveFlags.LogLevel, "log-level", serveFlags.LogLevel, "DEBUG, INFO, WARN or ERROR")
	flags.Uint32Var(&serveFlags.MaxRequestBytes, "max-request-bytes", serveFlags.MaxRequestBytes, "largest request payload accepted")
}

// resolveConfig starts from the config file, if any, and applies the flags set on the command line
func resolveConfig(cmd *cobra.Command) (types.Configuration, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("broker-id") {
		cfg.BrokerID = serveFlags.BrokerID
	}
	if flags.Changed("log-dir") {
		cfg.LogDir = serveFlags.LogDir
	}
	if flags.Changed("host") {
		cfg.BrokerHost = serveFlags.BrokerHost
	}
	if flags.Changed("port") {
		cfg.BrokerPort = serveFlags.BrokerPort
	}
	if flags.Changed("admin-port") {
		cfg.AdminPort = serveFlags.AdminPort
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = serveFlags.LogLevel
	}
	if flags.Changed("max-request-bytes") {
		cfg.MaxRequestBytes = serveFlags.MaxRequestBytes
	}
	return cfg, config.Validate(cfg)
}

func serve(cfg types.Configuration) error {
	log.SetLogLevel(cfg.LogLevel)
	b, err := broker.NewBroker(cfg.BrokerID, cfg.LogDir)
	if err != nil {
		return err
	}
	m := metrics.New()
	m.RegisterRuntimeCollectors()
	srv := server.New(b, &cfg, m)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe() }()

	select {
	case err = <-served:
	case sig := <-signals:
		log.Info("received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = srv.Shutdown(ctx)
		cancel()
		if serveErr := <-served; !errors.Is(serveErr, server.ErrServerClosed) && err == nil {
			err = serveErr
		}
	}
	if closeErr := b.Close(); closeErr != nil {
		log.Error("error closing broker: %v", closeErr)
	}
	if errors.Is(err, server.ErrServerClosed) {
		return nil
	}
	return err
}
