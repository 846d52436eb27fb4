package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/lossgate/internal/rpc"
	"github.com/danielpatrickdp/lossgate/internal/store"
)

// #region main
func main() {
	addr := envOr("LOSSGATE_ADDR", "localhost:50061")
	dbPath := envOr("LOSSGATE_DB", "")
	level := envOr("LOSSGATE_LOG_LEVEL", "info")

	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Fatalf("bad LOSSGATE_LOG_LEVEL %q: %v", level, err)
	}
	log.SetLevel(lvl)

	var rec rpc.Recorder
	if dbPath != "" {
		s, err := store.NewStore(dbPath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()
		rec = s
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("listen %s: %v", addr, err)
	}

	gs := grpc.NewServer(grpc.UnaryInterceptor(rpc.UnaryLogger(log)))
	rpc.NewServer(rpc.DefaultServerConfig(), rec, log).Register(gs)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("shutting down")
		gs.GracefulStop()
	}()

	log.WithFields(logrus.Fields{"addr": addr, "db": dbPath}).Info("lossgate server ready")
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
