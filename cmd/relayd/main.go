// Command relayd runs the relay server: it accepts websocket
// connections, completes the server-facing Noise handshake, dispatches
// RelayPeer frames between connected clients, and serves the meeting
// rendezvous over plain HTTP.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mpc-relay/relay/keys"
	"github.com/mpc-relay/relay/meeting"
	"github.com/mpc-relay/relay/server"
)

func main() {
	var (
		listen      = flag.String("listen", ":8443", "HTTP/websocket listen address")
		keyFile     = flag.String("key-file", "", "PEM file holding the server's static keypair; created if missing, an ephemeral keypair is used if empty")
		idleTimeout = flag.Duration("idle-timeout", 2*time.Minute, "disconnect a client that sends nothing for this long")
		logLevel    = flag.String("log-level", "info", "logrus log level")
	)
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid -log-level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})

	local, err := loadOrGenerateKeypair(*keyFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load relay keypair")
	}
	logrus.WithField("public_key", hex.EncodeToString(local.Public[:])).Info("relay static identity")

	srv := server.New(server.Options{Local: local, IdleTimeout: *idleTimeout})
	store := meeting.NewStore()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	srv.RegisterRoutes(router, "/v1/session")
	meeting.RegisterRoutes(router, "/v1/meetings", store)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"connected_clients": srv.ConnectedClients()})
	})

	httpServer := &http.Server{Addr: *listen, Handler: router}

	go func() {
		logrus.WithField("addr", *listen).Info("relay listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("relay server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("http server shutdown did not complete cleanly")
	}
	srv.Shutdown()

	// No in-flight handshake can reach local after Shutdown has returned;
	// the relay's static private key has no further use this process.
	if err := keys.WipeKeypair(local); err != nil {
		logrus.WithError(err).Warn("failed to wipe relay keypair")
	}
}

func loadOrGenerateKeypair(path string) (*keys.Keypair, error) {
	if path == "" {
		kp, err := keys.Generate("")
		if err != nil {
			return nil, fmt.Errorf("relayd: generate keypair: %w", err)
		}
		logrus.Warn("no -key-file given, using an ephemeral keypair for this run")
		return kp, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("relayd: read key file: %w", err)
		}
		kp, genErr := keys.Generate("")
		if genErr != nil {
			return nil, fmt.Errorf("relayd: generate keypair: %w", genErr)
		}
		if writeErr := os.WriteFile(path, keys.EncodePEM(kp), 0o600); writeErr != nil {
			return nil, fmt.Errorf("relayd: write key file: %w", writeErr)
		}
		return kp, nil
	}

	kp, err := keys.DecodePEM(data)
	if err != nil {
		return nil, fmt.Errorf("relayd: decode key file: %w", err)
	}
	return kp, nil
}
