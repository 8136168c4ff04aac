// Command rtmp-server runs a standalone RTMP publish-ingest server,
// generalizing the teacher's main.go/CreateRTMPServer wiring onto the
// rtmp.Server/control package pair.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/control"
	"github.com/strmio/rtmp/internal/rtmplog"
	"github.com/strmio/rtmp/rtmp"
)

func main() {
	_ = godotenv.Load() // .env is optional; environment variables win regardless

	log := rtmplog.Default()
	log.Info("RTMP server starting")

	bindAddr := os.Getenv("BIND_ADDRESS")
	port := envOrDefault("RTMP_PORT", "1935")

	webhook := control.NewWebhookFromEnv(bindAddr, port, log)

	var coord *control.Coordinator
	srv := rtmp.NewServer(rtmp.Callbacks{
		OnPublish: func(s *rtmp.Session, streamKey string, pubType rtmp.PublishType) error {
			accepted, streamID := coord.RequestPublish(s.App(), streamKey, s.IP())
			if !accepted {
				return fmt.Errorf("publish key rejected by coordinator")
			}
			if sid, err := webhook.SendStart(s.App(), streamKey, s.IP()); err == nil && sid != "" {
				streamID = sid
			}
			s.SetStreamID(streamID)
			return nil
		},
		OnCloseStream: func(s *rtmp.Session) {
			coord.PublishEnd(s.App(), s.StreamID())
			webhook.SendStop(s.App(), s.StreamKey(), s.StreamID(), s.IP())
		},
		OnSetDataFrame: func(s *rtmp.Session, props *amf0.Value) {
			log.Session(rtmplog.LevelDebug, s.ID(), s.IP(), "metadata: %s", props.String())
		},
	}, log)

	// coord is read by the OnPublish/OnCloseStream closures above, but only
	// once a client publishes, well after this assignment completes.
	coord = control.NewCoordinator(control.CoordinatorConfig{
		BaseURL:      os.Getenv("CONTROL_BASE_URL"),
		AuthSecret:   os.Getenv("CONTROL_SECRET"),
		ExternalIP:   os.Getenv("EXTERNAL_IP"),
		ExternalPort: os.Getenv("EXTERNAL_PORT"),
		ExternalSSL:  os.Getenv("EXTERNAL_SSL") == "YES",
	}, srv.KillPublisher, log)
	coord.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go control.ListenRedisCommands(ctx, control.RedisConfigFromEnv(), srv.KillPublisher, log)

	ln, err := rtmp.ListenTCP(bindAddr + ":" + port)
	if err != nil {
		log.Error(fmt.Errorf("listen: %w", err))
		os.Exit(1)
	}
	log.Info("listening on %s:%s", bindAddr, port)

	if sslPort := os.Getenv("SSL_PORT"); sslPort != "" {
		go serveTLS(srv, bindAddr, sslPort, log)
	}

	if err := srv.Serve(ln); err != nil {
		log.Error(fmt.Errorf("serve: %w", err))
		os.Exit(1)
	}
}

func serveTLS(srv *rtmp.Server, bindAddr, port string, log *rtmplog.Logger) {
	certFile := os.Getenv("SSL_CERT")
	keyFile := os.Getenv("SSL_KEY")
	if certFile == "" || keyFile == "" {
		log.Warning("SSL_PORT set but SSL_CERT/SSL_KEY missing; skipping TLS listener")
		return
	}
	source, err := rtmp.NewReloadingCertificateSource(certFile, keyFile, 30)
	if err != nil {
		log.Error(fmt.Errorf("tls certificate loader: %w", err))
		return
	}
	ln, err := rtmp.ListenTLS(bindAddr+":"+port, source)
	if err != nil {
		log.Error(fmt.Errorf("tls listen: %w", err))
		return
	}
	log.Info("listening (TLS) on %s:%s", bindAddr, port)
	if err := srv.Serve(ln); err != nil {
		log.Error(fmt.Errorf("tls serve: %w", err))
	}
}

func envOrDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if _, err := strconv.Atoi(v); err != nil {
		return def
	}
	return v
}
