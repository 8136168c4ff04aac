package control

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strmio/rtmp/internal/rtmplog"
)

// RedisConfig carries the environment surface the teacher reads directly in
// setupRedisCommandReceiver.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	Channel  string
	TLS      bool
}

// RedisConfigFromEnv reads REDIS_USE/REDIS_HOST/REDIS_PORT/REDIS_PASSWORD/
// REDIS_CHANNEL/REDIS_TLS, matching the teacher's defaults.
func RedisConfigFromEnv() RedisConfig {
	cfg := RedisConfig{
		Enabled:  os.Getenv("REDIS_USE") == "YES",
		Host:     os.Getenv("REDIS_HOST"),
		Port:     os.Getenv("REDIS_PORT"),
		Password: os.Getenv("REDIS_PASSWORD"),
		Channel:  os.Getenv("REDIS_CHANNEL"),
		TLS:      os.Getenv("REDIS_TLS") == "YES",
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = "6379"
	}
	if cfg.Channel == "" {
		cfg.Channel = "rtmp_commands"
	}
	return cfg
}

// ListenRedisCommands subscribes to cfg.Channel and invokes onKill for each
// "kill-session"/"close-stream" command received, generalizing the
// teacher's setupRedisCommandReceiver/parseRedisCommand pair off the
// concrete *RTMPServer receiver. Blocks until ctx is canceled; a no-op if
// cfg.Enabled is false.
func ListenRedisCommands(ctx context.Context, cfg RedisConfig, onKill KillFunc, log *rtmplog.Logger) {
	if !cfg.Enabled {
		return
	}

	opts := &redis.Options{Addr: cfg.Host + ":" + cfg.Port, Password: cfg.Password}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{}
	}
	client := redis.NewClient(opts)
	defer client.Close()

	sub := client.Subscribe(ctx, cfg.Channel)
	defer sub.Close()

	log.Info("[REDIS] listening for commands on channel '%s'", cfg.Channel)

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warning("[REDIS] connection error: %v", err)
			select {
			case <-time.After(10 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		parseCommand(msg.Payload, onKill, log)
	}
}

// parseCommand decodes "name>arg1|arg2" command lines, the teacher's
// ad hoc Redis wire format.
func parseCommand(cmd string, onKill KillFunc, log *rtmplog.Logger) {
	parts := strings.SplitN(cmd, ">", 2)
	if len(parts) != 2 {
		log.Warning("[REDIS] invalid message: %s", cmd)
		return
	}
	name := parts[0]
	args := strings.Split(parts[1], "|")

	switch name {
	case "kill-session":
		if len(args) < 1 {
			log.Warning("[REDIS] invalid kill-session message: %s", cmd)
			return
		}
		onKill(args[0], "")
	case "close-stream":
		if len(args) < 2 {
			log.Warning("[REDIS] invalid close-stream message: %s", cmd)
			return
		}
		onKill(args[0], args[1])
	default:
		log.Warning("[REDIS] unknown command: %s", name)
	}
}
