// Command ggconfigd runs the gg_config well-known interface daemon
// (spec.md §6): a key-path addressed configuration tree backed by
// bbolt, seeded from an on-disk YAML document.
package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/internal/ggconfigd"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/internal/gglog"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
)

func main() {
	socketDir := pflag.String("socket-dir", envOr("GGL_SOCKET_DIR", "/run/greengrass/ipc"), "directory core bus sockets are created under")
	configPath := pflag.String("config-path", envOr("GGL_CONFIG_PATH", "/etc/greengrass/config.yaml"), "on-disk YAML config seed file (never overwrites keys already stored)")
	dbPath := pflag.String("db-path", "/var/lib/greengrass/config.bolt", "bbolt database path for durable config state")
	pflag.Parse()

	log := gglog.New("ggconfigd")

	store, err := ggconfigd.Open(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open config store")
	}
	defer store.Close()

	if doc, err := ggconfigd.LoadYAMLFile(*configPath); err != nil {
		log.WithError(err).Warn("failed to load initial config file, starting with durable state only")
	} else if err := store.ImportYAML(doc); err != nil {
		log.WithError(err).Warn("failed to import initial config file")
	}

	if _, err := os.Stat(*configPath); err == nil {
		if _, err := ggconfigd.WatchFile(*configPath, store, log); err != nil {
			log.WithError(err).Warn("failed to watch config file for live edits")
		}
	}

	daemon := ggconfigd.NewDaemon(store, log)
	srv := corebus.NewServer(daemon.Interface(),
		corebus.WithSocketDir(*socketDir),
		corebus.WithLogger(log),
		corebus.WithInterceptors(corebus.LoggingInterceptor(log)),
	)
	daemon.BindServer(srv)

	log.WithField("socket_dir", filepath.Clean(*socketDir)).Info("starting gg_config daemon")
	if err := srv.Listen(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
