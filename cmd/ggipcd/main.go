// Command ggipcd runs the aws.greengrass.ipc.private well-known
// interface daemon (spec.md §6), exposing GetSystemConfig as a thin
// relay onto gg_config.
package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/internal/gglog"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/internal/ggipcd"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
)

func main() {
	socketDir := pflag.String("socket-dir", envOr("GGL_SOCKET_DIR", "/run/greengrass/ipc"), "directory core bus sockets are created under")
	pflag.Parse()

	log := gglog.New("ggipcd")

	daemon := ggipcd.NewDaemon(*socketDir, log)
	srv := corebus.NewServer(daemon.Interface(),
		corebus.WithSocketDir(*socketDir),
		corebus.WithLogger(log),
		corebus.WithInterceptors(corebus.LoggingInterceptor(log)),
	)

	log.Info("starting aws.greengrass.ipc.private daemon")
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
