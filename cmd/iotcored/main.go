// Command iotcored runs the aws_iot_mqtt well-known interface daemon
// (spec.md §6): a single upstream MQTT connection fanned out to local
// subscribers through pkg/mqttdispatch and pkg/corebus.
package main

import (
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/internal/gglog"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/internal/iotcored"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/corebus"
	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/mqttdispatch"
)

func main() {
	socketDir := pflag.String("socket-dir", envOr("GGL_SOCKET_DIR", "/run/greengrass/ipc"), "directory core bus sockets are created under")
	brokerURL := pflag.String("broker-url", envOr("IOTCORED_BROKER_URL", "tls://localhost:8883"), "upstream AWS IoT Core MQTT endpoint")
	clientID := pflag.String("client-id", envOr("IOTCORED_CLIENT_ID", "greengrass-core"), "MQTT client id to present to the broker")
	maxSubs := pflag.Int("max-subscriptions", mqttdispatch.DefaultCapacity, "subscription table capacity")
	pflag.Parse()

	log := gglog.New("iotcored")

	disp := mqttdispatch.New(*maxSubs, log)
	transport := iotcored.NewTransport(iotcored.Config{
		BrokerURL: *brokerURL,
		ClientID:  *clientID,
		KeepAlive: 30 * time.Second,
	}, disp, log)

	daemon := iotcored.NewDaemon(transport, disp, log)
	srv := corebus.NewServer(daemon.Interface(),
		corebus.WithSocketDir(*socketDir),
		corebus.WithLogger(log),
		corebus.WithInterceptors(corebus.LoggingInterceptor(log)),
	)
	daemon.BindServer(srv)

	if err := transport.Connect(); err != nil {
		log.WithError(err).Fatal("failed to connect to broker")
	}
	defer transport.Disconnect(250)

	log.Info("starting aws_iot_mqtt daemon")
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
