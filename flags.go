package main

import (
	"mqtt-wol-bridge/adapters"
	"mqtt-wol-bridge/application"

	"github.com/urfave/cli/v2"
)

var FlagLogLevel = &cli.StringFlag{
	Name:     "log-level",
	EnvVars:  []string{"LOG_LEVEL"},
	Value:    "info",
	Required: false,
}

var FlagLogWriter = &cli.StringFlag{
	Name:     "log-writer",
	Usage:    "one of: [console, json]",
	EnvVars:  []string{"LOG_WRITER"},
	Value:    "console",
	Required: false,
}

var FlagLogFile = &cli.StringFlag{
	Name:     "log-file",
	Usage:    "rotated log file, empty disables file logging",
	EnvVars:  []string{"LOG_FILE"},
	Value:    "/app/logs/wol_service.log",
	Required: false,
}

var FlagMQTTBroker = &cli.StringFlag{
	Name:     "mqtt-broker",
	Usage:    "broker hostname",
	EnvVars:  []string{"MQTT_BROKER"},
	Value:    "mqtt-broker",
	Required: false,
}

var FlagMQTTPort = &cli.IntFlag{
	Name:     "mqtt-port",
	EnvVars:  []string{"MQTT_PORT"},
	Value:    1883,
	Required: false,
}

var FlagMQTTClientID = &cli.StringFlag{
	Name:     "mqtt-client-id",
	Usage:    "generated when empty",
	EnvVars:  []string{"MQTT_CLIENT_ID"},
	Required: false,
}

var FlagMQTTUsername = &cli.StringFlag{
	Name:     "mqtt-username",
	EnvVars:  []string{"MQTT_USERNAME"},
	Required: false,
}

var FlagMQTTPassword = &cli.StringFlag{
	Name:     "mqtt-password",
	EnvVars:  []string{"MQTT_PASSWORD"},
	Required: false,
}

var FlagMQTTTargetTopic = &cli.StringFlag{
	Name:     "mqtt-target-topic",
	Usage:    "topic carrying ON:<mac> and OFF commands",
	EnvVars:  []string{"MQTT_TARGET_TOPIC"},
	Required: true,
}

var FlagMQTTStatusTopic = &cli.StringFlag{
	Name:     "mqtt-service-status-topic",
	Usage:    "retained liveness topic",
	EnvVars:  []string{"MQTT_SERVICE_STATUS_TOPIC"},
	Required: true,
}

var FlagMQTTShutdownTopic = &cli.StringFlag{
	Name:     "mqtt-shutdown-topic",
	EnvVars:  []string{"MQTT_SHUTDOWN_TOPIC"},
	Required: true,
}

var FlagMQTTConnectAttempts = &cli.IntFlag{
	Name:     "mqtt-connect-attempts",
	EnvVars:  []string{"MQTT_CONNECT_ATTEMPTS"},
	Value:    application.DefaultConnectAttempts,
	Required: false,
}

var FlagMQTTRetryInterval = &cli.DurationFlag{
	Name:     "mqtt-retry-interval",
	Usage:    "initial backoff between connect attempts, doubled after each failure",
	EnvVars:  []string{"MQTT_RETRY_INTERVAL"},
	Value:    application.DefaultRetryInterval,
	Required: false,
}

var FlagWOLBroadcastAddr = &cli.StringFlag{
	Name:     "wol-broadcast-addr",
	Usage:    "host:port the magic packet is sent to",
	EnvVars:  []string{"WOL_BROADCAST_ADDR"},
	Value:    adapters.WOLDefaultBroadcastAddr,
	Required: false,
}
