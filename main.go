package main

import (
	"context"
	"fmt"
	"io"
	"mqtt-wol-bridge/adapters"
	"mqtt-wol-bridge/application"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Flags = []cli.Flag{
	FlagLogLevel,
	FlagLogWriter,
	FlagLogFile,
	FlagMQTTBroker,
	FlagMQTTPort,
	FlagMQTTClientID,
	FlagMQTTUsername,
	FlagMQTTPassword,
	FlagMQTTTargetTopic,
	FlagMQTTStatusTopic,
	FlagMQTTShutdownTopic,
	FlagMQTTConnectAttempts,
	FlagMQTTRetryInterval,
	FlagWOLBroadcastAddr,
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().
		Str("service", "mqtt-wol-bridge").
		Str("module", "main").
		Logger()

	// must run before cli reads EnvVars
	envErr := godotenv.Load()

	app := cli.App{
		Name:    "mqtt-wol-bridge",
		Usage:   "wake-on-lan and shutdown commands over mqtt",
		Version: "v0.1.0",
		Flags:   Flags,
		Before: func(ctx *cli.Context) error {
			var logWriter io.Writer
			switch ctx.String(FlagLogWriter.Name) {
			case "console":
				logWriter = zerolog.ConsoleWriter{
					Out:        os.Stdout,
					TimeFormat: time.RFC3339Nano,
				}
			case "json":
				logWriter = os.Stdout
			default:
				return fmt.Errorf("%w: invalid log writer", application.ErrConfiguration)
			}

			if logFile := ctx.String(FlagLogFile.Name); logFile != "" {
				if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
					return err
				}
				logWriter = zerolog.MultiLevelWriter(logWriter, &lumberjack.Logger{
					Filename:   logFile,
					MaxSize:    10,
					MaxBackups: 5,
					MaxAge:     30,
				})
			}

			logger = zerolog.New(logWriter).With().Timestamp().
				Str("service", "mqtt-wol-bridge").
				Str("module", "main").
				Logger()

			level, err := zerolog.ParseLevel(ctx.String(FlagLogLevel.Name))
			if err != nil {
				return err
			}

			zerolog.SetGlobalLevel(level)

			if envErr != nil {
				logger.Debug().Msg("no .env file loaded, using process environment")
			}

			return nil
		},
		Action: func(ctx *cli.Context) error {
			logger.Info().Msg("service starting...")

			appCtx, cancel := context.WithCancel(logger.WithContext(context.Background()))
			defer cancel()
			go func() {
				c := make(chan os.Signal, 1)
				signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

				<-c

				logger.Warn().Msg("interrupt signal received")
				cancel()
			}()

			cfg := application.BrokerConfig{
				Host:          ctx.String(FlagMQTTBroker.Name),
				Port:          ctx.Int(FlagMQTTPort.Name),
				ClientID:      ctx.String(FlagMQTTClientID.Name),
				TargetTopic:   ctx.String(FlagMQTTTargetTopic.Name),
				StatusTopic:   ctx.String(FlagMQTTStatusTopic.Name),
				ShutdownTopic: ctx.String(FlagMQTTShutdownTopic.Name),
				Username:      ctx.String(FlagMQTTUsername.Name),
				Password:      ctx.String(FlagMQTTPassword.Name),
			}
			if cfg.ClientID == "" {
				cfg.ClientID = "wol-service-" + uuid.NewString()
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.Info().
				Str("broker", cfg.BrokerURL()).
				Str("client_id", cfg.ClientID).
				Msg("mqtt configuration loaded")

			adapters.SetPahoLoggers(logger.With().Str("module", "paho").Logger())

			mqttClient := adapters.NewMQTTClient(adapters.MQTTClientParams{
				ClientID:      cfg.ClientID,
				Username:      cfg.Username,
				Password:      cfg.Password,
				MQTTUrl:       cfg.BrokerURL(),
				StatusTopic:   cfg.StatusTopic,
				WillPayload:   application.StatusOfflinePayload,
				OnlinePayload: application.StatusOnlinePayload,
				Log:           logger.With().Str("module", "mqtt-client").Logger(),
			})

			waker, err := adapters.NewMagicPacketSender(adapters.MagicPacketSenderParams{
				BroadcastAddr: ctx.String(FlagWOLBroadcastAddr.Name),
				Log:           logger.With().Str("module", "wol").Logger(),
			})
			if err != nil {
				return err
			}

			dispatcher, err := application.NewCommandDispatcher(application.CommandDispatcherParams{
				Waker:         waker,
				Publisher:     mqttClient,
				ShutdownTopic: cfg.ShutdownTopic,
				Log:           logger.With().Str("module", "dispatcher").Logger(),
			})
			if err != nil {
				return err
			}

			powerService, err := application.NewPowerService(application.PowerServiceParams{
				MQTTClient:      mqttClient,
				Dispatcher:      dispatcher,
				TargetTopic:     cfg.TargetTopic,
				StatusTopic:     cfg.StatusTopic,
				ConnectAttempts: ctx.Int(FlagMQTTConnectAttempts.Name),
				RetryInterval:   ctx.Duration(FlagMQTTRetryInterval.Name),
				Log:             logger.With().Str("module", "power-service").Logger(),
			})
			if err != nil {
				return err
			}

			if err := powerService.Start(appCtx); err != nil {
				return err
			}

			logger.Info().Msg("service started")
			err = powerService.RunForever(appCtx)

			logger.Info().Msg("service terminating...")
			if stopErr := powerService.Stop(); stopErr != nil {
				logger.Warn().Err(stopErr).Msg("unclean session close")
			}
			return err
		},
		Authors: []*cli.Author{
			{
				Name:  "Marcin Gorzynski",
				Email: "marcin@gorzynski.me",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Err(err).Msg("service terminated")
		os.Exit(1)
	}
}
