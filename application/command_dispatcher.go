package application

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

type CommandDispatcherParams struct {
	Waker     Waker
	Publisher Publisher

	ShutdownTopic string

	Log zerolog.Logger
}

// CommandDispatcher turns one payload into at most one side effect. It keeps no
// state between calls.
type CommandDispatcher struct {
	params CommandDispatcherParams

	log zerolog.Logger
}

func NewCommandDispatcher(params CommandDispatcherParams) (*CommandDispatcher, error) {
	if params.Waker == nil {
		return nil, fmt.Errorf("Waker is nil")
	}
	if params.Publisher == nil {
		return nil, fmt.Errorf("Publisher is nil")
	}
	if params.ShutdownTopic == "" {
		return nil, fmt.Errorf("%w: shutdown topic is empty", ErrConfiguration)
	}
	return &CommandDispatcher{params: params, log: params.Log}, nil
}

// Dispatch never panics. Validation and action failures are logged and returned.
func (d *CommandDispatcher) Dispatch(payload []byte) error {
	cmd, err := ParseCommand(string(payload))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMAC):
			d.log.Error().Str("mac", cmd.MAC).Msg("invalid mac address")
		default:
			d.log.Warn().Str("payload", cmd.Raw).Msg("message received but no action is defined")
		}
		return err
	}

	var pc panics.Catcher
	pc.Try(func() {
		err = d.execute(cmd)
	})
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("panic: %v", r.Value)
	}

	if err != nil {
		d.log.Error().Err(err).Str("command", cmd.Kind.String()).Msg("command failed")
		return fmt.Errorf("%w: %s: %v", ErrAction, cmd.Kind, err)
	}
	return nil
}

func (d *CommandDispatcher) execute(cmd Command) error {
	switch cmd.Kind {
	case CommandWake:
		d.log.Info().Str("mac", cmd.MAC).Msg("sending wake-on-lan magic packet")
		return d.params.Waker.Wake(cmd.MAC)
	case CommandShutdown:
		d.log.Info().Str("topic", d.params.ShutdownTopic).Msg("publishing shutdown request")
		return d.params.Publisher.Publish(d.params.ShutdownTopic, 1, false, ShutdownPayload)
	default:
		return fmt.Errorf("unexpected command kind: %s", cmd.Kind)
	}
}
