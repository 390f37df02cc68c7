package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConnectAttempts  = 5
	DefaultRetryInterval    = 5 * time.Second
	DefaultMaxRetryInterval = time.Minute
	DefaultReportInterval   = 30 * time.Second
	DefaultMaxPending       = 1024
)

type PowerService interface {
	Start(ctx context.Context) error
	RunForever(ctx context.Context) error
	Stop() error
}

type PowerServiceParams struct {
	MQTTClient MQTTClient
	Dispatcher *CommandDispatcher

	TargetTopic string
	StatusTopic string

	ConnectAttempts  int
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
	ReportInterval   time.Duration

	// MaxPending bounds the received but not yet dispatched messages.
	MaxPending int

	Log zerolog.Logger
}

func (p *PowerServiceParams) EnsureDefaults() {
	if p.ConnectAttempts <= 0 {
		p.ConnectAttempts = DefaultConnectAttempts
	}
	if p.RetryInterval == 0 {
		p.RetryInterval = DefaultRetryInterval
	}
	if p.MaxRetryInterval == 0 {
		p.MaxRetryInterval = DefaultMaxRetryInterval
	}
	if p.ReportInterval == 0 {
		p.ReportInterval = DefaultReportInterval
	}
	if p.MaxPending <= 0 {
		p.MaxPending = DefaultMaxPending
	}
}

type powerService struct {
	params PowerServiceParams

	pending   []MQTTMessage
	pendingMu sync.Mutex
	wakeup    chan struct{}

	done     chan struct{}
	stopOnce sync.Once

	dispatchCount    uint64
	lastDispatchTime atomic.Pointer[time.Time]

	log zerolog.Logger
}

func NewPowerService(params PowerServiceParams) (PowerService, error) {
	if params.MQTTClient == nil {
		return nil, fmt.Errorf("MQTTClient is nil")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("Dispatcher is nil")
	}
	if params.TargetTopic == "" {
		return nil, fmt.Errorf("%w: target topic is empty", ErrConfiguration)
	}
	if params.StatusTopic == "" {
		return nil, fmt.Errorf("%w: status topic is empty", ErrConfiguration)
	}
	params.EnsureDefaults()

	s := &powerService{
		params: params,
		wakeup: make(chan struct{}, 1),
		done:   make(chan struct{}),
		log:    params.Log,
	}

	t := time.Unix(0, 0)
	s.lastDispatchTime.Store(&t)
	return s, nil
}

// Start connects with exponential backoff and subscribes to the target topic.
// A rejected subscription leaves the service running without commands.
func (s *powerService) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}

	err := s.params.MQTTClient.Subscribe(s.params.TargetTopic, 0, s.receive)
	if err != nil {
		if !errors.Is(err, ErrSubscription) {
			err = fmt.Errorf("%w: %v", ErrSubscription, err)
		}
		s.log.Error().Err(err).Str("topic", s.params.TargetTopic).
			Msg("subscription failed, no commands will be received")
		return nil
	}

	s.log.Info().Str("topic", s.params.TargetTopic).Msg("listening for commands")
	return nil
}

func (s *powerService) connect(ctx context.Context) error {
	delay := s.params.RetryInterval

	var err error
	for attempt := 1; attempt <= s.params.ConnectAttempts; attempt++ {
		err = s.params.MQTTClient.Connect()
		if err == nil {
			return nil
		}

		s.log.Error().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", s.params.ConnectAttempts).
			Msg("failed to connect to mqtt broker")

		if attempt == s.params.ConnectAttempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
		case <-t.C:
		}

		delay *= 2
		if delay > s.params.MaxRetryInterval {
			delay = s.params.MaxRetryInterval
		}
	}

	if !errors.Is(err, ErrConnection) {
		err = fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return err
}

// receive runs on the mqtt client goroutine. It only queues the message, blocking
// there would also hold up the acknowledgments paho reads for our own publishes.
func (s *powerService) receive(msg MQTTMessage) {
	select {
	case <-s.done:
		s.log.Warn().Str("topic", msg.Topic()).Msg("service stopped, message dropped")
		return
	default:
	}

	s.pendingMu.Lock()
	if len(s.pending) >= s.params.MaxPending {
		s.pendingMu.Unlock()
		s.log.Warn().
			Str("topic", msg.Topic()).
			Int("max_pending", s.params.MaxPending).
			Msg("too many pending commands, message dropped")
		return
	}
	s.pending = append(s.pending, msg)
	s.pendingMu.Unlock()

	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

func (s *powerService) nextPending() (MQTTMessage, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if len(s.pending) == 0 {
		return nil, false
	}
	msg := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return msg, true
}

// RunForever dispatches messages one at a time in arrival order until ctx is done.
func (s *powerService) RunForever(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// command dispatch loop
	g.Go(func() error {
		s.log.Info().Msg("start dispatching commands")
		defer s.log.Info().Msg("stop dispatching commands")

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.done:
				return nil
			case <-s.wakeup:
				for ctx.Err() == nil {
					msg, ok := s.nextPending()
					if !ok {
						break
					}
					s.dispatch(msg)
				}
			}
		}
	})

	// dispatch reporter
	g.Go(func() error {
		ticker := time.NewTicker(s.params.ReportInterval)
		defer ticker.Stop()

		lastCount := uint64(0)

	ReporterLoop:
		for {
			select {
			case <-ctx.Done():
				break ReporterLoop
			case <-s.done:
				break ReporterLoop
			case <-ticker.C:
				count := atomic.LoadUint64(&s.dispatchCount)
				status := s.params.MQTTClient.Status()

				s.log.Info().
					Uint64("commands_since_last_report", count-lastCount).
					Uint64("commands_total", count).
					Time("last_dispatch", *s.lastDispatchTime.Load()).
					Bool("is_connected", status.Connected).
					Msg("dispatch report")

				lastCount = count
			}
		}

		return nil
	})

	return g.Wait()
}

func (s *powerService) dispatch(msg MQTTMessage) {
	s.log.Info().
		Str("topic", msg.Topic()).
		Str("payload", string(msg.Payload())).
		Msg("message received")

	// errors are logged by the dispatcher and never stop the loop
	_ = s.params.Dispatcher.Dispatch(msg.Payload())

	t := time.Now()
	s.lastDispatchTime.Store(&t)
	atomic.AddUint64(&s.dispatchCount, 1)
}

// Stop publishes the offline status explicitly, since a clean disconnect does not
// trigger the last-will, then unsubscribes which closes the session.
func (s *powerService) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)

		if !s.params.MQTTClient.IsConnected() {
			s.log.Warn().Msg("not connected, skipping offline status")
			return
		}

		pubErr := s.params.MQTTClient.Publish(s.params.StatusTopic, 1, true, StatusOfflinePayload)
		if pubErr != nil {
			s.log.Error().Err(pubErr).Msg("failed to publish offline status")
		}

		err = s.params.MQTTClient.Unsubscribe(s.params.TargetTopic)
		if pubErr != nil && err == nil {
			err = pubErr
		}
	})
	return err
}
