package adapters

import (
	"fmt"
	"mqtt-wol-bridge/application"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	MQTTDefaultConnectTimeout     = 60 * time.Second
	MQTTConnectTimeoutGrace       = 5 * time.Second
	MQTTDefaultKeepAlive          = 60 * time.Second
	MQTTDefaultPublishTimeout     = 5 * time.Second
	MQTTDefaultSubscribeTimeout   = 10 * time.Second
	MQTTDefaultMaxReconnect       = 2 * time.Minute
	MQTTDefaultDisconnectQuiesce  = 250
	mqttSubscriptionFailureResult = 0x80
)

var (
	ErrMQTTNotConnected       = fmt.Errorf("not connected")
	ErrMQTTConnectTimeout     = fmt.Errorf("connect timeout")
	ErrMQTTPublishTimeout     = fmt.Errorf("publish timeout")
	ErrMQTTSubscribeTimeout   = fmt.Errorf("subscribe timeout")
	ErrMQTTUnsubscribeTimeout = fmt.Errorf("unsubscribe timeout")
)

type MQTTClientParams struct {
	ClientID string
	Username string
	Password string
	MQTTUrl  string

	// StatusTopic receives WillPayload from the broker on unclean disconnect
	// and OnlinePayload on every connect.
	StatusTopic   string
	WillPayload   string
	OnlinePayload string

	ConnectTimeout   time.Duration
	KeepAlive        time.Duration
	PublishTimeout   time.Duration
	SubscribeTimeout time.Duration

	NewClientFunc func(options *mqtt.ClientOptions) mqtt.Client

	Log zerolog.Logger
}

func (m *MQTTClientParams) EnsureDefaults() {
	if m.ConnectTimeout == 0 {
		m.ConnectTimeout = MQTTDefaultConnectTimeout
	}

	if m.KeepAlive == 0 {
		m.KeepAlive = MQTTDefaultKeepAlive
	}

	if m.PublishTimeout == 0 {
		m.PublishTimeout = MQTTDefaultPublishTimeout
	}

	if m.SubscribeTimeout == 0 {
		m.SubscribeTimeout = MQTTDefaultSubscribeTimeout
	}

	if m.NewClientFunc == nil {
		m.NewClientFunc = mqtt.NewClient
	}
}

type subscription struct {
	qos     byte
	handler func(msg application.MQTTMessage)
}

type MQTTClient struct {
	params MQTTClientParams

	client mqtt.Client

	connected          uint64
	connectionLost     uint64
	msgCount           uint64
	msgCountUpdateTime atomic.Pointer[time.Time]

	subscriptions map[string]subscription
	mu            sync.RWMutex

	log zerolog.Logger
}

// NewMQTTClient builds the client options, including the last-will, before the
// underlying client is created. No connection is attempted.
func NewMQTTClient(params MQTTClientParams) *MQTTClient {
	params.EnsureDefaults()

	m := &MQTTClient{
		params:        params,
		subscriptions: map[string]subscription{},
		log:           params.Log,
	}
	m.client = m.newMqttClient()

	t := time.Unix(0, 0)
	m.msgCountUpdateTime.Store(&t)

	return m
}

func (m *MQTTClient) Connect() error {
	if atomic.LoadUint64(&m.connected) == 1 {
		return nil
	}

	// outlives paho's own connect timeout so a retry never overlaps an attempt in flight
	tc := time.NewTimer(m.params.ConnectTimeout + MQTTConnectTimeoutGrace)
	defer tc.Stop()

	token := m.client.Connect()
	select {
	case <-tc.C:
		return fmt.Errorf("%w: %v", application.ErrConnection, ErrMQTTConnectTimeout)
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %v", application.ErrConnection, err)
		}
	}

	atomic.StoreUint64(&m.connected, 1)
	return nil
}

func (m *MQTTClient) IsConnected() bool {
	return atomic.LoadUint64(&m.connected) == 1
}

func (m *MQTTClient) Status() application.MQTTStatus {
	return application.MQTTStatus{
		MessageCount:      atomic.LoadUint64(&m.msgCount),
		LastTimePublished: *m.msgCountUpdateTime.Load(),
		Connected:         m.IsConnected(),
	}
}

func (m *MQTTClient) Publish(topic string, qos byte, retained bool, msg any) error {
	if !m.IsConnected() {
		return ErrMQTTNotConnected
	}

	tc := time.NewTimer(m.params.PublishTimeout)
	defer tc.Stop()

	token := m.client.Publish(topic, qos, retained, msg)
	select {
	case <-tc.C:
		return ErrMQTTPublishTimeout
	case <-token.Done():
		if err := token.Error(); err != nil {
			return err
		}
	}

	t := time.Now()
	m.msgCountUpdateTime.Store(&t)
	atomic.AddUint64(&m.msgCount, 1)
	return nil
}

// Subscribe records the subscription so it is restored after a reconnect. A
// broker rejection is reported as application.ErrSubscription.
func (m *MQTTClient) Subscribe(topic string, qos byte, handler func(msg application.MQTTMessage)) error {
	m.mu.Lock()
	m.subscriptions[topic] = subscription{qos: qos, handler: handler}
	m.mu.Unlock()

	return m.subscribe(topic, qos, handler)
}

func (m *MQTTClient) subscribe(topic string, qos byte, handler func(msg application.MQTTMessage)) error {
	token := m.client.Subscribe(topic, qos, func(client mqtt.Client, msg mqtt.Message) {
		handler(msg)
	})

	if !token.WaitTimeout(m.params.SubscribeTimeout) {
		return fmt.Errorf("%w: %v", application.ErrSubscription, ErrMQTTSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", application.ErrSubscription, err)
	}

	// only paho's SubscribeToken carries the granted qos per topic
	if st, ok := token.(interface{ Result() map[string]byte }); ok {
		for t, granted := range st.Result() {
			if granted == mqttSubscriptionFailureResult {
				m.log.Error().Str("topic", t).Msg("broker rejected subscription")
				return fmt.Errorf("%w: broker rejected topic %s", application.ErrSubscription, t)
			}
			m.log.Info().Str("topic", t).Uint8("qos", granted).Msg("broker granted subscription")
		}
	}
	return nil
}

// Unsubscribe waits for the broker acknowledgment and then closes the session,
// whatever the acknowledgment said.
func (m *MQTTClient) Unsubscribe(topics ...string) error {
	m.mu.Lock()
	for _, t := range topics {
		delete(m.subscriptions, t)
	}
	m.mu.Unlock()

	defer m.Disconnect()

	token := m.client.Unsubscribe(topics...)
	if !token.WaitTimeout(m.params.SubscribeTimeout) {
		m.log.Error().Strs("topics", topics).Msg("unsubscribe timed out")
		return ErrMQTTUnsubscribeTimeout
	}
	if err := token.Error(); err != nil {
		m.log.Error().Err(err).Strs("topics", topics).Msg("broker replied with failure")
		return err
	}

	m.log.Info().Strs("topics", topics).Msg("unsubscribe succeeded")
	return nil
}

func (m *MQTTClient) Disconnect() {
	m.client.Disconnect(MQTTDefaultDisconnectQuiesce)
	atomic.StoreUint64(&m.connected, 0)
	m.log.Info().Msg("disconnected")
}

func (m *MQTTClient) PublishHandler(client mqtt.Client, msg mqtt.Message) {
	m.log.Debug().Str("topic", msg.Topic()).Msg("message on unrouted topic ignored")
}

func (m *MQTTClient) OnConnect(client mqtt.Client) {
	m.log.Info().Msgf("connected")
	atomic.StoreUint64(&m.connected, 1)

	if m.params.StatusTopic != "" && m.params.OnlinePayload != "" {
		// not waited on, this runs on the paho callback goroutine
		client.Publish(m.params.StatusTopic, 1, true, m.params.OnlinePayload)
	}

	// the first connect is followed by Subscribe from the caller, only a
	// reconnect after a lost connection needs the recorded subscriptions
	if !atomic.CompareAndSwapUint64(&m.connectionLost, 1, 0) {
		return
	}

	m.mu.RLock()
	subs := make(map[string]subscription, len(m.subscriptions))
	for topic, sub := range m.subscriptions {
		subs[topic] = sub
	}
	m.mu.RUnlock()

	for topic, sub := range subs {
		topic, sub := topic, sub
		go func() {
			if err := m.subscribe(topic, sub.qos, sub.handler); err != nil {
				m.log.Error().Err(err).Str("topic", topic).Msg("failed to restore subscription")
			}
		}()
	}
}

func (m *MQTTClient) OnConnectionLost(client mqtt.Client, err error) {
	m.log.Warn().Msgf("connect lost: %v", err)
	atomic.StoreUint64(&m.connected, 0)
	atomic.StoreUint64(&m.connectionLost, 1)
}

func (m *MQTTClient) OnReconnecting(client mqtt.Client, options *mqtt.ClientOptions) {
	m.log.Info().Msg("reconnecting")
}

func (m *MQTTClient) newMqttClient() mqtt.Client {
	opts := mqtt.NewClientOptions()

	opts.AddBroker(m.params.MQTTUrl)
	opts.SetClientID(m.params.ClientID)
	opts.SetUsername(m.params.Username)
	opts.SetPassword(m.params.Password)

	if m.params.StatusTopic != "" && m.params.WillPayload != "" {
		opts.SetWill(m.params.StatusTopic, m.params.WillPayload, 1, true)
	}

	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)
	opts.SetKeepAlive(m.params.KeepAlive)
	opts.SetConnectTimeout(m.params.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(MQTTDefaultMaxReconnect)

	opts.SetDefaultPublishHandler(m.PublishHandler)
	opts.OnConnect = m.OnConnect
	opts.OnConnectionLost = m.OnConnectionLost
	opts.OnReconnecting = m.OnReconnecting

	return m.params.NewClientFunc(opts)
}

var _ application.MQTTClient = &MQTTClient{}
