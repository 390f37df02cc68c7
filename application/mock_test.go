package application

import (
	"github.com/stretchr/testify/mock"
)

type MockWaker struct {
	mock.Mock
}

func (m *MockWaker) Wake(mac string) error {
	return m.Called(mac).Error(0)
}

var _ Waker = &MockWaker{}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, qos byte, retained bool, msg any) error {
	return m.Called(topic, qos, retained, msg).Error(0)
}

var _ Publisher = &MockPublisher{}

type MockMQTTClient struct {
	MockPublisher
}

func (m *MockMQTTClient) Connect() error {
	return m.Called().Error(0)
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(msg MQTTMessage)) error {
	return m.Called(topic, qos, handler).Error(0)
}

func (m *MockMQTTClient) Unsubscribe(topics ...string) error {
	return m.Called(topics).Error(0)
}

func (m *MockMQTTClient) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *MockMQTTClient) Status() MQTTStatus {
	return m.Called().Get(0).(MQTTStatus)
}

var _ MQTTClient = &MockMQTTClient{}

type testMessage struct {
	topic   string
	payload []byte
}

func (t testMessage) Topic() string   { return t.topic }
func (t testMessage) Payload() []byte { return t.payload }
