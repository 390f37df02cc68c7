package application

import "time"

type MQTTStatus struct {
	MessageCount      uint64
	LastTimePublished time.Time
	Connected         bool
}

type MQTTMessage interface {
	Topic() string
	Payload() []byte
}

type Publisher interface {
	Publish(topic string, qos byte, retained bool, msg any) error
}

type MQTTClient interface {
	Publisher

	Connect() error
	Subscribe(topic string, qos byte, handler func(msg MQTTMessage)) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
	Status() MQTTStatus
}
