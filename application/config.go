package application

import "fmt"

const (
	StatusOfflinePayload = "Wol service offline"
	StatusOnlinePayload  = "Wol service online"
	ShutdownPayload      = "shutdown"
)

// BrokerConfig is loaded once at startup and never changes afterwards.
type BrokerConfig struct {
	Host     string
	Port     int
	ClientID string

	TargetTopic   string
	StatusTopic   string
	ShutdownTopic string

	Username string
	Password string
}

func (c BrokerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: broker host is empty", ErrConfiguration)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: broker port %d out of range", ErrConfiguration, c.Port)
	}
	if c.TargetTopic == "" {
		return fmt.Errorf("%w: target topic is empty", ErrConfiguration)
	}
	if c.StatusTopic == "" {
		return fmt.Errorf("%w: status topic is empty", ErrConfiguration)
	}
	if c.ShutdownTopic == "" {
		return fmt.Errorf("%w: shutdown topic is empty", ErrConfiguration)
	}
	return nil
}

func (c BrokerConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}
