package application

import "fmt"

var (
	ErrConfiguration = fmt.Errorf("configuration error")
	ErrConnection    = fmt.Errorf("connection error")
	ErrSubscription  = fmt.Errorf("subscription error")
	ErrValidation    = fmt.Errorf("validation error")
	ErrAction        = fmt.Errorf("action error")

	ErrInvalidMAC     = fmt.Errorf("%w: invalid mac address", ErrValidation)
	ErrUnknownCommand = fmt.Errorf("%w: no action defined", ErrValidation)
)
