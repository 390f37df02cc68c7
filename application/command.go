package application

import "strings"

const (
	commandWakePrefix = "ON:"
	commandShutdown   = "OFF"

	macAddressLength = 17
	macAddressChars  = "0123456789ABCDEFabcdef:"
)

type CommandKind int

const (
	CommandInvalid CommandKind = iota
	CommandWake
	CommandShutdown
)

func (k CommandKind) String() string {
	switch k {
	case CommandWake:
		return "wake"
	case CommandShutdown:
		return "shutdown"
	default:
		return "invalid"
	}
}

type Command struct {
	Kind CommandKind
	MAC  string
	Raw  string
}

// ParseCommand maps a raw payload onto a Command. Matching is case sensitive.
// Invalid commands are returned together with an error wrapping ErrValidation.
func ParseCommand(payload string) (Command, error) {
	if strings.HasPrefix(payload, commandWakePrefix) {
		mac := strings.TrimSpace(strings.TrimPrefix(payload, commandWakePrefix))
		if !isMACAddress(mac) {
			return Command{Kind: CommandInvalid, MAC: mac, Raw: payload}, ErrInvalidMAC
		}
		return Command{Kind: CommandWake, MAC: mac, Raw: payload}, nil
	}

	if payload == commandShutdown {
		return Command{Kind: CommandShutdown, Raw: payload}, nil
	}

	return Command{Kind: CommandInvalid, Raw: payload}, ErrUnknownCommand
}

// isMACAddress checks length and character set only, colon positions are not verified.
func isMACAddress(mac string) bool {
	if len(mac) != macAddressLength {
		return false
	}
	for _, c := range mac {
		if !strings.ContainsRune(macAddressChars, c) {
			return false
		}
	}
	return true
}
