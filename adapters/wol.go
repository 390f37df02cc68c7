package adapters

import (
	"bytes"
	"fmt"
	"mqtt-wol-bridge/application"
	"net"

	"github.com/rs/zerolog"
)

const (
	WOLDefaultBroadcastAddr = "255.255.255.255:9"

	magicPacketHeaderLen = 6
	magicPacketRepeat    = 16
	magicPacketLen       = magicPacketHeaderLen + magicPacketRepeat*6
)

var ErrInvalidMACAddress = fmt.Errorf("invalid mac address")

// NewMagicPacket returns six 0xFF bytes followed by the 6 byte hardware address
// repeated sixteen times.
func NewMagicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMACAddress, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("%w: %s is not a 48 bit address", ErrInvalidMACAddress, mac)
	}

	packet := make([]byte, 0, magicPacketLen)
	packet = append(packet, bytes.Repeat([]byte{0xFF}, magicPacketHeaderLen)...)
	packet = append(packet, bytes.Repeat(hw, magicPacketRepeat)...)
	return packet, nil
}

type MagicPacketSenderParams struct {
	BroadcastAddr string

	Log zerolog.Logger
}

func (p *MagicPacketSenderParams) EnsureDefaults() {
	if p.BroadcastAddr == "" {
		p.BroadcastAddr = WOLDefaultBroadcastAddr
	}
}

// MagicPacketSender sends unconfirmed magic packets over UDP.
type MagicPacketSender struct {
	params MagicPacketSenderParams

	log zerolog.Logger
}

func NewMagicPacketSender(params MagicPacketSenderParams) (*MagicPacketSender, error) {
	params.EnsureDefaults()

	if _, err := net.ResolveUDPAddr("udp", params.BroadcastAddr); err != nil {
		return nil, fmt.Errorf("%w: broadcast address: %v", application.ErrConfiguration, err)
	}

	return &MagicPacketSender{params: params, log: params.Log}, nil
}

func (s *MagicPacketSender) Wake(mac string) error {
	packet, err := NewMagicPacket(mac)
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", s.params.BroadcastAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := conn.Write(packet)
	if err != nil {
		return err
	}
	if n != len(packet) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(packet))
	}

	s.log.Debug().Str("mac", mac).Str("addr", s.params.BroadcastAddr).Msg("magic packet sent")
	return nil
}

var _ application.Waker = &MagicPacketSender{}
