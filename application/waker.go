package application

// Waker sends a Wake-on-LAN magic packet. A nil error only means the packet left
// the host, never that the device woke up.
type Waker interface {
	Wake(mac string) error
}
