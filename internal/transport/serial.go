package transport

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

type serialConn struct {
	serial.Port
}

func (c *serialConn) Kind() string { return "serial" }

// OpenSerial opens the reader's serial bridge. Baud defaults to 115200,
// the rate the sled's UART dongle ships with.
func OpenSerial(port string, baud int) (Conn, error) {
	if strings.TrimSpace(port) == "" {
		return nil, fmt.Errorf("transport: no serial port configured")
	}
	if baud <= 0 {
		baud = 115200
	}
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	logger.Infof("opened %v at %v baud", port, baud)
	return &serialConn{Port: p}, nil
}
