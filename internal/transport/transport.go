// Package transport provides the byte-stream links a reader session runs
// over. The driver core only ever sees io.ReadWriteCloser; chunking,
// timeouts and reconnects below that are the link's own business.
package transport

import (
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("transport")

// Conn is an open link to a reader.
type Conn interface {
	io.ReadWriteCloser
	// Kind names the link type ("serial", "tcp").
	Kind() string
}

// Config selects and parameterizes a link.
type Config struct {
	// Kind is "serial" or "tcp".
	Kind string
	// Serial settings.
	Port string
	Baud int
	// TCP settings (host:port of a reader bridge).
	Addr string
}

// Open dials the configured link.
func Open(cfg Config) (Conn, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "serial", "rs232", "com":
		return OpenSerial(cfg.Port, cfg.Baud)
	case "tcp", "ethernet":
		return DialTCP(cfg.Addr)
	}
	return nil, fmt.Errorf("transport: unsupported kind %q", cfg.Kind)
}

type tcpConn struct {
	net.Conn
}

func (c *tcpConn) Kind() string { return "tcp" }

// DialTCP connects to a reader (or reader bridge) listening at addr.
func DialTCP(addr string) (Conn, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("transport: no tcp address configured")
	}
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	logger.Infof("connected to reader at %v", addr)
	return &tcpConn{Conn: c}, nil
}
