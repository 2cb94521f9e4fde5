// Package config loads the daemon's JSON configuration file.
package config

import (
	"encoding/json"
	"os"
)

// Config is the readerd configuration.
type Config struct {
	// Transport to the reader: "serial" or "tcp".
	Transport string

	// Serial port device and baud rate (serial transport).
	SerialPort string
	BaudRate   int

	// Reader bridge address (tcp transport).
	TCPAddr string

	// Largest chunk per transport write; frames above it are fragmented.
	MTU int

	// Listening port of the HTTP and WebSocket server.
	HTTPPort string

	// Optional NATS server URL; empty disables publishing.
	NATSURL string

	// Barcode duplicate-suppression window, in milliseconds.
	DupWindowMs int

	// Per-logger levels, loggo syntax.
	LogLevels string

	// Log warnings & errors to this file as well.
	ErrorLogFile string
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Transport:   "serial",
		SerialPort:  "/dev/ttyUSB0",
		BaudRate:    115200,
		MTU:         20,
		HTTPPort:    "8899",
		DupWindowMs: 500,
		LogLevels:   "<root>=WARNING;main=INFO;reader=INFO;transport=INFO;hub=INFO",
	}
}

// FromFile reads file into c.
func (c *Config) FromFile(file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, c)
}
