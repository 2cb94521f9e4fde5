// readerd bridges one handheld RFID/barcode reader to websocket UI
// clients: it drives the wire protocol over a serial or TCP link and
// streams scan results out as JSON events.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/juju/loggo"

	"github.com/trakrf/platform-sub014/internal/config"
	"github.com/trakrf/platform-sub014/internal/hub"
	"github.com/trakrf/platform-sub014/internal/monitor"
	"github.com/trakrf/platform-sub014/internal/reader"
	"github.com/trakrf/platform-sub014/internal/transport"
)

var logger = loggo.GetLogger("main")

func main() {
	cfg := config.Default()
	if err := cfg.FromFile("config.json"); err != nil {
		logger.Warningf("no config.json file found, using standard values")
	}
	loggo.ConfigureLoggers(cfg.LogLevels)
	if cfg.ErrorLogFile != "" {
		if file, err := os.Create(cfg.ErrorLogFile); err == nil {
			writer := loggo.NewMinimumLevelWriter(
				loggo.NewSimpleWriter(file, loggo.DefaultFormatter), loggo.WARNING)
			if err := loggo.RegisterWriter("file", writer); err != nil {
				logger.Warningf(err.Error())
			}
		}
	}

	conn, err := transport.Open(transport.Config{
		Kind: cfg.Transport,
		Port: cfg.SerialPort,
		Baud: cfg.BaudRate,
		Addr: cfg.TCPAddr,
	})
	if err != nil {
		logger.Errorf("cannot reach reader: %v", err)
		os.Exit(1)
	}

	session := reader.New(conn, reader.Options{
		MTU:       cfg.MTU,
		DupWindow: time.Duration(cfg.DupWindowMs) * time.Millisecond,
	})

	h, err := hub.New(cfg.NATSURL)
	if err != nil {
		logger.Errorf("cannot reach NATS: %v", err)
		os.Exit(1)
	}

	session.Start()
	defer session.Close()

	logger.Infof("starting websocket hub")
	go h.Run()
	go forwardEvents(session, h)
	go driveSession(session, h)

	http.HandleFunc("/ws", h.ServeWS)
	http.HandleFunc("/.status", statusHandler)

	logger.Infof("starting HTTP server, listening at port %v", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, nil); err != nil {
		logger.Errorf(err.Error())
		os.Exit(1)
	}
}

// forwardEvents pushes every session event to the hub and applies the
// scan policy to the ones that request a scan change.
func forwardEvents(session *reader.Session, h *hub.Hub) {
	for ev := range session.Events() {
		switch ev.Type {
		case reader.EvtAutoStop, reader.EvtTriggerChanged:
			go scanPolicy(session, ev)
		}
		h.Broadcast(ev)
	}
	h.Shutdown()
}

// scanPolicy holds the product decisions the driver only requests:
// a good read stops the running scan, and squeezing the handle trigger
// starts one when the reader sits configured and idle.
func scanPolicy(session *reader.Session, ev reader.Event) {
	switch {
	case ev.Type == reader.EvtAutoStop:
		if err := session.StopScan(); err != nil {
			logger.Warningf("auto-stop failed: %v", err)
		}
	case ev.Type == reader.EvtTriggerChanged && ev.Pressed:
		if _, state := session.Status(); state != reader.StateReady {
			return
		}
		if err := session.StartScan(); err != nil {
			logger.Warningf("press-to-scan failed: %v", err)
		}
	}
}

// driveSession applies UI commands to the session. Mode changes and scans
// run on this goroutine; notifications keep flowing regardless.
func driveSession(session *reader.Session, h *hub.Hub) {
	for cmd := range h.Commands {
		var err error
		switch strings.ToUpper(cmd.Action) {
		case "SETMODE":
			err = session.SetMode(parseMode(cmd.Mode))
		case "STARTSCAN":
			err = session.StartScan()
		case "STOPSCAN":
			err = session.StopScan()
		case "BATTERY":
			err = session.QueryBattery()
		case "VIBRATE":
			err = session.Vibrate(150 * time.Millisecond)
		default:
			logger.Warningf("unknown UI action %q", cmd.Action)
			continue
		}
		if err != nil {
			logger.Errorf("%v failed: %v", cmd.Action, err)
			h.Broadcast(reader.Event{Type: reader.EvtDeviceError, Error: err.Error()})
		}
	}
}

func parseMode(s string) reader.Mode {
	switch strings.ToUpper(s) {
	case "INVENTORY":
		return reader.ModeInventory
	case "LOCATE":
		return reader.ModeLocate
	case "BARCODE":
		return reader.ModeBarcode
	}
	return reader.ModeIdle
}

func statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(monitor.Snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
