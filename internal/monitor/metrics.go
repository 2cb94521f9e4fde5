// Package monitor collects process counters for the reader daemon.
package monitor

import (
	"os"
	"time"

	"github.com/rcrowley/go-metrics"
)

// Counters shared across the driver stack. Registered once at package
// load; the daemon exports them over HTTP.
var (
	FramesParsed     = metrics.NewCounter()
	ParseErrors      = metrics.NewCounter()
	UnknownEvents    = metrics.NewCounter()
	HandlerErrors    = metrics.NewCounter()
	BarcodesRead     = metrics.NewCounter()
	TagsSeen         = metrics.NewCounter()
	SequencesRun     = metrics.NewCounter()
	SequencesFailed  = metrics.NewCounter()
	ClientsConnected = metrics.NewCounter()
)

var startTime = time.Now()

func init() {
	metrics.Register("FramesParsed", FramesParsed)
	metrics.Register("ParseErrors", ParseErrors)
	metrics.Register("UnknownEvents", UnknownEvents)
	metrics.Register("HandlerErrors", HandlerErrors)
	metrics.Register("BarcodesRead", BarcodesRead)
	metrics.Register("TagsSeen", TagsSeen)
	metrics.Register("SequencesRun", SequencesRun)
	metrics.Register("SequencesFailed", SequencesFailed)
	metrics.Register("ClientsConnected", ClientsConnected)
}

// Export is the JSON snapshot served on the status endpoint.
type Export struct {
	UpTime           string
	PID              int
	FramesParsed     int64
	ParseErrors      int64
	UnknownEvents    int64
	HandlerErrors    int64
	BarcodesRead     int64
	TagsSeen         int64
	SequencesRun     int64
	SequencesFailed  int64
	ClientsConnected int64
}

// Snapshot captures the current counter values.
func Snapshot() *Export {
	return &Export{
		UpTime:           time.Since(startTime).String(),
		PID:              os.Getpid(),
		FramesParsed:     FramesParsed.Count(),
		ParseErrors:      ParseErrors.Count(),
		UnknownEvents:    UnknownEvents.Count(),
		HandlerErrors:    HandlerErrors.Count(),
		BarcodesRead:     BarcodesRead.Count(),
		TagsSeen:         TagsSeen.Count(),
		SequencesRun:     SequencesRun.Count(),
		SequencesFailed:  SequencesFailed.Count(),
		ClientsConnected: ClientsConnected.Count(),
	}
}
