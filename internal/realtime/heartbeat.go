package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default ticker intervals.
const (
	DefaultKeepaliveInterval = 30 * time.Second
	DefaultHeartbeatInterval = 5 * time.Minute
)

type timerPair struct {
	keepalive clockwork.Ticker
	heartbeat clockwork.Ticker
}

func (t *timerPair) stop() {
	t.keepalive.Stop()
	t.heartbeat.Stop()
}

type keepalivePayload struct {
	Timestamp string `json:"timestamp"`
}

type heartbeatPayload struct {
	Timestamp string `json:"timestamp"`
	Instancia string `json:"instancia"`
}

// heartbeatScheduler drives the keepalive and heartbeat frames of every
// connection. A failed write reports the connection through onWriteFailure,
// which is how dead transports get reaped when no close notification arrives.
type heartbeatScheduler struct {
	clock          clockwork.Clock
	keepalive      time.Duration
	heartbeat      time.Duration
	instance       string
	onWriteFailure func(*Conn, error)
	logger         *slog.Logger
}

// attach starts the tickers of c. It is a no-op for a connection that already
// has tickers or has been torn down.
func (s *heartbeatScheduler) attach(c *Conn) {
	t := &timerPair{
		keepalive: s.clock.NewTicker(s.keepalive),
		heartbeat: s.clock.NewTicker(s.heartbeat),
	}
	if !c.attachTimers(t) {
		t.stop()
		return
	}
	go s.run(c, t)
}

func (s *heartbeatScheduler) run(c *Conn, t *timerPair) {
	for {
		select {
		case <-c.Done():
			return
		case <-t.keepalive.Chan():
			if !s.fire(c, EventKeepalive, keepalivePayload{Timestamp: s.now()}) {
				return
			}
		case <-t.heartbeat.Chan():
			if !s.fire(c, EventHeartbeat, heartbeatPayload{Timestamp: s.now(), Instancia: s.instance}) {
				return
			}
		}
	}
}

func (s *heartbeatScheduler) fire(c *Conn, name string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode timer frame", "event", name, "error", err)
		return true
	}
	if err := c.send(name, data); err != nil {
		s.onWriteFailure(c, err)
		return false
	}
	return true
}

func (s *heartbeatScheduler) now() string {
	return s.clock.Now().UTC().Format(timestampLayout)
}
