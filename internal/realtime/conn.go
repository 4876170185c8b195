package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Stream is the writable side of an event-stream response.
type Stream interface {
	Write(p []byte) (int, error)
	Flush() error
}

// Conn is one client subscribed to the event stream.
//
// The Registry owns it while it is live. Its tickers are released by teardown,
// which runs exactly once whichever path ends the connection.
type Conn struct {
	id          uint64
	userID      string
	instance    string
	connectedAt time.Time
	stream      Stream

	writeMu sync.Mutex
	live    atomic.Bool

	timerMu sync.Mutex
	timers  *timerPair

	done         chan struct{}
	teardownOnce sync.Once
}

func newConn(id uint64, stream Stream, userID, instance string, now time.Time) *Conn {
	c := &Conn{
		id:          id,
		userID:      userID,
		instance:    instance,
		connectedAt: now,
		stream:      stream,
		done:        make(chan struct{}),
	}
	c.live.Store(true)
	return c
}

// ID returns the process-local connection number.
func (c *Conn) ID() uint64 { return c.id }

// UserID returns the authenticated user that opened the stream.
func (c *Conn) UserID() string { return c.userID }

// Instance returns the id of the process owning the connection.
func (c *Conn) Instance() string { return c.instance }

// ConnectedAt returns when the stream was admitted.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Live reports whether the connection still accepts writes.
func (c *Conn) Live() bool { return c.live.Load() }

// Done is closed once the connection has been torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// send writes one frame. Frames on a connection are written in call order.
func (c *Conn) send(name string, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sendLocked(name, data)
}

// sendLocked is send for callers already holding writeMu.
func (c *Conn) sendLocked(name string, data []byte) error {
	if !c.live.Load() {
		return ErrConnectionClosed
	}
	if _, err := c.stream.Write(encodeFrame(name, data)); err != nil {
		return fmt.Errorf("write %s frame: %w", name, err)
	}
	if err := c.stream.Flush(); err != nil {
		return fmt.Errorf("flush %s frame: %w", name, err)
	}
	return nil
}

// attachTimers installs the ticker pair unless the connection is already gone
// or has timers. It reports whether the pair was installed.
func (c *Conn) attachTimers(t *timerPair) bool {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if !c.live.Load() || c.timers != nil {
		return false
	}
	c.timers = t
	return true
}

// teardown marks the connection dead, stops its tickers and closes Done.
// Only the first call has any effect; it reports whether this call was it.
func (c *Conn) teardown() bool {
	first := false
	c.teardownOnce.Do(func() {
		first = true
		c.timerMu.Lock()
		c.live.Store(false)
		if c.timers != nil {
			c.timers.stop()
		}
		c.timerMu.Unlock()
		close(c.done)
	})
	return first
}

// waitIdle blocks until a write in progress, if any, has returned. After
// teardown no new write can start, so the stream may be released afterwards.
func (c *Conn) waitIdle() {
	c.writeMu.Lock()
	c.writeMu.Unlock() //nolint:staticcheck
}
