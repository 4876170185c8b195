package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

// DefaultWriteTimeout bounds a single frame write on an HTTP stream.
const DefaultWriteTimeout = 10 * time.Second

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	InstanceID        string
	Clock             clockwork.Clock
	KeepaliveInterval time.Duration
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	CacheSize         int
	Metrics           *Metrics
	Logger            *slog.Logger
}

// Manager is the event broadcaster of one process. Create it once at startup
// and hand it to whatever needs to notify clients.
type Manager struct {
	instanceID   string
	clock        clockwork.Clock
	writeTimeout time.Duration
	registry     *Registry
	cache        *EventCache
	heartbeat    *heartbeatScheduler
	metrics      *Metrics
	logger       *slog.Logger
	nextID       atomic.Uint64
}

// BroadcastResult summarizes one fan-out pass.
type BroadcastResult struct {
	EventID   string `json:"eventId"`
	Delivered int    `json:"entregues"`
	Dropped   int    `json:"descartados"`
}

// ConnInfo describes a registered connection.
type ConnInfo struct {
	ID          uint64    `json:"id"`
	UserID      string    `json:"userId"`
	Instance    string    `json:"instancia"`
	ConnectedAt time.Time `json:"conectadoEm"`
}

// Status is a diagnostic snapshot of the manager.
type Status struct {
	Instance     string     `json:"instancia"`
	Connections  int        `json:"conexoes"`
	Clients      []ConnInfo `json:"clientes"`
	CachedEvents int        `json:"eventosEmCache"`
	CacheSize    int        `json:"capacidadeCache"`
}

// NewManager creates a Manager with its own registry and cache.
func NewManager(opts Options) *Manager {
	if opts.InstanceID == "" {
		opts.InstanceID = NewInstanceID()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.KeepaliveInterval <= 0 {
		opts.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("comp", "realtime", "instancia", opts.InstanceID)

	m := &Manager{
		instanceID:   opts.InstanceID,
		clock:        opts.Clock,
		writeTimeout: opts.WriteTimeout,
		registry:     NewRegistry(),
		cache:        NewEventCache(opts.CacheSize),
		metrics:      opts.Metrics,
		logger:       logger,
	}
	m.heartbeat = &heartbeatScheduler{
		clock:     opts.Clock,
		keepalive: opts.KeepaliveInterval,
		heartbeat: opts.HeartbeatInterval,
		instance:  opts.InstanceID,
		logger:    logger,
		onWriteFailure: func(c *Conn, err error) {
			logger.Debug("timer write failed", "conn", c.ID(), "userId", c.UserID(), "error", err)
			m.unregister(c, reasonWriteFailed)
		},
	}
	return m
}

// InstanceID returns the identity stamped on this process's events.
func (m *Manager) InstanceID() string { return m.instanceID }

// Size returns the number of registered connections.
func (m *Manager) Size() int { return m.registry.Len() }

type connectedPayload struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	Instancia string `json:"instancia"`
	Timestamp string `json:"timestamp"`
}

// Connect registers a stream for userID, writes the connected frame and
// starts its tickers. The caller must already have authenticated the user.
func (m *Manager) Connect(stream Stream, userID string) (*Conn, error) {
	c := newConn(m.nextID.Add(1), stream, userID, m.instanceID, m.clock.Now())
	data, err := json.Marshal(connectedPayload{
		Message:   "Conectado ao servidor de eventos",
		UserID:    userID,
		Instancia: m.instanceID,
		Timestamp: m.timestamp(),
	})
	if err != nil {
		c.teardown()
		return nil, fmt.Errorf("encode connected frame: %w", err)
	}

	// A broadcast that snapshots c right after Insert blocks on writeMu
	// until connected is on the wire.
	c.writeMu.Lock()
	m.registry.Insert(c)
	m.metrics.ActiveConnections.Set(float64(m.registry.Len()))
	err = c.sendLocked(EventConnected, data)
	if err != nil {
		m.unregister(c, reasonWriteFailed)
	}
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	m.heartbeat.attach(c)
	m.logger.Info("client connected", "conn", c.ID(), "userId", userID, "connections", m.registry.Len())
	return c, nil
}

// Unregister removes c after its transport closed. Safe to call repeatedly
// and concurrently with broadcasts; it reports whether this call removed c.
func (m *Manager) Unregister(c *Conn) bool {
	return m.unregister(c, reasonClosed)
}

func (m *Manager) unregister(c *Conn, reason string) bool {
	removed := m.registry.Remove(c)
	c.teardown()
	if !removed {
		return false
	}
	m.metrics.ActiveConnections.Set(float64(m.registry.Len()))
	m.metrics.Teardowns.WithLabelValues(reason).Inc()
	m.logger.Info("client disconnected",
		"conn", c.ID(),
		"userId", c.UserID(),
		"reason", reason,
		"connections", m.registry.Len(),
	)
	return true
}

// Broadcast stamps an event and writes it to every registered connection.
// It never fails: a connection that cannot be written is dropped and the
// pass moves on to the next one.
func (m *Manager) Broadcast(name string, payload any) BroadcastResult {
	ev, err := m.stamp(name, payload)
	if err != nil {
		m.logger.Error("broadcast payload not encodable", "event", name, "error", err)
		return BroadcastResult{}
	}
	m.cache.Add(ev)
	m.metrics.CachedEvents.Set(float64(m.cache.Len()))
	m.metrics.Broadcasts.Inc()

	res := BroadcastResult{EventID: ev.ID}
	for _, c := range m.registry.Snapshot() {
		if !c.Live() {
			m.unregister(c, reasonDead)
			res.Dropped++
			continue
		}
		if err := c.send(name, ev.Payload); err != nil {
			m.logger.Debug("broadcast write failed", "conn", c.ID(), "userId", c.UserID(), "error", err)
			m.unregister(c, reasonWriteFailed)
			res.Dropped++
			continue
		}
		res.Delivered++
	}

	m.metrics.Deliveries.WithLabelValues("delivered").Add(float64(res.Delivered))
	m.metrics.Deliveries.WithLabelValues("dropped").Add(float64(res.Dropped))
	m.logger.Debug("broadcast",
		"event", name,
		"eventId", ev.ID,
		"delivered", res.Delivered,
		"dropped", res.Dropped,
	)
	return res
}

// stamp builds the cached event. Object payloads get eventId and
// instanciaOrigem merged in; anything else is wrapped under "data".
func (m *Manager) stamp(name string, payload any) (Event, error) {
	ev := Event{
		ID:        uuid.NewString(),
		Name:      name,
		Timestamp: m.timestamp(),
		Instance:  m.instanceID,
	}

	fields := map[string]json.RawMessage{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			if err := json.Unmarshal(trimmed, &fields); err != nil {
				return Event{}, err
			}
		} else if !bytes.Equal(trimmed, []byte("null")) {
			fields["data"] = raw
		}
	}
	fields["eventId"], _ = json.Marshal(ev.ID)
	fields["instanciaOrigem"], _ = json.Marshal(m.instanceID)

	data, err := json.Marshal(fields)
	if err != nil {
		return Event{}, err
	}
	ev.Payload = data
	return ev, nil
}

// RecentEvents returns the recent-event cache, oldest first.
func (m *Manager) RecentEvents() []Event {
	return m.cache.Recent()
}

// Status returns a diagnostic snapshot.
func (m *Manager) Status() Status {
	conns := m.registry.Snapshot()
	return Status{
		Instance:    m.instanceID,
		Connections: len(conns),
		Clients: lo.Map(conns, func(c *Conn, _ int) ConnInfo {
			return ConnInfo{
				ID:          c.ID(),
				UserID:      c.UserID(),
				Instance:    c.Instance(),
				ConnectedAt: c.ConnectedAt(),
			}
		}),
		CachedEvents: m.cache.Len(),
		CacheSize:    m.cache.Capacity(),
	}
}

// Shutdown tears down every registered connection.
func (m *Manager) Shutdown() {
	conns := m.registry.Snapshot()
	for _, c := range conns {
		m.unregister(c, reasonShutdown)
	}
	if len(conns) > 0 {
		m.logger.Info("event stream shut down", "closed", len(conns))
	}
}

func (m *Manager) timestamp() string {
	return m.clock.Now().UTC().Format(timestampLayout)
}
