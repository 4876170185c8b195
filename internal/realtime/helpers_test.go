package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeStream records frames and can be switched into a failing state.
type fakeStream struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes int
	broken bool
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return 0, errBrokenPipe
	}
	s.writes++
	return s.buf.Write(p)
}

func (s *fakeStream) Flush() error { return nil }

func (s *fakeStream) breakPipe() {
	s.mu.Lock()
	s.broken = true
	s.mu.Unlock()
}

func (s *fakeStream) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *fakeStream) frames(t *testing.T) []frame {
	t.Helper()
	s.mu.Lock()
	raw := s.buf.String()
	s.mu.Unlock()
	return parseFrames(t, raw)
}

func (s *fakeStream) framesNamed(t *testing.T, name string) []frame {
	t.Helper()
	var out []frame
	for _, f := range s.frames(t) {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

type frame struct {
	Name string
	Data map[string]any
}

func parseFrames(t *testing.T, raw string) []frame {
	t.Helper()
	var out []frame
	for _, block := range strings.Split(raw, "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		var f frame
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f.Data))
			}
		}
		out = append(out, f)
	}
	return out
}

type advancer interface {
	Advance(d time.Duration)
}

func setupManager(t *testing.T) (*Manager, advancer) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m := NewManager(Options{
		InstanceID: "inst-test",
		Clock:      clock,
		Metrics:    NewMetrics(prometheus.NewRegistry()),
	})
	t.Cleanup(m.Shutdown)
	return m, clock
}

func connect(t *testing.T, m *Manager, userID string) (*Conn, *fakeStream) {
	t.Helper()
	s := &fakeStream{}
	c, err := m.Connect(s, userID)
	require.NoError(t, err)
	return c, s
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
