package realtime

import "strings"

// Event names written by the manager itself.
const (
	EventConnected = "connected"
	EventKeepalive = "keepalive"
	EventHeartbeat = "heartbeat"
)

// timestampLayout matches the millisecond ISO-8601 form browsers produce.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var nameSanitizer = strings.NewReplacer("\r", "", "\n", "")

// encodeFrame renders one SSE message. data must be single-line JSON.
func encodeFrame(name string, data []byte) []byte {
	name = nameSanitizer.Replace(name)
	buf := make([]byte, 0, len(name)+len(data)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, name...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	return buf
}

// IsReserved reports whether name is one of the manager's own event names.
func IsReserved(name string) bool {
	switch name {
	case EventConnected, EventKeepalive, EventHeartbeat:
		return true
	}
	return false
}
