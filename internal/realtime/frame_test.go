package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeFrame(t *testing.T) {
	got := encodeFrame("pessoa-criada", []byte(`{"id":1}`))
	assert.Equal(t, "event: pessoa-criada\ndata: {\"id\":1}\n\n", string(got))
}

func TestEncodeFrame_StripsLineBreaksFromName(t *testing.T) {
	got := encodeFrame("evil\r\ndata: x", []byte(`{}`))
	assert.Equal(t, "event: evildata: x\ndata: {}\n\n", string(got))
}

func TestIsReserved(t *testing.T) {
	for _, name := range []string{EventConnected, EventKeepalive, EventHeartbeat} {
		assert.True(t, IsReserved(name), name)
	}
	assert.False(t, IsReserved("pessoa-criada"))
	assert.False(t, IsReserved(""))
}
