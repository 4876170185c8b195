package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Platform-LSS/beneficiarios/internal/realtime"
	"github.com/Platform-LSS/beneficiarios/internal/store"
	"github.com/jonboulle/clockwork"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore serves a fixed set of records and records transfers.
type stubStore struct {
	store.Store
	pessoas   map[int64]store.Pessoa
	transfers [][]int64
}

func (s *stubStore) GetPessoa(_ context.Context, id int64) (*store.Pessoa, error) {
	p, ok := s.pessoas[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *stubStore) ListPessoas(_ context.Context, f store.PessoaFilter) ([]store.Pessoa, error) {
	var out []store.Pessoa
	for _, p := range s.pessoas {
		if f.ResponsavelID != "" && p.ResponsavelID != f.ResponsavelID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *stubStore) TransferPessoas(_ context.Context, ids []int64, from, to string) (int64, error) {
	s.transfers = append(s.transfers, ids)
	var n int64
	for _, id := range ids {
		if p, ok := s.pessoas[id]; ok && p.ResponsavelID == from {
			p.ResponsavelID = to
			s.pessoas[id] = p
			n++
		}
	}
	return n, nil
}

func newTestServer(t *testing.T) (*Server, *stubStore, *realtime.Manager) {
	t.Helper()
	st := &stubStore{pessoas: map[int64]store.Pessoa{
		1: {ID: 1, Nome: "Ana", ResponsavelID: "u1", Ativo: true},
		2: {ID: 2, Nome: "Bia", ResponsavelID: "u1", Ativo: true},
		3: {ID: 3, Nome: "Caio", ResponsavelID: "u2", Ativo: true},
	}}
	events := realtime.NewManager(realtime.Options{
		InstanceID: "mcp-test",
		Clock:      clockwork.NewFakeClock(),
	})
	t.Cleanup(events.Shutdown)
	return New(st, events), st, events
}

func call(args map[string]any) mcpsdk.CallToolRequest {
	var req mcpsdk.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcpsdk.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestPessoaGet(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	res, err := srv.handlePessoaGet(ctx, call(map[string]any{"id": "1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var p store.Pessoa
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &p))
	assert.Equal(t, "Ana", p.Nome)

	res, err = srv.handlePessoaGet(ctx, call(map[string]any{"id": "99"}))
	require.NoError(t, err)
	assert.Equal(t, "not found", resultText(t, res))

	res, err = srv.handlePessoaGet(ctx, call(map[string]any{"id": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestPessoaList(t *testing.T) {
	srv, _, _ := newTestServer(t)

	res, err := srv.handlePessoaList(context.Background(), call(map[string]any{"responsavel": "u1"}))
	require.NoError(t, err)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, 2, out.Count)

	res, err = srv.handlePessoaList(context.Background(), call(map[string]any{"ativo": "sim"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestPessoaTransferBroadcasts(t *testing.T) {
	srv, st, events := newTestServer(t)

	res, err := srv.handlePessoaTransfer(context.Background(), call(map[string]any{
		"ids":  "1, 2,3",
		"de":   "u1",
		"para": "u9",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError, resultText(t, res))
	assert.Equal(t, [][]int64{{1, 2, 3}}, st.transfers)
	assert.Equal(t, "u9", st.pessoas[1].ResponsavelID)
	assert.Equal(t, "u2", st.pessoas[3].ResponsavelID)

	recent := events.RecentEvents()
	require.Len(t, recent, 1)
	assert.Equal(t, "pessoas-transferidas", recent[0].Name)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(recent[0].Payload, &payload))
	assert.EqualValues(t, 2, payload["quantidade"])
	assert.Equal(t, "mcp-test", payload["instanciaOrigem"])
}

func TestPessoaTransferRejections(t *testing.T) {
	srv, st, events := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing target", map[string]any{"ids": "1", "de": "u1"}},
		{"same account", map[string]any{"ids": "1", "de": "u1", "para": "u1"}},
		{"bad id", map[string]any{"ids": "1,abc", "de": "u1", "para": "u2"}},
		{"no ids", map[string]any{"ids": " , ", "de": "u1", "para": "u2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := srv.handlePessoaTransfer(context.Background(), call(tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
	assert.Empty(t, st.transfers)
	assert.Empty(t, events.RecentEvents())
}

func TestRealtimeBroadcast(t *testing.T) {
	srv, _, events := newTestServer(t)

	res, err := srv.handleRealtimeBroadcast(context.Background(), call(map[string]any{
		"event":   "aviso",
		"payload": `{"texto": "manutenção às 18h"}`,
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out realtime.BroadcastResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.NotEmpty(t, out.EventID)
	assert.Zero(t, out.Delivered)

	recent := events.RecentEvents()
	require.Len(t, recent, 1)
	assert.Equal(t, out.EventID, recent[0].ID)
	assert.JSONEq(t,
		`{"texto":"manutenção às 18h","eventId":"`+out.EventID+`","instanciaOrigem":"mcp-test"}`,
		string(recent[0].Payload))
}

func TestRealtimeBroadcastRejections(t *testing.T) {
	srv, _, events := newTestServer(t)

	for _, args := range []map[string]any{
		{},
		{"event": "heartbeat"},
		{"event": "aviso", "payload": "{not json"},
	} {
		res, err := srv.handleRealtimeBroadcast(context.Background(), call(args))
		require.NoError(t, err)
		assert.True(t, res.IsError, args)
	}
	assert.Empty(t, events.RecentEvents())
}

func TestRealtimeStatusAndRecent(t *testing.T) {
	srv, _, events := newTestServer(t)
	events.Broadcast("aviso", map[string]any{"n": 1})

	res, err := srv.handleRealtimeStatus(context.Background(), call(nil))
	require.NoError(t, err)
	var status realtime.Status
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &status))
	assert.Equal(t, "mcp-test", status.Instance)
	assert.Equal(t, 1, status.CachedEvents)

	res, err = srv.handleRealtimeRecent(context.Background(), call(nil))
	require.NoError(t, err)
	var recent struct {
		Count  int              `json:"count"`
		Events []realtime.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &recent))
	assert.Equal(t, 1, recent.Count)
	assert.Equal(t, "aviso", recent.Events[0].Name)
}
