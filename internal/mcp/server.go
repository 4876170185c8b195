package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Platform-LSS/beneficiarios/internal/realtime"
	"github.com/Platform-LSS/beneficiarios/internal/store"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Broadcaster is satisfied by *realtime.Manager.
type Broadcaster interface {
	Broadcast(name string, payload any) realtime.BroadcastResult
	Status() realtime.Status
	RecentEvents() []realtime.Event
}

// Server wraps the MCP server with the store and the event broadcaster.
type Server struct {
	mcp    *server.MCPServer
	store  store.Store
	events Broadcaster
}

// New creates a new MCP server with all tools registered.
func New(s store.Store, events Broadcaster) *Server {
	srv := &Server{
		store:  s,
		events: events,
	}

	srv.mcp = server.NewMCPServer(
		"beneficiarios",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server for transport binding.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) registerTools() {
	// --- Beneficiary tools ---
	s.mcp.AddTool(
		mcpsdk.NewTool("pessoa_list",
			mcpsdk.WithDescription("List beneficiaries, optionally filtered by name, owner and active flag"),
			mcpsdk.WithString("nome", mcpsdk.Description("Case-insensitive name fragment")),
			mcpsdk.WithString("responsavel", mcpsdk.Description("Owning staff account id")),
			mcpsdk.WithString("ativo", mcpsdk.Description("'true' or 'false'")),
			mcpsdk.WithString("limit", mcpsdk.Description("Max results (default 50)")),
		),
		s.handlePessoaList,
	)

	s.mcp.AddTool(
		mcpsdk.NewTool("pessoa_get",
			mcpsdk.WithDescription("Get a beneficiary by id"),
			mcpsdk.WithString("id", mcpsdk.Required(), mcpsdk.Description("Beneficiary id")),
		),
		s.handlePessoaGet,
	)

	s.mcp.AddTool(
		mcpsdk.NewTool("pessoa_transfer",
			mcpsdk.WithDescription("Move beneficiaries from one staff account to another and notify connected clients"),
			mcpsdk.WithString("ids", mcpsdk.Required(), mcpsdk.Description("Comma-separated beneficiary ids")),
			mcpsdk.WithString("de", mcpsdk.Required(), mcpsdk.Description("Current owner account id")),
			mcpsdk.WithString("para", mcpsdk.Required(), mcpsdk.Description("New owner account id")),
		),
		s.handlePessoaTransfer,
	)

	// --- Real-time tools ---
	s.mcp.AddTool(
		mcpsdk.NewTool("realtime_status",
			mcpsdk.WithDescription("Show this instance's id and its connected event-stream clients"),
		),
		s.handleRealtimeStatus,
	)

	s.mcp.AddTool(
		mcpsdk.NewTool("realtime_recent_events",
			mcpsdk.WithDescription("Show the most recent events broadcast by this instance, oldest first"),
		),
		s.handleRealtimeRecent,
	)

	s.mcp.AddTool(
		mcpsdk.NewTool("realtime_broadcast",
			mcpsdk.WithDescription("Broadcast an application event to every client connected to this instance"),
			mcpsdk.WithString("event", mcpsdk.Required(), mcpsdk.Description("Event name")),
			mcpsdk.WithString("payload", mcpsdk.Description("JSON payload (object recommended)")),
		),
		s.handleRealtimeBroadcast,
	)
}

func (s *Server) handlePessoaList(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	f := store.PessoaFilter{
		Nome:          stringArg(req, "nome"),
		ResponsavelID: stringArg(req, "responsavel"),
		Limit:         intArg(req, "limit", store.DefaultListLimit),
	}
	if v := stringArg(req, "ativo"); v != "" {
		ativo, err := strconv.ParseBool(v)
		if err != nil {
			return mcpsdk.NewToolResultError("ativo must be 'true' or 'false'"), nil
		}
		f.Ativo = &ativo
	}

	pessoas, err := s.store.ListPessoas(ctx, f)
	if err != nil {
		return mcpsdk.NewToolResultError(fmt.Sprintf("list pessoas: %v", err)), nil
	}
	response := map[string]any{
		"count": len(pessoas),
		"items": pessoas,
	}
	data, _ := json.MarshalIndent(response, "", "  ")
	return mcpsdk.NewToolResultText(string(data)), nil
}

func (s *Server) handlePessoaGet(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	id, err := strconv.ParseInt(stringArg(req, "id"), 10, 64)
	if err != nil {
		return mcpsdk.NewToolResultError("id must be an integer"), nil
	}
	p, err := s.store.GetPessoa(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return mcpsdk.NewToolResultText("not found"), nil
	}
	if err != nil {
		return mcpsdk.NewToolResultError(fmt.Sprintf("get pessoa: %v", err)), nil
	}
	data, _ := json.MarshalIndent(p, "", "  ")
	return mcpsdk.NewToolResultText(string(data)), nil
}

func (s *Server) handlePessoaTransfer(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	from := stringArg(req, "de")
	to := stringArg(req, "para")
	if from == "" || to == "" {
		return mcpsdk.NewToolResultError("de and para are required"), nil
	}
	if from == to {
		return mcpsdk.NewToolResultError("de and para must differ"), nil
	}
	ids, err := idsArg(req, "ids")
	if err != nil {
		return mcpsdk.NewToolResultError(err.Error()), nil
	}

	n, err := s.store.TransferPessoas(ctx, ids, from, to)
	if err != nil {
		return mcpsdk.NewToolResultError(fmt.Sprintf("transfer pessoas: %v", err)), nil
	}
	if n == 0 {
		return mcpsdk.NewToolResultText(fmt.Sprintf("No records owned by '%s' among the given ids", from)), nil
	}

	res := s.events.Broadcast("pessoas-transferidas", map[string]any{
		"ids":        ids,
		"de":         from,
		"para":       to,
		"quantidade": n,
	})
	return mcpsdk.NewToolResultText(fmt.Sprintf(
		"Transferred %d record(s) from '%s' to '%s' (event %s delivered to %d client(s))",
		n, from, to, res.EventID, res.Delivered,
	)), nil
}

func (s *Server) handleRealtimeStatus(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	data, _ := json.MarshalIndent(s.events.Status(), "", "  ")
	return mcpsdk.NewToolResultText(string(data)), nil
}

func (s *Server) handleRealtimeRecent(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	events := s.events.RecentEvents()
	response := map[string]any{
		"count":  len(events),
		"events": events,
	}
	data, _ := json.MarshalIndent(response, "", "  ")
	return mcpsdk.NewToolResultText(string(data)), nil
}

func (s *Server) handleRealtimeBroadcast(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	name := strings.TrimSpace(stringArg(req, "event"))
	if name == "" {
		return mcpsdk.NewToolResultError("event is required"), nil
	}
	if realtime.IsReserved(name) {
		return mcpsdk.NewToolResultError(fmt.Sprintf("event name '%s' is reserved for the stream itself", name)), nil
	}

	var payload any
	if raw := stringArg(req, "payload"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return mcpsdk.NewToolResultError("payload must be valid JSON"), nil
		}
		payload = json.RawMessage(raw)
	}

	res := s.events.Broadcast(name, payload)
	slog.Info("manual broadcast", "event", name, "eventId", res.EventID, "delivered", res.Delivered)
	data, _ := json.MarshalIndent(res, "", "  ")
	return mcpsdk.NewToolResultText(string(data)), nil
}

// --- Helpers ---

func stringArg(req mcpsdk.CallToolRequest, name string) string {
	v, ok := req.Params.Arguments[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

func intArg(req mcpsdk.CallToolRequest, name string, defaultVal int) int {
	v := stringArg(req, name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int arg", "name", name, "value", v)
		return defaultVal
	}
	return n
}

// idsArg parses a comma-separated list of ids.
func idsArg(req mcpsdk.CallToolRequest, name string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(stringArg(req, name), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s is required", name)
	}
	return ids, nil
}
