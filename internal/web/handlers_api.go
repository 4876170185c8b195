package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Platform-LSS/beneficiarios/internal/store"
)

// Event names broadcast after successful changes.
const (
	EventPessoaCriada        = "pessoa-criada"
	EventPessoaAtualizada    = "pessoa-atualizada"
	EventPessoaRemovida      = "pessoa-removida"
	EventPessoasTransferidas = "pessoas-transferidas"
)

const dateLayout = "2006-01-02"

// pessoaInput is the request body for create and update.
type pessoaInput struct {
	Nome           string  `json:"nome"`
	CPF            string  `json:"cpf"`
	DataNascimento *string `json:"dataNascimento"`
	Telefone       string  `json:"telefone"`
	Endereco       string  `json:"endereco"`
	Observacoes    string  `json:"observacoes"`
	Ativo          *bool   `json:"ativo"`
}

// apply copies the input onto p, validating it.
func (in pessoaInput) apply(p *store.Pessoa) error {
	in.Nome = strings.TrimSpace(in.Nome)
	if in.Nome == "" {
		return errors.New("nome é obrigatório")
	}
	p.Nome = in.Nome
	p.CPF = strings.TrimSpace(in.CPF)
	p.Telefone = in.Telefone
	p.Endereco = in.Endereco
	p.Observacoes = in.Observacoes
	p.DataNascimento = nil
	if in.DataNascimento != nil && *in.DataNascimento != "" {
		d, err := time.Parse(dateLayout, *in.DataNascimento)
		if err != nil {
			return errors.New("dataNascimento deve estar no formato AAAA-MM-DD")
		}
		p.DataNascimento = &d
	}
	if in.Ativo != nil {
		p.Ativo = *in.Ativo
	}
	return nil
}

type transferRequest struct {
	IDs  []int64 `json:"ids"`
	Para string  `json:"para"`
}

func (ws *WebServer) handleListPessoas(w http.ResponseWriter, r *http.Request) {
	f := store.PessoaFilter{
		Nome:          queryParam(r, "nome", ""),
		ResponsavelID: queryParam(r, "responsavel", ""),
		Limit:         queryInt(r, "limit", store.DefaultListLimit),
		Offset:        queryInt(r, "offset", 0),
	}
	if v := queryParam(r, "ativo", ""); v != "" {
		ativo, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "ativo deve ser true ou false")
			return
		}
		f.Ativo = &ativo
	}

	pessoas, err := ws.store.ListPessoas(r.Context(), f)
	if err != nil {
		slog.Error("list pessoas", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao listar pessoas")
		return
	}
	if pessoas == nil {
		pessoas = []store.Pessoa{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": pessoas})
}

func (ws *WebServer) handleGetPessoa(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := ws.store.GetPessoa(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Pessoa não encontrada")
		return
	}
	if err != nil {
		slog.Error("get pessoa", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao buscar pessoa")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (ws *WebServer) handleCreatePessoa(w http.ResponseWriter, r *http.Request) {
	var in pessoaInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return
	}
	p := &store.Pessoa{Ativo: true, ResponsavelID: userID(r)}
	if err := in.apply(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := ws.store.CreatePessoa(r.Context(), p); err != nil {
		slog.Error("create pessoa", "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao criar pessoa")
		return
	}

	ws.notify(EventPessoaCriada, p)
	writeJSON(w, http.StatusCreated, p)
}

func (ws *WebServer) handleUpdatePessoa(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in pessoaInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return
	}

	p, err := ws.store.GetPessoa(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Pessoa não encontrada")
		return
	}
	if err != nil {
		slog.Error("get pessoa", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao buscar pessoa")
		return
	}
	if err := in.apply(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = ws.store.UpdatePessoa(r.Context(), p)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Pessoa não encontrada")
		return
	}
	if err != nil {
		slog.Error("update pessoa", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao atualizar pessoa")
		return
	}

	ws.notify(EventPessoaAtualizada, p)
	writeJSON(w, http.StatusOK, p)
}

func (ws *WebServer) handleDeletePessoa(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := ws.store.DeletePessoa(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Pessoa não encontrada")
		return
	}
	if err != nil {
		slog.Error("delete pessoa", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao remover pessoa")
		return
	}

	ws.notify(EventPessoaRemovida, map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

func (ws *WebServer) handleTransferPessoas(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return
	}
	from := userID(r)
	req.Para = strings.TrimSpace(req.Para)
	if len(req.IDs) == 0 || req.Para == "" {
		writeError(w, http.StatusBadRequest, "ids e para são obrigatórios")
		return
	}
	if req.Para == from {
		writeError(w, http.StatusBadRequest, "Não é possível transferir para a própria conta")
		return
	}

	n, err := ws.store.TransferPessoas(r.Context(), req.IDs, from, req.Para)
	if err != nil {
		slog.Error("transfer pessoas", "from", from, "to", req.Para, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao transferir pessoas")
		return
	}

	if n > 0 {
		ws.notify(EventPessoasTransferidas, map[string]any{
			"ids":        req.IDs,
			"de":         from,
			"para":       req.Para,
			"quantidade": n,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transferidas": n})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id inválido")
		return 0, false
	}
	return id, true
}
