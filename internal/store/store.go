package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Pessoa is a beneficiary record owned by a staff account.
type Pessoa struct {
	ID             int64      `json:"id"`
	Nome           string     `json:"nome"`
	CPF            string     `json:"cpf,omitempty"`
	DataNascimento *time.Time `json:"dataNascimento,omitempty"`
	Telefone       string     `json:"telefone,omitempty"`
	Endereco       string     `json:"endereco,omitempty"`
	Observacoes    string     `json:"observacoes,omitempty"`
	ResponsavelID  string     `json:"responsavelId"`
	Ativo          bool       `json:"ativo"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// PessoaFilter narrows ListPessoas. Zero values mean "no filter".
type PessoaFilter struct {
	Nome          string // case-insensitive substring
	ResponsavelID string
	Ativo         *bool
	Limit         int
	Offset        int
}

// DefaultListLimit caps ListPessoas when no limit is given.
const DefaultListLimit = 50

// Store defines the persistence interface.
type Store interface {
	CreatePessoa(ctx context.Context, p *Pessoa) error
	GetPessoa(ctx context.Context, id int64) (*Pessoa, error)
	ListPessoas(ctx context.Context, f PessoaFilter) ([]Pessoa, error)
	UpdatePessoa(ctx context.Context, p *Pessoa) error
	DeletePessoa(ctx context.Context, id int64) error

	// TransferPessoas moves the given records from one staff account to
	// another and returns how many were moved. Records not owned by from are skipped.
	TransferPessoas(ctx context.Context, ids []int64, from, to string) (int64, error)

	// Lifecycle
	Close()
}
