package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	slog.Info("connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the connection pool for migrations.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const pessoaColumns = `id, nome, cpf, data_nascimento, telefone, endereco, observacoes,
	responsavel_id, ativo, created_at, updated_at`

func scanPessoa(row pgx.Row) (*Pessoa, error) {
	p := &Pessoa{}
	err := row.Scan(&p.ID, &p.Nome, &p.CPF, &p.DataNascimento, &p.Telefone, &p.Endereco,
		&p.Observacoes, &p.ResponsavelID, &p.Ativo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) CreatePessoa(ctx context.Context, p *Pessoa) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pessoas (nome, cpf, data_nascimento, telefone, endereco, observacoes, responsavel_id, ativo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		p.Nome, p.CPF, p.DataNascimento, p.Telefone, p.Endereco, p.Observacoes, p.ResponsavelID, p.Ativo).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pessoa: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPessoa(ctx context.Context, id int64) (*Pessoa, error) {
	p, err := scanPessoa(s.pool.QueryRow(ctx,
		`SELECT `+pessoaColumns+` FROM pessoas WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pessoa %d: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) ListPessoas(ctx context.Context, f PessoaFilter) ([]Pessoa, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Nome != "" {
		add("nome ILIKE '%%' || $%d || '%%'", f.Nome)
	}
	if f.ResponsavelID != "" {
		add("responsavel_id=$%d", f.ResponsavelID)
	}
	if f.Ativo != nil {
		add("ativo=$%d", *f.Ativo)
	}

	query := `SELECT ` + pessoaColumns + ` FROM pessoas`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit, max(f.Offset, 0))
	query += fmt.Sprintf(` ORDER BY nome, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pessoas: %w", err)
	}
	defer rows.Close()
	var pessoas []Pessoa
	for rows.Next() {
		p, err := scanPessoa(rows)
		if err != nil {
			return nil, err
		}
		pessoas = append(pessoas, *p)
	}
	return pessoas, rows.Err()
}

func (s *PostgresStore) UpdatePessoa(ctx context.Context, p *Pessoa) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE pessoas SET nome=$2, cpf=$3, data_nascimento=$4, telefone=$5, endereco=$6,
		 observacoes=$7, ativo=$8, updated_at=now()
		 WHERE id=$1
		 RETURNING responsavel_id, created_at, updated_at`,
		p.ID, p.Nome, p.CPF, p.DataNascimento, p.Telefone, p.Endereco, p.Observacoes, p.Ativo).
		Scan(&p.ResponsavelID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update pessoa %d: %w", p.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeletePessoa(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pessoas WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete pessoa %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TransferPessoas(ctx context.Context, ids []int64, from, to string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`UPDATE pessoas SET responsavel_id=$3, updated_at=now()
		 WHERE id = ANY($1) AND responsavel_id=$2
		 RETURNING id`,
		ids, from, to)
	if err != nil {
		return 0, fmt.Errorf("transfer pessoas: %w", err)
	}
	moved, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("transfer pessoas: %w", err)
	}
	if len(moved) > 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO transferencias (pessoa_id, de_responsavel, para_responsavel)
			 SELECT unnest($1::bigint[]), $2, $3`,
			moved, from, to)
		if err != nil {
			return 0, fmt.Errorf("record transfer: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transfer: %w", err)
	}
	return int64(len(moved)), nil
}
