package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/snak3gh0st/emendas-etl/internal/domain"
)

// LoadCounts reports how many rows each upsert affected, split by insert vs.
// update using the `xmax = 0` trick (a row just inserted in this statement
// has xmax = 0; a row that matched ON CONFLICT and updated does not).
type LoadCounts struct {
	Inserted int64
	Updated  int64
}

// Add accumulates another LoadCounts into c.
func (c *LoadCounts) Add(other LoadCounts) {
	c.Inserted += other.Inserted
	c.Updated += other.Updated
}

// Loader performs the dependency-ordered upserts of a single run within one
// transaction, owned by the Orchestrator (internal/storage/types.go,
// internal/storage/lineage_store.go's BeginTx/Commit/Rollback shape).
type Loader struct {
	tx *sql.Tx
}

// NewLoader wraps an open transaction. The Orchestrator owns the
// transaction's lifetime (commit or rollback); the Loader never calls
// either.
func NewLoader(tx *sql.Tx) *Loader {
	return &Loader{tx: tx}
}

// LoadPrograms upserts Program rows, keyed by source_id. runDate stamps
// every row's extraction_date; it is the run's date, not a per-record field.
func (l *Loader) LoadPrograms(
	ctx context.Context, programs []domain.Program, runDate time.Time,
) (LoadCounts, error) {
	var total LoadCounts

	const query = `
		INSERT INTO programas (source_id, nome, orgao, extraction_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id) DO UPDATE SET
			nome = EXCLUDED.nome,
			orgao = EXCLUDED.orgao,
			extraction_date = EXCLUDED.extraction_date,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	for _, p := range programs {
		counts, err := l.execCounting(ctx, query, p.SourceID, p.Nome, p.Orgao, dateOnly(runDate))
		if err != nil {
			return total, fmt.Errorf("load program %q: %w", p.SourceID, err)
		}

		total.Add(counts)
	}

	return total, nil
}

// LoadProposals upserts Proposal rows, keyed by source_id. Program and
// proponent references are soft. On insert, the record's values are written
// as-is (an empty value becomes NULL); on conflict, programa_source_id is
// left unchanged and proponente_cnpj is replaced only by a non-empty value.
// Program-link resolution (only filling a NULL) happens in
// ResolveProgramLinks after the base upsert.
func (l *Loader) LoadProposals(
	ctx context.Context, proposals []domain.Proposal, runDate time.Time,
) (LoadCounts, error) {
	var total LoadCounts

	const query = `
		INSERT INTO propostas (
			source_id, titulo, valor_global, data_publicacao, estado,
			municipio, situacao, programa_source_id, proponente_cnpj, extraction_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
		ON CONFLICT (source_id) DO UPDATE SET
			titulo = EXCLUDED.titulo,
			valor_global = EXCLUDED.valor_global,
			data_publicacao = EXCLUDED.data_publicacao,
			estado = EXCLUDED.estado,
			municipio = EXCLUDED.municipio,
			situacao = EXCLUDED.situacao,
			proponente_cnpj = COALESCE(EXCLUDED.proponente_cnpj, propostas.proponente_cnpj),
			extraction_date = EXCLUDED.extraction_date,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	for _, p := range proposals {
		counts, err := l.execCounting(ctx, query,
			p.SourceID, p.Titulo, p.ValorGlobal, dateOrNil(p.DataPublicacao), p.Estado,
			p.Municipio, p.Situacao, p.ProgramaSourceID, p.ProponenteCNPJ, dateOnly(runDate),
		)
		if err != nil {
			return total, fmt.Errorf("load proposal %q: %w", p.SourceID, err)
		}

		total.Add(counts)
	}

	return total, nil
}

// LoadSupporters upserts Supporter rows, keyed by the derived supporter_key.
func (l *Loader) LoadSupporters(
	ctx context.Context, supporters []domain.Supporter, runDate time.Time,
) (LoadCounts, error) {
	var total LoadCounts

	const query = `
		INSERT INTO apoiadores (supporter_key, nome_parlamentar, extraction_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (supporter_key) DO UPDATE SET
			nome_parlamentar = EXCLUDED.nome_parlamentar,
			extraction_date = EXCLUDED.extraction_date,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	for _, s := range supporters {
		counts, err := l.execCounting(ctx, query, s.Key, s.Parlamentar, dateOnly(runDate))
		if err != nil {
			return total, fmt.Errorf("load supporter %q: %w", s.Key, err)
		}

		total.Add(counts)
	}

	return total, nil
}

// LoadAmendments upserts Amendment rows, keyed by numero.
func (l *Loader) LoadAmendments(
	ctx context.Context, amendments []domain.Amendment, runDate time.Time,
) (LoadCounts, error) {
	var total LoadCounts

	const query = `
		INSERT INTO emendas (numero, autor, valor, tipo, ano, extraction_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (numero) DO UPDATE SET
			autor = EXCLUDED.autor,
			valor = EXCLUDED.valor,
			tipo = EXCLUDED.tipo,
			ano = EXCLUDED.ano,
			extraction_date = EXCLUDED.extraction_date,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	for _, a := range amendments {
		counts, err := l.execCounting(ctx, query, a.Numero, a.Autor, a.Valor, a.Tipo, a.Ano, dateOnly(runDate))
		if err != nil {
			return total, fmt.Errorf("load amendment %q: %w", a.Numero, err)
		}

		total.Add(counts)
	}

	return total, nil
}

// LoadProposalSupporters upserts the proposal<->supporter junction, keyed by
// the compound (proposta_source_id, supporter_key).
func (l *Loader) LoadProposalSupporters(
	ctx context.Context, rows []domain.ProposalSupporter, runDate time.Time,
) (LoadCounts, error) {
	var total LoadCounts

	const query = `
		INSERT INTO proposta_apoiadores (proposta_source_id, supporter_key, extraction_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (proposta_source_id, supporter_key) DO UPDATE SET
			extraction_date = EXCLUDED.extraction_date,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	for _, r := range rows {
		counts, err := l.execCounting(ctx, query, r.PropostaSourceID, r.SupporterKey, dateOnly(runDate))
		if err != nil {
			return total, fmt.Errorf(
				"load proposal_supporter (%s, %s): %w", r.PropostaSourceID, r.SupporterKey, err,
			)
		}

		total.Add(counts)
	}

	return total, nil
}

// LoadProposalAmendments upserts the proposal<->amendment junction, keyed by
// the compound (proposta_source_id, emenda_numero).
func (l *Loader) LoadProposalAmendments(
	ctx context.Context, rows []domain.ProposalAmendment, runDate time.Time,
) (LoadCounts, error) {
	var total LoadCounts

	const query = `
		INSERT INTO proposta_emendas (proposta_source_id, emenda_numero, extraction_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (proposta_source_id, emenda_numero) DO UPDATE SET
			extraction_date = EXCLUDED.extraction_date,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	for _, r := range rows {
		counts, err := l.execCounting(ctx, query, r.PropostaSourceID, r.AmendmentNumero, dateOnly(runDate))
		if err != nil {
			return total, fmt.Errorf(
				"load proposal_amendment (%s, %s): %w", r.PropostaSourceID, r.AmendmentNumero, err,
			)
		}

		total.Add(counts)
	}

	return total, nil
}

// LoadProponents upserts Proponent rows, keyed by normalized cnpj. Aggregate
// columns are intentionally not written here: the Aggregator recomputes them
// in-store after the base upserts (§4.8).
func (l *Loader) LoadProponents(
	ctx context.Context, proponents []domain.Proponent, runDate time.Time,
) (LoadCounts, error) {
	var total LoadCounts

	const query = `
		INSERT INTO proponentes (
			cnpj, nome, natureza_juridica, is_osc, estado, municipio, cep, endereco, bairro, extraction_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (cnpj) DO UPDATE SET
			nome = EXCLUDED.nome,
			natureza_juridica = EXCLUDED.natureza_juridica,
			is_osc = EXCLUDED.is_osc,
			estado = EXCLUDED.estado,
			municipio = EXCLUDED.municipio,
			cep = EXCLUDED.cep,
			endereco = EXCLUDED.endereco,
			bairro = EXCLUDED.bairro,
			extraction_date = EXCLUDED.extraction_date,
			updated_at = now()
		RETURNING (xmax = 0) AS inserted`

	for _, p := range proponents {
		counts, err := l.execCounting(ctx, query,
			p.CNPJ, p.Nome, p.NaturezaJuridica, p.IsOSC, p.Estado, p.Municipio,
			p.CEP, p.Endereco, p.Bairro, dateOnly(runDate),
		)
		if err != nil {
			return total, fmt.Errorf("load proponent %q: %w", p.CNPJ, err)
		}

		total.Add(counts)
	}

	return total, nil
}

// ResolveProgramLinks fills propostas.programa_source_id for rows where it
// is currently NULL, per Open Question #2: an already-set reference is
// never overwritten. links maps proposta_source_id -> programa_source_id.
func (l *Loader) ResolveProgramLinks(ctx context.Context, links map[string]string) error {
	const query = `
		UPDATE propostas
		SET programa_source_id = $2, updated_at = now()
		WHERE source_id = $1 AND programa_source_id IS NULL`

	for propostaID, programaID := range links {
		if _, err := l.tx.ExecContext(ctx, query, propostaID, programaID); err != nil {
			return fmt.Errorf("resolve program link for proposal %q: %w", propostaID, err)
		}
	}

	return nil
}

// execCounting runs an upsert that RETURNING (xmax = 0) AS inserted and
// folds the single boolean result into a LoadCounts.
func (l *Loader) execCounting(ctx context.Context, query string, args ...any) (LoadCounts, error) {
	var inserted bool

	if err := l.tx.QueryRowContext(ctx, query, args...).Scan(&inserted); err != nil {
		return LoadCounts{}, err
	}

	if inserted {
		return LoadCounts{Inserted: 1}, nil
	}

	return LoadCounts{Updated: 1}, nil
}

// dateOnly truncates t to a calendar date for the DATE column.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dateOrNil converts a zero time.Time (field absent in source) to nil so the
// DATE column stores SQL NULL rather than the Go zero date.
func dateOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return dateOnly(t)
}
