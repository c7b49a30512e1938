package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Aggregator recomputes Proponent's aggregate columns in-store after the
// Loader's base upserts, per §4.8: aggregates overwrite previous values and
// are never partially updated.
type Aggregator struct {
	tx *sql.Tx
}

// NewAggregator wraps the same open transaction the Loader writes through.
func NewAggregator(tx *sql.Tx) *Aggregator {
	return &Aggregator{tx: tx}
}

// RecomputeProponentAggregates recomputes total_propostas, total_emendas,
// and valor_total_emendas for every proponent, each in one SQL statement so
// joined data never needs to round-trip through the process.
func (a *Aggregator) RecomputeProponentAggregates(ctx context.Context) error {
	const totalPropostas = `
		UPDATE proponentes p
		SET total_propostas = sub.count, updated_at = now()
		FROM (
			SELECT proponente_cnpj AS cnpj, count(*) AS count
			FROM propostas
			WHERE proponente_cnpj IS NOT NULL
			GROUP BY proponente_cnpj
		) sub
		WHERE p.cnpj = sub.cnpj`

	if _, err := a.tx.ExecContext(ctx, totalPropostas); err != nil {
		return fmt.Errorf("recompute total_propostas: %w", err)
	}

	const resetPropostasForOrphans = `
		UPDATE proponentes
		SET total_propostas = 0, updated_at = now()
		WHERE cnpj NOT IN (SELECT proponente_cnpj FROM propostas WHERE proponente_cnpj IS NOT NULL)`

	if _, err := a.tx.ExecContext(ctx, resetPropostasForOrphans); err != nil {
		return fmt.Errorf("reset total_propostas for proponents with no proposals: %w", err)
	}

	const emendaAggregates = `
		UPDATE proponentes p
		SET
			total_emendas = sub.total_emendas,
			valor_total_emendas = sub.valor_total,
			updated_at = now()
		FROM (
			SELECT
				pr.proponente_cnpj AS cnpj,
				count(DISTINCT pe.emenda_numero) AS total_emendas,
				coalesce(sum(e.valor), 0) AS valor_total
			FROM propostas pr
			JOIN proposta_emendas pe ON pe.proposta_source_id = pr.source_id
			JOIN emendas e ON e.numero = pe.emenda_numero
			WHERE pr.proponente_cnpj IS NOT NULL
			GROUP BY pr.proponente_cnpj
		) sub
		WHERE p.cnpj = sub.cnpj`

	if _, err := a.tx.ExecContext(ctx, emendaAggregates); err != nil {
		return fmt.Errorf("recompute total_emendas/valor_total_emendas: %w", err)
	}

	const resetEmendasForOrphans = `
		UPDATE proponentes
		SET total_emendas = 0, valor_total_emendas = 0, updated_at = now()
		WHERE cnpj NOT IN (
			SELECT pr.proponente_cnpj
			FROM propostas pr
			JOIN proposta_emendas pe ON pe.proposta_source_id = pr.source_id
			WHERE pr.proponente_cnpj IS NOT NULL
		)`

	if _, err := a.tx.ExecContext(ctx, resetEmendasForOrphans); err != nil {
		return fmt.Errorf("reset total_emendas for proponents with no amendments: %w", err)
	}

	return nil
}
