package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/snak3gh0st/emendas-etl/internal/domain"
	"github.com/snak3gh0st/emendas-etl/internal/dryrun"
	"github.com/snak3gh0st/emendas-etl/internal/storage"
)

// loadOnce runs LOAD, AGGREGATE, and RECONCILE inside one transaction and
// commits. Any error rolls the transaction back; the caller decides whether
// to retry based on isTransient.
func (o *Orchestrator) loadOnce(
	ctx context.Context, runID uuid.UUID, data dryrun.ParsedData,
) (storage.LoadCounts, []string, error) {
	var total storage.LoadCounts

	tx, err := o.conn.BeginTx(ctx, nil)
	if err != nil {
		return total, nil, fmt.Errorf("begin transaction: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	loader := storage.NewLoader(tx)
	lineage := storage.NewLineageRecorder(tx, o.cfg.Lineage.PipelineVersion, runID)
	aggregator := storage.NewAggregator(tx)

	runDate := data.ExtractionDate

	if c, err := loader.LoadPrograms(ctx, data.Programs, runDate); err != nil {
		return total, nil, err
	} else {
		total.Add(c)
	}

	if c, err := loader.LoadProponents(ctx, data.Proponents, runDate); err != nil {
		return total, nil, err
	} else {
		total.Add(c)
	}

	if c, err := loader.LoadProposals(ctx, data.Proposals, runDate); err != nil {
		return total, nil, err
	} else {
		total.Add(c)
	}

	if c, err := loader.LoadSupporters(ctx, data.Supporters, runDate); err != nil {
		return total, nil, err
	} else {
		total.Add(c)
	}

	if c, err := loader.LoadAmendments(ctx, data.Amendments, runDate); err != nil {
		return total, nil, err
	} else {
		total.Add(c)
	}

	if c, err := loader.LoadProposalSupporters(ctx, data.ProposalSupporters, runDate); err != nil {
		return total, nil, err
	} else {
		total.Add(c)
	}

	if c, err := loader.LoadProposalAmendments(ctx, data.ProposalAmendments, runDate); err != nil {
		return total, nil, err
	} else {
		total.Add(c)
	}

	if err := loader.ResolveProgramLinks(ctx, data.ProgramLinks); err != nil {
		return total, nil, err
	}

	if ctx.Err() != nil {
		return total, nil, ctx.Err()
	}

	if err := o.recordLineage(ctx, lineage, data); err != nil {
		return total, nil, err
	}

	if ctx.Err() != nil {
		return total, nil, ctx.Err()
	}

	if err := aggregator.RecomputeProponentAggregates(ctx); err != nil {
		return total, nil, err
	}

	if ctx.Err() != nil {
		return total, nil, ctx.Err()
	}

	warnings := o.reconcileFileGroups(ctx, lineage, data)

	if err := tx.Commit(); err != nil {
		return total, nil, fmt.Errorf("commit: %w", err)
	}

	committed = true

	return total, warnings, nil
}

// recordLineage appends one LineageRecord per base-entity row loaded in
// this run.
func (o *Orchestrator) recordLineage(ctx context.Context, lineage *storage.LineageRecorder, data dryrun.ParsedData) error {
	programFile := filePathOrBase(data, "programas")
	proposalFile := filePathOrBase(data, "propostas")
	linkFile := filePathOrBase(data, "apoiadores_emendas")

	for _, p := range data.Programs {
		attrs := map[string]any{"nome": p.Nome, "orgao": p.Orgao}
		if err := lineage.Record(ctx, domain.EntityProgram, p.SourceID, programFile, data.ExtractionDate, attrs); err != nil {
			return err
		}
	}

	for _, p := range data.Proposals {
		attrs := map[string]any{
			"titulo": p.Titulo, "valor_global": p.ValorGlobal, "estado": p.Estado,
			"municipio": p.Municipio, "situacao": p.Situacao,
		}
		if err := lineage.Record(ctx, domain.EntityProposal, p.SourceID, proposalFile, data.ExtractionDate, attrs); err != nil {
			return err
		}
	}

	for _, p := range data.Proponents {
		attrs := map[string]any{"nome": p.Nome, "is_osc": p.IsOSC, "natureza_juridica": p.NaturezaJuridica}
		if err := lineage.Record(ctx, domain.EntityProponent, p.CNPJ, proposalFile, data.ExtractionDate, attrs); err != nil {
			return err
		}
	}

	for _, s := range data.Supporters {
		attrs := map[string]any{"nome_parlamentar": s.Parlamentar}
		if err := lineage.Record(ctx, domain.EntitySupporter, s.Key, linkFile, data.ExtractionDate, attrs); err != nil {
			return err
		}
	}

	for _, a := range data.Amendments {
		attrs := map[string]any{"autor": a.Autor, "valor": a.Valor, "tipo": a.Tipo, "ano": a.Ano}
		if err := lineage.Record(ctx, domain.EntityAmendment, a.Numero, linkFile, data.ExtractionDate, attrs); err != nil {
			return err
		}
	}

	for _, r := range data.ProposalSupporters {
		key := r.PropostaSourceID + "|" + r.SupporterKey
		attrs := map[string]any{"proposta_source_id": r.PropostaSourceID, "supporter_key": r.SupporterKey}
		if err := lineage.Record(ctx, domain.EntityProposalSupporter, key, linkFile, data.ExtractionDate, attrs); err != nil {
			return err
		}
	}

	for _, r := range data.ProposalAmendments {
		key := r.PropostaSourceID + "|" + r.AmendmentNumero
		attrs := map[string]any{"proposta_source_id": r.PropostaSourceID, "emenda_numero": r.AmendmentNumero}
		if err := lineage.Record(ctx, domain.EntityProposalAmendment, key, linkFile, data.ExtractionDate, attrs); err != nil {
			return err
		}
	}

	return nil
}

// reconcileFileGroups compares each parsed file's accepted/raw row counts
// against its loaded lineage count, returning human-readable warnings for
// any breach. A breach never fails the run.
func (o *Orchestrator) reconcileFileGroups(ctx context.Context, lineage *storage.LineageRecorder, data dryrun.ParsedData) []string {
	var warnings []string

	for base, counts := range data.FileRowCounts {
		loaded, err := lineage.CountForSourceFile(ctx, counts.Path)
		if err != nil {
			o.logger.Error("reconciliation count failed", slog.String("error", err.Error()), slog.String("file", base))

			continue
		}

		result := o.reconciler.Reconcile(counts.Path, int64(counts.AcceptedRows), int64(counts.RawRows), loaded)
		if result.ToleranceBreach {
			warnings = append(warnings, fmt.Sprintf(
				"reconciliation: %s discrepancy %d/%d (%.1f%%) exceeds tolerance",
				base, result.Discrepancy, result.RawRowCount, result.DiscrepancyRatio*100,
			))
		}
	}

	return warnings
}

func filePathOrBase(data dryrun.ParsedData, base string) string {
	if c, ok := data.FileRowCounts[base]; ok {
		return c.Path
	}

	return base
}
