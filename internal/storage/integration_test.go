package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/snak3gh0st/emendas-etl/internal/config"
	"github.com/snak3gh0st/emendas-etl/internal/domain"
)

// setupStorageTest starts a migrated Postgres container and hands back a
// connection the caller can open transactions against.
func setupStorageTest(t *testing.T) *config.TestDatabase {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	return testDB
}

func TestLoaderUpsertIsIdempotentAndTracksInsertVsUpdate(t *testing.T) {
	testDB := setupStorageTest(t)

	ctx := context.Background()
	runDate := time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC)

	tx, err := testDB.Connection.BeginTx(ctx, nil)
	require.NoError(t, err)

	defer tx.Rollback() //nolint:errcheck

	loader := NewLoader(tx)

	programs := []domain.Program{{SourceID: "PROG1", Nome: "Programa Nacional", Orgao: "Ministerio X"}}

	counts, err := loader.LoadPrograms(ctx, programs, runDate)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts.Inserted)
	require.Equal(t, int64(0), counts.Updated)

	programs[0].Nome = "Programa Nacional Renomeado"

	counts, err = loader.LoadPrograms(ctx, programs, runDate)
	require.NoError(t, err)
	require.Equal(t, int64(0), counts.Inserted)
	require.Equal(t, int64(1), counts.Updated)

	var nome string
	require.NoError(t, tx.QueryRowContext(ctx, `SELECT nome FROM programas WHERE source_id = $1`, "PROG1").Scan(&nome))
	require.Equal(t, "Programa Nacional Renomeado", nome)
}

func TestLoaderResolveProgramLinksOnlyFillsNullReference(t *testing.T) {
	testDB := setupStorageTest(t)

	ctx := context.Background()
	runDate := time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC)

	tx, err := testDB.Connection.BeginTx(ctx, nil)
	require.NoError(t, err)

	defer tx.Rollback() //nolint:errcheck

	loader := NewLoader(tx)

	_, err = loader.LoadPrograms(ctx, []domain.Program{
		{SourceID: "PROG1", Nome: "A"}, {SourceID: "PROG2", Nome: "B"},
	}, runDate)
	require.NoError(t, err)

	_, err = loader.LoadProposals(ctx, []domain.Proposal{
		{SourceID: "P1", Titulo: "Obra 1", ProgramaSourceID: "PROG1"},
		{SourceID: "P2", Titulo: "Obra 2"},
	}, runDate)
	require.NoError(t, err)

	require.NoError(t, loader.ResolveProgramLinks(ctx, map[string]string{
		"P1": "PROG2", // already set to PROG1, must not change
		"P2": "PROG2", // currently null, must be filled
	}))

	var p1Program, p2Program string
	require.NoError(t, tx.QueryRowContext(ctx, `SELECT programa_source_id FROM propostas WHERE source_id = $1`, "P1").Scan(&p1Program))
	require.NoError(t, tx.QueryRowContext(ctx, `SELECT programa_source_id FROM propostas WHERE source_id = $1`, "P2").Scan(&p2Program))

	require.Equal(t, "PROG1", p1Program, "an already-set program reference must never be overwritten")
	require.Equal(t, "PROG2", p2Program, "a null program reference must be filled")
}

func TestAggregatorRecomputesProponentTotals(t *testing.T) {
	testDB := setupStorageTest(t)

	ctx := context.Background()
	runDate := time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC)

	tx, err := testDB.Connection.BeginTx(ctx, nil)
	require.NoError(t, err)

	defer tx.Rollback() //nolint:errcheck

	loader := NewLoader(tx)

	const cnpj = "27167477000112"

	_, err = loader.LoadProponents(ctx, []domain.Proponent{{CNPJ: cnpj, Nome: "ONG Alpha"}}, runDate)
	require.NoError(t, err)

	_, err = loader.LoadProposals(ctx, []domain.Proposal{
		{SourceID: "P1", Titulo: "Obra 1", ProponenteCNPJ: cnpj},
		{SourceID: "P2", Titulo: "Obra 2", ProponenteCNPJ: cnpj},
	}, runDate)
	require.NoError(t, err)

	_, err = loader.LoadAmendments(ctx, []domain.Amendment{
		{Numero: "E100", Valor: 10000},
		{Numero: "E101", Valor: 5000},
	}, runDate)
	require.NoError(t, err)

	_, err = loader.LoadProposalAmendments(ctx, []domain.ProposalAmendment{
		{PropostaSourceID: "P1", AmendmentNumero: "E100"},
		{PropostaSourceID: "P2", AmendmentNumero: "E101"},
	}, runDate)
	require.NoError(t, err)

	aggregator := NewAggregator(tx)
	require.NoError(t, aggregator.RecomputeProponentAggregates(ctx))

	var totalPropostas, totalEmendas int64

	var valorTotal float64

	require.NoError(t, tx.QueryRowContext(ctx,
		`SELECT total_propostas, total_emendas, valor_total_emendas FROM proponentes WHERE cnpj = $1`, cnpj,
	).Scan(&totalPropostas, &totalEmendas, &valorTotal))

	require.Equal(t, int64(2), totalPropostas)
	require.Equal(t, int64(2), totalEmendas)
	require.InDelta(t, 15000.0, valorTotal, 0.001)
}

func TestLineageRecorderCountForSourceFileMatchesDistinctKeys(t *testing.T) {
	testDB := setupStorageTest(t)

	ctx := context.Background()
	runID := uuid.New()

	tx, err := testDB.Connection.BeginTx(ctx, nil)
	require.NoError(t, err)

	defer tx.Rollback() //nolint:errcheck

	recorder := NewLineageRecorder(tx, "test-pipeline", runID)

	const sourceFile = "propostas.csv"

	require.NoError(t, recorder.Record(ctx, domain.EntityProposal, "P1", sourceFile, time.Now(), map[string]any{"titulo": "Obra 1"}))
	require.NoError(t, recorder.Record(ctx, domain.EntityProposal, "P2", sourceFile, time.Now(), map[string]any{"titulo": "Obra 2"}))
	// A second lineage row for the same natural key (e.g. a rewritten
	// attribute set within the same run) must not double count.
	require.NoError(t, recorder.Record(ctx, domain.EntityProposal, "P2", sourceFile, time.Now(), map[string]any{"titulo": "Obra 2 revisada"}))

	count, err := recorder.CountForSourceFile(ctx, sourceFile)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	count, err = recorder.CountForSourceFile(ctx, "other_file.csv")
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestReconcilerIntegrationMatchesLineageRecorderCounts(t *testing.T) {
	testDB := setupStorageTest(t)

	ctx := context.Background()
	runID := uuid.New()

	tx, err := testDB.Connection.BeginTx(ctx, nil)
	require.NoError(t, err)

	defer tx.Rollback() //nolint:errcheck

	recorder := NewLineageRecorder(tx, "test-pipeline", runID)

	const sourceFile = "propostas.csv"

	for i := 0; i < 440; i++ {
		key := uuid.New().String()
		require.NoError(t, recorder.Record(ctx, domain.EntityProposal, key, sourceFile, time.Now(), map[string]any{"i": i}))
	}

	loaded, err := recorder.CountForSourceFile(ctx, sourceFile)
	require.NoError(t, err)
	require.Equal(t, int64(440), loaded)

	reconciler := NewReconciler(0.10)
	result := reconciler.Reconcile(sourceFile, 440, 500, loaded)

	require.True(t, result.ToleranceBreach)
	require.InDelta(t, 0.12, result.DiscrepancyRatio, 0.001)
}
