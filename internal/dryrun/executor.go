// Package dryrun composes the encoding, tabular, normalize, validate,
// extract, and proponent stages (C1-C6) into a single pass over one dated
// raw directory. It is the only place that walks a directory's three
// source files end to end; both the `run --dry-run` command and the
// Orchestrator's live run call it, so there is exactly one parsing path.
package dryrun

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/snak3gh0st/emendas-etl/internal/domain"
	"github.com/snak3gh0st/emendas-etl/internal/extract"
	"github.com/snak3gh0st/emendas-etl/internal/normalize"
	"github.com/snak3gh0st/emendas-etl/internal/proponent"
	"github.com/snak3gh0st/emendas-etl/internal/tabular"
	"github.com/snak3gh0st/emendas-etl/internal/validate"
)

// File base names under a dated raw directory.
const (
	fileProgramas         = "programas"
	filePropostas         = "propostas"
	fileApoiadoresEmendas = "apoiadores_emendas"
)

// candidateExtensions are tried in order when locating a file base name.
var candidateExtensions = []string{".xlsx", ".csv", ".txt"}

// FileRowCount tracks one source file's row counts for the Reconciler: rows
// read before validation (RawRows) and rows that passed it (AcceptedRows).
type FileRowCount struct {
	Path         string
	RawRows      int
	AcceptedRows int
}

// ParsedData is everything C1-C6 produced from one dated directory, ready
// for the Loader.
type ParsedData struct {
	SourceDir      string
	ExtractionDate time.Time

	Programs           []domain.Program
	Proposals          []domain.Proposal
	Supporters         []domain.Supporter
	Amendments         []domain.Amendment
	ProposalSupporters []domain.ProposalSupporter
	ProposalAmendments []domain.ProposalAmendment
	Proponents         []domain.Proponent
	ProgramLinks       map[string]string

	FileRowCounts map[string]FileRowCount

	// proponentSources carries the propostas rows' raw proponent columns
	// through to buildProponents; it never leaves this package.
	proponentSources []proponent.ProposalSource
}

// Report is the user-facing preview shape for `run --dry-run`.
type Report struct {
	EntitiesFound      map[string]int
	ValidationErrors   []string
	RelationshipsFound map[string]int
	Warnings           []string
}

// Execute reads, normalizes, validates, and extracts relationships from the
// three known files under dirPath. Missing or malformed individual files
// are recorded as warnings, never as a returned error: per-file problems
// are quarantined at this layer so the caller can still load whatever
// parsed cleanly. Execute only returns an error when dirPath itself cannot
// be read.
func Execute(dirPath string) (ParsedData, Report, error) {
	if _, err := os.Stat(dirPath); err != nil {
		return ParsedData{}, Report{}, fmt.Errorf("dryrun: raw directory %q: %w", dirPath, err)
	}

	data := ParsedData{
		SourceDir:      dirPath,
		ExtractionDate: parseDirDate(dirPath),
		ProgramLinks:   make(map[string]string),
		FileRowCounts:  make(map[string]FileRowCount),
	}

	report := Report{
		EntitiesFound:      make(map[string]int),
		RelationshipsFound: make(map[string]int),
	}

	v := validate.New()

	parsePrograms(dirPath, &data, &report, v)
	parsePropostas(dirPath, &data, &report, v)
	parseApoiadoresEmendas(dirPath, &data, &report)
	buildProponents(&data, &report)

	report.EntitiesFound["programas"] = len(data.Programs)
	report.EntitiesFound["propostas"] = len(data.Proposals)
	report.EntitiesFound["apoiadores"] = len(data.Supporters)
	report.EntitiesFound["emendas"] = len(data.Amendments)
	report.EntitiesFound["proponentes"] = len(data.Proponents)
	report.RelationshipsFound["proposta_apoiadores"] = len(data.ProposalSupporters)
	report.RelationshipsFound["proposta_emendas"] = len(data.ProposalAmendments)
	report.RelationshipsFound["programa_links"] = len(data.ProgramLinks)

	return data, report, nil
}

func parsePrograms(dirPath string, data *ParsedData, report *Report, v *validate.Validator) {
	path, ok := findFile(dirPath, fileProgramas)
	if !ok {
		report.Warnings = append(report.Warnings, fileProgramas+": file not present, skipped")

		return
	}

	table, err := tabular.Read(path)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", fileProgramas, err))

		return
	}

	mapping, err := normalize.Resolve(table.Header, normalize.ProgramAliases, normalize.ProgramRequired)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", fileProgramas, err))

		return
	}

	result := v.Programs(table.Rows, mapping)
	data.Programs = result.Valid

	for _, e := range result.Errors {
		report.ValidationErrors = append(report.ValidationErrors, fmt.Sprintf("%s: %s", fileProgramas, e))
	}

	data.FileRowCounts[fileProgramas] = FileRowCount{
		Path: path, RawRows: len(table.Rows), AcceptedRows: len(result.Valid),
	}
}

func parsePropostas(dirPath string, data *ParsedData, report *Report, v *validate.Validator) {
	path, ok := findFile(dirPath, filePropostas)
	if !ok {
		report.Warnings = append(report.Warnings, filePropostas+": file not present, skipped")

		return
	}

	table, err := tabular.Read(path)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", filePropostas, err))

		return
	}

	mapping, err := normalize.Resolve(table.Header, normalize.ProposalAliases, normalize.ProposalRequired)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", filePropostas, err))

		return
	}

	result := v.Proposals(table.Rows, mapping, data.ExtractionDate)
	data.Proposals = result.Valid

	for _, e := range result.Errors {
		report.ValidationErrors = append(report.ValidationErrors, fmt.Sprintf("%s: %s", filePropostas, e))
	}

	data.FileRowCounts[filePropostas] = FileRowCount{
		Path: path, RawRows: len(table.Rows), AcceptedRows: len(result.Valid),
	}

	// Proponent attributes ride along on the propostas row, not the link
	// file; collect them here so C6 has a source row per valid proposal.
	data.proponentSources = make([]proponent.ProposalSource, 0, len(table.Rows))

	for _, row := range table.Rows {
		sourceID := mapping.Get(row, normalize.FieldSourceID)
		if sourceID == "" {
			continue
		}

		data.proponentSources = append(data.proponentSources, proponent.NewSource(
			sourceID,
			mapping.Get(row, normalize.FieldCNPJ),
			mapping.Get(row, normalize.FieldNomeProponente),
			mapping.Get(row, normalize.FieldNaturezaJuridica),
			mapping.Get(row, normalize.FieldEstado),
			mapping.Get(row, normalize.FieldMunicipio),
			mapping.Get(row, normalize.FieldCEP),
			mapping.Get(row, normalize.FieldEndereco),
			mapping.Get(row, normalize.FieldBairro),
		))
	}
}

func parseApoiadoresEmendas(dirPath string, data *ParsedData, report *Report) {
	path, ok := findFile(dirPath, fileApoiadoresEmendas)
	if !ok {
		report.Warnings = append(report.Warnings, fileApoiadoresEmendas+": file not present, skipped")

		return
	}

	table, err := tabular.Read(path)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", fileApoiadoresEmendas, err))

		return
	}

	mapping, err := normalize.Resolve(table.Header, normalize.LinkAliases, normalize.LinkRequired)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%s: %s", fileApoiadoresEmendas, err))

		return
	}

	result := extract.Relationships(table.Rows, mapping)
	data.Supporters = result.Supporters
	data.Amendments = result.Amendments
	data.ProposalSupporters = result.ProposalSupporters
	data.ProposalAmendments = result.ProposalAmendments
	data.ProgramLinks = result.ProgramLinks

	for _, e := range result.Errors {
		report.ValidationErrors = append(report.ValidationErrors, fmt.Sprintf("%s: %s", fileApoiadoresEmendas, e))
	}

	// The link file loads two distinct entity kinds (supporters and
	// amendments) plus two junctions; AcceptedRows counts junction rows
	// written. The Reconciler carries it on its result, but measures the
	// file's loaded lineage count against RawRows.
	accepted := len(result.ProposalSupporters) + len(result.ProposalAmendments)
	data.FileRowCounts[fileApoiadoresEmendas] = FileRowCount{
		Path: path, RawRows: len(table.Rows), AcceptedRows: accepted,
	}
}

// buildProponents runs C6 over the proponent-attribute columns collected
// while parsing propostas, writing the resolved CNPJ back onto each valid
// Proposal.
func buildProponents(data *ParsedData, report *Report) {
	if len(data.proponentSources) == 0 {
		return
	}

	built := proponent.Build(data.proponentSources)
	data.Proponents = built.Proponents

	for i := range data.Proposals {
		if cnpj, ok := built.ProposalCNPJ[data.Proposals[i].SourceID]; ok {
			data.Proposals[i].ProponenteCNPJ = cnpj
		}
	}

	skipped := len(data.proponentSources) - len(built.ProposalCNPJ)
	if skipped > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("proponentes: %d proposal row(s) had no valid cnpj and were not linked to a proponent", skipped))
	}
}

// findFile locates dirPath/base.<ext> for the first extension that exists.
func findFile(dirPath, base string) (string, bool) {
	for _, ext := range candidateExtensions {
		candidate := filepath.Join(dirPath, base+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}

// parseDirDate reads the YYYY-MM-DD directory name as the run's extraction
// date. A directory that doesn't follow the convention yields a zero
// time.Time, which the caller treats as "unknown" rather than failing.
func parseDirDate(dirPath string) time.Time {
	t, err := time.Parse("2006-01-02", filepath.Base(filepath.Clean(dirPath)))
	if err != nil {
		return time.Time{}
	}

	return t
}
