// Package validate converts normalized table rows into typed domain
// records, partitioning valid records from per-row errors. It mirrors the
// teacher's stateless Validator with per-entity ValidateX methods
// (internal/ingestion/validator.go), generalized from OpenLineage events to
// the four government-data entities.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/snak3gh0st/emendas-etl/internal/domain"
	"github.com/snak3gh0st/emendas-etl/internal/normalize"
)

// RowError records why a single input row was rejected, with enough
// context to log it without re-reading the source file.
type RowError struct {
	RowIndex int
	Reason   string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.RowIndex, e.Reason)
}

// Validator is stateless; one instance is shared across a run.
type Validator struct{}

// New constructs a Validator.
func New() *Validator {
	return &Validator{}
}

// ProposalResult partitions a propostas table into valid records and
// per-row errors.
type ProposalResult struct {
	Valid  []domain.Proposal
	Errors []RowError
}

// Proposals validates every row of a normalized propostas table.
func (v *Validator) Proposals(
	rows [][]string, mapping normalize.Mapping, extractionDate time.Time,
) ProposalResult {
	var result ProposalResult

	for i, row := range rows {
		p := domain.Proposal{
			SourceID:         mapping.Get(row, normalize.FieldSourceID),
			Titulo:           mapping.Get(row, normalize.FieldTitulo),
			Estado:           strings.ToUpper(mapping.Get(row, normalize.FieldEstado)),
			Municipio:        mapping.Get(row, normalize.FieldMunicipio),
			Situacao:         mapping.Get(row, normalize.FieldSituacao),
			ProgramaSourceID: mapping.Get(row, normalize.FieldProgramaID),
			ExtractionDate:   extractionDate,
		}

		if raw := mapping.Get(row, normalize.FieldValorGlobal); raw != "" {
			val, err := parseMonetary(raw)
			if err != nil {
				result.Errors = append(result.Errors, RowError{i, "invalid valor_global: " + err.Error()})

				continue
			}

			p.ValorGlobal = val
		}

		if raw := mapping.Get(row, normalize.FieldDataPublicacao); raw != "" {
			dt, err := parseDate(raw)
			if err != nil {
				result.Errors = append(result.Errors, RowError{i, "invalid data_publicacao: " + err.Error()})

				continue
			}

			p.DataPublicacao = dt
		}

		if err := p.Validate(); err != nil {
			result.Errors = append(result.Errors, RowError{i, err.Error()})

			continue
		}

		result.Valid = append(result.Valid, p)
	}

	return result
}

// ProgramResult partitions a programas table into valid records and
// per-row errors.
type ProgramResult struct {
	Valid  []domain.Program
	Errors []RowError
}

// Programs validates every row of a normalized programas table.
func (v *Validator) Programs(rows [][]string, mapping normalize.Mapping) ProgramResult {
	var result ProgramResult

	for i, row := range rows {
		p := domain.Program{
			SourceID: mapping.Get(row, normalize.FieldSourceID),
			Nome:     mapping.Get(row, normalize.FieldProgramaNome),
			Orgao:    mapping.Get(row, normalize.FieldProgramaOrgao),
		}

		if err := p.Validate(); err != nil {
			result.Errors = append(result.Errors, RowError{i, err.Error()})

			continue
		}

		result.Valid = append(result.Valid, p)
	}

	return result
}

func parseMonetary(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(raw, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	return strconv.ParseFloat(cleaned, 64)
}

var dateLayouts = []string{"02/01/2006", "2006-01-02", time.RFC3339}

func parseDate(raw string) (time.Time, error) {
	var lastErr error

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, lastErr
}
