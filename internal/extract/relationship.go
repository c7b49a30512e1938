// Package extract turns the apoiadores_emendas link file into distinct
// Supporter and Amendment records plus their junction rows and a proposal
// -> program link map, deduplicating as it goes. The map-based dedup idiom
// is grounded on the teacher's upsertDatasetsAndEdges
// (internal/storage/lineage_store.go), which deduplicates dataset/edge
// pairs within a single event the same way.
package extract

import (
	"strconv"
	"strings"

	"github.com/snak3gh0st/emendas-etl/internal/domain"
	"github.com/snak3gh0st/emendas-etl/internal/normalize"
	"github.com/snak3gh0st/emendas-etl/internal/validate"
)

// Result holds everything the Relationship Extractor derives from one pass
// over the link table.
type Result struct {
	Supporters         []domain.Supporter
	Amendments         []domain.Amendment
	ProposalSupporters []domain.ProposalSupporter
	ProposalAmendments []domain.ProposalAmendment
	ProgramLinks       map[string]string // proposal source_id -> program source_id
	Errors             []validate.RowError
}

// Relationships extracts distinct entities and junctions from the link
// table's rows.
func Relationships(rows [][]string, mapping normalize.Mapping) Result {
	result := Result{ProgramLinks: make(map[string]string)}

	seenSupporters := make(map[string]bool)
	seenAmendments := make(map[string]bool)
	seenPropSupp := make(map[string]bool)
	seenPropAmend := make(map[string]bool)

	for i, row := range rows {
		proposalID := mapping.Get(row, normalize.FieldSourceID)
		if proposalID == "" {
			result.Errors = append(result.Errors, validate.RowError{RowIndex: i, Reason: "relationship row missing proposal id"})

			continue
		}

		if programID := mapping.Get(row, normalize.FieldProgramaID); programID != "" {
			if _, exists := result.ProgramLinks[proposalID]; !exists {
				result.ProgramLinks[proposalID] = programID
			}
		}

		parlamentar := normalizeParlamentar(mapping.Get(row, normalize.FieldParlamentar))
		amendmentNum := mapping.Get(row, normalize.FieldAmendmentNum)

		if parlamentar == "" && amendmentNum == "" {
			result.Errors = append(result.Errors, validate.RowError{RowIndex: i, Reason: "relationship row missing both supporter and amendment"})

			continue
		}

		var supporterKey string

		if parlamentar != "" {
			supporterKey = domain.SupporterKey(parlamentar)

			if !seenSupporters[supporterKey] {
				seenSupporters[supporterKey] = true
				result.Supporters = append(result.Supporters, domain.Supporter{
					Key:         supporterKey,
					Parlamentar: parlamentar,
				})
			}

			junctionKey := proposalID + "|" + supporterKey
			if !seenPropSupp[junctionKey] {
				seenPropSupp[junctionKey] = true
				result.ProposalSupporters = append(result.ProposalSupporters, domain.ProposalSupporter{
					PropostaSourceID: proposalID,
					SupporterKey:     supporterKey,
				})
			}
		}

		if amendmentNum != "" {
			if !seenAmendments[amendmentNum] {
				seenAmendments[amendmentNum] = true

				amendment := domain.Amendment{
					Numero: amendmentNum,
					Autor:  mapping.Get(row, normalize.FieldAmendmentAutor),
					Tipo:   mapping.Get(row, normalize.FieldAmendmentTipo),
				}

				if raw := mapping.Get(row, normalize.FieldAmendmentValor); raw != "" {
					if v, err := parseMonetary(raw); err == nil {
						amendment.Valor = v
					}
				}

				if raw := mapping.Get(row, normalize.FieldAmendmentAno); raw != "" {
					if y, err := strconv.Atoi(raw); err == nil {
						amendment.Ano = y
					}
				}

				result.Amendments = append(result.Amendments, amendment)
			}

			junctionKey := proposalID + "|" + amendmentNum
			if !seenPropAmend[junctionKey] {
				seenPropAmend[junctionKey] = true
				result.ProposalAmendments = append(result.ProposalAmendments, domain.ProposalAmendment{
					PropostaSourceID: proposalID,
					AmendmentNumero:  amendmentNum,
				})
			}
		}
	}

	return result
}

func normalizeParlamentar(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func parseMonetary(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(raw, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	return strconv.ParseFloat(cleaned, 64)
}
