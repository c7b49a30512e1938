// Package proponent builds the deduplicated Proponent dimension from
// Proposal rows: CNPJ normalization and check-digit validation, OSC
// classification, and the back-reference written onto each Proposal.
//
// No CNPJ validation library travels with this pipeline's dependency pack;
// the check-digit algorithm is a narrow, well-known national standard with
// no ecosystem equivalent among the retrieved repos, so it is implemented
// directly here rather than against a library.
package proponent

import (
	"strings"

	"github.com/snak3gh0st/emendas-etl/internal/domain"
)

// cnpjWeightsFirst and cnpjWeightsSecond are the fixed weight sequences for
// the two CNPJ check digits.
var (
	cnpjWeightsFirst  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeCNPJ strips non-digits, left-pads to 14 digits, and validates
// the check digits. Returns "", false for an all-zero or check-digit-
// invalid candidate.
func NormalizeCNPJ(raw string) (string, bool) {
	digits := onlyDigits(raw)
	if digits == "" {
		return "", false
	}

	if len(digits) > 14 {
		return "", false
	}

	digits = strings.Repeat("0", 14-len(digits)) + digits

	if digits == strings.Repeat("0", 14) {
		return "", false
	}

	if !validCheckDigits(digits) {
		return "", false
	}

	return digits, true
}

func onlyDigits(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func validCheckDigits(digits string) bool {
	d := make([]int, 14)
	for i, c := range digits {
		d[i] = int(c - '0')
	}

	first := checkDigit(d[:12], cnpjWeightsFirst)
	if first != d[12] {
		return false
	}

	second := checkDigit(d[:13], cnpjWeightsSecond)

	return second == d[13]
}

func checkDigit(digits []int, weights []int) int {
	sum := 0
	for i, d := range digits {
		sum += d * weights[i]
	}

	rem := sum % 11
	if rem < 2 {
		return 0
	}

	return 11 - rem
}

// naturezaJuridicaGovernoPrefix marks the government range of IBGE CONCLA
// codes, which the OSC classifier excludes even though it shares the
// leading-digit scheme with the non-profit range.
const naturezaJuridicaGovernoPrefix = "1"

// naturezaJuridicaOSCPrefix is the IBGE CONCLA non-profit range.
const naturezaJuridicaOSCPrefix = "3"

// IsOSC classifies a natureza_juridica code as civil-society (OSC) or not.
// Decision (open question #1 in DESIGN.md): codes are matched on their
// leading digit alone, tolerating input with or without the "-N" check
// suffix, because the source data is observed both ways.
func IsOSC(naturezaJuridica string) bool {
	code := strings.TrimSpace(naturezaJuridica)
	if code == "" {
		return false
	}

	if strings.HasPrefix(code, naturezaJuridicaGovernoPrefix) {
		return false
	}

	return strings.HasPrefix(code, naturezaJuridicaOSCPrefix)
}

// BuildResult is the output of deduplicating Proponents from Proposals.
type BuildResult struct {
	Proponents []domain.Proponent
	// ProposalCNPJ maps each Proposal's SourceID to its normalized CNPJ,
	// for the Loader to write back as Proposal.ProponenteCNPJ. Proposals
	// with an invalid or absent CNPJ are simply absent from this map.
	ProposalCNPJ map[string]string
}

// ProposalSource is the subset of Proposal fields the builder reads;
// callers pass the full Proposal, this keeps the builder decoupled from
// which columns carry proponent attributes.
type ProposalSource struct {
	SourceID         string
	CNPJRaw          string
	Nome             string
	NaturezaJuridica string
	Estado           string
	Municipio        string
	CEP              string
	Endereco         string
	Bairro           string
}

// Build deduplicates proponents across the given proposal rows, keeping the
// first complete attribute set observed for each CNPJ.
func Build(sources []ProposalSource) BuildResult {
	result := BuildResult{ProposalCNPJ: make(map[string]string)}

	seen := make(map[string]bool)

	for _, src := range sources {
		cnpj, ok := NormalizeCNPJ(src.CNPJRaw)
		if !ok {
			continue
		}

		result.ProposalCNPJ[src.SourceID] = cnpj

		if seen[cnpj] {
			continue
		}

		seen[cnpj] = true

		result.Proponents = append(result.Proponents, domain.Proponent{
			CNPJ:             cnpj,
			Nome:             src.Nome,
			NaturezaJuridica: src.NaturezaJuridica,
			IsOSC:            IsOSC(src.NaturezaJuridica),
			Estado:           src.Estado,
			Municipio:        src.Municipio,
			CEP:              src.CEP,
			Endereco:         src.Endereco,
			Bairro:           src.Bairro,
		})
	}

	return result
}

// NewSource adapts a raw row's proponent-related columns for Build. It is
// exported so the Dry-Run Executor (internal/dryrun) can construct sources
// from the mapped propostas table without reaching into this package's
// unexported type.
func NewSource(sourceID, cnpjRaw, nome, naturezaJuridica, estado, municipio, cep, endereco, bairro string) ProposalSource {
	return ProposalSource{
		SourceID:         sourceID,
		CNPJRaw:          cnpjRaw,
		Nome:             nome,
		NaturezaJuridica: naturezaJuridica,
		Estado:           estado,
		Municipio:        municipio,
		CEP:              cep,
		Endereco:         endereco,
		Bairro:           bairro,
	}
}
