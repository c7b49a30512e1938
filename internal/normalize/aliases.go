package normalize

// Canonical field names used across the four source files.
const (
	FieldSourceID       = "id"
	FieldTitulo         = "titulo"
	FieldValorGlobal    = "valor_global"
	FieldDataPublicacao = "data_publicacao"
	FieldEstado         = "estado"
	FieldMunicipio      = "municipio"
	FieldSituacao       = "situacao"
	FieldProgramaID     = "id_programa"
	FieldCNPJ           = "cnpj"
	FieldNomeProponente = "nome_proponente"
	FieldNaturezaJuridica = "natureza_juridica"
	FieldCEP            = "cep"
	FieldEndereco       = "endereco"
	FieldBairro         = "bairro"

	FieldProgramaNome  = "nome"
	FieldProgramaOrgao = "orgao"

	FieldParlamentar    = "nome_parlamentar"
	FieldAmendmentNum   = "numero_emenda"
	FieldAmendmentAutor = "autor_emenda"
	FieldAmendmentValor = "valor_emenda"
	FieldAmendmentTipo  = "tipo_emenda"
	FieldAmendmentAno   = "ano_emenda"
)

// ProposalAliases maps canonical Proposal fields to the header variants
// observed in propostas.{csv,xlsx}.
var ProposalAliases = AliasMap{
	FieldSourceID:       {"id_proposta", "id", "codigo_proposta", "cod_proposta"},
	FieldTitulo:         {"titulo", "titulo_proposta", "objeto"},
	FieldValorGlobal:    {"valor_global", "valor_proposta", "vl_global"},
	FieldDataPublicacao: {"data_publicacao", "dt_publicacao", "data_pub"},
	FieldEstado:         {"estado", "uf", "sigla_uf"},
	FieldMunicipio:      {"municipio", "cidade", "nome_municipio"},
	FieldSituacao:       {"situacao", "status", "situacao_proposta"},
	FieldProgramaID:     {"id_programa", "codigo_programa", "cod_programa"},
	FieldCNPJ:           {"cnpj", "cnpj_proponente", "nr_cnpj"},
	FieldNomeProponente: {"nome_proponente", "proponente", "razao_social"},
	FieldNaturezaJuridica: {"natureza_juridica", "cod_natureza_juridica", "natureza"},
	FieldCEP:            {"cep", "cep_proponente"},
	FieldEndereco:       {"endereco", "logradouro"},
	FieldBairro:         {"bairro"},
}

// ProposalRequired are the Proposal canonical fields that must resolve.
var ProposalRequired = []string{FieldSourceID}

// ProgramAliases maps canonical Program fields to programas.{csv,xlsx}.
var ProgramAliases = AliasMap{
	FieldSourceID:      {"id_programa", "id", "codigo_programa"},
	FieldProgramaNome:  {"nome", "nome_programa", "descricao"},
	FieldProgramaOrgao: {"orgao", "orgao_responsavel", "nome_orgao"},
}

// ProgramRequired are the Program canonical fields that must resolve.
var ProgramRequired = []string{FieldSourceID}

// LinkAliases maps canonical fields for the apoiadores_emendas link table.
var LinkAliases = AliasMap{
	FieldSourceID:       {"id_proposta", "codigo_proposta"},
	FieldProgramaID:     {"id_programa", "codigo_programa"},
	FieldParlamentar:    {"nome_parlamentar", "parlamentar", "autor"},
	FieldAmendmentNum:   {"numero_emenda", "nr_emenda", "numero"},
	FieldAmendmentAutor: {"autor_emenda", "autor"},
	FieldAmendmentValor: {"valor_emenda", "vl_emenda"},
	FieldAmendmentTipo:  {"tipo_emenda", "tipo"},
	FieldAmendmentAno:   {"ano_emenda", "ano"},
}

// LinkRequired are the link-table canonical fields that must resolve.
var LinkRequired = []string{FieldSourceID, FieldParlamentar, FieldAmendmentNum}
