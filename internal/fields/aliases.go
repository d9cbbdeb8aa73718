package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"commercial-analytics/internal/models"
)

// aliases lists the column spellings tried, in order, when a mapping does
// not declare a column or the declared column is empty.
var aliases = map[models.LogicalField][]string{
	models.FieldUnitPrice: {
		"unitPrice", "unit_price", "UnitPrice", "Unit Price", "price", "Price", "PRICE",
		"preco", "Preco", "preço", "Preço", "PRECO", "PREÇO", "preco_unitario", "Preço Unitário",
		"vl_unitario", "VL_UNITARIO", "Vlr Unit",
	},
	models.FieldQuantity: {
		"quantity", "Quantity", "QUANTITY", "qty", "Qty", "QTY",
		"quantidade", "Quantidade", "QUANTIDADE", "qtd", "Qtd", "QTD", "qtde", "Qtde", "QTDE",
	},
	models.FieldGrossValue: {
		"grossValue", "gross_value", "value", "Value", "VALUE", "total", "Total", "TOTAL",
		"total_price", "valor", "Valor", "VALOR", "valor_total", "Valor Total", "VL_TOTAL", "vlr_total",
	},
	models.FieldTaxSubstitution: {
		"taxSubstitutionValue", "tax_substitution", "taxSubstitution", "st", "ST",
		"valor_st", "Valor ST", "VL_ST", "icms_st", "ICMS ST", "ICMS_ST",
	},
	models.FieldOutputTaxRate: {
		"outputTaxRate", "output_tax_rate", "tax_rate", "Tax Rate",
		"aliquota", "Aliquota", "alíquota", "Alíquota", "ALIQUOTA", "aliquota_saida", "Alíquota Saída",
		"imposto_saida", "Imposto Saída",
	},
	models.FieldNetCost: {
		"netCost", "net_cost", "cost", "Cost", "COST", "unit_cost",
		"custo", "Custo", "CUSTO", "custo_liquido", "Custo Líquido", "CUSTO_LIQUIDO", "custo_unitario",
	},
	models.FieldCommissionRate: {
		"commissionRate", "commission_rate", "commission", "Commission",
		"comissao", "Comissao", "comissão", "Comissão", "COMISSAO", "perc_comissao", "% Comissão",
	},
	models.FieldOtherExpenses: {
		"otherExpenses", "other_expenses", "expenses", "Expenses",
		"outras_despesas", "Outras Despesas", "OUTRAS_DESPESAS", "despesas", "Despesas",
	},
	models.FieldRebate: {
		"rebate", "Rebate", "REBATE", "bonificacao", "Bonificação", "verba", "Verba",
	},
	models.FieldDate: {
		"transactionDate", "transaction_date", "date", "Date", "DATE",
		"data", "Data", "DATA", "data_venda", "Data Venda", "dt_emissao", "DT_EMISSAO", "Data Emissão", "emissao",
	},
	models.FieldCustomerKey: {
		"customerKey", "customer_key", "customer_id", "tax_id", "taxId",
		"cnpj", "CNPJ", "Cnpj", "cpf_cnpj", "CPF/CNPJ", "cnpj_cliente", "CNPJ Cliente", "cod_cliente", "codigo_cliente",
	},
	models.FieldCustomerName: {
		"customerName", "customer_name", "customer", "Customer", "CUSTOMER",
		"cliente", "Cliente", "CLIENTE", "razao_social", "Razão Social", "RAZAO_SOCIAL", "nome_cliente", "Nome Cliente",
	},
	models.FieldSalesperson: {
		"salesperson", "Salesperson", "seller", "sales_rep",
		"vendedor", "Vendedor", "VENDEDOR", "nome_vendedor", "representante", "Representante", "RCA",
	},
	models.FieldRegion: {
		"region", "Region", "REGION", "regiao", "Regiao", "região", "Região", "REGIAO",
	},
	models.FieldManager: {
		"manager", "Manager", "MANAGER", "supervisor", "Supervisor", "SUPERVISOR",
		"gerente", "Gerente", "GERENTE", "coordenador", "Coordenador",
	},
	models.FieldState: {
		"state", "State", "STATE", "uf", "UF", "Uf", "estado", "Estado", "ESTADO",
	},
	models.FieldProduct: {
		"product", "Product", "PRODUCT", "product_name", "sku", "SKU",
		"produto", "Produto", "PRODUTO", "descricao", "Descrição", "DESCRICAO", "descricao_produto",
	},
	models.FieldCategory: {
		"category", "Category", "CATEGORY", "categoria", "Categoria", "CATEGORIA",
		"grupo", "Grupo", "GRUPO", "linha", "Linha", "familia", "Família",
	},
	models.FieldSupplier: {
		"supplier", "Supplier", "SUPPLIER", "brand", "Brand",
		"fornecedor", "Fornecedor", "FORNECEDOR", "fabricante", "Fabricante", "marca", "Marca",
	},
}

// folded holds the separator- and accent-insensitive form of every alias,
// in the same order as aliases.
var folded = func() map[models.LogicalField][]string {
	out := make(map[models.LogicalField][]string, len(aliases))
	for f, names := range aliases {
		keys := make([]string, 0, len(names))
		seen := make(map[string]bool, len(names))
		for _, n := range names {
			k := Fold(n)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
		out[f] = keys
	}
	return out
}()

// Fold lowercases s, strips diacritics and drops everything that is not a
// letter or digit, so "Preço Unitário" and "preco_unitario" compare equal.
func Fold(s string) string {
	if !isASCII(s) {
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if out, _, err := transform.String(t, s); err == nil {
			s = out
		}
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Match reports the logical field whose alias table contains header once
// folded. Used for auto-detecting a mapping from file headers.
func Match(header string) (models.LogicalField, bool) {
	k := Fold(header)
	if k == "" {
		return "", false
	}
	for _, f := range models.LogicalFields {
		for _, a := range folded[f] {
			if a == k {
				return f, true
			}
		}
	}
	return "", false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
