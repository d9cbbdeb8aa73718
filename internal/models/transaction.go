package models

// Record is one parsed transaction row: a sale or an inventory line keyed by
// whatever column names the source file used. Engine packages only read it.
type Record map[string]any

// LogicalField names a canonical field that the engine resolves out of a Record.
type LogicalField string

const (
	FieldUnitPrice       LogicalField = "unitPrice"
	FieldQuantity        LogicalField = "quantity"
	FieldGrossValue      LogicalField = "grossValue"
	FieldTaxSubstitution LogicalField = "taxSubstitutionValue"
	FieldOutputTaxRate   LogicalField = "outputTaxRate"
	FieldNetCost         LogicalField = "netCost"
	FieldCommissionRate  LogicalField = "commissionRate"
	FieldOtherExpenses   LogicalField = "otherExpenses"
	FieldRebate          LogicalField = "rebate"
	FieldDate            LogicalField = "transactionDate"
	FieldCustomerKey     LogicalField = "customerKey"
	FieldCustomerName    LogicalField = "customerName"
	FieldSalesperson     LogicalField = "salesperson"
	FieldRegion          LogicalField = "region"
	FieldManager         LogicalField = "manager"
	FieldState           LogicalField = "state"
	FieldProduct         LogicalField = "product"
	FieldCategory        LogicalField = "category"
	FieldSupplier        LogicalField = "supplier"
)

// LogicalFields lists every known logical field in a stable order.
var LogicalFields = []LogicalField{
	FieldUnitPrice, FieldQuantity, FieldGrossValue, FieldTaxSubstitution,
	FieldOutputTaxRate, FieldNetCost, FieldCommissionRate, FieldOtherExpenses,
	FieldRebate, FieldDate, FieldCustomerKey, FieldCustomerName,
	FieldSalesperson, FieldRegion, FieldManager, FieldState,
	FieldProduct, FieldCategory, FieldSupplier,
}

// Mapping points logical fields at the column names of a particular dataset.
type Mapping map[LogicalField]string

// Column returns the declared column for f, or "" when none was declared.
func (m Mapping) Column(f LogicalField) string {
	if m == nil {
		return ""
	}
	return m[f]
}
