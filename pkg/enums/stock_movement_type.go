package enums

// StockMovementType classifies a ledger row.
type StockMovementType string

const (
	StockMovementProduction StockMovementType = "PRODUCTION"
	StockMovementPackaging  StockMovementType = "PACKAGING"
	StockMovementAdjustment StockMovementType = "ADJUSTMENT"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementProduction,
	StockMovementPackaging,
	StockMovementAdjustment,
}

func (t StockMovementType) String() string {
	return string(t)
}

func (t StockMovementType) IsValid() bool {
	return member(t, validStockMovementTypes)
}

func ParseStockMovementType(value string) (StockMovementType, error) {
	return parse("stock movement type", value, validStockMovementTypes)
}
