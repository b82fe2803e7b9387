package enums

// MaterialUnit is the measurement unit a raw material is stocked in.
type MaterialUnit string

const (
	MaterialUnitGram   MaterialUnit = "gm"
	MaterialUnitML     MaterialUnit = "ml"
	MaterialUnitPiece  MaterialUnit = "piece"
	MaterialUnitBottle MaterialUnit = "bottle"
	MaterialUnitUnit   MaterialUnit = "unit"
)

var validMaterialUnits = []MaterialUnit{
	MaterialUnitGram,
	MaterialUnitML,
	MaterialUnitPiece,
	MaterialUnitBottle,
	MaterialUnitUnit,
}

func (u MaterialUnit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known MaterialUnit.
func (u MaterialUnit) IsValid() bool {
	return member(u, validMaterialUnits)
}

// ParseMaterialUnit converts raw input into a MaterialUnit.
func ParseMaterialUnit(value string) (MaterialUnit, error) {
	return parse("material unit", value, validMaterialUnits)
}
