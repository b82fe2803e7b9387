package enums

// PackagingDeductionType selects whether a rule fires once per order or per line.
type PackagingDeductionType string

const (
	PackagingPerOrder PackagingDeductionType = "per_order"
	PackagingPerItem  PackagingDeductionType = "per_item"
)

var validPackagingDeductionTypes = []PackagingDeductionType{
	PackagingPerOrder,
	PackagingPerItem,
}

func (t PackagingDeductionType) String() string {
	return string(t)
}

func (t PackagingDeductionType) IsValid() bool {
	return member(t, validPackagingDeductionTypes)
}

func ParsePackagingDeductionType(value string) (PackagingDeductionType, error) {
	return parse("packaging deduction type", value, validPackagingDeductionTypes)
}

// PackagingScope restricts which order lines a rule considers.
type PackagingScope string

const (
	PackagingScopeAll              PackagingScope = "all"
	PackagingScopeSpecificProducts PackagingScope = "specific_products"
)

var validPackagingScopes = []PackagingScope{
	PackagingScopeAll,
	PackagingScopeSpecificProducts,
}

func (s PackagingScope) String() string {
	return string(s)
}

func (s PackagingScope) IsValid() bool {
	return member(s, validPackagingScopes)
}

func ParsePackagingScope(value string) (PackagingScope, error) {
	return parse("packaging scope", value, validPackagingScopes)
}
