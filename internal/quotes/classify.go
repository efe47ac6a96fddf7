package quotes

import (
	"strings"

	"navkeeper/internal/models"
)

// Fund type labels derived from code prefixes. The mapping is a heuristic
// carried over from the product's original rules, not an authoritative
// taxonomy.
const (
	TypeMixed            = "mixed"
	TypeEquity           = "equity"
	TypeBond             = "bond"
	TypeIndex            = "index"
	TypeQDII             = "QDII"
	TypeMoneyMarket      = "money-market"
	TypeCapitalProtected = "capital-protected"
	TypeOther            = "other"

	SectorFinancial = "financial-realestate"
	SectorOther     = "other"
)

// qdiiPrefixes lists known QDII codes matched ahead of the generic rules.
// Earlier branches still win: 161128 classifies as equity via its 16 prefix.
var qdiiPrefixes = []string{"110022", "161128", "513050"}

func isQDII(code string) bool {
	if strings.HasPrefix(code, "40") {
		return true
	}
	for _, p := range qdiiPrefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// Classify derives a fund's type and sector from its code alone.
func Classify(code string) models.Classification {
	var fundType string
	switch {
	case strings.HasPrefix(code, "00"), strings.HasPrefix(code, "15"):
		fundType = TypeMixed
	case strings.HasPrefix(code, "16"):
		fundType = TypeEquity
	case strings.HasPrefix(code, "20"):
		fundType = TypeBond
	case strings.HasPrefix(code, "30"):
		fundType = TypeIndex
	case isQDII(code):
		fundType = TypeQDII
	case strings.HasPrefix(code, "50"):
		fundType = TypeMoneyMarket
	case strings.HasPrefix(code, "60"):
		fundType = TypeCapitalProtected
	default:
		fundType = TypeOther
	}

	// Sector probe substring-matches the code itself. Numeric codes never
	// match, so this nearly always lands on "other"; kept as-is because the
	// labels are part of the API surface.
	sector := SectorOther
	if strings.Contains(code, "金融") || strings.Contains(code, "地产") {
		sector = SectorFinancial
	}

	return models.Classification{Type: fundType, Sector: sector}
}
