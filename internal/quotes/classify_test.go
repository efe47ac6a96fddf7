package quotes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		code         string
		expectedType string
	}{
		{"005827", TypeMixed},
		{"150018", TypeMixed},
		{"161725", TypeEquity},
		{"202301", TypeBond},
		{"300123", TypeIndex},
		{"400001", TypeQDII},
		{"110022", TypeQDII},
		{"513050", TypeQDII},
		{"501234", TypeMoneyMarket},
		{"600519", TypeCapitalProtected},
		{"999999", TypeOther},
		{"70", TypeOther},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			got := Classify(tc.code)
			assert.Equal(t, tc.expectedType, got.Type)
			assert.Equal(t, SectorOther, got.Sector)
		})
	}
}

func TestClassifyQDIIListLosesToPrefixRules(t *testing.T) {
	// 161128 is a known QDII fund, but the 16 prefix rule runs first.
	assert.Equal(t, TypeEquity, Classify("161128").Type)
}
