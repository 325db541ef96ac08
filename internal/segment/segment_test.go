package segment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/churn-cli/internal/model"
)

func TestTenure_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tenure float64
		want   model.TenureSegment
	}{
		{0, model.TenureNew},
		{6, model.TenureNew},
		{6.0001, model.TenureGrowing},
		{12, model.TenureGrowing},
		{12.0001, model.TenureMidTerm},
		{36, model.TenureMidTerm},
		{36.0001, model.TenureLongTerm},
		{72, model.TenureLongTerm},
		{72.0001, model.TenureUnknown},
		{-0.0001, model.TenureUnknown},
		{-5, model.TenureUnknown},
		{math.NaN(), model.TenureUnknown},
		{math.Inf(1), model.TenureUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tenure(tt.tenure), "tenure=%v", tt.tenure)
	}
}

func TestSpend_Boundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		charges float64
		want    model.SpendSegment
	}{
		{0, model.SpendLow},
		{670, model.SpendLow},
		{670.0001, model.SpendMid},
		{2656, model.SpendMid},
		{2656.0001, model.SpendHigh},
		{8684.8, model.SpendHigh},
		{8684.8001, model.SpendUnknown},
		{-1, model.SpendUnknown},
		{math.NaN(), model.SpendUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Spend(tt.charges), "charges=%v", tt.charges)
	}
}

func TestOf(t *testing.T) {
	t.Parallel()

	seg := Of(10, 500)
	assert.Equal(t, model.TenureGrowing, seg.Tenure)
	assert.Equal(t, model.SpendLow, seg.Spend)
	assert.Equal(t, "Growing Customers - Low Spender", seg.String())
}

func TestOfCells(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tenure  string
		charges string
		want    string
	}{
		{"numeric", "10", "500", "Growing Customers - Low Spender"},
		{"padded", " 40 ", " 3000.25", "Long-term Customers - High Spender"},
		{"blank charges", "1", " ", "New Customers - Unknown"},
		{"text tenure", "ten", "100", "Unknown - Low Spender"},
		{"both empty", "", "", "Unknown - Unknown"},
		{"negative", "-3", "-20", "Unknown - Unknown"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, OfCells(tt.tenure, tt.charges).String())
		})
	}
}
