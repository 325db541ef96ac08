// Package segment buckets customers by tenure and spend and maps the resulting
// segment to a retention tier.
package segment

import (
	"strconv"
	"strings"

	"github.com/sells-group/churn-cli/internal/model"
)

// Bucket boundaries. Each bucket is (previous, upper]; the first bucket also
// includes zero.
const (
	TenureNewMax      = 6.0
	TenureGrowingMax  = 12.0
	TenureMidTermMax  = 36.0
	TenureLongTermMax = 72.0

	SpendLowMax  = 670.0
	SpendMidMax  = 2656.0
	SpendHighMax = 8684.8
)

// Tenure buckets months of service. Negative, NaN and out-of-range values are Unknown.
func Tenure(tenure float64) model.TenureSegment {
	switch {
	case 0 <= tenure && tenure <= TenureNewMax:
		return model.TenureNew
	case TenureNewMax < tenure && tenure <= TenureGrowingMax:
		return model.TenureGrowing
	case TenureGrowingMax < tenure && tenure <= TenureMidTermMax:
		return model.TenureMidTerm
	case TenureMidTermMax < tenure && tenure <= TenureLongTermMax:
		return model.TenureLongTerm
	default:
		return model.TenureUnknown
	}
}

// Spend buckets total charges. Negative, NaN and out-of-range values are Unknown.
func Spend(totalCharges float64) model.SpendSegment {
	switch {
	case 0 <= totalCharges && totalCharges <= SpendLowMax:
		return model.SpendLow
	case SpendLowMax < totalCharges && totalCharges <= SpendMidMax:
		return model.SpendMid
	case SpendMidMax < totalCharges && totalCharges <= SpendHighMax:
		return model.SpendHigh
	default:
		return model.SpendUnknown
	}
}

// Of returns the combined segment for a customer.
func Of(tenure, totalCharges float64) model.CustomerSegment {
	return model.CustomerSegment{Tenure: Tenure(tenure), Spend: Spend(totalCharges)}
}

// OfCells segments raw table cells. A cell that is not a number lands in Unknown.
func OfCells(tenure, totalCharges string) model.CustomerSegment {
	seg := model.CustomerSegment{Tenure: model.TenureUnknown, Spend: model.SpendUnknown}
	if v, ok := parseNumber(tenure); ok {
		seg.Tenure = Tenure(v)
	}
	if v, ok := parseNumber(totalCharges); ok {
		seg.Spend = Spend(v)
	}
	return seg
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
