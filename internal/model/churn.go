package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Column names read from uploads and appended to scored output.
const (
	ColumnTenure          = "tenure"
	ColumnTotalCharges    = "TotalCharges"
	ColumnChurnPrediction = "Churn_Prediction"
	ColumnCustomerSegment = "Customer_Segment"
	ColumnCustomerGroup   = "Customer_Group"
)

// ChurnLabel is the predictor's binary output.
type ChurnLabel int

const (
	LabelRetained ChurnLabel = 0
	LabelChurned  ChurnLabel = 1
)

// TenureSegment buckets a customer by months of service.
type TenureSegment string

const (
	TenureNew      TenureSegment = "New Customers"
	TenureGrowing  TenureSegment = "Growing Customers"
	TenureMidTerm  TenureSegment = "Mid-term Customers"
	TenureLongTerm TenureSegment = "Long-term Customers"
	TenureUnknown  TenureSegment = "Unknown"
)

// SpendSegment buckets a customer by total charges.
type SpendSegment string

const (
	SpendLow     SpendSegment = "Low Spender"
	SpendMid     SpendSegment = "Mid Spender"
	SpendHigh    SpendSegment = "High Spender"
	SpendUnknown SpendSegment = "Unknown"
)

// Tier is the retention priority derived from a CustomerSegment.
type Tier string

const (
	TierGold    Tier = "Gold"
	TierSilver  Tier = "Silver"
	TierBronze  Tier = "Bronze"
	TierUnknown Tier = "Unknown"
)

// Tiers lists every tier in priority order.
var Tiers = []Tier{TierGold, TierSilver, TierBronze, TierUnknown}

const segmentSep = " - "

// CustomerSegment is the (tenure, spend) pair. It marshals as "<tenure> - <spend>".
type CustomerSegment struct {
	Tenure TenureSegment
	Spend  SpendSegment
}

// String renders the combined segment label.
func (s CustomerSegment) String() string {
	return string(s.Tenure) + segmentSep + string(s.Spend)
}

// MarshalText implements encoding.TextMarshaler.
func (s CustomerSegment) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CustomerSegment) UnmarshalText(b []byte) error {
	seg, err := ParseCustomerSegment(string(b))
	if err != nil {
		return err
	}
	*s = seg
	return nil
}

// ParseCustomerSegment parses a combined "<tenure> - <spend>" label.
func ParseCustomerSegment(label string) (CustomerSegment, error) {
	tenure, spend, ok := strings.Cut(label, segmentSep)
	if !ok {
		return CustomerSegment{}, eris.Errorf("model: invalid customer segment %q", label)
	}
	return CustomerSegment{Tenure: TenureSegment(tenure), Spend: SpendSegment(spend)}, nil
}
