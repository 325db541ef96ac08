package segment

import "github.com/sells-group/churn-cli/internal/model"

// tierTable lists every classified segment. Any pair absent here, including
// all pairs with an Unknown side, is TierUnknown.
var tierTable = map[model.CustomerSegment]model.Tier{
	{Tenure: model.TenureLongTerm, Spend: model.SpendHigh}: model.TierGold,
	{Tenure: model.TenureLongTerm, Spend: model.SpendMid}:  model.TierGold,
	{Tenure: model.TenureMidTerm, Spend: model.SpendHigh}:  model.TierGold,

	{Tenure: model.TenureMidTerm, Spend: model.SpendMid}: model.TierSilver,
	{Tenure: model.TenureGrowing, Spend: model.SpendMid}: model.TierSilver,

	{Tenure: model.TenureMidTerm, Spend: model.SpendLow}: model.TierBronze,
	{Tenure: model.TenureGrowing, Spend: model.SpendLow}: model.TierBronze,
	{Tenure: model.TenureNew, Spend: model.SpendLow}:     model.TierBronze,
}

// AssignTier maps a segment to its retention tier.
func AssignTier(seg model.CustomerSegment) model.Tier {
	if tier, ok := tierTable[seg]; ok {
		return tier
	}
	return model.TierUnknown
}

// Segments returns every segment of a tier in a fixed order.
func Segments(tier model.Tier) []model.CustomerSegment {
	var out []model.CustomerSegment
	for _, seg := range AllSegments() {
		if AssignTier(seg) == tier {
			out = append(out, seg)
		}
	}
	return out
}

// AllSegments enumerates every tenure × spend pair including Unknown sides.
func AllSegments() []model.CustomerSegment {
	tenures := []model.TenureSegment{model.TenureNew, model.TenureGrowing, model.TenureMidTerm, model.TenureLongTerm, model.TenureUnknown}
	spends := []model.SpendSegment{model.SpendLow, model.SpendMid, model.SpendHigh, model.SpendUnknown}

	out := make([]model.CustomerSegment, 0, len(tenures)*len(spends))
	for _, t := range tenures {
		for _, s := range spends {
			out = append(out, model.CustomerSegment{Tenure: t, Spend: s})
		}
	}
	return out
}
