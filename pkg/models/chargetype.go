package models

// Canonical charge-type buckets. Raw labels that match none of the mapped
// vendor labels pass through verbatim and are treated as their own bucket.
const (
	ChargeTypeRecurring = "recurring_revenue"
	ChargeTypeOneTime   = "onetime_revenue"
	ChargeTypeAffiliate = "affiliate_revenue"
	ChargeTypeRefund    = "refund"
)

// ChargeTypes are the buckets the calculator sweeps, in sweep order.
var ChargeTypes = []string{
	ChargeTypeRecurring,
	ChargeTypeOneTime,
	ChargeTypeAffiliate,
	ChargeTypeRefund,
}

// Vendor label lists per bucket. They come from the partner payout exports
// and the partner API and are fixed; do not extend without an export sample.
var (
	recurringLabels = []string{
		"RecurringApplicationFee",
		"Recurring application fee",
		"Usage application fee",
		"App sale – recurring",
		"App sale – usage",
		"App sale – subscription",
		"App sale – 30-day subscription",
		"App sale – yearly subscription",
	}
	onetimeLabels = []string{
		"OneTimeApplicationFee",
		"ThemePurchaseFee",
		"One time application fee",
		"Theme purchase fee",
		"App sale – one-time",
	}
	affiliateLabels = []string{
		"AffiliateFee",
		"Affiliate fee",
		"Development store referral commission",
		"Affiliate referral commission",
	}
	refundLabels = []string{
		"Manual",
		"ApplicationDowngradeAdjustment",
		"ApplicationCredit",
		"AffiliateFeeRefundAdjustment",
		"Application credit",
		"Application downgrade adjustment",
		"Application fee refund adjustment",
		"App credit",
		"App refund",
		"App credit refund",
		"Payout correction",
		"App downgrade",
	}
)

var chargeTypeLabels = map[string]string{}

func init() {
	for bucket, labels := range map[string][]string{
		ChargeTypeRecurring: recurringLabels,
		ChargeTypeOneTime:   onetimeLabels,
		ChargeTypeAffiliate: affiliateLabels,
		ChargeTypeRefund:    refundLabels,
	} {
		for _, label := range labels {
			chargeTypeLabels[label] = bucket
		}
	}
}

// ClassifyChargeType resolves a raw vendor label to its canonical bucket.
// Unknown labels are returned unchanged.
func ClassifyChargeType(raw string) string {
	if canonical, ok := chargeTypeLabels[raw]; ok {
		return canonical
	}
	return raw
}
