package commission

// ReferrerPolicy decides what happens when an order carries a click-tracked
// referrer who differs from the buyer's registered direct sponsor.
type ReferrerPolicy string

const (
	// ReferrerReplaces substitutes the referrer for the level-0 sponsor.
	ReferrerReplaces ReferrerPolicy = "replace"
	// ReferrerAdds keeps the sponsor's level-0 commission and credits the
	// referrer with an additional level-0 record.
	ReferrerAdds ReferrerPolicy = "add"
)

// Config holds distribution engine configuration.
type Config struct {
	// MaxLevels is the upline depth commissions are paid across.
	MaxLevels int

	// ReferrerPolicy applies when order.referrer_id is set and differs from
	// the resolved level-0 sponsor.
	ReferrerPolicy ReferrerPolicy
}

// DefaultMaxLevels matches the three commission rates in settings.
const DefaultMaxLevels = 3

// beneficiary is one planned commission before persistence.
type beneficiary struct {
	userID uint
	level  int
	rate   float64
}
