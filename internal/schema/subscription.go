package schema

// ChannelKind enumerates supported delivery channels for a subscription.
type ChannelKind string

const (
	ChannelEmail         ChannelKind = "email"
	ChannelDiscord       ChannelKind = "discord"
	ChannelSlack         ChannelKind = "slack"
	ChannelCustomWebhook ChannelKind = "custom-webhook"
	ChannelPush          ChannelKind = "push"
)

// Channel is one delivery destination configured on a subscription.
type Channel struct {
	Kind    ChannelKind
	Address string
}

// UserSubscription is a filter owned by one user. A user may own many
// subscriptions; each matches independently (spec.md §3).
type UserSubscription struct {
	SubscriptionID   string
	UserID           string
	BrandFilter      map[string]struct{}
	SKUFilter        map[string]struct{}
	RegionFilter     map[string]struct{}
	SizeFilter       []string
	MaxEventsPerHour *int
	Channels         []Channel
}

// HasBrandFilter reports whether the subscription filters by brand.
func (s UserSubscription) HasBrandFilter() bool { return len(s.BrandFilter) > 0 }

// HasSKUFilter reports whether the subscription filters by SKU.
func (s UserSubscription) HasSKUFilter() bool { return len(s.SKUFilter) > 0 }
