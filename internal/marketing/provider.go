// Package marketing picks the campaign and products that may be mentioned in a
// conversation turn.
package marketing

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/model"
)

// DefaultProductLimit caps products when the config sets no limit.
const DefaultProductLimit = 3

// Store is the campaign and product catalog.
type Store interface {
	CampaignsActiveAt(ctx context.Context, scope string, now time.Time) ([]model.Campaign, error)
	AvailableProducts(ctx context.Context, scope string) ([]model.Product, error)
}

// Query is the input of a marketing lookup. UserID and Element are optional.
type Query struct {
	Scope   string
	UserID  string
	Element model.Element
}

// Provider assembles the marketing block. Failures never reach the caller.
type Provider struct {
	store Store
	limit int
	now   func() time.Time
	log   *logger.Logger
}

func NewProvider(s Store, productLimit int, log *logger.Logger) *Provider {
	if productLimit <= 0 {
		productLimit = DefaultProductLimit
	}
	return &Provider{store: s, limit: productLimit, now: time.Now, log: log.With("component", "marketing")}
}

// WithClock replaces the time source, for tests and replays.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// Fetch returns at most one active campaign and up to the product limit.
// A store failure is logged and empties only the half it affects.
func (p *Provider) Fetch(ctx context.Context, q Query) model.MarketingBlock {
	now := p.now()
	var block model.MarketingBlock

	campaigns, err := p.store.CampaignsActiveAt(ctx, q.Scope, now)
	if err != nil {
		p.log.Warn("marketing campaign degraded to empty", "stage", "campaign", "degraded", true, "user_id", q.UserID, "error", err)
	} else {
		block.Campaign = PickCampaign(campaigns, now)
	}

	products, err := p.store.AvailableProducts(ctx, q.Scope)
	if err != nil {
		p.log.Warn("marketing products degraded to empty", "stage", "products", "degraded", true, "user_id", q.UserID, "error", err)
	} else {
		block.Products = RankProducts(products, q.Element, p.limit)
	}

	p.log.Debug("marketing fetched", "user_id", q.UserID, "campaign", block.Campaign != nil, "products", len(block.Products))
	return block
}

// PickCampaign returns the active campaign with the highest priority. Ties go
// to the most recent start, then the lowest id.
func PickCampaign(campaigns []model.Campaign, now time.Time) *model.Campaign {
	active := lo.Filter(campaigns, func(c model.Campaign, _ int) bool { return c.ActiveAt(now) })
	if len(active) == 0 {
		return nil
	}
	best := lo.MaxBy(active, func(a, b model.Campaign) bool {
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.StartsAt.Equal(b.StartsAt) {
			return a.StartsAt.After(b.StartsAt)
		}
		return a.ID < b.ID
	})
	return &best
}

// RankProducts keeps available products, featured first, then those aimed at
// element, then by name and id, and caps the result.
func RankProducts(products []model.Product, element model.Element, limit int) []model.Product {
	out := lo.Filter(products, func(p model.Product, _ int) bool { return p.Available })
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Featured != b.Featured {
			return a.Featured
		}
		am, bm := element != "" && a.TargetElement == element, element != "" && b.TargetElement == element
		if am != bm {
			return am
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
