package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/korody/persona-ai-sub001/internal/model"
)

// CampaignsActiveAt returns campaigns in scope whose window contains now.
func (s *SQLiteStore) CampaignsActiveAt(ctx context.Context, scope string, now time.Time) ([]model.Campaign, error) {
	ts := now.Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, name, description, call_to_action, url, starts_at, ends_at, priority
		FROM campaigns
		WHERE scope = ? AND starts_at <= ? AND ends_at > ?
		ORDER BY priority DESC, starts_at DESC, id`, scope, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		var c model.Campaign
		var desc, cta, url sql.NullString
		var starts, ends int64
		if err := rows.Scan(&c.ID, &c.Scope, &c.Name, &desc, &cta, &url, &starts, &ends, &c.Priority); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Description = desc.String
		c.CallToAction = cta.String
		c.URL = url.String
		c.StartsAt = time.Unix(starts, 0).UTC()
		c.EndsAt = time.Unix(ends, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// AvailableProducts returns every available product in scope.
func (s *SQLiteStore) AvailableProducts(ctx context.Context, scope string) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, name, type, description, price_cents, url, checkout_url, target_element, available, featured
		FROM products
		WHERE scope = ? AND available = 1
		ORDER BY id`, scope)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		var typ, desc, url, checkout, target sql.NullString
		if err := rows.Scan(&p.ID, &p.Scope, &p.Name, &typ, &desc, &p.PriceCents, &url, &checkout, &target, &p.Available, &p.Featured); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Type = typ.String
		p.Description = desc.String
		p.URL = url.String
		p.CheckoutURL = checkout.String
		p.TargetElement = model.Element(target.String)
		out = append(out, p)
	}
	return out, rows.Err()
}
