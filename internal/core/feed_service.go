package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// FeedService manages the feed purchase ledger. Purchases raise the cycle's
// remaining stock; deleting one lowers it again and is refused when the bags
// were already consumed.
type FeedService interface {
	AddPurchase(ctx context.Context, companyID, cycleID int, input FeedPurchaseInput) (*FeedPurchase, error)
	GetPurchases(ctx context.Context, companyID, cycleID int) ([]FeedPurchase, error)
	DeletePurchase(ctx context.Context, companyID, cycleID, purchaseID int) error
	GetFeedStatus(ctx context.Context, companyID, cycleID int) (*FeedStatus, error)
}

type feedService struct {
	pool *pgxpool.Pool
	cfg  EngineConfig
}

func NewFeedService(pool *pgxpool.Pool, cfg EngineConfig) FeedService {
	return &feedService{pool: pool, cfg: cfg}
}

const purchaseColumns = `id, cycle_id, purchase_date, feed_name, bill_number, bags,
	       bag_weight_kg, price_per_kg, total_cost, created_at`

func scanPurchase(row pgx.Row) (*FeedPurchase, error) {
	var p FeedPurchase
	err := row.Scan(
		&p.ID, &p.CycleID, &p.PurchaseDate, &p.FeedName, &p.BillNumber, &p.Bags,
		&p.BagWeightKg, &p.PricePerKg, &p.TotalCost, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *feedService) AddPurchase(ctx context.Context, companyID, cycleID int, input FeedPurchaseInput) (*FeedPurchase, error) {
	if input.PurchaseDate.IsZero() {
		return nil, newValidationError("purchase_date", "must be provided")
	}
	if input.FeedName == "" {
		return nil, newValidationError("feed_name", "must be provided")
	}
	if input.Bags <= 0 {
		return nil, newValidationError("bags", "must be positive")
	}
	if input.BagWeightKg < 0 {
		return nil, newValidationError("bag_weight_kg", "must not be negative")
	}
	if input.PricePerKg.IsNegative() {
		return nil, newValidationError("price_per_kg", "must not be negative")
	}

	bagWeight := input.BagWeightKg
	if bagWeight == 0 {
		bagWeight = s.cfg.BagWeightKg
	}
	totalCost := decimal.NewFromInt(int64(input.Bags)).
		Mul(decimal.NewFromFloat(bagWeight)).
		Mul(input.PricePerKg).
		Round(2)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle, err := lockActiveCycle(ctx, tx, companyID, cycleID)
	if err != nil {
		return nil, err
	}

	purchase, err := scanPurchase(tx.QueryRow(ctx, `
		INSERT INTO feed_purchases (cycle_id, purchase_date, feed_name, bill_number, bags,
		                            bag_weight_kg, price_per_kg, total_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+purchaseColumns,
		cycleID, dateOnly(input.PurchaseDate), input.FeedName, input.BillNumber, input.Bags,
		bagWeight, input.PricePerKg, totalCost,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert feed purchase: %w", err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE cycles SET remaining_feed_bags = $1 WHERE id = $2",
		cycle.RemainingFeedBags+input.Bags, cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update cycle stock: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit feed purchase: %w", err)
	}
	return purchase, nil
}

func (s *feedService) GetPurchases(ctx context.Context, companyID, cycleID int) ([]FeedPurchase, error) {
	if err := checkCycle(ctx, s.pool, companyID, cycleID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+purchaseColumns+" FROM feed_purchases WHERE cycle_id = $1 ORDER BY purchase_date, id",
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed purchases: %w", err)
	}
	defer rows.Close()

	var purchases []FeedPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func (s *feedService) DeletePurchase(ctx context.Context, companyID, cycleID, purchaseID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cycle, err := lockActiveCycle(ctx, tx, companyID, cycleID)
	if err != nil {
		return err
	}

	var bags int
	err = tx.QueryRow(ctx,
		"SELECT bags FROM feed_purchases WHERE cycle_id = $1 AND id = $2",
		cycleID, purchaseID,
	).Scan(&bags)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newNotFoundError("feed purchase", purchaseID)
		}
		return fmt.Errorf("failed to fetch feed purchase %d: %w", purchaseID, err)
	}

	newRemaining := cycle.RemainingFeedBags - bags
	if newRemaining < 0 {
		return newConflictError("cannot delete purchase: %d of its bags were already consumed", -newRemaining)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM feed_purchases WHERE id = $1", purchaseID); err != nil {
		return fmt.Errorf("failed to delete feed purchase %d: %w", purchaseID, err)
	}

	_, err = tx.Exec(ctx,
		"UPDATE cycles SET remaining_feed_bags = $1 WHERE id = $2",
		newRemaining, cycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle stock: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit purchase deletion: %w", err)
	}
	return nil
}

func (s *feedService) GetFeedStatus(ctx context.Context, companyID, cycleID int) (*FeedStatus, error) {
	cycle, err := scanCycle(s.pool.QueryRow(ctx,
		"SELECT "+cycleColumns+" FROM cycles WHERE company_id = $1 AND id = $2",
		companyID, cycleID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newNotFoundError("cycle", cycleID)
		}
		return nil, fmt.Errorf("failed to fetch cycle %d: %w", cycleID, err)
	}

	var consumed, added int
	err = s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(feed_bags_consumed), 0), COALESCE(SUM(feed_bags_added), 0) FROM daily_entries WHERE cycle_id = $1",
		cycleID,
	).Scan(&consumed, &added)
	if err != nil {
		return nil, fmt.Errorf("failed to sum entry feed movement: %w", err)
	}

	var purchased int
	err = s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(bags), 0) FROM feed_purchases WHERE cycle_id = $1",
		cycleID,
	).Scan(&purchased)
	if err != nil {
		return nil, fmt.Errorf("failed to sum feed purchases: %w", err)
	}

	return &FeedStatus{
		TotalSuppliedBags: cycle.StartFeedBags + purchased + added,
		TotalConsumedBags: consumed,
		RemainingBags:     cycle.RemainingFeedBags,
		LowStock:          cycle.RemainingFeedBags <= s.cfg.LowStockThresholdBags,
	}, nil
}
