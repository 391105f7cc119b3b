package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	invdomain "github.com/orderflow/inventory-engine/internal/inventory/domain"
)

// LowStockLister is the read surface the sweep depends on.
type LowStockLister interface {
	GetLowStockProducts(ctx context.Context) ([]invdomain.Product, error)
}

// Sweep periodically re-alerts on products sitting at or below their
// threshold, independent of request traffic. Re-firing on persistently
// low stock is intentional.
type Sweep struct {
	log      *slog.Logger
	lister   LowStockLister
	pub      Publisher
	interval time.Duration
}

func NewSweep(log *slog.Logger, lister LowStockLister, pub Publisher, interval time.Duration) *Sweep {
	return &Sweep{log: log, lister: lister, pub: pub, interval: interval}
}

func (s *Sweep) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("low stock sweep stopping")
			return nil
		case <-t.C:
			if err := s.cycle(ctx); err != nil {
				s.log.Error("low stock sweep cycle failed", "err", err)
			}
		}
	}
}

// cycle is read-only plus the notification path; any failure is reported
// and the next tick starts fresh.
func (s *Sweep) cycle(ctx context.Context) error {
	products, err := s.lister.GetLowStockProducts(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, p := range products {
		ev := StockLow{
			ProductID:    p.ID,
			ProductName:  p.Name,
			CurrentStock: p.StockQuantity,
			Threshold:    p.LowStockThreshold,
			Timestamp:    now,
		}
		if err := s.pub.Publish(ctx, EventStockLow, strconv.FormatInt(p.ID, 10), ev); err != nil {
			s.log.Error("low stock alert publish failed", "product_id", p.ID, "err", err)
		}
	}
	return nil
}
