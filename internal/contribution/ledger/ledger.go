package ledger

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	pkgdb "github.com/erinfolamirukayat/theweddingplace/pkg/db"
	"gorm.io/gorm"
)

type ledger struct{}

func Provide() domain.Ledger {
	return &ledger{}
}

func (l *ledger) FindByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Contribution, error) {
	var item domain.Contribution
	err := db.WithContext(ctx).Raw(
		`SELECT id, registry_item_id, name, email, amount, message,
			payment_reference, status, created_at
		 FROM contributions
		 WHERE payment_reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (l *ledger) InsertInitiated(ctx context.Context, db *gorm.DB, contribution *domain.Contribution) error {
	contribution.Status = domain.StatusInitiated
	err := db.WithContext(ctx).Create(contribution).Error
	if err != nil && pkgdb.IsDuplicateKeyErr(err) {
		return domain.ErrAlreadyProcessed
	}
	return err
}

// CommitCompleted applies one reconciliation atomically: the contribution
// row reaches completed status, the registry item's running total grows by
// the same amount, and is_fully_funded is recomputed against
// quantity * product price. The unique payment_reference constraint is the
// only concurrency control; a lost race commits nothing and returns
// committed=false so the caller can fetch the winning row.
func (l *ledger) CommitCompleted(ctx context.Context, db *gorm.DB, params domain.CommitParams) (*domain.Contribution, bool, error) {
	now := time.Now().UTC()
	committed := false
	var row domain.Contribution

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// a row left behind by the initiate path: settle it in place
		res := tx.Exec(
			`UPDATE contributions
			 SET status = ?, amount = ?
			 WHERE payment_reference = ? AND status = ?`,
			domain.StatusCompleted,
			params.Amount,
			params.PaymentReference,
			domain.StatusInitiated,
		)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			// first sighting of this reference (webhook-first delivery)
			res = tx.Exec(
				`INSERT INTO contributions (
					id, registry_item_id, name, email, amount, message,
					payment_reference, status, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (payment_reference) DO NOTHING`,
				params.ID,
				params.RegistryItemID,
				params.Name,
				params.Email,
				params.Amount,
				params.Message,
				params.PaymentReference,
				domain.StatusCompleted,
				now,
			)
			if res.Error != nil {
				if pkgdb.IsDuplicateKeyErr(res.Error) {
					return nil
				}
				return res.Error
			}
			if res.RowsAffected == 0 {
				// another reconciliation won the race
				return nil
			}
		}

		if err := tx.Raw(
			`SELECT id, registry_item_id, name, email, amount, message,
				payment_reference, status, created_at
			 FROM contributions
			 WHERE payment_reference = ?
			 LIMIT 1`,
			params.PaymentReference,
		).Scan(&row).Error; err != nil {
			return err
		}
		if row.ID == 0 || row.Status != domain.StatusCompleted {
			return nil
		}

		// additive update at the storage layer; read-modify-write in
		// application code would lose concurrent increments
		if err := tx.Exec(
			`UPDATE registry_items
			 SET contributions_received = contributions_received + ?
			 WHERE id = ?`,
			params.Amount,
			row.RegistryItemID,
		).Error; err != nil {
			return err
		}

		if err := tx.Exec(
			`UPDATE registry_items
			 SET is_fully_funded = contributions_received >=
				quantity * (SELECT price FROM products WHERE products.id = registry_items.product_id)
			 WHERE id = ?`,
			row.RegistryItemID,
		).Error; err != nil {
			return err
		}

		committed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !committed {
		return nil, false, nil
	}
	return &row, true, nil
}

func (l *ledger) MarkFailed(ctx context.Context, db *gorm.DB, reference string) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE contributions
		 SET status = ?
		 WHERE payment_reference = ? AND status = ?`,
		domain.StatusFailed,
		reference,
		domain.StatusInitiated,
	)
	return res.RowsAffected, res.Error
}

func (l *ledger) ListByItem(ctx context.Context, db *gorm.DB, registryItemID snowflake.ID) ([]domain.Contribution, error) {
	var items []domain.Contribution
	err := db.WithContext(ctx).Raw(
		`SELECT id, registry_item_id, name, email, amount, message,
			payment_reference, status, created_at
		 FROM contributions
		 WHERE registry_item_id = ?
		 ORDER BY created_at DESC`,
		registryItemID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (l *ledger) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.GatewayEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (l *ledger) MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE gateway_events SET processed_at = ? WHERE id = ?`,
		time.Now().UTC(),
		id,
	).Error
}
