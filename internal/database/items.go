package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"newsgram/internal/models"
)

// InsertItemIfNew atomically records an item together with its ledger
// row. It returns false without writing anything when the ledger
// already holds the key. Items with an empty external ID cannot be
// attributed to a message and are always inserted with no ledger row.
func (d *Database) InsertItemIfNew(
	ctx context.Context,
	item *models.NewsItem,
	key models.IngestionKey,
) (bool, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}

	accepted, err := d.insertItemTx(ctx, tx, item, key)
	if err != nil || !accepted {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "Failed to rollback tx",
				"error", rbErr,
				"source", key.Source,
				"externalID", key.ExternalID)
		}

		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return true, nil
}

func (d *Database) insertItemTx(
	ctx context.Context,
	tx *sqlx.Tx,
	item *models.NewsItem,
	key models.IngestionKey,
) (bool, error) {
	if key.Attributable() {
		var one int
		err := tx.GetContext(ctx, &one,
			"select 1 from ingested_items where source = ? and external_id = ?",
			key.Source, key.ExternalID)
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("check ledger: %w", err)
		}
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	res, err := tx.NamedExecContext(ctx,
		`insert into news (title, body, source, source_title, post_url, external_url, media_path, created_at)
		values (:title, :body, :source, :source_title, :post_url, :external_url, :media_path, :created_at)`,
		item)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}

	if id, idErr := res.LastInsertId(); idErr == nil {
		item.ID = id
	}

	if key.Attributable() {
		_, err = tx.ExecContext(ctx,
			"insert into ingested_items (source, external_id, created_at) values (?, ?, ?)",
			key.Source, key.ExternalID, item.CreatedAt)
		if isUniqueViolation(err) {
			// Lost the race to a concurrent insert with the same key.
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("insert ledger row: %w", err)
		}
	}

	return true, nil
}

func (d *Database) LatestItems(ctx context.Context, limit int) ([]models.NewsItem, error) {
	query, args, err := sq.
		Select("id", "title", "body", "source", "source_title",
			"post_url", "external_url", "media_path", "created_at").
		From("news").
		OrderBy("id desc").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []models.NewsItem
	if err = d.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) &&
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
