package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"newsgram/internal/models"
)

func (d *Database) UpsertUser(ctx context.Context, userID int64, isAdmin bool) error {
	_, err := d.db.ExecContext(ctx,
		"insert or ignore into users (user_id, is_admin, subscribed) values (?, ?, 1)",
		userID, isAdmin)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = d.db.ExecContext(ctx,
		"update users set is_admin = ? where user_id = ?", isAdmin, userID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (d *Database) SetSubscribed(ctx context.Context, userID int64, subscribed bool) error {
	_, err := d.db.ExecContext(ctx,
		"update users set subscribed = ? where user_id = ?", subscribed, userID)

	return err
}

func (d *Database) IsSubscribed(ctx context.Context, userID int64) (bool, error) {
	var subscribed bool
	err := d.db.GetContext(ctx, &subscribed,
		"select subscribed from users where user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return subscribed, err
}

// ListSubscribedRecipients snapshots the fan-out recipient set. With
// onlyAdmins the listing is restricted to admin users regardless of
// their subscription flag.
func (d *Database) ListSubscribedRecipients(ctx context.Context, onlyAdmins bool) ([]int64, error) {
	builder := sq.Select("user_id").From("users").OrderBy("user_id")
	if onlyAdmins {
		builder = builder.Where(sq.Eq{"is_admin": true})
	} else {
		builder = builder.Where(sq.Eq{"subscribed": true})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var userIDs []int64
	if err = d.db.SelectContext(ctx, &userIDs, query, args...); err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}

	return userIDs, nil
}

func (d *Database) GetPreferences(ctx context.Context, userID int64) (*models.UserPreference, error) {
	subscribed, err := d.IsSubscribed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	keywords, err := d.ListKeywords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}

	muted, err := d.ListMutedSources(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list muted sources: %w", err)
	}

	mutedSet := make(map[string]struct{}, len(muted))
	for _, source := range muted {
		mutedSet[source] = struct{}{}
	}

	return &models.UserPreference{
		UserID:       userID,
		Subscribed:   subscribed,
		MutedSources: mutedSet,
		Keywords:     keywords,
	}, nil
}

func (d *Database) AddKeyword(ctx context.Context, userID int64, keyword string) error {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return errors.New("keyword is empty")
	}

	_, err := d.db.ExecContext(ctx,
		"insert or ignore into user_keywords (user_id, keyword) values (?, ?)",
		userID, keyword)

	return err
}

func (d *Database) RemoveKeyword(ctx context.Context, userID int64, keyword string) error {
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	_, err := d.db.ExecContext(ctx,
		"delete from user_keywords where user_id = ? and keyword = ?",
		userID, keyword)

	return err
}

func (d *Database) ListKeywords(ctx context.Context, userID int64) ([]string, error) {
	var keywords []string
	err := d.db.SelectContext(ctx, &keywords,
		"select keyword from user_keywords where user_id = ? order by keyword", userID)
	if err != nil {
		return nil, fmt.Errorf("select keywords: %w", err)
	}

	return keywords, nil
}

func (d *Database) MuteSource(ctx context.Context, userID int64, source string) error {
	source = normalizeSource(source)
	if source == "" {
		return errors.New("source is empty")
	}

	_, err := d.db.ExecContext(ctx,
		"insert or ignore into user_muted_sources (user_id, source) values (?, ?)",
		userID, source)

	return err
}

func (d *Database) UnmuteSource(ctx context.Context, userID int64, source string) error {
	_, err := d.db.ExecContext(ctx,
		"delete from user_muted_sources where user_id = ? and source = ?",
		userID, normalizeSource(source))

	return err
}

func (d *Database) ListMutedSources(ctx context.Context, userID int64) ([]string, error) {
	var sources []string
	err := d.db.SelectContext(ctx, &sources,
		"select source from user_muted_sources where user_id = ? order by source", userID)
	if err != nil {
		return nil, fmt.Errorf("select muted sources: %w", err)
	}

	return sources, nil
}

func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(source), "@"))
}
