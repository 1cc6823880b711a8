package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/gamebox/internal/model"
)

// PostgresAnnouncementRepo はPostgreSQLを使用したお知らせリポジトリ。
type PostgresAnnouncementRepo struct {
	db *sql.DB
}

// NewPostgresAnnouncementRepo はPostgresAnnouncementRepoを生成する。
func NewPostgresAnnouncementRepo(db *sql.DB) *PostgresAnnouncementRepo {
	return &PostgresAnnouncementRepo{db: db}
}

// FindByGameAndGUID はゲームIDとGUIDでお知らせを検索する。見つからない場合はnilを返す。
func (r *PostgresAnnouncementRepo) FindByGameAndGUID(ctx context.Context, gameID, guid string) (*model.Announcement, error) {
	a := &model.Announcement{}
	var publishedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, game_id, guid, title, link, body, published_at, created_at, updated_at
		 FROM announcements WHERE game_id = $1 AND guid = $2`,
		gameID, guid,
	).Scan(&a.ID, &a.GameID, &a.GUID, &a.Title, &a.Link, &a.Body, &publishedAt, &a.CreatedAt, &a.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find announcement: %w", err)
	}

	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	return a, nil
}

// ListByGame はゲームのお知らせ一覧を公開日時降順で返す。
func (r *PostgresAnnouncementRepo) ListByGame(ctx context.Context, gameID string, limit int) ([]*model.Announcement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, game_id, guid, title, link, body, published_at, created_at, updated_at
		 FROM announcements WHERE game_id = $1
		 ORDER BY published_at DESC NULLS LAST, created_at DESC
		 LIMIT $2`,
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	var announcements []*model.Announcement
	for rows.Next() {
		a := &model.Announcement{}
		var publishedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.GameID, &a.GUID, &a.Title, &a.Link, &a.Body, &publishedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		if publishedAt.Valid {
			a.PublishedAt = &publishedAt.Time
		}
		announcements = append(announcements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read announcement rows: %w", err)
	}

	return announcements, nil
}

// Upsert はお知らせをUNIQUE(game_id, guid)をキーに冪等にUPSERTする。
func (r *PostgresAnnouncementRepo) Upsert(ctx context.Context, announcement *model.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now

	var publishedAt sql.NullTime
	if announcement.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *announcement.PublishedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO announcements (id, game_id, guid, title, link, body, published_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (game_id, guid) DO UPDATE SET
		     title = EXCLUDED.title,
		     link = EXCLUDED.link,
		     body = EXCLUDED.body,
		     published_at = EXCLUDED.published_at,
		     updated_at = EXCLUDED.updated_at`,
		announcement.ID, announcement.GameID, announcement.GUID,
		announcement.Title, announcement.Link, announcement.Body,
		publishedAt, announcement.CreatedAt, announcement.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert announcement: %w", err)
	}
	return nil
}

// DeleteOlderThan は指定日数より古いお知らせを削除し、削除件数を返す。
// 公開日時を持たない行はcreated_atで判定する。
func (r *PostgresAnnouncementRepo) DeleteOlderThan(ctx context.Context, days int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM announcements
		 WHERE COALESCE(published_at, created_at) < now() - ($1 || ' days')::interval`,
		days,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old announcements: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted announcements: %w", err)
	}
	return int(n), nil
}

// compile-time interface check
var _ AnnouncementRepository = (*PostgresAnnouncementRepo)(nil)
