package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/gamebox/internal/model"
)

// PostgresGameRepo はPostgreSQLを使用したゲームカタログリポジトリ。
type PostgresGameRepo struct {
	db *sql.DB
}

// NewPostgresGameRepo はPostgresGameRepoを生成する。
func NewPostgresGameRepo(db *sql.DB) *PostgresGameRepo {
	return &PostgresGameRepo{db: db}
}

const gameColumns = `id, name, description, category, difficulty, active,
	news_feed_url, news_etag, news_last_modified, icon_data, icon_mime,
	created_at, updated_at`

// scanGame は1行分のゲームレコードをスキャンする。
func scanGame(row interface{ Scan(...any) error }) (*model.Game, error) {
	game := &model.Game{}
	var iconData []byte
	var iconMime sql.NullString

	err := row.Scan(
		&game.ID, &game.Name, &game.Description, &game.Category,
		&game.Difficulty, &game.Active,
		&game.NewsFeedURL, &game.NewsETag, &game.NewsLastModified,
		&iconData, &iconMime,
		&game.CreatedAt, &game.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	game.IconData = iconData
	if iconMime.Valid {
		game.IconMime = iconMime.String
	}
	return game, nil
}

// FindByID は指定IDのゲームを取得する。見つからない場合はnilを返す。
func (r *PostgresGameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1`,
		id,
	)

	game, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}
	return game, nil
}

// ListActive は公開中のゲーム一覧をID昇順で返す。
func (r *PostgresGameRepo) ListActive(ctx context.Context) ([]*model.Game, error) {
	return r.list(ctx, `SELECT `+gameColumns+` FROM games WHERE active = true ORDER BY id`)
}

// ListAll は全ゲーム一覧をID昇順で返す。カタログ同期で使用する。
func (r *PostgresGameRepo) ListAll(ctx context.Context) ([]*model.Game, error) {
	return r.list(ctx, `SELECT `+gameColumns+` FROM games ORDER BY id`)
}

func (r *PostgresGameRepo) list(ctx context.Context, query string) ([]*model.Game, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []*model.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game rows: %w", err)
	}

	return games, nil
}

// Upsert はゲームをidをキーに冪等にUPSERTする。
// アイコンとフィード取得状態はカタログ同期とは別経路で更新されるため、
// ここでは上書きしない。
func (r *PostgresGameRepo) Upsert(ctx context.Context, game *model.Game) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO games (id, name, description, category, difficulty, active, news_feed_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		     name = EXCLUDED.name,
		     description = EXCLUDED.description,
		     category = EXCLUDED.category,
		     difficulty = EXCLUDED.difficulty,
		     active = EXCLUDED.active,
		     news_feed_url = EXCLUDED.news_feed_url,
		     updated_at = EXCLUDED.updated_at`,
		game.ID, game.Name, game.Description, game.Category,
		game.Difficulty, game.Active, game.NewsFeedURL,
		game.CreatedAt, game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	return nil
}

// DeactivateMissing は指定ID集合に含まれないゲームを非公開にする。
// 進捗レコードの外部キーを保つため、削除は行わない。
func (r *PostgresGameRepo) DeactivateMissing(ctx context.Context, presentIDs []string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE games SET active = false, updated_at = now()
		 WHERE active = true AND id != ALL($1)`,
		pq.Array(presentIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate games: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deactivated games: %w", err)
	}
	return int(affected), nil
}

// UpdateNewsFetchState はゲームのフィード取得状態（ETag/Last-Modified）を更新する。
func (r *PostgresGameRepo) UpdateNewsFetchState(ctx context.Context, gameID, etag, lastModified string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET news_etag = $2, news_last_modified = $3, updated_at = now()
		 WHERE id = $1`,
		gameID, etag, lastModified,
	)
	if err != nil {
		return fmt.Errorf("failed to update news fetch state: %w", err)
	}
	return nil
}

// UpdateIcon はゲームのアイコンデータを更新する。
func (r *PostgresGameRepo) UpdateIcon(ctx context.Context, gameID string, iconData []byte, iconMime string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE games SET icon_data = $2, icon_mime = $3, updated_at = now()
		 WHERE id = $1`,
		gameID, iconData, iconMime,
	)
	if err != nil {
		return fmt.Errorf("failed to update game icon: %w", err)
	}
	return nil
}

// compile-time interface check
var _ GameRepository = (*PostgresGameRepo)(nil)
