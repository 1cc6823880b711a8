package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/gamebox/internal/model"
)

// PostgresProgressRepo はPostgreSQLを使用したゲーム進捗リポジトリ。
type PostgresProgressRepo struct {
	db *sql.DB
}

// NewPostgresProgressRepo はPostgresProgressRepoを生成する。
func NewPostgresProgressRepo(db *sql.DB) *PostgresProgressRepo {
	return &PostgresProgressRepo{db: db}
}

// FindByUserAndGame はユーザーIDとゲームIDで進捗を取得する。見つからない場合はnilを返す。
func (r *PostgresProgressRepo) FindByUserAndGame(ctx context.Context, userID, gameID string) (*model.Progress, error) {
	progress := &model.Progress{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, game_id, score, completed, time_spent_seconds, created_at, updated_at
		 FROM game_progress WHERE user_id = $1 AND game_id = $2`,
		userID, gameID,
	).Scan(
		&progress.ID, &progress.UserID, &progress.GameID,
		&progress.Score, &progress.Completed, &progress.TimeSpentSeconds,
		&progress.CreatedAt, &progress.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find progress: %w", err)
	}

	return progress, nil
}

// ListByUser はユーザーの全進捗レコードをゲームID昇順で返す。
func (r *PostgresProgressRepo) ListByUser(ctx context.Context, userID string) ([]*model.Progress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, game_id, score, completed, time_spent_seconds, created_at, updated_at
		 FROM game_progress WHERE user_id = $1 ORDER BY game_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var records []*model.Progress
	for rows.Next() {
		progress := &model.Progress{}
		if err := rows.Scan(
			&progress.ID, &progress.UserID, &progress.GameID,
			&progress.Score, &progress.Completed, &progress.TimeSpentSeconds,
			&progress.CreatedAt, &progress.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		records = append(records, progress)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read progress rows: %w", err)
	}

	return records, nil
}

// Upsert は進捗をUNIQUE(user_id, game_id)をキーに原子的にUPSERTする。
// 同一ペアへの並行報告に対してもストア側で単調性を保証するため、
// scoreはGREATEST、completedは論理和で合成する。
// time_spent_secondsは最終報告値で上書きする（累積しない）。
// profilesに対応する行が存在しない場合は外部キー違反として失敗する。
func (r *PostgresProgressRepo) Upsert(ctx context.Context, progress *model.Progress) error {
	if progress.ID == "" {
		progress.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO game_progress (id, user_id, game_id, score, completed, time_spent_seconds, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, game_id) DO UPDATE SET
		     score = GREATEST(game_progress.score, EXCLUDED.score),
		     completed = game_progress.completed OR EXCLUDED.completed,
		     time_spent_seconds = EXCLUDED.time_spent_seconds,
		     updated_at = EXCLUDED.updated_at`,
		progress.ID, progress.UserID, progress.GameID,
		progress.Score, progress.Completed, progress.TimeSpentSeconds,
		progress.CreatedAt, progress.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全進捗レコードを削除する。退会処理で使用する。
func (r *PostgresProgressRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM game_progress WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user progress: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProgressRepository = (*PostgresProgressRepo)(nil)
