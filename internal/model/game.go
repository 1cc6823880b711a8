// Package model はドメインモデルを定義する。
package model

import "time"

// Game はミニゲームカタログのエントリを表す。
// カタログはカタログマニフェストから外部的に投入され、
// アプリケーションコアは読み取りのみを行う。
type Game struct {
	ID               string // マニフェスト由来のスラッグID
	Name             string
	Description      string // サニタイズ済みプレーンテキスト
	Category         string
	Difficulty       Difficulty
	Active           bool
	NewsFeedURL      string // 任意。ゲームの更新情報RSS/AtomフィードURL
	NewsETag         string
	NewsLastModified string
	IconData         []byte
	IconMime         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Difficulty はゲームの難易度を表す。
type Difficulty string

const (
	// DifficultyEasy は難易度「easy」。
	DifficultyEasy Difficulty = "easy"
	// DifficultyMedium は難易度「medium」。
	DifficultyMedium Difficulty = "medium"
	// DifficultyHard は難易度「hard」。
	DifficultyHard Difficulty = "hard"
)

// IsValid は難易度が定義済みの値かどうかを返す。
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Announcement はゲームの更新情報フィードから取得したお知らせを表す。
// (game_id, guid)で一意。
type Announcement struct {
	ID          string
	GameID      string
	GUID        string
	Title       string
	Link        string
	Body        string // サニタイズ済みHTML
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
