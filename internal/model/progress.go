// Package model はドメインモデルを定義する。
package model

import "time"

// Progress はユーザーとゲームの組に対する既知で最良のプレイ結果を表す。
// (user_id, game_id)で一意。scoreは単調非減少、completedは一度trueになると
// 後続のマージで巻き戻らない。TimeSpentSecondsは最後に報告された
// セッション時間であり、累積値ではない。
type Progress struct {
	ID               string
	UserID           string
	GameID           string
	Score            int
	Completed        bool
	TimeSpentSeconds int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PlayReport はゲームUIから報告される1プレイセッションの結果を表す。
type PlayReport struct {
	GameID           string
	Score            int
	Completed        bool
	TimeSpentSeconds int
}

// MergePlayReport は既存の進捗レコードとプレイ報告をマージした次状態を返す。
// マージ規則:
//   - score' = max(既存score, 報告score) — スコアは後退しない
//   - completed' = 既存completed OR 報告completed — 達成は取り消されない
//   - timeSpent' = 報告値 — 最終報告が勝つ（累積しない）
//   - updatedAt' = now
//
// existingがnilの場合は報告値をそのまま初期状態とする。
// 純粋関数であり、existingを変更しない。
func MergePlayReport(existing *Progress, userID string, report PlayReport, now time.Time) Progress {
	if existing == nil {
		return Progress{
			UserID:           userID,
			GameID:           report.GameID,
			Score:            report.Score,
			Completed:        report.Completed,
			TimeSpentSeconds: report.TimeSpentSeconds,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	merged := *existing
	if report.Score > merged.Score {
		merged.Score = report.Score
	}
	merged.Completed = merged.Completed || report.Completed
	merged.TimeSpentSeconds = report.TimeSpentSeconds
	merged.UpdatedAt = now
	return merged
}
