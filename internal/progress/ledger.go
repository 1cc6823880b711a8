// Package progress はユーザーごとのゲーム進捗の照合・永続化を提供する。
// インメモリの台帳（ledger）と、プレイ報告の単調マージ→UPSERT→再読み込みの
// 2段階契約を実装する。
package progress

import (
	"sort"

	"github.com/hitoshi/gamebox/internal/model"
)

// Ledger は1ユーザー分の進捗レコードのインメモリビューを表す。
// ストアからの読み込みで丸ごと置き換えられ、部分的なマージは行わない。
// 派生読み取り（合計スコア、クリア数）は副作用なしの純粋な計算で提供する。
type Ledger struct {
	records map[string]model.Progress // gameID -> Progress
}

// NewLedger は空のLedgerを生成する。
func NewLedger() *Ledger {
	return &Ledger{records: make(map[string]model.Progress)}
}

// Replace は台帳の内容を指定レコード群で丸ごと置き換える。
// 読み込み境界ではlast-write-wins: 古いクライアント状態とのマージは行わない。
func (l *Ledger) Replace(records []*model.Progress) {
	next := make(map[string]model.Progress, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		next[r.GameID] = *r
	}
	l.records = next
}

// Get は指定ゲームの進捗レコードを返す。未プレイの場合はok=falseを返す。
func (l *Ledger) Get(gameID string) (model.Progress, bool) {
	r, ok := l.records[gameID]
	return r, ok
}

// Records は全レコードをゲームID昇順で返す。
func (l *Ledger) Records() []model.Progress {
	out := make([]model.Progress, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// Len はレコード数を返す。
func (l *Ledger) Len() int {
	return len(l.records)
}

// TotalScore は全レコードのスコア合計を返す。
func (l *Ledger) TotalScore() int {
	total := 0
	for _, r := range l.records {
		total += r.Score
	}
	return total
}

// CompletedCount はcompleted=trueのレコード数を返す。
func (l *Ledger) CompletedCount() int {
	count := 0
	for _, r := range l.records {
		if r.Completed {
			count++
		}
	}
	return count
}
