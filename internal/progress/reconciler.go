package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/gamebox/internal/model"
	"github.com/hitoshi/gamebox/internal/repository"
)

// Metrics はプレイ報告処理のメトリクス記録インターフェース。
// nilの場合は記録をスキップする。
type Metrics interface {
	RecordReportSuccess()
	RecordReportFailure(reason string)
	RecordRegressionPrevented()
}

// Reconciler はサインイン中ユーザーごとの進捗台帳を所有し、
// プレイ報告を後退なしでマージして永続化する。
//
// 報告の処理は2段階契約に従う:
//  1. 台帳上の既存レコードとマージした次状態を計算し、原子的UPSERTで送信する
//  2. 成功後にストアから全件を再読み込みし、台帳をストアの正の状態に再同期する
//
// ローカルで計算したマージ結果を最終状態として信頼しない。ストアが正であり、
// 別セッションからの並行書き込みはUPSERT側のlast-write-winsで解決される。
// UPSERTが失敗した場合、台帳は最後に読み込んだ状態のまま変更されない。
type Reconciler struct {
	repo    repository.ProgressRepository
	metrics Metrics

	mu      sync.RWMutex
	ledgers map[string]*Ledger // userID -> Ledger
}

// NewReconciler はReconcilerを生成する。metricsはnilでもよい。
func NewReconciler(repo repository.ProgressRepository, metrics Metrics) *Reconciler {
	return &Reconciler{
		repo:    repo,
		metrics: metrics,
		ledgers: make(map[string]*Ledger),
	}
}

// Load はユーザーの全進捗をストアから取得し、台帳を丸ごと置き換える。
// セッション確立時と、各報告の永続化成功後に呼ばれる。
func (r *Reconciler) Load(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewNotAuthenticatedError()
	}

	records, err := r.repo.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load progress ledger: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, ok := r.ledgers[userID]
	if !ok {
		ledger = NewLedger()
		r.ledgers[userID] = ledger
	}
	ledger.Replace(records)

	return nil
}

// Report はプレイ結果を既存レコードとマージして永続化し、
// 成功後にストアから台帳を再同期して正となったレコードを返す。
//
// 未認証（userIDが空）の場合は何も書き込まずNOT_AUTHENTICATEDエラーを返す。
// 永続化に失敗した場合は台帳を変更せずエラーを呼び出し元へ伝搬する。
// 自動リトライは行わない。ユーザーの再プレイ・再送信がリトライ手段となる。
func (r *Reconciler) Report(ctx context.Context, userID string, report model.PlayReport) (*model.Progress, error) {
	if userID == "" {
		return nil, model.NewNotAuthenticatedError()
	}
	if report.Score < 0 {
		return nil, model.NewInvalidReportError("スコアが負の値です")
	}
	if report.TimeSpentSeconds < 0 {
		return nil, model.NewInvalidReportError("プレイ時間が負の値です")
	}

	// サーバー再起動後など台帳が未読込の場合は先に読み込む
	if !r.hasLedger(userID) {
		if err := r.Load(ctx, userID); err != nil {
			r.recordFailure("load")
			return nil, err
		}
	}

	now := time.Now().UTC()
	existing := r.existingRecord(userID, report.GameID)
	merged := model.MergePlayReport(existing, userID, report, now)

	if existing != nil && (report.Score < existing.Score || (existing.Completed && !report.Completed)) {
		// 既存レコードより低いスコアまたは未完了の報告: マージ規則が後退を防いだ
		if r.metrics != nil {
			r.metrics.RecordRegressionPrevented()
		}
	}

	if err := r.repo.Upsert(ctx, &merged); err != nil {
		r.recordFailure("persist")
		return nil, fmt.Errorf("failed to persist progress: %w", err)
	}

	// ストアを正として台帳を再同期する
	if err := r.Load(ctx, userID); err != nil {
		r.recordFailure("reload")
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RecordReportSuccess()
	}

	canonical, ok := r.ProgressFor(userID, report.GameID)
	if !ok {
		// UPSERT成功直後の再読み込みでレコードが見えないのは想定外
		slog.Warn("再読み込み後に進捗レコードが見つかりません",
			slog.String("user_id", userID),
			slog.String("game_id", report.GameID),
		)
		return &merged, nil
	}
	return &canonical, nil
}

// ProgressFor は台帳から指定ゲームのレコードを返す。未プレイの場合はok=false。
// 最後に読み込んだ台帳に対する同期読み取りで、副作用はない。
func (r *Reconciler) ProgressFor(userID, gameID string) (model.Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger, ok := r.ledgers[userID]
	if !ok {
		return model.Progress{}, false
	}
	return ledger.Get(gameID)
}

// Records は台帳の全レコードをゲームID昇順で返す。
func (r *Reconciler) Records(userID string) []model.Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger, ok := r.ledgers[userID]
	if !ok {
		return nil
	}
	return ledger.Records()
}

// TotalScore は台帳の全レコードのスコア合計を返す。
func (r *Reconciler) TotalScore(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger, ok := r.ledgers[userID]
	if !ok {
		return 0
	}
	return ledger.TotalScore()
}

// CompletedCount は台帳のcompleted=trueのレコード数を返す。
func (r *Reconciler) CompletedCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger, ok := r.ledgers[userID]
	if !ok {
		return 0
	}
	return ledger.CompletedCount()
}

// Discard はユーザーの台帳を破棄する。サインアウト・退会時に呼ばれる。
func (r *Reconciler) Discard(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ledgers, userID)
}

func (r *Reconciler) hasLedger(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ledgers[userID]
	return ok
}

func (r *Reconciler) existingRecord(userID, gameID string) *model.Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger, ok := r.ledgers[userID]
	if !ok {
		return nil
	}
	record, ok := ledger.Get(gameID)
	if !ok {
		return nil
	}
	return &record
}

func (r *Reconciler) recordFailure(reason string) {
	if r.metrics != nil {
		r.metrics.RecordReportFailure(reason)
	}
}
