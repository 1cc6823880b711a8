package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gamebox/internal/middleware"
	"github.com/hitoshi/gamebox/internal/model"
)

// ProgressServiceInterface は進捗ハンドラーが必要とするサービスインターフェース。
type ProgressServiceInterface interface {
	// Report はプレイ結果を既存レコードとマージして永続化し、
	// ストアで正となったレコードを返す。
	Report(ctx context.Context, userID string, report model.PlayReport) (*model.Progress, error)
	// ProgressFor は台帳から指定ゲームのレコードを返す。未プレイの場合はok=false。
	ProgressFor(userID, gameID string) (model.Progress, bool)
	// Records は台帳の全レコードをゲームID昇順で返す。
	Records(userID string) []model.Progress
	// TotalScore は全レコードのスコア合計を返す。
	TotalScore(userID string) int
	// CompletedCount はcompleted=trueのレコード数を返す。
	CompletedCount(userID string) int
	// Load はストアから台帳を読み込む。台帳未読込時の参照前に呼ぶ。
	Load(ctx context.Context, userID string) error
}

// GameValidator はプレイ報告前のゲーム検証インターフェース。
type GameValidator interface {
	// Get は指定IDのゲームを返す。未検出・非公開はAPIErrorを返す。
	Get(ctx context.Context, gameID string) (*model.Game, error)
}

// ProgressHandler はゲーム進捗のHTTPハンドラー。
type ProgressHandler struct {
	service ProgressServiceInterface
	games   GameValidator
}

// NewProgressHandler はProgressHandlerを生成する。
func NewProgressHandler(service ProgressServiceInterface, games GameValidator) *ProgressHandler {
	return &ProgressHandler{service: service, games: games}
}

// --- リクエスト/レスポンス型 ---

// playReportRequest はプレイ報告リクエストのボディ。
type playReportRequest struct {
	Score            int  `json:"score"`
	Completed        bool `json:"completed"`
	TimeSpentSeconds int  `json:"time_spent_seconds"`
}

// progressResponse は進捗レコードのレスポンス。
type progressResponse struct {
	GameID           string    `json:"game_id"`
	Score            int       `json:"score"`
	Completed        bool      `json:"completed"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// progressListResponse は全進捗のレスポンス。
type progressListResponse struct {
	Records        []progressResponse `json:"records"`
	TotalScore     int                `json:"total_score"`
	CompletedCount int                `json:"completed_count"`
}

// ReportProgress はプレイ結果を報告する。
// マージ規則: スコアは最大値、達成フラグは片方向、プレイ時間は最終報告が勝つ。
// レスポンスはストアから再読み込みした正のレコード。
// PUT /api/games/:id/progress
func (h *ProgressHandler) ReportProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	gameID := chi.URLParam(r, "id")

	// 公開中のゲームのみ報告を受け付ける
	if _, err := h.games.Get(r.Context(), gameID); err != nil {
		handleServiceError(w, err)
		return
	}

	var req playReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	report := model.PlayReport{
		GameID:           gameID,
		Score:            req.Score,
		Completed:        req.Completed,
		TimeSpentSeconds: req.TimeSpentSeconds,
	}

	canonical, err := h.service.Report(r.Context(), userID, report)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProgressResponse(*canonical))
}

// GetProgress は指定ゲームの進捗を取得する。未プレイの場合は404。
// GET /api/games/:id/progress
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	gameID := chi.URLParam(r, "id")

	if err := h.ensureLedger(r, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	record, ok := h.service.ProgressFor(userID, gameID)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProgressNotFoundError(gameID))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProgressResponse(record))
}

// ListProgress は全進捗と集計値を取得する。
// GET /api/progress
func (h *ProgressHandler) ListProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotAuthenticatedError())
		return
	}

	if err := h.ensureLedger(r, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	records := h.service.Records(userID)
	resp := progressListResponse{
		Records:        make([]progressResponse, len(records)),
		TotalScore:     h.service.TotalScore(userID),
		CompletedCount: h.service.CompletedCount(userID),
	}
	for i, rec := range records {
		resp.Records[i] = toProgressResponse(rec)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ensureLedger はサーバー再起動後など台帳未読込の場合にストアから読み込む。
func (h *ProgressHandler) ensureLedger(r *http.Request, userID string) error {
	if len(h.service.Records(userID)) > 0 {
		return nil
	}
	return h.service.Load(r.Context(), userID)
}

// toProgressResponse はドメインのProgressをレスポンス型に変換する。
func toProgressResponse(p model.Progress) progressResponse {
	return progressResponse{
		GameID:           p.GameID,
		Score:            p.Score,
		Completed:        p.Completed,
		TimeSpentSeconds: p.TimeSpentSeconds,
		UpdatedAt:        p.UpdatedAt,
	}
}
