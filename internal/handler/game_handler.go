package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/gamebox/internal/model"
)

// GameServiceInterface はゲームハンドラーが必要とするサービスインターフェース。
type GameServiceInterface interface {
	// ListActive は公開中のゲーム一覧をID昇順で返す。
	ListActive(ctx context.Context) ([]*model.Game, error)
	// Get は指定IDのゲームを返す。未検出・非公開はAPIErrorを返す。
	Get(ctx context.Context, gameID string) (*model.Game, error)
	// ListAnnouncements はゲームのお知らせ一覧を公開日時降順で返す。
	ListAnnouncements(ctx context.Context, gameID string) ([]*model.Announcement, error)
}

// GameHandler はゲームカタログのHTTPハンドラー。
type GameHandler struct {
	service GameServiceInterface
}

// NewGameHandler はGameHandlerを生成する。
func NewGameHandler(service GameServiceInterface) *GameHandler {
	return &GameHandler{service: service}
}

// --- レスポンス型 ---

// gameResponse はゲームのレスポンス。
type gameResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	HasIcon     bool   `json:"has_icon"`
}

// gameListResponse はゲーム一覧のレスポンス。
type gameListResponse struct {
	Games []gameResponse `json:"games"`
}

// announcementResponse はお知らせのレスポンス。
type announcementResponse struct {
	ID          string     `json:"id"`
	GameID      string     `json:"game_id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Body        string     `json:"body"` // サニタイズ済みHTML
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// announcementListResponse はお知らせ一覧のレスポンス。
type announcementListResponse struct {
	Announcements []announcementResponse `json:"announcements"`
}

// apiErrorResponse は統一エラーフォーマットのJSONレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListGames は公開中のゲーム一覧を取得する。
// GET /api/games
func (h *GameHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.service.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := gameListResponse{Games: make([]gameResponse, len(games))}
	for i, g := range games {
		resp.Games[i] = toGameResponse(g)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetGame はゲーム詳細を取得する。
// GET /api/games/:id
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")

	game, err := h.service.Get(r.Context(), gameID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := toGameResponse(game)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetGameIcon はゲームアイコン画像を返す。
// GET /api/games/:id/icon
func (h *GameHandler) GetGameIcon(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")

	game, err := h.service.Get(r.Context(), gameID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if len(game.IconData) == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewGameNotFoundError(gameID))
		return
	}

	mime := game.IconMime
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(game.IconData)
}

// ListAnnouncements はゲームのお知らせ一覧を取得する。
// GET /api/games/:id/announcements
func (h *GameHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")

	announcements, err := h.service.ListAnnouncements(r.Context(), gameID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := announcementListResponse{Announcements: make([]announcementResponse, len(announcements))}
	for i, a := range announcements {
		resp.Announcements[i] = announcementResponse{
			ID:          a.ID,
			GameID:      a.GameID,
			Title:       a.Title,
			Link:        a.Link,
			Body:        a.Body,
			PublishedAt: a.PublishedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// toGameResponse はドメインのGameをレスポンス型に変換する。
// アイコンのバイナリは含めず、有無のみ返す。
func toGameResponse(g *model.Game) gameResponse {
	return gameResponse{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Category:    g.Category,
		Difficulty:  string(g.Difficulty),
		HasIcon:     len(g.IconData) > 0,
	}
}

// --- エラーレスポンス共通処理 ---

// writeAPIErrorResponse はAPIErrorを統一フォーマットのJSONで書き出す。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeGameNotFound:
		return http.StatusNotFound
	case model.ErrCodeGameInactive:
		return http.StatusNotFound
	case model.ErrCodeProgressNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidReport:
		return http.StatusBadRequest
	case model.ErrCodeInvalidUsername:
		return http.StatusBadRequest
	case model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// unauthorizedError は認証コンテキスト欠落時の共通エラー。
func unauthorizedError() *model.APIError {
	return &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
