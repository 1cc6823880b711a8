// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, game, progress, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeGameNotFound     = "GAME_NOT_FOUND"
	ErrCodeGameInactive     = "GAME_INACTIVE"
	ErrCodeProgressNotFound = "PROGRESS_NOT_FOUND"
	ErrCodeInvalidReport    = "INVALID_REPORT"
	ErrCodeInvalidUsername  = "INVALID_USERNAME"
	ErrCodeUsernameTaken    = "USERNAME_TAKEN"
	ErrCodeProfileNotFound  = "PROFILE_NOT_FOUND"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
)

// NewNotAuthenticatedError は未認証でのプレイ報告エラーを生成する。
// 永続化は一切行われず、ユーザーへの警告として扱われる。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "ログインしていないため、プレイ結果を保存できません。",
		Category: "auth",
		Action:   "ログインしてから再度プレイしてください。",
	}
}

// NewGameNotFoundError はゲーム未検出エラーを生成する。
func NewGameNotFoundError(gameID string) *APIError {
	return &APIError{
		Code:     ErrCodeGameNotFound,
		Message:  fmt.Sprintf("指定されたゲームが見つかりません: %s", gameID),
		Category: "game",
		Action:   "ゲームIDを確認してください。",
	}
}

// NewGameInactiveError は非公開ゲームへのアクセスエラーを生成する。
func NewGameInactiveError(gameID string) *APIError {
	return &APIError{
		Code:     ErrCodeGameInactive,
		Message:  fmt.Sprintf("このゲームは現在公開されていません: %s", gameID),
		Category: "game",
		Action:   "公開中のゲーム一覧から選択してください。",
	}
}

// NewProgressNotFoundError は未プレイゲームの進捗参照エラーを生成する。
func NewProgressNotFoundError(gameID string) *APIError {
	return &APIError{
		Code:     ErrCodeProgressNotFound,
		Message:  fmt.Sprintf("このゲームのプレイ記録はまだありません: %s", gameID),
		Category: "progress",
		Action:   "ゲームをプレイすると進捗が記録されます。",
	}
}

// NewInvalidReportError は不正なプレイ報告エラーを生成する。
func NewInvalidReportError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReport,
		Message:  fmt.Sprintf("不正なプレイ報告です: %s", reason),
		Category: "validation",
		Action:   "スコアとプレイ時間は0以上の整数を指定してください。",
	}
}

// NewInvalidUsernameError は不正なユーザー名エラーを生成する。
func NewInvalidUsernameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUsername,
		Message:  fmt.Sprintf("不正なユーザー名です: %s", reason),
		Category: "validation",
		Action:   "ユーザー名は3〜30文字の英数字・ハイフン・アンダースコアで指定してください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
