// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/gamebox/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、profilesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int, error)
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
// game_progressの外部キー参照先となるため、進捗の書き込みに先立って
// Upsertが成功している必要がある。
type ProfileRepository interface {
	// FindByID は指定ユーザーIDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// FindByUsername はユーザー名でプロフィールを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Profile, error)

	// Upsert はプロフィールをidをキーに冪等にUPSERTする。
	// 同一idに対して何度呼んでも行は1つのまま、フィールドは最新値で上書きされる。
	Upsert(ctx context.Context, profile *model.Profile) error

	// DeleteByID は指定ユーザーIDのプロフィールを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// GameRepository はゲームカタログの永続化インターフェース。
// カタログはカタログ同期ワーカーが投入し、APIは読み取りのみを行う。
type GameRepository interface {
	// FindByID は指定IDのゲームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Game, error)

	// ListActive は公開中のゲーム一覧をID昇順で返す。
	ListActive(ctx context.Context) ([]*model.Game, error)

	// ListAll は全ゲーム一覧をID昇順で返す。カタログ同期で使用する。
	ListAll(ctx context.Context) ([]*model.Game, error)

	// Upsert はゲームをidをキーに冪等にUPSERTする。
	Upsert(ctx context.Context, game *model.Game) error

	// DeactivateMissing は指定ID集合に含まれないゲームを非公開にする。
	// 進捗レコードの外部キーを保つため、削除は行わない。
	// 非公開にした件数を返す。
	DeactivateMissing(ctx context.Context, presentIDs []string) (int, error)

	// UpdateNewsFetchState はゲームのフィード取得状態（ETag/Last-Modified）を更新する。
	UpdateNewsFetchState(ctx context.Context, gameID, etag, lastModified string) error

	// UpdateIcon はゲームのアイコンデータを更新する。
	UpdateIcon(ctx context.Context, gameID string, iconData []byte, iconMime string) error
}

// ProgressRepository はユーザーごとのゲーム進捗の永続化インターフェース。
type ProgressRepository interface {
	// FindByUserAndGame はユーザーIDとゲームIDで進捗を取得する。見つからない場合はnilを返す。
	FindByUserAndGame(ctx context.Context, userID, gameID string) (*model.Progress, error)

	// ListByUser はユーザーの全進捗レコードをゲームID昇順で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Progress, error)

	// Upsert は進捗をUNIQUE(user_id, game_id)をキーに原子的にUPSERTする。
	// 同一ペアへの並行報告があっても行は最大1つで、最後の永続化が勝つ。
	// profilesに対応する行が存在しない場合は外部キー違反として失敗する。
	Upsert(ctx context.Context, progress *model.Progress) error

	// DeleteByUserID はユーザーの全進捗レコードを削除する。退会処理で使用する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// AnnouncementRepository はゲームのお知らせの永続化インターフェース。
type AnnouncementRepository interface {
	// FindByGameAndGUID はゲームIDとGUIDでお知らせを検索する。見つからない場合はnilを返す。
	FindByGameAndGUID(ctx context.Context, gameID, guid string) (*model.Announcement, error)

	// ListByGame はゲームのお知らせ一覧を公開日時降順で返す。
	ListByGame(ctx context.Context, gameID string, limit int) ([]*model.Announcement, error)

	// Upsert はお知らせをUNIQUE(game_id, guid)をキーに冪等にUPSERTする。
	Upsert(ctx context.Context, announcement *model.Announcement) error

	// DeleteOlderThan は指定日数より古いお知らせを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, days int) (int, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
