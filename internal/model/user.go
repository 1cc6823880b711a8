// Package model はドメインモデルを定義する。
package model

import "time"

// User はポータル利用ユーザーのアカウントを表す。
// 初回OAuthログイン時に自動作成される。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// IdentityMetadata はIdPから取得した表示用メタデータを表す。
// プロフィールのブートストラップ（username導出）に使用される。
// すべてのフィールドは任意で、空の場合はフォールバックで補完される。
type IdentityMetadata struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
