// Package profile はユーザープロフィールのブートストラップと管理を提供する。
//
// game_progressはprofiles(id)を外部キー参照するため、進捗の書き込みに先立って
// プロフィール行が存在している必要がある。Bootstrapperはセッション確立のたびに
// 呼ばれ、プロフィール行の存在を冪等なUPSERTで保証する。
package profile

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/gamebox/internal/model"
	"github.com/hitoshi/gamebox/internal/repository"
)

// usernamePattern は手動設定時のユーザー名形式（3〜30文字の英数字・ハイフン・アンダースコア）。
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,30}$`)

// Bootstrapper はIdentityとProfileの参照整合性を保証するサービス。
//
// EnsureProfileはベストエフォート設計である: ブートストラップの失敗は
// セッションの利用開始をブロックしてはならないため、呼び出し側（認証サービス）は
// エラーをログに記録して握りつぶす。ただし失敗シグナル自体は返すので、
// リトライするかどうかは呼び出し側が選択できる。プロフィールが欠けたまま
// 進捗の書き込みが行われた場合、その書き込みはストアの外部キー境界で失敗し、
// 書き込みの呼び出し元にエラーとして表面化する（自動リトライはしない）。
type Bootstrapper struct {
	profileRepo repository.ProfileRepository
}

// NewBootstrapper はBootstrapperを生成する。
func NewBootstrapper(profileRepo repository.ProfileRepository) *Bootstrapper {
	return &Bootstrapper{profileRepo: profileRepo}
}

// EnsureProfile は認証済みIdentityに対応するプロフィール行の存在を保証する。
// 行が存在すれば最新のメタデータで上書きし、なければ作成する（idをキーとした
// 冪等UPSERT）。ログイン・トークンリフレッシュ・タブ再開など、セッションを
// 観測するたびに呼んでも行が重複したりusernameがドリフトしたりしない。
//
// 既にユーザーが自分でusernameを変更している場合、その値を維持する
// （メタデータ由来の導出値では上書きしない）。
func (b *Bootstrapper) EnsureProfile(ctx context.Context, userID string, meta model.IdentityMetadata) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	username := DeriveUsername(meta.Username, meta.Email, userID)

	existing, err := b.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check existing profile: %w", err)
	}
	if existing != nil && existing.Username != "" {
		// ユーザーが選択済みのusernameは導出値で上書きしない
		username = existing.Username
	}

	p := &model.Profile{
		ID:        userID,
		Email:     meta.Email,
		Username:  username,
		FirstName: meta.FirstName,
		LastName:  meta.LastName,
		UpdatedAt: time.Now().UTC(),
	}

	if err := b.profileRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("failed to bootstrap profile: %w", err)
	}

	return nil
}

// Get は指定ユーザーのプロフィールを返す。見つからない場合はPROFILE_NOT_FOUNDエラー。
func (b *Bootstrapper) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := b.profileRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if p == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return p, nil
}

// Update はユーザー自身によるプロフィール更新を行う。
// usernameは形式検証と重複チェックを経て、idをキーとした同一のUPSERT経路で
// 永続化される。
func (b *Bootstrapper) Update(ctx context.Context, userID, username, firstName, lastName string) (*model.Profile, error) {
	existing, err := b.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if username != existing.Username {
		if !usernamePattern.MatchString(username) {
			return nil, model.NewInvalidUsernameError(username)
		}
		taken, err := b.profileRepo.FindByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to check username availability: %w", err)
		}
		if taken != nil && taken.ID != userID {
			return nil, model.NewUsernameTakenError(username)
		}
	}

	updated := &model.Profile{
		ID:        userID,
		Email:     existing.Email,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		UpdatedAt: time.Now().UTC(),
	}
	if err := b.profileRepo.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return updated, nil
}

// Delete は指定ユーザーのプロフィールを削除する。退会処理で使用する。
func (b *Bootstrapper) Delete(ctx context.Context, userID string) error {
	return b.profileRepo.DeleteByID(ctx, userID)
}

// DeriveUsername はusernameをフォールバック優先順位で導出する:
//  1. IdPメタデータの明示的なusername
//  2. メールアドレスのローカル部
//  3. identity idの先頭8文字を組み込んだ生成値（player-xxxxxxxx）
//
// サインアップ時にusernameが選択されなかった場合でも、非空で
// ベストエフォートに一意な値が得られることを保証する。
func DeriveUsername(preferred, email, userID string) string {
	if preferred != "" {
		return preferred
	}

	if email != "" {
		if at := strings.Index(email, "@"); at > 0 {
			return email[:at]
		}
	}

	frag := userID
	if len(frag) > 8 {
		frag = frag[:8]
	}
	return "player-" + frag
}
