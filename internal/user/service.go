// Package user はユーザーアカウントのライフサイクル操作を提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/gamebox/internal/model"
	"github.com/hitoshi/gamebox/internal/repository"
)

// LedgerDiscarder は退会時の進捗台帳破棄インターフェース。
type LedgerDiscarder interface {
	Discard(userID string)
}

// Service はユーザーアカウントに関するビジネスロジックを提供する。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	profileRepo  repository.ProfileRepository
	progressRepo repository.ProgressRepository
	ledger       LedgerDiscarder
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	profileRepo repository.ProfileRepository,
	progressRepo repository.ProgressRepository,
	ledger LedgerDiscarder,
) *Service {
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		profileRepo:  profileRepo,
		progressRepo: progressRepo,
		ledger:       ledger,
	}
}

// Withdraw はユーザーを退会させ、関連データを全て削除する。
// 外部キーの依存方向に従い、進捗 → プロフィール → セッション → ユーザー
// の順で削除する。identitiesはユーザー削除時にCASCADEで消える。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewNotAuthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.progressRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if err := s.profileRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if s.ledger != nil {
		s.ledger.Discard(userID)
	}

	slog.Info("user withdrawn", slog.String("user_id", userID))
	return nil
}
