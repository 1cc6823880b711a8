// Package game はゲームカタログの読み取りロジックを提供する。
package game

import (
	"context"
	"fmt"

	"github.com/hitoshi/gamebox/internal/model"
	"github.com/hitoshi/gamebox/internal/repository"
)

// announcementDefaultLimit は1ゲームあたりのお知らせ取得上限。
const announcementDefaultLimit = 20

// Service はゲームカタログに関するビジネスロジックを提供する。
type Service struct {
	gameRepo         repository.GameRepository
	announcementRepo repository.AnnouncementRepository
}

// NewService はServiceを生成する。
func NewService(gameRepo repository.GameRepository, announcementRepo repository.AnnouncementRepository) *Service {
	return &Service{
		gameRepo:         gameRepo,
		announcementRepo: announcementRepo,
	}
}

// ListActive は公開中のゲーム一覧をID順で返す。
func (s *Service) ListActive(ctx context.Context) ([]*model.Game, error) {
	games, err := s.gameRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active games: %w", err)
	}
	return games, nil
}

// Get は指定IDのゲームを返す。
// 存在しない場合はGAME_NOT_FOUND、非公開の場合はGAME_INACTIVEを返す。
func (s *Service) Get(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to find game: %w", err)
	}
	if game == nil {
		return nil, model.NewGameNotFoundError(gameID)
	}
	if !game.Active {
		return nil, model.NewGameInactiveError(gameID)
	}
	return game, nil
}

// ListAnnouncements は指定ゲームのお知らせを新しい順で返す。
// ゲームが存在しないか非公開の場合はエラーを返す。
func (s *Service) ListAnnouncements(ctx context.Context, gameID string) ([]*model.Announcement, error) {
	if _, err := s.Get(ctx, gameID); err != nil {
		return nil, err
	}

	announcements, err := s.announcementRepo.ListByGame(ctx, gameID, announcementDefaultLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	return announcements, nil
}
