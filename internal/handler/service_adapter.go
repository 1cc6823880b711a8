package handler

import (
	"github.com/hitoshi/gamebox/internal/auth"
	"github.com/hitoshi/gamebox/internal/game"
	"github.com/hitoshi/gamebox/internal/profile"
	"github.com/hitoshi/gamebox/internal/progress"
	"github.com/hitoshi/gamebox/internal/user"
)

// ドメインサービスはhandlerのインターフェースをそのまま満たす。
// 実装の差し替え（テストのモック等）はインターフェース側で行う。

var _ AuthServiceInterface = (*auth.Service)(nil)
var _ GameServiceInterface = (*game.Service)(nil)
var _ GameValidator = (*game.Service)(nil)
var _ ProgressServiceInterface = (*progress.Reconciler)(nil)
var _ ProfileServiceInterface = (*profile.Bootstrapper)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
