package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/money"

	"gorm.io/gorm"
)

var ErrSimulateDisabled = errors.New("模拟计费接口未开放")

// SessionService 会话读路径和客户端侧状态变更
// 计费一律转交 CreditService，这里不碰余额
type SessionService struct {
	db            *gorm.DB
	cfg           *config.Config
	sessionRepo   *repository.SessionRepository
	userRepo      *repository.UserRepository
	creditService *CreditService
}

func NewSessionService(db *gorm.DB, cfg *config.Config, creditService *CreditService) *SessionService {
	return &SessionService{
		db:            db,
		cfg:           cfg,
		sessionRepo:   repository.NewSessionRepository(db),
		userRepo:      repository.NewUserRepository(db),
		creditService: creditService,
	}
}

// ProviderParams 前端拉起广告 SDK 需要的参数
type ProviderParams struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	SDKSrc     string `json:"sdk_src"`
	ZoneID     string `json:"zone_id"`
	ShowFn     string `json:"show_fn"`
	Ymid       string `json:"ymid"`
	RequestVar string `json:"request_var"`
}

// SessionDetail 会话详情，渲染广告页用
type SessionDetail struct {
	SessionID     string         `json:"session_id"`
	Status        string         `json:"status"`
	Credited      bool           `json:"credited"`
	ExpiresAt     time.Time      `json:"expires_at"`
	TaskID        int64          `json:"task_id"`
	TaskTitle     string         `json:"task_title"`
	TaskKind      string         `json:"task_kind"`
	Reward        float64        `json:"reward"`
	Provider      ProviderParams `json:"provider"`
	AllowSimulate bool           `json:"allow_simulate"`
}

// SessionState 轮询用的会话状态 + 用户实时计数
type SessionState struct {
	Status     string  `json:"status"`
	Credited   bool    `json:"credited"`
	Balance    float64 `json:"balance"`
	AdsWatched int64   `json:"ads_watched"`
	DailyAds   int     `json:"daily_ads"`
	DailyLimit int     `json:"daily_limit"`
}

// buildProviderParams 按任务类型选广告位，展示函数名可配置，缺省按广告位推导
func (s *SessionService) buildProviderParams(session *model.AdSession) ProviderParams {
	zone := s.cfg.Monetag.MainZone
	if session.TaskKind == model.TaskKindVideo && s.cfg.Monetag.VideoZone != "" {
		zone = s.cfg.Monetag.VideoZone
	}

	showFn := s.cfg.Monetag.ShowFn
	if showFn == "" && zone != "" {
		showFn = fmt.Sprintf("show_%s", zone)
	}

	return ProviderParams{
		Name:       session.Provider,
		Enabled:    s.cfg.Monetag.SDKSrc != "" && zone != "",
		SDKSrc:     s.cfg.Monetag.SDKSrc,
		ZoneID:     zone,
		ShowFn:     showFn,
		Ymid:       session.Ymid,
		RequestVar: session.RequestVar,
	}
}

// GetSession 会话详情（校验归属）
func (s *SessionService) GetSession(ctx context.Context, sessionID string, userID int64) (*SessionDetail, error) {
	session, err := s.sessionRepo.GetByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	return &SessionDetail{
		SessionID:     session.ID,
		Status:        session.Status,
		Credited:      session.Credited,
		ExpiresAt:     session.ExpiresAt,
		TaskID:        session.TaskID,
		TaskTitle:     session.TaskTitle,
		TaskKind:      session.TaskKind,
		Reward:        money.Float(session.RewardMills),
		Provider:      s.buildProviderParams(session),
		AllowSimulate: s.cfg.Business.AllowSimulate,
	}, nil
}

// ClientDone 客户端自报广告播放完成
// 只把 created 推进到 client_done，其余状态原样返回，重复上报不是错误
func (s *SessionService) ClientDone(ctx context.Context, sessionID string, userID int64) (*model.AdSession, error) {
	session, err := s.sessionRepo.GetByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if model.CanSessionTransitionTo(session.Status, model.SessionStatusClientDone) {
		if err := s.sessionRepo.MarkClientDone(ctx, sessionID, time.Now()); err != nil {
			return nil, err
		}
	}

	return s.sessionRepo.GetByIDAndUser(ctx, sessionID, userID)
}

// GetState 轮询会话状态，顺带返回实时余额与计数
func (s *SessionService) GetState(ctx context.Context, sessionID string, userID int64) (*SessionState, error) {
	session, err := s.sessionRepo.GetByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.RefreshDaily(ctx, nil, userID, model.DayStamp(time.Now()))
	if err != nil {
		return nil, err
	}

	return &SessionState{
		Status:     session.Status,
		Credited:   session.Credited,
		Balance:    money.Float(user.Balance),
		AdsWatched: user.AdsWatched,
		DailyAds:   user.DailyAds,
		DailyLimit: s.cfg.Business.DailyLimit,
	}, nil
}

// SimulateValued 调试接口：跳过广告商直接触发一次计费尝试
// 受配置开关保护，计费语义与真实回调完全一致
func (s *SessionService) SimulateValued(ctx context.Context, sessionID string, userID int64) (bool, error) {
	if !s.cfg.Business.AllowSimulate {
		return false, ErrSimulateDisabled
	}

	if _, err := s.sessionRepo.GetByIDAndUser(ctx, sessionID, userID); err != nil {
		return false, err
	}

	return s.creditService.AttemptCredit(ctx, sessionID)
}
