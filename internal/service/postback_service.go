package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"rewardsystem/internal/config"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"gorm.io/gorm"
)

var ErrPostbackUnauthorized = errors.New("回调令牌不匹配")

// PostbackEvent 广告商回调的扁平字段集
// 查询串和 JSON 体合并后的命名字段，原始载荷另存一份进审计表
type PostbackEvent struct {
	Ymid            string
	EventType       string
	RewardEventType string
	ZoneID          string
	SubZoneID       string
	TelegramID      string
	RequestVar      string
	Token           string
	Raw             map[string]interface{}
}

// PostbackService 广告商回调摄入
//
// 【关键点】回调端点的三条纪律：
//  1. 鉴权失败以外，永远应答成功，避免广告商重试风暴
//  2. 不管事件有效与否，先原样落审计表再做别的
//  3. 计费只转交 CreditService，这里不做任何资金判断
type PostbackService struct {
	db            *gorm.DB
	cfg           *config.Config
	postbackRepo  *repository.PostbackRepository
	sessionRepo   *repository.SessionRepository
	creditService *CreditService
}

func NewPostbackService(db *gorm.DB, cfg *config.Config, creditService *CreditService) *PostbackService {
	return &PostbackService{
		db:            db,
		cfg:           cfg,
		postbackRepo:  repository.NewPostbackRepository(db),
		sessionRepo:   repository.NewSessionRepository(db),
		creditService: creditService,
	}
}

// Authorize 校验共享密钥，没配置密钥时放行（开放模式）
func (s *PostbackService) Authorize(event *PostbackEvent) error {
	if s.cfg.Business.PostbackToken == "" {
		return nil
	}
	if event.Token != s.cfg.Business.PostbackToken {
		return ErrPostbackUnauthorized
	}
	return nil
}

// Ingest 处理一条回调：落审计、配会话、条件触发计费
// 返回本次是否实际入账
func (s *PostbackService) Ingest(ctx context.Context, event *PostbackEvent) (bool, error) {
	payloadBytes, _ := json.Marshal(event.Raw)

	record := &model.AdPostback{
		Ymid:            event.Ymid,
		EventType:       strings.ToLower(event.EventType),
		RewardEventType: strings.ToLower(event.RewardEventType),
		ZoneID:          event.ZoneID,
		SubZoneID:       event.SubZoneID,
		TelegramID:      event.TelegramID,
		RequestVar:      event.RequestVar,
		PayloadJSON:     string(payloadBytes),
		CreatedAt:       time.Now(),
	}
	if err := s.postbackRepo.Create(ctx, record); err != nil {
		// 审计失败也不向广告商报错，只记日志
		log.Printf("回调审计落库失败: ymid=%s, err=%v", event.Ymid, err)
	}

	if event.Ymid == "" {
		return false, nil
	}
	if !model.QualifiesForCredit(record.RewardEventType) {
		return false, nil
	}

	session, err := s.sessionRepo.GetByYmid(ctx, event.Ymid)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// 对不上的关联ID只留审计，不算错误
			return false, nil
		}
		return false, err
	}

	return s.creditService.AttemptCredit(ctx, session.ID)
}
