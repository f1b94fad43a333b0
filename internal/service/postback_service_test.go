package service

import (
	"context"
	"testing"

	"rewardsystem/internal/model"

	"github.com/stretchr/testify/require"
)

func newPostbackServiceForTest(t *testing.T) (*PostbackService, func() *model.AdSession) {
	t.Helper()
	db := newServiceTestDB(t)
	cfg := newTestConfig()
	svc := NewPostbackService(db, cfg, NewCreditService(db, nil, cfg))

	seedUser(t, db, &model.User{ID: 1})
	seed := func() *model.AdSession {
		return seedSession(t, db, &model.AdSession{UserID: 1, TaskID: 1})
	}
	return svc, seed
}

func TestAuthorizeOpenMode(t *testing.T) {
	db := newServiceTestDB(t)
	cfg := newTestConfig()
	svc := NewPostbackService(db, cfg, NewCreditService(db, nil, cfg))

	// 未配置密钥时任何令牌都放行
	require.NoError(t, svc.Authorize(&PostbackEvent{}))
	require.NoError(t, svc.Authorize(&PostbackEvent{Token: "anything"}))
}

func TestAuthorizeTokenMismatch(t *testing.T) {
	db := newServiceTestDB(t)
	cfg := newTestConfig()
	cfg.Business.PostbackToken = "secret"
	svc := NewPostbackService(db, cfg, NewCreditService(db, nil, cfg))

	require.NoError(t, svc.Authorize(&PostbackEvent{Token: "secret"}))
	require.ErrorIs(t, svc.Authorize(&PostbackEvent{Token: "wrong"}), ErrPostbackUnauthorized)
	require.ErrorIs(t, svc.Authorize(&PostbackEvent{}), ErrPostbackUnauthorized)
}

func TestIngestQualifyingEventCreditsOnce(t *testing.T) {
	svc, seed := newPostbackServiceForTest(t)
	session := seed()
	ctx := context.Background()

	event := &PostbackEvent{
		Ymid:            session.Ymid,
		EventType:       "impression",
		RewardEventType: "valued",
		ZoneID:          "123456",
		Raw:             map[string]interface{}{"ymid": session.Ymid, "reward_event_type": "valued"},
	}

	creditedNow, err := svc.Ingest(ctx, event)
	require.NoError(t, err)
	require.True(t, creditedNow)

	// 同一条回调重放，审计照落，不再入账
	creditedNow, err = svc.Ingest(ctx, event)
	require.NoError(t, err)
	require.False(t, creditedNow)

	var user model.User
	require.NoError(t, svc.db.First(&user, 1).Error)
	require.Equal(t, int64(100), user.Balance)

	var auditCount int64
	require.NoError(t, svc.db.Model(&model.AdPostback{}).Count(&auditCount).Error)
	require.Equal(t, int64(2), auditCount, "每次回调都落审计")
}

func TestIngestRewardEventTypeCaseInsensitive(t *testing.T) {
	svc, seed := newPostbackServiceForTest(t)
	session := seed()

	creditedNow, err := svc.Ingest(context.Background(), &PostbackEvent{
		Ymid:            session.Ymid,
		RewardEventType: "Rewarded",
		Raw:             map[string]interface{}{},
	})
	require.NoError(t, err)
	require.True(t, creditedNow)
}

func TestIngestNonQualifyingEvent(t *testing.T) {
	svc, seed := newPostbackServiceForTest(t)
	session := seed()

	creditedNow, err := svc.Ingest(context.Background(), &PostbackEvent{
		Ymid:            session.Ymid,
		EventType:       "impression",
		RewardEventType: "not_valued",
		Raw:             map[string]interface{}{},
	})
	require.NoError(t, err)
	require.False(t, creditedNow)

	// 无效事件只留审计，会话原样
	var got model.AdSession
	require.NoError(t, svc.db.First(&got, "id = ?", session.ID).Error)
	require.False(t, got.Credited)

	var auditCount int64
	require.NoError(t, svc.db.Model(&model.AdPostback{}).Count(&auditCount).Error)
	require.Equal(t, int64(1), auditCount)
}

func TestIngestUnmatchedYmid(t *testing.T) {
	svc, _ := newPostbackServiceForTest(t)

	creditedNow, err := svc.Ingest(context.Background(), &PostbackEvent{
		Ymid:            "u99_t99_deadbeef",
		RewardEventType: "valued",
		Raw:             map[string]interface{}{},
	})
	require.NoError(t, err)
	require.False(t, creditedNow)

	var auditCount int64
	require.NoError(t, svc.db.Model(&model.AdPostback{}).Count(&auditCount).Error)
	require.Equal(t, int64(1), auditCount, "对不上的关联ID也要留审计")
}

func TestIngestEmptyYmid(t *testing.T) {
	svc, _ := newPostbackServiceForTest(t)

	creditedNow, err := svc.Ingest(context.Background(), &PostbackEvent{
		RewardEventType: "valued",
		Raw:             map[string]interface{}{"zone_id": "123456"},
	})
	require.NoError(t, err)
	require.False(t, creditedNow)

	var records []model.AdPostback
	require.NoError(t, svc.db.Find(&records).Error)
	require.Len(t, records, 1)
	require.Empty(t, records[0].Ymid)
	require.Contains(t, records[0].PayloadJSON, "zone_id")
}
