package handler

import (
	"net/http"
	"strings"

	"rewardsystem/internal/service"

	"github.com/gin-gonic/gin"
)

// Postback 广告商回调端点（GET/POST 同义）
// GET|POST /api/v1/monetag/postback
//
// 【关键点】回调永远应答成功（鉴权失败除外），
// 这里不用统一响应壳，字段格式是和广告商约定的
func (h *Handler) Postback(c *gin.Context) {
	event := parsePostbackEvent(c)

	if err := h.postbackService.Authorize(event); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthorized"})
		return
	}

	creditedNow, err := h.postbackService.Ingest(c.Request.Context(), event)
	if err != nil {
		// 内部错误不外抛，审计已落库，应答成功避免广告商无限重试
		creditedNow = false
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "credited_now": creditedNow})
}

// parsePostbackEvent 合并查询串与 JSON 体（体优先），抽出命名字段
func parsePostbackEvent(c *gin.Context) *service.PostbackEvent {
	merged := map[string]interface{}{}

	for k, vs := range c.Request.URL.Query() {
		if len(vs) > 0 {
			merged[k] = vs[0]
		}
	}

	if strings.Contains(c.ContentType(), "application/json") {
		body := map[string]interface{}{}
		if err := c.ShouldBindJSON(&body); err == nil {
			for k, v := range body {
				merged[k] = v
			}
		}
	}

	token := stringField(merged, "token")
	if token == "" {
		token = c.GetHeader("X-Postback-Token")
	}

	return &service.PostbackEvent{
		Ymid:            stringField(merged, "ymid"),
		EventType:       stringField(merged, "event_type"),
		RewardEventType: stringField(merged, "reward_event_type"),
		ZoneID:          stringField(merged, "zone_id"),
		SubZoneID:       stringField(merged, "sub_zone_id"),
		TelegramID:      stringField(merged, "telegram_id"),
		RequestVar:      stringField(merged, "request_var"),
		Token:           token,
		Raw:             merged,
	}
}

func stringField(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
