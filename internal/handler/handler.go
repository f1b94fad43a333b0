package handler

import (
	"errors"
	"strconv"

	"rewardsystem/internal/catalog"
	"rewardsystem/internal/config"
	"rewardsystem/internal/repository"
	"rewardsystem/internal/service"
	"rewardsystem/pkg/money"
	"rewardsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService  *service.AccountService
	taskService     *service.TaskService
	sessionService  *service.SessionService
	creditService   *service.CreditService
	postbackService *service.PostbackService
	withdrawService *service.WithdrawService
	deviceService   *service.DeviceService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	creditService := service.NewCreditService(db, rdb, cfg)
	return &Handler{
		accountService:  service.NewAccountService(db, cfg),
		taskService:     service.NewTaskService(db, cfg),
		sessionService:  service.NewSessionService(db, cfg, creditService),
		creditService:   creditService,
		postbackService: service.NewPostbackService(db, cfg, creditService),
		withdrawService: service.NewWithdrawService(db, rdb, cfg),
		deviceService:   service.NewDeviceService(db),
	}
}

func parsePage(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

func parseUserID(c *gin.Context) (int64, bool) {
	userIDStr := c.Query("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		response.ParamError(c, "user_id 参数错误")
		return 0, false
	}
	return userID, true
}

// writeBusinessError 把服务层错误翻译成业务错误码
func writeBusinessError(c *gin.Context, err error) {
	var cooldownErr *service.CooldownError
	switch {
	case errors.As(err, &cooldownErr):
		response.ErrorWithData(c, response.CodeCooldownActive, cooldownErr.Error(), gin.H{
			"remaining_seconds": cooldownErr.RemainingSeconds,
		})
	case errors.Is(err, service.ErrDailyLimitReached):
		response.BusinessError(c, response.CodeDailyLimitReached, err.Error())
	case errors.Is(err, service.ErrBelowMinWithdraw):
		response.BusinessError(c, response.CodeBelowMinWithdraw, err.Error())
	case errors.Is(err, service.ErrSimulateDisabled):
		response.BusinessError(c, response.CodeSimulateDisabled, err.Error())
	case errors.Is(err, repository.ErrBalanceNotEnough):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, repository.ErrSessionNotFound):
		response.BusinessError(c, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, catalog.ErrTaskNotFound):
		response.BusinessError(c, response.CodeTaskNotFound, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 用户与任务目录
// ============================================================

// Me 用户概要
// GET /api/v1/me?user_id=xxx
func (h *Handler) Me(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	profile, err := h.accountService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, profile)
}

// ListTasks 当天任务清单
// GET /api/v1/tasks?user_id=xxx
func (h *Handler) ListTasks(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{"list": tasks})
}

// StartTaskRequest 开始任务请求
type StartTaskRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// StartTask 开始任务，创建或复用广告会话
// POST /api/v1/tasks/:task_id/start
func (h *Handler) StartTask(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("task_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "task_id 参数错误")
		return
	}

	var req StartTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	session, err := h.taskService.StartTask(c.Request.Context(), req.UserID, taskID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"session_id": session.ID,
		"ad_url":     "/task?sid=" + session.ID,
	})
}

// Transactions 余额流水分页
// GET /api/v1/transactions?user_id=xxx&page=1&page_size=20
func (h *Handler) Transactions(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePage(c)

	list, total, err := h.accountService.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{"list": list, "total": total})
}

// ============================================================
// 广告会话
// ============================================================

// GetSession 会话详情
// GET /api/v1/ad/sessions/:session_id?user_id=xxx
func (h *Handler) GetSession(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	detail, err := h.sessionService.GetSession(c.Request.Context(), c.Param("session_id"), userID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, detail)
}

// ClientDoneRequest 客户端完成上报请求
type ClientDoneRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// ClientDone 客户端自报广告播放完成（幂等）
// POST /api/v1/ad/sessions/:session_id/client-done
func (h *Handler) ClientDone(c *gin.Context) {
	var req ClientDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	session, err := h.sessionService.ClientDone(c.Request.Context(), c.Param("session_id"), req.UserID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"status":   session.Status,
		"credited": session.Credited,
	})
}

// SessionState 轮询会话状态
// GET /api/v1/ad/sessions/:session_id/status?user_id=xxx
func (h *Handler) SessionState(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), c.Param("session_id"), userID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, state)
}

// SimulateRequest 模拟计费请求
type SimulateRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// SimulateValued 调试用：直接触发一次计费尝试
// POST /api/v1/ad/sessions/:session_id/simulate-valued
func (h *Handler) SimulateValued(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	creditedNow, err := h.sessionService.SimulateValued(c.Request.Context(), c.Param("session_id"), req.UserID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	state, err := h.sessionService.GetState(c.Request.Context(), c.Param("session_id"), req.UserID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"status":       state.Status,
		"credited":     state.Credited,
		"credited_now": creditedNow,
	})
}

// ============================================================
// 提现与设备
// ============================================================

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	UserID  int64           `json:"user_id" binding:"required"`
	Method  string          `json:"method" binding:"required,min=2,max=40"`
	Account string          `json:"account" binding:"required,min=3,max=120"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
}

// Withdraw 提交提现申请
// POST /api/v1/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		response.ParamError(c, "提现金额必须大于0")
		return
	}

	result, err := h.withdrawService.Withdraw(c.Request.Context(), &service.WithdrawRequest{
		UserID:      req.UserID,
		Method:      req.Method,
		Account:     req.Account,
		AmountMills: money.ToMills(req.Amount),
	})
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, result)
}

// WithdrawHistory 提现记录分页
// GET /api/v1/withdraw/history?user_id=xxx&page=1&page_size=20
func (h *Handler) WithdrawHistory(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePage(c)

	list, total, err := h.withdrawService.History(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, gin.H{"list": list, "total": total})
}

// AccountCheckRequest 设备账号检查请求
type AccountCheckRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required,gt=0"`
	DeviceID   string `json:"device_id" binding:"required,min=8,max=128"`
}

// AccountCheck 登记设备并返回同设备账号数
// POST /api/v1/account/check
func (h *Handler) AccountCheck(c *gin.Context) {
	var req AccountCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.deviceService.Check(c.Request.Context(), req.DeviceID, req.TelegramID)
	if err != nil {
		writeBusinessError(c, err)
		return
	}

	response.Success(c, result)
}
