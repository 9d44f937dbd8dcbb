package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/response"

	"github.com/quantclass/stocksim/internal/simulation/application"
	"github.com/quantclass/stocksim/internal/simulation/domain"
)

// SimulationHandler 负责处理 HTTP 请求
type SimulationHandler struct {
	cmd   *application.SimulationService
	query *application.QueryService
}

func NewSimulationHandler(cmd *application.SimulationService, query *application.QueryService) *SimulationHandler {
	return &SimulationHandler{cmd: cmd, query: query}
}

func (h *SimulationHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/simulation")
	{
		api.POST("/runs", h.CreateRun)
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
		api.POST("/runs/:id/state", h.ChangeState)
		api.PUT("/runs/:id/settings", h.ApplySettings)
		api.POST("/runs/:id/orders", h.SubmitOrder)
		api.GET("/runs/:id/ticks", h.GetTicks)
		api.GET("/runs/:id/trades", h.GetTrades)
	}
}

// CreateRun 创建一次场景模拟 Run。
func (h *SimulationHandler) CreateRun(c *gin.Context) {
	var req application.CreateRunCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	run, err := h.cmd.CreateRun(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownNoiseModel) {
			response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
			return
		}
		logging.Error(c.Request.Context(), "failed to create run", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "create run failed", "")
		return
	}

	response.Success(c, run)
}

// ChangeState 推进 Run 的生命周期状态。
func (h *SimulationHandler) ChangeState(c *gin.Context) {
	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	run, err := h.cmd.ChangeState(c.Request.Context(), c.Param("id"), domain.RunState(req.Target))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunNotFound):
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
		case errors.Is(err, domain.ErrInvalidTransition):
			response.ErrorWithStatus(c, http.StatusConflict, err.Error(), "")
		default:
			logging.Error(c.Request.Context(), "failed to change run state",
				"run_id", c.Param("id"), "error", err)
			response.ErrorWithStatus(c, http.StatusInternalServerError, "change state failed", "")
		}
		return
	}

	response.Success(c, run)
}

// ApplySettings 整体替换 Run 的配置快照，进行中的循环下一轮生效。
func (h *SimulationHandler) ApplySettings(c *gin.Context) {
	var req application.SettingsCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	run, err := h.cmd.ApplyNewSettings(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunNotFound):
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
		case errors.Is(err, domain.ErrUnknownNoiseModel):
			response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		default:
			logging.Error(c.Request.Context(), "failed to apply settings",
				"run_id", c.Param("id"), "error", err)
			response.ErrorWithStatus(c, http.StatusInternalServerError, "apply settings failed", "")
		}
		return
	}

	response.Success(c, run)
}

// SubmitOrder 向 DYNAMIC Run 提交订单。
func (h *SimulationHandler) SubmitOrder(c *gin.Context) {
	var req application.OrderCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request data", err.Error())
		return
	}

	err := h.cmd.RegisterOrder(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunNotFound):
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
		case errors.Is(err, domain.ErrStaticRun), errors.Is(err, domain.ErrInvalidOrder),
			errors.Is(err, domain.ErrNoPriceData):
			response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		default:
			logging.Error(c.Request.Context(), "failed to register order",
				"run_id", c.Param("id"), "error", err)
			response.ErrorWithStatus(c, http.StatusInternalServerError, "register order failed", "")
		}
		return
	}

	response.Success(c, gin.H{"accepted": true})
}

// GetRun 查询单个 Run。
func (h *SimulationHandler) GetRun(c *gin.Context) {
	run, err := h.query.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			response.ErrorWithStatus(c, http.StatusNotFound, err.Error(), "")
			return
		}
		logging.Error(c.Request.Context(), "failed to get run", "run_id", c.Param("id"), "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "get run failed", "")
		return
	}
	response.Success(c, run)
}

// ListRuns 查询 Run 列表。
func (h *SimulationHandler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
		return
	}

	runs, err := h.query.ListRuns(c.Request.Context(), limit)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to list runs", "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "list runs failed", "")
		return
	}
	response.Success(c, gin.H{"data": runs})
}

// GetTicks 查询某标的最近的蜡烛序列。
func (h *SimulationHandler) GetTicks(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "symbol parameter is required", "")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
		return
	}

	ticks, err := h.query.RecentTicks(c.Request.Context(), c.Param("id"), symbol, limit)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to get ticks",
			"run_id", c.Param("id"), "symbol", symbol, "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "get ticks failed", "")
		return
	}
	response.Success(c, gin.H{"data": ticks})
}

// GetTrades 查询最近成交历史。
func (h *SimulationHandler) GetTrades(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
		return
	}

	trades, err := h.query.RecentTrades(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to get trades",
			"run_id", c.Param("id"), "error", err)
		response.ErrorWithStatus(c, http.StatusInternalServerError, "get trades failed", "")
		return
	}
	response.Success(c, gin.H{"data": trades})
}
