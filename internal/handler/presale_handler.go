package handler

import (
	"net/http"
	"strconv"

	"github.com/BAGS69FUN/BAGS69/internal/logic"
	"github.com/gin-gonic/gin"
)

type PresaleHandler struct {
	presaleLogic *logic.PresaleLogic
}

func NewPresaleHandler(presaleLogic *logic.PresaleLogic) *PresaleHandler {
	return &PresaleHandler{
		presaleLogic: presaleLogic,
	}
}

// CreatePresale 创建预售
func (h *PresaleHandler) CreatePresale(c *gin.Context) {
	var req CreatePresaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	presale, err := h.presaleLogic.Create(c.Request.Context(), &logic.CreatePresaleRequest{
		CreatorAddress:     req.CreatorAddress,
		LaunchFeeTxHash:    req.LaunchFeeTxHash,
		TokenName:          req.TokenName,
		TokenSymbol:        req.TokenSymbol,
		TokenDescription:   req.TokenDescription,
		ImageURL:           req.ImageURL,
		Twitter:            req.Twitter,
		Telegram:           req.Telegram,
		Website:            req.Website,
		MinAmount:          SolToLamports(req.MinAmountSol),
		MaxAmount:          SolToLamports(req.MaxAmountSol),
		TargetParticipants: req.TargetParticipants,
		DurationMinutes:    req.DurationMinutes,
	})
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "预售创建成功", ToPresaleResponse(presale))
}

// GetPresales 获取预售列表
func (h *PresaleHandler) GetPresales(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}

	// status=active 只返回进行中的预售，不分页
	if c.Query("status") == "active" {
		presales, err := h.presaleLogic.ListActive()
		if err != nil {
			HandleLogicError(c, err)
			return
		}
		SuccessResponse(c, http.StatusOK, "ok", gin.H{
			"presales": ToPresaleResponseList(presales),
		})
		return
	}

	presales, total, err := h.presaleLogic.List(pageSize, (page-1)*pageSize)
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	totalPage := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPage++
	}

	SuccessResponse(c, http.StatusOK, "ok", gin.H{
		"presales": ToPresaleResponseList(presales),
		"pagination": Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	})
}

// GetPresale 获取预售详情
func (h *PresaleHandler) GetPresale(c *gin.Context) {
	view, err := h.presaleLogic.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", PresaleDetailResponse{
		Presale:      ToPresaleResponse(view.Presale),
		Participants: ToParticipantResponseList(view.Participants),
		Market:       view.Market,
	})
}

// JoinPresale 加入预售
func (h *PresaleHandler) JoinPresale(c *gin.Context) {
	var req JoinPresaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.presaleLogic.Join(c.Request.Context(), c.Param("id"),
		req.Wallet, SolToLamports(req.AmountSol), req.DepositTxHash)
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "加入成功", JoinResponse{
		Presale:     ToPresaleResponse(result.Presale),
		Participant: ToParticipantResponse(result.Participant),
		Launch:      result.Launch,
	})
}

// WithdrawPresale 主动退出预售
func (h *PresaleHandler) WithdrawPresale(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.presaleLogic.Withdraw(c.Request.Context(), c.Param("id"), req.Wallet)
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "退出成功", ToSettleResponse(receipt))
}

// RefundPresale 失败预售退款
func (h *PresaleHandler) RefundPresale(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.presaleLogic.Refund(c.Request.Context(), c.Param("id"), req.Wallet)
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "退款成功", ToSettleResponse(receipt))
}

// LaunchPresale 手动触发发射
func (h *PresaleHandler) LaunchPresale(c *gin.Context) {
	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.presaleLogic.Launch(c.Request.Context(), c.Param("id"), req.Force)
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	if result.Launched {
		SuccessResponse(c, http.StatusOK, "发射成功", result)
		return
	}
	// 发射失败但预售仍为active，可重试
	c.JSON(http.StatusBadGateway, Response{
		Success: false,
		Message: "发射失败，可重试",
		Data:    result,
	})
}

// GetStats 获取全局统计
func (h *PresaleHandler) GetStats(c *gin.Context) {
	stats, err := h.presaleLogic.Stats()
	if err != nil {
		HandleLogicError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", StatsResponse{
		TotalPresales:     stats.TotalPresales,
		ActivePresales:    stats.ActivePresales,
		LaunchedPresales:  stats.LaunchedPresales,
		FailedPresales:    stats.FailedPresales,
		RefundingPresales: stats.RefundingPresales,
		TotalRaisedSol:    LamportsToSol(stats.TotalRaised),
		TotalParticipants: stats.TotalParticipants,
	})
}
