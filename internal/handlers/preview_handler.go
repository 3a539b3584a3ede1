package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"backend/internal/broadcast"
	"backend/internal/types"
)

type TextPreviewRequest struct {
	Text    string   `json:"text" binding:"required"`
	Lang    string   `json:"lang"`
	Targets []string `json:"targets" binding:"required"`
}

type AudioPreviewRequest struct {
	Path    string   `json:"path" binding:"required"`
	Targets []string `json:"targets" binding:"required"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type PreviewHandler struct {
	previews *broadcast.PreviewManager
}

func NewPreviewHandler(previews *broadcast.PreviewManager) *PreviewHandler {
	return &PreviewHandler{previews: previews}
}

// CreateText 创建文本广播预览
func (h *PreviewHandler) CreateText(c *gin.Context) {
	var req TextPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return
	}

	p, err := h.previews.CreateText(req.Text, req.Lang, req.Targets)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "预览创建失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: p})
}

// CreateAudio 创建音频广播预览
func (h *PreviewHandler) CreateAudio(c *gin.Context) {
	var req AudioPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return
	}

	p, err := h.previews.CreateAudio(req.Path, req.Targets)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "预览创建失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: p})
}

// Get 查询单条预览，ready时附带立即审批的预计开播时刻
func (h *PreviewHandler) Get(c *gin.Context) {
	p, err := h.previews.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, Response{
			Code: 404,
			Msg:  "预览不存在",
			Err:  err.Error(),
		})
		return
	}

	data := gin.H{"preview": p}
	if p.Status == broadcast.PreviewReady {
		data["estimated_start"] = h.previews.EstimatedStart()
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: data})
}

// List 全部预览，按创建时间排序
func (h *PreviewHandler) List(c *gin.Context) {
	previews := h.previews.List()
	sort.Slice(previews, func(i, j int) bool {
		return previews[i].CreatedAt.Before(previews[j].CreatedAt)
	})
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: previews})
}

// Approve 审批通过，试听产物入队播放
func (h *PreviewHandler) Approve(c *gin.Context) {
	enq, err := h.previews.Approve(c.Param("id"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, types.ErrPreviewNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, Response{
			Code: status,
			Msg:  "审批失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "已入队", Data: enq})
}

// Reject 驳回预览
func (h *PreviewHandler) Reject(c *gin.Context) {
	var req RejectRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.previews.Reject(c.Param("id"), req.Reason); err != nil {
		c.JSON(http.StatusNotFound, Response{
			Code: 404,
			Msg:  "预览不存在",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "已驳回"})
}
