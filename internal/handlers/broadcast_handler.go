package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/broadcast"
	"backend/internal/db"
	"backend/internal/types"
)

type TextBroadcastRequest struct {
	Text    string   `json:"text" binding:"required"`
	Lang    string   `json:"lang"`
	Targets []string `json:"targets" binding:"required"`
}

type AudioBroadcastRequest struct {
	Path    string   `json:"path" binding:"required"`
	Targets []string `json:"targets" binding:"required"`
}

type BroadcastHandler struct {
	queue   *broadcast.Queue
	history *db.HistoryRepository
}

func NewBroadcastHandler(queue *broadcast.Queue, history *db.HistoryRepository) *BroadcastHandler {
	return &BroadcastHandler{
		queue:   queue,
		history: history,
	}
}

// Text 文本广播入队
func (h *BroadcastHandler) Text(c *gin.Context) {
	var req TextBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return
	}

	enq, err := h.queue.EnqueueText(req.Text, req.Lang, req.Targets)
	if err != nil {
		h.enqueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "已入队", Data: enq})
}

// Audio 音频广播入队
func (h *BroadcastHandler) Audio(c *gin.Context) {
	var req AudioBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return
	}

	enq, err := h.queue.EnqueueAudio(req.Path, req.Targets, false)
	if err != nil {
		h.enqueueError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "已入队", Data: enq})
}

func (h *BroadcastHandler) enqueueError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	msg := "入队失败"
	switch {
	case errors.Is(err, types.ErrQueueFull):
		status = http.StatusTooManyRequests
		msg = "广播队列已满"
	case errors.Is(err, types.ErrQueueStopped):
		status = http.StatusServiceUnavailable
		msg = "广播队列已停止"
	}
	c.JSON(status, Response{Code: status, Msg: msg, Err: err.Error()})
}

// Queue 队列状态
func (h *BroadcastHandler) Queue(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Msg:  "ok",
		Data: h.queue.Status(),
	})
}

// Stop 紧急停止：清空队列、打断播放、全部关闭
func (h *BroadcastHandler) Stop(c *gin.Context) {
	if err := h.queue.Stop(); err != nil {
		c.JSON(http.StatusBadGateway, Response{
			Code: 502,
			Msg:  "已停止播放，但全部关闭未确认",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "已停止"})
}

// History 最近的广播记录
func (h *BroadcastHandler) History(c *gin.Context) {
	limit := 50
	if v, ok := c.GetQuery("limit"); ok {
		if n, err := parsePositive(v); err == nil {
			limit = n
		}
	}

	records, err := h.history.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Code: 500,
			Msg:  "历史查询失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: records})
}
