package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"backend/internal/db"
)

type ScheduleRequest struct {
	Name      string   `json:"name" binding:"required"`
	Kind      string   `json:"kind" binding:"required"` // text / audio
	Text      string   `json:"text"`
	Lang      string   `json:"lang"`
	AudioPath string   `json:"audio_path"`
	Targets   []string `json:"targets" binding:"required"`
	FireTime  string   `json:"fire_time" binding:"required"` // HH:MM
	Weekdays  []int    `json:"weekdays"`                     // 1=周一 ... 7=周日，空表示每天
	Enabled   *bool    `json:"enabled"`
}

type ScheduleHandler struct {
	repo *db.ScheduleRepository
}

func NewScheduleHandler(repo *db.ScheduleRepository) *ScheduleHandler {
	return &ScheduleHandler{repo: repo}
}

// List 全部定时广播条目
func (h *ScheduleHandler) List(c *gin.Context) {
	entries, err := h.repo.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Code: 500,
			Msg:  "查询失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: entries})
}

// Create 新增条目
func (h *ScheduleHandler) Create(c *gin.Context) {
	entry, ok := h.bind(c)
	if !ok {
		return
	}

	if err := h.repo.Create(entry); err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Code: 500,
			Msg:  "创建失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: entry})
}

// Update 更新条目
func (h *ScheduleHandler) Update(c *gin.Context) {
	id, err := parsePositive(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "非法条目ID",
			Err:  err.Error(),
		})
		return
	}

	entry, ok := h.bind(c)
	if !ok {
		return
	}
	entry.ID = uint(id)

	if err := h.repo.Update(entry); err != nil {
		c.JSON(http.StatusNotFound, Response{
			Code: 404,
			Msg:  "更新失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: entry})
}

// Delete 删除条目
func (h *ScheduleHandler) Delete(c *gin.Context) {
	id, err := parsePositive(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "非法条目ID",
			Err:  err.Error(),
		})
		return
	}

	if err := h.repo.Delete(uint(id)); err != nil {
		c.JSON(http.StatusNotFound, Response{
			Code: 404,
			Msg:  "删除失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok"})
}

func (h *ScheduleHandler) bind(c *gin.Context) (*db.ScheduleEntry, bool) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return nil, false
	}

	if !validFireTime(req.FireTime) {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "触发时间须为 HH:MM 格式",
		})
		return nil, false
	}
	if req.Kind != "text" && req.Kind != "audio" {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "kind 须为 text 或 audio",
		})
		return nil, false
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return &db.ScheduleEntry{
		Name:      req.Name,
		Kind:      req.Kind,
		Text:      req.Text,
		Lang:      req.Lang,
		AudioPath: req.AudioPath,
		Targets:   strings.Join(req.Targets, ","),
		FireTime:  req.FireTime,
		Weekdays:  joinWeekdays(req.Weekdays),
		Enabled:   enabled,
	}, true
}

func validFireTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh, err1 := parsePositiveOrZero(s[:2])
	mm, err2 := parsePositiveOrZero(s[3:])
	return err1 == nil && err2 == nil && hh < 24 && mm < 60
}

func joinWeekdays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 1 && d <= 7 {
			parts = append(parts, string(rune('0'+d)))
		}
	}
	return strings.Join(parts, ",")
}
