package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/db"
	"backend/internal/device"
	"backend/internal/monitor"
	"backend/internal/types"
)

type ToggleRequest struct {
	Row int  `json:"row" binding:"required"`
	Col int  `json:"col" binding:"required"`
	On  bool `json:"on"`
}

type SetRoomsRequest struct {
	Rooms []int `json:"rooms"`
}

type DeviceNameRequest struct {
	Name string `json:"name" binding:"required"`
	Row  int    `json:"row" binding:"required"`
	Col  int    `json:"col" binding:"required"`
}

type DeviceHandler struct {
	store    *device.Store
	monitor  *monitor.Monitor
	nameRepo *db.DeviceNameRepository
}

func NewDeviceHandler(store *device.Store, mon *monitor.Monitor, nameRepo *db.DeviceNameRepository) *DeviceHandler {
	return &DeviceHandler{
		store:    store,
		monitor:  mon,
		nameRepo: nameRepo,
	}
}

// Matrix 全矩阵开关状态
func (h *DeviceHandler) Matrix(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Msg:  "ok",
		Data: gin.H{
			"matrix":       h.store.Matrix(),
			"active_rooms": h.store.ActiveRooms(),
		},
	})
}

// Toggle 开关单个分区
func (h *DeviceHandler) Toggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return
	}

	z := types.Zone{Row: req.Row, Col: req.Col}
	if !z.Valid() {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "非法坐标",
		})
		return
	}

	var err error
	if req.On {
		err = h.store.TurnOn(z)
	} else {
		err = h.store.TurnOff(z)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, Response{
			Code: 502,
			Msg:  "分区操作失败，状态已回滚",
			Err:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Msg:  "ok",
		Data: gin.H{"room_id": z.RoomID(), "on": req.On},
	})
}

// SetRooms 整体替换激活集合
func (h *DeviceHandler) SetRooms(c *gin.Context) {
	var req SetRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return
	}

	if err := h.store.SetActiveRooms(req.Rooms); err != nil {
		c.JSON(http.StatusBadGateway, Response{
			Code: 502,
			Msg:  "分区操作失败，状态已回滚",
			Err:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Code: 200,
		Msg:  "ok",
		Data: gin.H{"active_rooms": h.store.ActiveRooms()},
	})
}

// AllOff 全部关闭
func (h *DeviceHandler) AllOff(c *gin.Context) {
	if err := h.store.TurnOffAll(); err != nil {
		c.JSON(http.StatusBadGateway, Response{
			Code: 502,
			Msg:  "全部关闭失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok"})
}

// Summary 状态汇总
func (h *DeviceHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Msg:  "ok",
		Data: h.store.StatusSummary(),
	})
}

// Hardware 硬件链路监控指标
func (h *DeviceHandler) Hardware(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Msg:  "ok",
		Data: h.monitor.GetMetrics(),
	})
}

// ListNames 特殊教室名映射列表
func (h *DeviceHandler) ListNames(c *gin.Context) {
	names, err := h.nameRepo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{
			Code: 500,
			Msg:  "查询失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok", Data: names})
}

// UpsertName 新增或更新特殊教室名映射
func (h *DeviceHandler) UpsertName(c *gin.Context) {
	var req DeviceNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "Invalid request",
			Err:  err.Error(),
		})
		return
	}

	if err := h.nameRepo.Upsert(req.Name, types.Zone{Row: req.Row, Col: req.Col}); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Code: 400,
			Msg:  "映射保存失败",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok"})
}

// DeleteName 删除特殊教室名映射
func (h *DeviceHandler) DeleteName(c *gin.Context) {
	name := c.Param("name")
	if err := h.nameRepo.Delete(name); err != nil {
		c.JSON(http.StatusNotFound, Response{
			Code: 404,
			Msg:  "映射不存在",
			Err:  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, Response{Code: 200, Msg: "ok"})
}
