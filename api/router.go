// api/router.go

package api

import (
	"backend/internal/handlers"

	"github.com/gin-gonic/gin"
)

func SetupRouter(
	router *gin.Engine,
	deviceHandler *handlers.DeviceHandler,
	broadcastHandler *handlers.BroadcastHandler,
	previewHandler *handlers.PreviewHandler,
	scheduleHandler *handlers.ScheduleHandler,
) {
	api := router.Group("/api")

	// 分区设备控制
	device := api.Group("/devices")
	{
		device.GET("/matrix", deviceHandler.Matrix)
		device.GET("/summary", deviceHandler.Summary)
		device.GET("/hardware", deviceHandler.Hardware)
		device.POST("/toggle", deviceHandler.Toggle)
		device.POST("/rooms", deviceHandler.SetRooms)
		device.POST("/all-off", deviceHandler.AllOff)
		device.GET("/names", deviceHandler.ListNames)
		device.POST("/names", deviceHandler.UpsertName)
		device.DELETE("/names/:name", deviceHandler.DeleteName)
	}

	// 广播队列
	bc := api.Group("/broadcast")
	{
		bc.POST("/text", broadcastHandler.Text)
		bc.POST("/audio", broadcastHandler.Audio)
		bc.GET("/queue", broadcastHandler.Queue)
		bc.POST("/stop", broadcastHandler.Stop)
		bc.GET("/history", broadcastHandler.History)
	}

	// 预览审批
	preview := api.Group("/previews")
	{
		preview.POST("/text", previewHandler.CreateText)
		preview.POST("/audio", previewHandler.CreateAudio)
		preview.GET("", previewHandler.List)
		preview.GET("/:id", previewHandler.Get)
		preview.POST("/:id/approve", previewHandler.Approve)
		preview.POST("/:id/reject", previewHandler.Reject)
	}

	// 定时广播
	schedule := api.Group("/schedules")
	{
		schedule.GET("", scheduleHandler.List)
		schedule.POST("", scheduleHandler.Create)
		schedule.PUT("/:id", scheduleHandler.Update)
		schedule.DELETE("/:id", scheduleHandler.Delete)
	}
}
