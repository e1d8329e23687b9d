package router

import (
	"go-monopoly/controller"
	"go-monopoly/middleware"

	"github.com/gin-gonic/gin"
)

// InitRouter 沙盒后端的 REST 接口，路径与线上后端一致
func InitRouter(r *gin.Engine, gc *controller.GameController, operatorSecret []byte) {
	r.POST("/join", gc.Join)
	r.GET("/properties", gc.Properties)
	r.POST("/roll", gc.Roll)
	r.POST("/buy", gc.Buy)
	r.POST("/sell", gc.Sell)
	r.POST("/end", middleware.OperatorAuth(operatorSecret), gc.End)

	// 调试用
	game := r.Group("/game")
	{
		game.GET("/info", gc.GetGameInfo)
		game.GET("/settlements", gc.History)
	}
}
