package controller

import (
	"net/http"
	"strconv"

	"go-monopoly/dto"
	"go-monopoly/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GameController struct {
	games *service.GameService
	log   *zap.Logger
}

func NewGameController(games *service.GameService, log *zap.Logger) *GameController {
	return &GameController{games: games, log: log}
}

// fail 规则拒绝返回 400，其余视为内部错误
func (gc *GameController) fail(c *gin.Context, err error) {
	if service.IsRejection(err) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	gc.log.Error("❌ 请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
}

func (gc *GameController) Join(c *gin.Context) {
	var req dto.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request"})
		return
	}
	player, err := gc.games.Join(c.Request.Context(), req)
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

func (gc *GameController) Properties(c *gin.Context) {
	props, err := gc.games.Properties(c.Request.Context())
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, props)
}

func (gc *GameController) Roll(c *gin.Context) {
	var req dto.RollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request"})
		return
	}
	res, err := gc.games.Roll(c.Request.Context(), req.PlayerID)
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (gc *GameController) Buy(c *gin.Context) {
	var req dto.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request"})
		return
	}
	res, err := gc.games.Buy(c.Request.Context(), req.PlayerID, req.PropertyIdx)
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (gc *GameController) Sell(c *gin.Context) {
	var req dto.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request"})
		return
	}
	res, err := gc.games.Sell(c.Request.Context(), req.PlayerID, req.PropertyIdx)
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (gc *GameController) End(c *gin.Context) {
	res, err := gc.games.End(c.Request.Context())
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetGameInfo 当前对局的编号、状态和奖池
func (gc *GameController) GetGameInfo(c *gin.Context) {
	info, err := gc.games.Info(c.Request.Context())
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (gc *GameController) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "limit 取值 1-100"})
		return
	}
	records, err := gc.games.History(c.Request.Context(), limit)
	if err != nil {
		gc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}
