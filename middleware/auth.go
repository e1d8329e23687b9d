package middleware

import (
	"net/http"
	"strings"

	"go-monopoly/dto"
	"go-monopoly/utils"

	"github.com/gin-gonic/gin"
)

// OperatorAuth 校验运营方令牌；secret 为空时不鉴权，方便本地调试
func OperatorAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "未授权"})
			return
		}
		claims, err := utils.ParseOperatorToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "令牌无效"})
			return
		}
		c.Set("operator", claims.Operator)
		c.Next()
	}
}
