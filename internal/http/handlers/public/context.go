package public

import (
	"github.com/gin-gonic/gin"

	handlershared "github.com/lumen-shop/internal/http/handlers/shared"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}
