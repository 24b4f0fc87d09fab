package public

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/lumen-shop/internal/http/response"
	"github.com/lumen-shop/internal/service"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var cartErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, msg: "invalid cart item"},
	{target: service.ErrQuantityInvalid, code: response.CodeBadRequest, msg: "quantity must not be negative"},
	{target: service.ErrProductNotAvailable, code: response.CodeBadRequest, msg: "product not available"},
	{target: service.ErrCartNotFound, code: response.CodeNotFound, msg: "cart not found"},
	{target: service.ErrCartAlreadyPaid, code: response.CodeConflict, msg: "cart already paid"},
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidInput, code: response.CodeBadRequest, msg: "invalid checkout request"},
	{target: service.ErrUserNotFound, code: response.CodeUnauthorized, msg: "user not found"},
	{target: service.ErrUserLocked, code: response.CodeForbidden, msg: "user is locked"},
	{target: service.ErrCartNotFound, code: response.CodeNotFound, msg: "cart not found"},
	{target: service.ErrCartEmpty, code: response.CodeBadRequest, msg: "cart is empty"},
	{target: service.ErrProductNotAvailable, code: response.CodeBadRequest, msg: "product not available"},
	{target: service.ErrInsufficientStock, code: response.CodeConflict, msg: "insufficient stock"},
	{target: service.ErrPaymentDeclined, code: response.CodePaymentRequired, msg: "payment declined"},
	{target: service.ErrChargedButUnrecorded, code: response.CodeInternal, msg: "charge succeeded but not recorded, contact support"},
}

func respondCartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, cartErrorRules, response.CodeInternal, "cart operation failed")
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "checkout failed")
}
