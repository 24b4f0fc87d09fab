package public

import (
	"github.com/gin-gonic/gin"

	"github.com/lumen-shop/internal/http/response"
	"github.com/lumen-shop/internal/payment"
	"github.com/lumen-shop/internal/service"
)

// CheckoutRequest 结算请求
type CheckoutRequest struct {
	CardHolderName string `json:"card_holder_name"`
	CardNumber     string `json:"card_number" binding:"required"`
	CardExpMonth   string `json:"card_exp_month" binding:"required"`
	CardExpYear    string `json:"card_exp_year" binding:"required"`
	CardCVV        string `json:"card_cvv" binding:"required"`
}

// Checkout 对当前购物车执行结算
func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid checkout request", nil)
		return
	}

	result, err := h.CheckoutService.Checkout(c.Request.Context(), service.CheckoutInput{
		UserID: uid,
		Card: payment.Card{
			HolderName:  req.CardHolderName,
			Number:      req.CardNumber,
			ExpiryMonth: req.CardExpMonth,
			ExpiryYear:  req.CardExpYear,
			CVV:         req.CardCVV,
		},
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}
