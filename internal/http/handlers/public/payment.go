package public

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	handlershared "github.com/lumen-shop/internal/http/handlers/shared"
	"github.com/lumen-shop/internal/http/response"
	"github.com/lumen-shop/internal/models"
)

// PaymentResponse 支付记录响应
type PaymentResponse struct {
	ID         uint         `json:"id"`
	CartID     uint         `json:"cart_id"`
	ChargeID   string       `json:"charge_id"`
	Amount     models.Money `json:"amount"`
	Currency   string       `json:"currency"`
	Status     string       `json:"status"`
	ReceiptURL string       `json:"receipt_url,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ListPayments 分页获取当前用户的支付记录
func (h *Handler) ListPayments(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	payments, total, err := h.CartService.PaymentHistory(userID, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "payment list failed", err)
		return
	}

	items := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		items = append(items, PaymentResponse{
			ID:         p.ID,
			CartID:     p.CartID,
			ChargeID:   p.ChargeID,
			Amount:     p.Amount,
			Currency:   p.Currency,
			Status:     p.Status,
			ReceiptURL: p.ReceiptURL,
			CreatedAt:  p.CreatedAt,
		})
	}

	totalPage := total / int64(pageSize)
	if total%int64(pageSize) > 0 {
		totalPage++
	}
	response.SuccessWithPage(c, items, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
