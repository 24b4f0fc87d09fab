package public

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/lumen-shop/internal/http/response"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/service"
)

// CartItemRequest 购物车条目请求
type CartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// CartItemResponse 购物车条目响应
type CartItemResponse struct {
	ProductID   uint         `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int          `json:"quantity"`
	UnitPrice   models.Money `json:"unit_price"`
	LineTotal   models.Money `json:"line_total"`
}

// CartResponse 购物车响应
type CartResponse struct {
	CartID      uint               `json:"cart_id"`
	Status      string             `json:"status"`
	Currency    string             `json:"currency"`
	TotalAmount models.Money       `json:"total_amount"`
	Items       []CartItemResponse `json:"items"`
}

// GetCart 获取当前购物车
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cart, err := h.CartService.GetOrCreateOpenCart(uid)
	if err != nil {
		respondCartError(c, err)
		return
	}
	if _, err := h.CartService.RecomputeTotal(cart); err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, buildCartResponse(cart))
}

// UpsertCartItem 写入购物车条目（数量 0 表示删除）
func (h *Handler) UpsertCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid cart item", nil)
		return
	}
	cart, err := h.CartService.UpsertLineItem(service.UpsertLineItemInput{
		UserID:    uid,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, buildCartResponse(cart))
}

// RemoveCartItem 删除购物车条目
func (h *Handler) RemoveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	productID, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil || productID == 0 {
		respondError(c, response.CodeBadRequest, "invalid product id", nil)
		return
	}
	cart, err := h.CartService.RemoveLineItem(uid, uint(productID))
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, buildCartResponse(cart))
}

func buildCartResponse(cart *models.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		resp := CartItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
		if item.Product != nil {
			resp.ProductName = item.Product.Name
			resp.UnitPrice = item.Product.PriceAmount
			resp.LineTotal = models.NewMoneyFromDecimal(
				item.Product.PriceAmount.Decimal.Mul(decimalFromInt(item.Quantity)),
			)
		}
		items = append(items, resp)
	}
	return CartResponse{
		CartID:      cart.ID,
		Status:      cart.Status,
		Currency:    cart.Currency,
		TotalAmount: cart.TotalAmount,
		Items:       items,
	}
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
