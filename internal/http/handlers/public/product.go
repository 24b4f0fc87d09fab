package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	handlershared "github.com/lumen-shop/internal/http/handlers/shared"
	"github.com/lumen-shop/internal/http/response"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/service"
)

// ProductResponse 商品响应
type ProductResponse struct {
	ID              uint         `json:"id"`
	CategoryID      uint         `json:"category_id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	PriceAmount     models.Money `json:"price_amount"`
	PriceCurrency   string       `json:"price_currency"`
	DisplayPrice    models.Money `json:"display_price"`
	DisplayCurrency string       `json:"display_currency"`
	Stock           int          `json:"stock"`
}

// ListProducts 获取商品列表，可选 currency 参数返回展示币种价格
func (h *Handler) ListProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 64)

	products, total, err := h.ProductService.List(service.ProductListInput{
		Page:       page,
		PageSize:   pageSize,
		CategoryID: uint(categoryID),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "product list failed", err)
		return
	}

	displayCurrency := h.resolveDisplayCurrency(c)
	items := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		item, err := h.buildProductResponse(c, &p, displayCurrency)
		if err != nil {
			respondError(c, response.CodeInternal, "currency conversion failed", err)
			return
		}
		items = append(items, item)
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

// ListCategories 获取商品分类列表
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.ProductService.Categories()
	if err != nil {
		respondError(c, response.CodeInternal, "category list failed", err)
		return
	}
	response.Success(c, categories)
}

// GetProduct 获取商品详情
func (h *Handler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "invalid product id", nil)
		return
	}
	product, err := h.ProductService.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			respondError(c, response.CodeNotFound, "product not found", nil)
			return
		}
		respondError(c, response.CodeInternal, "product fetch failed", err)
		return
	}
	item, err := h.buildProductResponse(c, product, h.resolveDisplayCurrency(c))
	if err != nil {
		respondError(c, response.CodeInternal, "currency conversion failed", err)
		return
	}
	response.Success(c, item)
}

func (h *Handler) resolveDisplayCurrency(c *gin.Context) string {
	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency == "" {
		return h.Config.Checkout.BaseCurrency
	}
	return currency
}

// buildProductResponse 组装商品响应。展示价格仅用于前端显示，结算始终以基准币种计价。
func (h *Handler) buildProductResponse(c *gin.Context, p *models.Product, displayCurrency string) (ProductResponse, error) {
	base := h.Config.Checkout.BaseCurrency
	display := p.PriceAmount
	if displayCurrency != base {
		converted, err := h.CurrencyService.Convert(c.Request.Context(), p.PriceAmount, base, displayCurrency)
		if err != nil {
			return ProductResponse{}, err
		}
		display = converted
	}
	return ProductResponse{
		ID:              p.ID,
		CategoryID:      p.CategoryID,
		Name:            p.Name,
		Description:     p.Description,
		PriceAmount:     p.PriceAmount,
		PriceCurrency:   base,
		DisplayPrice:    display,
		DisplayCurrency: displayCurrency,
		Stock:           p.Stock,
	}, nil
}
