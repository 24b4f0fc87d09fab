package service

import (
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/repository"
)

// ProductListInput 商品列表查询输入
type ProductListInput struct {
	Page       int
	PageSize   int
	CategoryID uint
}

// ProductService 商品服务
type ProductService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

// NewProductService 创建商品服务
func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository) *ProductService {
	return &ProductService{productRepo: productRepo, categoryRepo: categoryRepo}
}

// Categories 获取全部商品分类
func (s *ProductService) Categories() ([]models.Category, error) {
	return s.categoryRepo.List()
}

// List 查询上架商品列表
func (s *ProductService) List(input ProductListInput) ([]models.Product, int64, error) {
	return s.productRepo.List(repository.ProductListFilter{
		Page:       input.Page,
		PageSize:   input.PageSize,
		CategoryID: input.CategoryID,
		OnlyActive: true,
	})
}

// GetByID 获取单个上架商品
func (s *ProductService) GetByID(productID uint) (*models.Product, error) {
	if productID == 0 {
		return nil, ErrProductNotFound
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, err
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotFound
	}
	return product, nil
}
