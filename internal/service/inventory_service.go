package service

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/repository"
)

// ReserveItem 单个商品的预占需求
type ReserveItem struct {
	ProductID uint
	Quantity  int
}

// InventoryService 库存台账服务。
// 所有库存变更走条件更新，任何路径下库存不会为负。
type InventoryService struct {
	productRepo repository.ProductRepository
}

// NewInventoryService 创建库存服务
func NewInventoryService(productRepo repository.ProductRepository) *InventoryService {
	return &InventoryService{productRepo: productRepo}
}

// ReserveAll 在单个事务内预占全部商品库存，返回扣减后的库存水位。
// 任一商品库存不足时整体回滚，不产生部分扣减。
// 水位在预占事务内读取，低库存判断不受并发结算影响。
func (s *InventoryService) ReserveAll(items []ReserveItem) ([]repository.StockLevel, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items to reserve", ErrInvalidInput)
	}
	productIDs := make([]uint, 0, len(items))
	for _, item := range items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: bad reserve item product=%d quantity=%d", ErrInvalidInput, item.ProductID, item.Quantity)
		}
		productIDs = append(productIDs, item.ProductID)
	}
	var levels []repository.StockLevel
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.productRepo.WithTx(tx)
		for _, item := range items {
			affected, err := repo.ReserveStock(item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("%w: product %d", ErrInsufficientStock, item.ProductID)
			}
		}
		var err error
		levels, err = repo.StockLevels(productIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// ReleaseAll 释放此前预占的库存，用于下游失败后的补偿。
func (s *InventoryService) ReleaseAll(items []ReserveItem) error {
	if len(items) == 0 {
		return nil
	}
	return models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.productRepo.WithTx(tx)
		for _, item := range items {
			if item.ProductID == 0 || item.Quantity <= 0 {
				continue
			}
			if _, err := repo.ReleaseStock(item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}
