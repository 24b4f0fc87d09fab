package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/repository"
)

func setupInventoryServiceTest(t *testing.T) (*InventoryService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return NewInventoryService(repository.NewProductRepository(db)), db
}

func createInventoryProduct(t *testing.T, db *gorm.DB, name string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		CategoryID:  1,
		Name:        name,
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Stock:       stock,
		IsActive:    true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func inventoryStock(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	return product.Stock
}

func TestReserveAllSuccess(t *testing.T) {
	svc, db := setupInventoryServiceTest(t)
	a := createInventoryProduct(t, db, "A", 10)
	b := createInventoryProduct(t, db, "B", 4)

	levels, err := svc.ReserveAll([]ReserveItem{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: b.ID, Quantity: 4},
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if got := inventoryStock(t, db, a.ID); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := inventoryStock(t, db, b.ID); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}

	// 返回的水位为扣减后的值
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	byID := map[uint]repository.StockLevel{}
	for _, level := range levels {
		byID[level.ProductID] = level
	}
	if byID[a.ID].Stock != 7 || byID[a.ID].Name != "A" {
		t.Fatalf("unexpected level for A: %+v", byID[a.ID])
	}
	if byID[b.ID].Stock != 0 {
		t.Fatalf("unexpected level for B: %+v", byID[b.ID])
	}
}

func TestReserveAllRollsBackOnShortage(t *testing.T) {
	svc, db := setupInventoryServiceTest(t)
	a := createInventoryProduct(t, db, "A", 10)
	b := createInventoryProduct(t, db, "B", 2)

	_, err := svc.ReserveAll([]ReserveItem{
		{ProductID: a.ID, Quantity: 5},
		{ProductID: b.ID, Quantity: 3},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	// 整体回滚，先扣成功的商品也要恢复
	if got := inventoryStock(t, db, a.ID); got != 10 {
		t.Fatalf("expected rollback to 10, got %d", got)
	}
	if got := inventoryStock(t, db, b.ID); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestReserveAllRejectsBadInput(t *testing.T) {
	svc, _ := setupInventoryServiceTest(t)
	if _, err := svc.ReserveAll(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty items, got %v", err)
	}
	if _, err := svc.ReserveAll([]ReserveItem{{ProductID: 1, Quantity: 0}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero quantity, got %v", err)
	}
}

func TestReleaseAllRestoresStock(t *testing.T) {
	svc, db := setupInventoryServiceTest(t)
	a := createInventoryProduct(t, db, "A", 10)

	items := []ReserveItem{{ProductID: a.ID, Quantity: 4}}
	if _, err := svc.ReserveAll(items); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := svc.ReleaseAll(items); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if got := inventoryStock(t, db, a.ID); got != 10 {
		t.Fatalf("expected 10 after release, got %d", got)
	}
}
