package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/repository"
)

func setupCartServiceTest(t *testing.T) (*CartService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:cart_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.Cart{},
		&models.LineItem{},
		&models.Payment{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	cartRepo := repository.NewCartRepository(db)
	productRepo := repository.NewProductRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	return NewCartService(cartRepo, productRepo, paymentRepo, "USD"), db
}

func createCartProduct(t *testing.T, db *gorm.DB, name string, price float64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		CategoryID:  1,
		Name:        name,
		PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(price)),
		Stock:       stock,
		IsActive:    true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func TestGetOrCreateOpenCartReusesPending(t *testing.T) {
	svc, _ := setupCartServiceTest(t)

	first, err := svc.GetOrCreateOpenCart(1)
	if err != nil {
		t.Fatalf("create cart failed: %v", err)
	}
	second, err := svc.GetOrCreateOpenCart(1)
	if err != nil {
		t.Fatalf("get cart failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same open cart, got %d vs %d", first.ID, second.ID)
	}
	if second.Status != constants.CartStatusPending {
		t.Fatalf("expected pending status, got %s", second.Status)
	}
	if second.Currency != "USD" {
		t.Fatalf("expected base currency USD, got %s", second.Currency)
	}
}

func TestUpsertLineItemQuantityRules(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "Earbuds", 59.99, 10)

	// 负数拒绝
	if _, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: -1}); !errors.Is(err, ErrQuantityInvalid) {
		t.Fatalf("expected ErrQuantityInvalid, got %v", err)
	}

	// 写入后覆盖数量
	cart, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", cart.Items)
	}
	cart, err = svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 5})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 5 {
		t.Fatalf("quantity should be replaced, got %+v", cart.Items)
	}

	// 数量 0 删除条目
	cart, err = svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 0})
	if err != nil {
		t.Fatalf("remove via zero quantity failed: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart.Items)
	}
	if !cart.TotalAmount.Decimal.IsZero() {
		t.Fatalf("expected zero total, got %s", cart.TotalAmount.String())
	}

	// 删除后可重新加购同一商品
	cart, err = svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("re-add after removal failed: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items after re-add: %+v", cart.Items)
	}
}

func TestUpsertLineItemInactiveProduct(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "Hidden", 10.00, 10)
	if err := db.Model(product).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}

	_, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	if !errors.Is(err, ErrProductNotAvailable) {
		t.Fatalf("expected ErrProductNotAvailable, got %v", err)
	}
}

func TestRecomputeTotalUsesLivePrices(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "SSD", 100.00, 10)

	cart, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if cart.TotalAmount.String() != "200.00" {
		t.Fatalf("expected 200.00, got %s", cart.TotalAmount.String())
	}

	// 改价后重算合计应跟随实时价格
	if err := db.Model(product).Update("price_amount", models.NewMoneyFromDecimal(decimal.NewFromFloat(80.50))).Error; err != nil {
		t.Fatalf("update price failed: %v", err)
	}
	reloaded, err := svc.cartRepo.GetByID(cart.ID)
	if err != nil {
		t.Fatalf("reload cart failed: %v", err)
	}
	total, err := svc.RecomputeTotal(reloaded)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if total.String() != "161.00" {
		t.Fatalf("expected 161.00, got %s", total.String())
	}
}

func TestUpsertLineItemRejectedAfterPayment(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "Cable", 9.90, 10)
	cart, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	record := &models.Payment{
		CartID:   cart.ID,
		ChargeID: "ch_done",
		Amount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(9.90)),
		Currency: "USD",
		Status:   constants.PaymentStatusSucceeded,
	}
	if err := svc.RecordPayment(record); err != nil {
		t.Fatalf("record payment failed: %v", err)
	}

	paid, err := svc.IsPaid(cart.ID)
	if err != nil {
		t.Fatalf("is paid failed: %v", err)
	}
	if !paid {
		t.Fatalf("cart should be paid")
	}

	// 已支付购物车不可再修改；下一次写入会落到新的未支付购物车
	var updated models.Cart
	if err := db.First(&updated, cart.ID).Error; err != nil {
		t.Fatalf("load cart failed: %v", err)
	}
	if updated.Status != constants.CartStatusSucceeded {
		t.Fatalf("expected succeeded status, got %s", updated.Status)
	}
	fresh, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("upsert to fresh cart failed: %v", err)
	}
	if fresh.ID == cart.ID {
		t.Fatalf("expected a new open cart after payment")
	}
}

func TestRecordPaymentTwiceRejected(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "Bottle", 18.50, 10)
	cart, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: 1, ProductID: product.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	record := &models.Payment{
		CartID:   cart.ID,
		ChargeID: "ch_1",
		Amount:   models.NewMoneyFromDecimal(decimal.NewFromFloat(18.50)),
		Currency: "USD",
		Status:   constants.PaymentStatusSucceeded,
	}
	if err := svc.RecordPayment(record); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	dup := &models.Payment{
		CartID:   cart.ID,
		ChargeID: "ch_2",
		Amount:   record.Amount,
		Currency: "USD",
		Status:   constants.PaymentStatusSucceeded,
	}
	if err := svc.RecordPayment(dup); err == nil {
		t.Fatalf("duplicate record should fail")
	}
	var count int64
	if err := db.Model(&models.Payment{}).Where("cart_id = ?", cart.ID).Count(&count).Error; err != nil {
		t.Fatalf("count payments failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one payment record, got %d", count)
	}
}

func TestPaymentHistoryScopedToUser(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "Widget", 18.50, 10)

	payCart := func(userID uint, chargeID string) {
		cart, err := svc.UpsertLineItem(UpsertLineItemInput{UserID: userID, ProductID: product.ID, Quantity: 1})
		if err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		record := &models.Payment{
			CartID:   cart.ID,
			ChargeID: chargeID,
			Amount:   cart.TotalAmount,
			Currency: "USD",
			Status:   constants.PaymentStatusSucceeded,
		}
		if err := svc.RecordPayment(record); err != nil {
			t.Fatalf("record payment failed: %v", err)
		}
	}
	payCart(1, "ch_a")
	payCart(2, "ch_b")

	payments, total, err := svc.PaymentHistory(1, 1, 20)
	if err != nil {
		t.Fatalf("payment history failed: %v", err)
	}
	if total != 1 || len(payments) != 1 {
		t.Fatalf("expected one payment for user 1, got total=%d len=%d", total, len(payments))
	}
	if payments[0].ChargeID != "ch_a" {
		t.Fatalf("unexpected charge id: %s", payments[0].ChargeID)
	}

	// 用户关联与状态过滤可叠加
	filtered, filteredTotal, err := svc.paymentRepo.List(repository.PaymentListFilter{
		UserID:   1,
		Status:   constants.PaymentStatusSucceeded,
		Page:     1,
		PageSize: 20,
	})
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if filteredTotal != 1 || len(filtered) != 1 {
		t.Fatalf("expected one filtered payment, got total=%d len=%d", filteredTotal, len(filtered))
	}

	if _, _, err := svc.PaymentHistory(0, 1, 20); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing user id, got %v", err)
	}
}
