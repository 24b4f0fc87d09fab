package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lumen-shop/internal/config"
	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/payment"
	"github.com/lumen-shop/internal/queue"
	"github.com/lumen-shop/internal/repository"
)

type fakeGateway struct {
	charges   int
	failCount int
	lastInput payment.ChargeInput
}

func (g *fakeGateway) Charge(_ context.Context, input payment.ChargeInput) (*payment.ChargeResult, error) {
	g.charges++
	g.lastInput = input
	if g.failCount > 0 {
		g.failCount--
		return nil, errors.New("card declined by issuer")
	}
	return &payment.ChargeResult{
		ChargeID: fmt.Sprintf("ch_test_%d", g.charges),
		Status:   payment.ChargeStatusSucceeded,
	}, nil
}

func validTestCard() payment.Card {
	return payment.Card{
		HolderName:  "Test Buyer",
		Number:      "4242424242424242",
		ExpiryMonth: "12",
		ExpiryYear:  "2099",
		CVV:         "123",
	}
}

func setupCheckoutServiceTest(t *testing.T) (*CheckoutService, *fakeGateway, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	userService := NewUserService(userRepo, "test-secret", time.Hour)
	cartService := NewCartService(cartRepo, productRepo, paymentRepo, "USD")
	inventoryService := NewInventoryService(productRepo)
	gateway := &fakeGateway{}
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}
	checkoutService := NewCheckoutService(userService, cartService, inventoryService, gateway, queueClient, 10)
	return checkoutService, gateway, db
}

func createCheckoutUser(t *testing.T, db *gorm.DB, status string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("buyer_%d@example.com", time.Now().UnixNano()),
		PasswordHash: "hash",
		Status:       status,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func createCheckoutProduct(t *testing.T, db *gorm.DB, name string, price float64, stock int) *models.Product {
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

func fillCart(t *testing.T, svc *CheckoutService, userID uint, productID uint, quantity int) *models.Cart {
	t.Helper()
	cart, err := svc.cartService.UpsertLineItem(UpsertLineItemInput{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		t.Fatalf("upsert line item failed: %v", err)
	}
	return cart
}

func productStock(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var product models.Product
	if err := db.First(&product, productID).Error; err != nil {
		t.Fatalf("load product failed: %v", err)
	}
	return product.Stock
}

func TestCheckoutSuccess(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	product := createCheckoutProduct(t, db, "Earbuds", 59.99, 10)
	fillCart(t, svc, user.ID, product.ID, 2)

	result, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if result.AlreadyPaid {
		t.Fatalf("first checkout should not be already paid")
	}
	if result.ChargeID == "" {
		t.Fatalf("expected charge id")
	}
	if result.Amount.String() != "119.98" {
		t.Fatalf("expected total 119.98, got %s", result.Amount.String())
	}
	if gateway.lastInput.AmountMinor != 11998 {
		t.Fatalf("expected 11998 minor units, got %d", gateway.lastInput.AmountMinor)
	}
	if got := productStock(t, db, product.ID); got != 8 {
		t.Fatalf("expected stock 8 after checkout, got %d", got)
	}

	var cart models.Cart
	if err := db.First(&cart, result.CartID).Error; err != nil {
		t.Fatalf("load cart failed: %v", err)
	}
	if cart.Status != constants.CartStatusSucceeded {
		t.Fatalf("expected cart status succeeded, got %s", cart.Status)
	}
	var record models.Payment
	if err := db.Where("cart_id = ?", result.CartID).First(&record).Error; err != nil {
		t.Fatalf("load payment failed: %v", err)
	}
	if record.ChargeID != result.ChargeID {
		t.Fatalf("payment charge id mismatch: %s vs %s", record.ChargeID, result.ChargeID)
	}
}

func TestCheckoutIdempotent(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	product := createCheckoutProduct(t, db, "SSD", 109.00, 5)
	fillCart(t, svc, user.ID, product.ID, 1)

	first, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}
	second, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if err != nil {
		t.Fatalf("second checkout failed: %v", err)
	}
	if !second.AlreadyPaid {
		t.Fatalf("second checkout should short-circuit as already paid")
	}
	if second.ChargeID != first.ChargeID {
		t.Fatalf("expected same charge id, got %s vs %s", second.ChargeID, first.ChargeID)
	}
	if gateway.charges != 1 {
		t.Fatalf("gateway should be charged exactly once, got %d", gateway.charges)
	}
	if got := productStock(t, db, product.ID); got != 4 {
		t.Fatalf("stock should be decremented once, got %d", got)
	}

	// 重复结算不得顺手建出新的空购物车
	var cartCount int64
	if err := db.Model(&models.Cart{}).Where("user_id = ?", user.ID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count carts failed: %v", err)
	}
	if cartCount != 1 {
		t.Fatalf("expected exactly one cart, got %d", cartCount)
	}
}

func TestCheckoutGatewayDeclineReleasesStock(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	product := createCheckoutProduct(t, db, "Bottle", 18.50, 6)
	fillCart(t, svc, user.ID, product.ID, 3)

	gateway.failCount = 1
	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
	if got := productStock(t, db, product.ID); got != 6 {
		t.Fatalf("stock should be fully released after decline, got %d", got)
	}

	// 同一购物车可重试并成功
	result, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if err != nil {
		t.Fatalf("retry checkout failed: %v", err)
	}
	if result.AlreadyPaid {
		t.Fatalf("retry should be a fresh charge")
	}
	if got := productStock(t, db, product.ID); got != 3 {
		t.Fatalf("expected stock 3 after successful retry, got %d", got)
	}
}

func TestCheckoutInsufficientStockAllOrNothing(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	plenty := createCheckoutProduct(t, db, "Cable", 9.90, 100)
	scarce := createCheckoutProduct(t, db, "Limited", 99.00, 1)
	fillCart(t, svc, user.ID, plenty.ID, 2)
	fillCart(t, svc, user.ID, scarce.ID, 3)

	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if gateway.charges != 0 {
		t.Fatalf("gateway must not be charged on stock failure")
	}
	if got := productStock(t, db, plenty.ID); got != 100 {
		t.Fatalf("no partial decrement allowed, got %d", got)
	}
	if got := productStock(t, db, scarce.ID); got != 1 {
		t.Fatalf("scarce product stock should be untouched, got %d", got)
	}
}

func TestCheckoutChargedButUnrecorded(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	product := createCheckoutProduct(t, db, "Widget", 10.00, 5)
	cart := fillCart(t, svc, user.ID, product.ID, 1)

	// 预埋一条失败状态的支付记录占住唯一索引，迫使入账写入失败
	stale := &models.Payment{
		CartID:   cart.ID,
		ChargeID: "ch_stale",
		Amount:   models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Currency: "USD",
		Status:   constants.PaymentStatusFailed,
	}
	if err := db.Create(stale).Error; err != nil {
		t.Fatalf("seed stale payment failed: %v", err)
	}

	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if !errors.Is(err, ErrChargedButUnrecorded) {
		t.Fatalf("expected ErrChargedButUnrecorded, got %v", err)
	}
	if gateway.charges != 1 {
		t.Fatalf("gateway should have been charged once, got %d", gateway.charges)
	}
	// 扣款已发生，库存不回滚，留待人工对账
	if got := productStock(t, db, product.ID); got != 4 {
		t.Fatalf("stock must stay reserved after fatal persist failure, got %d", got)
	}
}

func TestCheckoutLockedUser(t *testing.T) {
	svc, _, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusLocked)

	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if !errors.Is(err, ErrUserLocked) {
		t.Fatalf("expected ErrUserLocked, got %v", err)
	}
}

func TestCheckoutUnknownUser(t *testing.T) {
	svc, _, _ := setupCheckoutServiceTest(t)
	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: 9999, Card: validTestCard()})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)

	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected ErrCartEmpty, got %v", err)
	}
	if gateway.charges != 0 {
		t.Fatalf("gateway must not be charged for empty cart")
	}

	var cartCount int64
	if err := db.Model(&models.Cart{}).Where("user_id = ?", user.ID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count carts failed: %v", err)
	}
	if cartCount != 0 {
		t.Fatalf("checkout must not create a cart, got %d", cartCount)
	}
}

func TestCheckoutExpiredCard(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	product := createCheckoutProduct(t, db, "Widget", 10.00, 5)
	fillCart(t, svc, user.ID, product.ID, 1)

	card := validTestCard()
	card.ExpiryYear = "2020"
	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: card})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for expired card, got %v", err)
	}
	if gateway.charges != 0 {
		t.Fatalf("gateway must not be charged with expired card")
	}
	if got := productStock(t, db, product.ID); got != 5 {
		t.Fatalf("stock must be untouched on validation failure, got %d", got)
	}
}

func TestCheckoutDeactivatedProduct(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	product := createCheckoutProduct(t, db, "Widget", 10.00, 5)
	fillCart(t, svc, user.ID, product.ID, 2)

	if err := db.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product failed: %v", err)
	}

	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()})
	if !errors.Is(err, ErrProductNotAvailable) {
		t.Fatalf("expected ErrProductNotAvailable, got %v", err)
	}
	if gateway.charges != 0 {
		t.Fatalf("gateway must not be charged for deactivated product")
	}
	if got := productStock(t, db, product.ID); got != 5 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestLowStockLevelSelection(t *testing.T) {
	svc, gateway, db := setupCheckoutServiceTest(t)
	user := createCheckoutUser(t, db, constants.UserStatusActive)
	low := createCheckoutProduct(t, db, "Cable", 9.90, 12)
	edge := createCheckoutProduct(t, db, "Mouse", 25.00, 12)
	high := createCheckoutProduct(t, db, "Bottle", 18.50, 40)
	fillCart(t, svc, user.ID, low.ID, 4)
	fillCart(t, svc, user.ID, edge.ID, 2)
	fillCart(t, svc, user.ID, high.ID, 1)

	if _, err := svc.Checkout(context.Background(), CheckoutInput{UserID: user.ID, Card: validTestCard()}); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if gateway.charges != 1 {
		t.Fatalf("expected a single charge, got %d", gateway.charges)
	}

	levels, err := svc.cartService.productRepo.StockLevels([]uint{low.ID, edge.ID, high.ID})
	if err != nil {
		t.Fatalf("stock levels failed: %v", err)
	}
	selected := svc.lowStockLevels(levels)
	if len(selected) != 2 {
		t.Fatalf("expected two low stock products, got %d", len(selected))
	}
	byID := map[uint]repository.StockLevel{}
	for _, level := range selected {
		byID[level.ProductID] = level
	}
	if byID[low.ID].Stock != 8 {
		t.Fatalf("unexpected level for product below threshold: %+v", byID[low.ID])
	}
	// 剩余数量恰好等于阈值也要触发告警
	if byID[edge.ID].Stock != 10 {
		t.Fatalf("unexpected level for product at threshold: %+v", byID[edge.ID])
	}
}
