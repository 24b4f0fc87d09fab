package main

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumen-shop/internal/config"
	"github.com/lumen-shop/internal/constants"
	"github.com/lumen-shop/internal/logger"
	"github.com/lumen-shop/internal/models"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 分类
	categories := []models.Category{
		{Name: "Electronics", SortOrder: 1},
		{Name: "Lifestyle", SortOrder: 2},
		{Name: "Accessories", SortOrder: 3},
	}
	categoryIDs := map[string]uint{}
	for _, cat := range categories {
		var existing models.Category
		if err := models.DB.Where("name = ?", cat.Name).First(&existing).Error; err != nil {
			record := cat
			if err := models.DB.Create(&record).Error; err != nil {
				stdLog.Printf("Failed to create category %s: %v", cat.Name, err)
				continue
			}
			categoryIDs[cat.Name] = record.ID
			stdLog.Printf("Created category: %s", cat.Name)
		} else {
			categoryIDs[cat.Name] = existing.ID
			stdLog.Printf("Category already exists: %s", cat.Name)
		}
	}

	// 商品
	products := []models.Product{
		{
			CategoryID:  categoryIDs["Electronics"],
			Name:        "Wireless Earbuds",
			Description: "Bluetooth 5.3 earbuds with charging case",
			PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(59.99)),
			Stock:       120,
			IsActive:    true,
			SortOrder:   1,
		},
		{
			CategoryID:  categoryIDs["Electronics"],
			Name:        "Portable SSD 1TB",
			Description: "USB-C external solid state drive",
			PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(109.00)),
			Stock:       45,
			IsActive:    true,
			SortOrder:   2,
		},
		{
			CategoryID:  categoryIDs["Lifestyle"],
			Name:        "Insulated Bottle",
			Description: "500ml vacuum insulated bottle",
			PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(18.50)),
			Stock:       300,
			IsActive:    true,
			SortOrder:   1,
		},
		{
			CategoryID:  categoryIDs["Accessories"],
			Name:        "USB-C Cable 2m",
			Description: "100W braided charging cable",
			PriceAmount: models.NewMoneyFromDecimal(decimal.NewFromFloat(9.90)),
			Stock:       8,
			IsActive:    true,
			SortOrder:   1,
		},
	}
	for _, p := range products {
		var existing models.Product
		if err := models.DB.Where("name = ?", p.Name).First(&existing).Error; err != nil {
			record := p
			if err := models.DB.Create(&record).Error; err != nil {
				stdLog.Printf("Failed to create product %s: %v", p.Name, err)
			} else {
				stdLog.Printf("Created product: %s", p.Name)
			}
		} else {
			stdLog.Printf("Product already exists: %s", p.Name)
		}
	}

	// 演示用户
	demoEmail := "demo@example.com"
	var existingUser models.User
	if err := models.DB.Where("email = ?", demoEmail).First(&existingUser).Error; err != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte("demo-password"), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Fatalf("Failed to hash demo password: %v", err)
		}
		// 演示账户邮箱直接视为已验证，支付回执可正常投递
		now := time.Now()
		user := models.User{
			Email:           demoEmail,
			PasswordHash:    string(hash),
			DisplayName:     "Demo",
			Status:          constants.UserStatusActive,
			EmailVerifiedAt: &now,
		}
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Printf("Failed to create demo user: %v", err)
		} else {
			stdLog.Printf("Created demo user: %s", demoEmail)
		}
	} else {
		stdLog.Printf("Demo user already exists: %s", demoEmail)
	}

	stdLog.Println("Seed completed")
}
