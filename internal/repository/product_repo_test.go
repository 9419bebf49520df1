package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vipsmoke_erp/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("数据库迁移失败: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func TestProductRepo_FindByNaturalKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	withSKU := &model.Product{SKU: strPtr("ABC123"), ZohoItemID: strPtr("1001"), Name: "Widget", Price: decimal.RequireFromString("9.99")}
	noSKU := &model.Product{ZohoItemID: strPtr("1002"), Name: "Loose Item"}
	require.NoError(t, repo.Create(ctx, withSKU))
	require.NoError(t, repo.Create(ctx, noSKU))

	tests := []struct {
		name   string
		sku    *string
		zohoID *string
		want   string
	}{
		{name: "按 SKU 命中", sku: strPtr("ABC123"), want: "Widget"},
		{name: "SKU 未命中回退 Zoho ID", sku: strPtr("NOPE"), zohoID: strPtr("1002"), want: "Loose Item"},
		{name: "仅 Zoho ID", zohoID: strPtr("1001"), want: "Widget"},
		{name: "均未命中", sku: strPtr("X"), zohoID: strPtr("9"), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindByNaturalKey(ctx, tt.sku, tt.zohoID)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestProductRepo_SKUUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Product{SKU: strPtr("DUP-1"), Name: "A"}))
	err := repo.Create(ctx, &model.Product{SKU: strPtr("DUP-1"), Name: "B"})
	assert.Error(t, err, "相同 SKU 应违反唯一约束")

	// 空 SKU 可以有多条
	require.NoError(t, repo.Create(ctx, &model.Product{Name: "C"}))
	require.NoError(t, repo.Create(ctx, &model.Product{Name: "D"}))

	dup, err := repo.CountDuplicateSKUs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dup)
}

func TestProductRepo_ListAndStock(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Product{SKU: strPtr("V-1"), ZohoItemID: strPtr("z1"), Name: "Geek Bar Pulse", Stock: 1}))
	require.NoError(t, repo.Create(ctx, &model.Product{SKU: strPtr("G-1"), ZohoItemID: strPtr("z2"), Name: "Glass Pipe"}))

	list, total, err := repo.List(ctx, ProductFilter{Keyword: "geek", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Geek Bar Pulse", list[0].Name)

	hit, err := repo.UpdateStockByZohoItemID(ctx, "z1", 42)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = repo.UpdateStockByZohoItemID(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, hit)

	p, err := repo.FindByZohoItemID(ctx, "z1")
	require.NoError(t, err)
	assert.Equal(t, 42, p.Stock)
}

func TestProductRepo_ListUnclassified(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	classRepo := NewClassificationRepository(db)
	ctx := context.Background()

	a := &model.Product{Name: "A"}
	b := &model.Product{Name: "B"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))
	require.NoError(t, classRepo.Upsert(ctx, &model.ProductClassification{
		ProductID: a.ID, Category: "Standard", RiskLevel: "low", Source: "keyword", ClassifiedAt: time.Now(),
	}))

	list, err := repo.ListUnclassified(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestBrandRepo_FirstOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBrandRepository(db)
	ctx := context.Background()

	first, err := repo.FirstOrCreate(ctx, &model.Brand{Name: "Geek Bar", Slug: "geek-bar"})
	require.NoError(t, err)
	second, err := repo.FirstOrCreate(ctx, &model.Brand{Name: "GEEK BAR", Slug: "geek-bar"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Geek Bar", second.Name)
}
