package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
)

// ReferenceResolver 分类/品牌查找或创建
// 持久化商品前解析外键，避免留空引用
type ReferenceResolver struct {
	categories repository.CategoryRepository
	brands     repository.BrandRepository

	mu         sync.Mutex
	categoryID map[string]uuid.UUID
	brandID    map[string]uuid.UUID
}

// NewReferenceResolver 创建解析器
func NewReferenceResolver(categories repository.CategoryRepository, brands repository.BrandRepository) *ReferenceResolver {
	r := &ReferenceResolver{categories: categories, brands: brands}
	r.Reset()
	return r
}

// Reset 清空单次运行内的缓存
func (r *ReferenceResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categoryID = make(map[string]uuid.UUID)
	r.brandID = make(map[string]uuid.UUID)
}

// ResolveCategory 按 Zoho 分类 ID 或名称查找分类，不存在则创建
// 两者均为空时返回 nil
func (r *ReferenceResolver) ResolveCategory(ctx context.Context, zohoCategoryID, name string) (*uuid.UUID, error) {
	zohoCategoryID = strings.TrimSpace(zohoCategoryID)
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if zohoCategoryID == "" && slug == "" {
		return nil, nil
	}

	cacheKey := "zoho:" + zohoCategoryID
	if zohoCategoryID == "" {
		cacheKey = "slug:" + slug
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.categoryID[cacheKey]; ok {
		return &id, nil
	}

	if zohoCategoryID != "" {
		c, err := r.categories.FindByZohoID(ctx, zohoCategoryID)
		if err != nil {
			return nil, fmt.Errorf("查询分类失败: %w", err)
		}
		if c != nil {
			r.categoryID[cacheKey] = c.ID
			return &c.ID, nil
		}
	}

	if slug == "" {
		slug = "zoho-" + Slugify(zohoCategoryID)
		name = zohoCategoryID
	}
	c, err := r.categories.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	if c != nil {
		// 同名分类尚未绑定 Zoho ID 时补齐
		if c.ZohoCategoryID == nil && zohoCategoryID != "" {
			c.ZohoCategoryID = &zohoCategoryID
			if err := r.categories.Update(ctx, c); err != nil {
				return nil, fmt.Errorf("更新分类失败: %w", err)
			}
		}
		r.categoryID[cacheKey] = c.ID
		return &c.ID, nil
	}

	created := &model.Category{Name: name, Slug: slug, IsActive: true}
	if zohoCategoryID != "" {
		created.ZohoCategoryID = &zohoCategoryID
	}
	if err := r.categories.Create(ctx, created); err != nil {
		return nil, fmt.Errorf("创建分类 %q 失败: %w", name, err)
	}
	r.categoryID[cacheKey] = created.ID
	return &created.ID, nil
}

// ResolveBrand 按名称查找品牌，不存在则创建
func (r *ReferenceResolver) ResolveBrand(ctx context.Context, name string) (*uuid.UUID, error) {
	name = strings.TrimSpace(name)
	slug := Slugify(name)
	if slug == "" {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.brandID[slug]; ok {
		return &id, nil
	}

	b, err := r.brands.FirstOrCreate(ctx, &model.Brand{Name: name, Slug: slug})
	if err != nil {
		return nil, fmt.Errorf("解析品牌 %q 失败: %w", name, err)
	}
	if b == nil {
		return nil, fmt.Errorf("解析品牌 %q 失败: 创建后未找到", name)
	}
	r.brandID[slug] = b.ID
	return &b.ID, nil
}

// Slugify 转小写，非字母数字替换为连字符
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
