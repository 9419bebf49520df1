package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/pkg/lock"
	"vipsmoke_erp/pkg/vendors/airtable"
)

type fakeAirtable struct {
	records []airtable.Record
	err     error
	calls   int
}

func (f *fakeAirtable) ListAll(_ context.Context, _ airtable.ListOptions, _ int) ([]airtable.Record, error) {
	f.calls++
	return f.records, f.err
}

func attachment(url string) []interface{} {
	return []interface{}{map[string]interface{}{"id": "att1", "url": url, "filename": "photo.png"}}
}

type airtableFixture struct {
	svc      *AirtableSyncService
	api      *fakeAirtable
	products repository.ProductRepository
	imageSrv *httptest.Server
}

func newAirtableFixture(t *testing.T, withStorage bool) *airtableFixture {
	db := setupSyncTestDB(t)
	products := repository.NewProductRepository(db)
	categories := repository.NewCategoryRepository(db)

	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	t.Cleanup(imageSrv.Close)

	var storage *StorageService
	if withStorage {
		var err error
		storage, err = NewStorageService(StorageConfig{Provider: "local", LocalDir: t.TempDir(), BaseURL: "http://cdn.test/uploads"})
		require.NoError(t, err)
	}

	api := &fakeAirtable{}
	svc := NewAirtableSyncService(
		api, products, repository.NewSyncRunRepository(db),
		NewFieldMapper(nil, nil),
		NewReferenceResolver(categories, repository.NewBrandRepository(db)),
		storage, lock.NewMemoryLocker(), "", 0, 0,
	)
	return &airtableFixture{svc: svc, api: api, products: products, imageSrv: imageSrv}
}

func (f *airtableFixture) seed(t *testing.T, sku, name string, images ...string) *model.Product {
	p := &model.Product{SKU: strPtr(sku), Name: name, ImageURLs: images}
	require.NoError(t, f.products.Create(context.Background(), p))
	return p
}

func TestAirtableSync_SyncImagesAndBrands(t *testing.T) {
	f := newAirtableFixture(t, true)
	ctx := context.Background()

	geek := f.seed(t, "GB-1", "Geek Bar Pulse Disposable Vape Watermelon")
	woods := f.seed(t, "BW-5", "Backwoods Honey Berry Cigars 5 Pack", "https://cdn.example.com/bw.jpg")

	f.api.records = []airtable.Record{
		{ID: "recA", Fields: map[string]interface{}{
			"Name":   "Geek Bar Pulse Watermelon",
			"Brand":  "Geek Bar",
			"Images": attachment(f.imageSrv.URL + "/a/photo.png"),
		}},
		{ID: "recB", Fields: map[string]interface{}{
			"Name":   "Backwoods Honey Berry",
			"Images": attachment(f.imageSrv.URL + "/b/photo.png"),
		}},
		{ID: "recC", Fields: map[string]interface{}{"Name": "Mystery Widget"}},
		{ID: "recD", Fields: map[string]interface{}{"Brand": "Nameless"}},
	}

	result, err := f.svc.SyncImagesAndBrands(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "airtable record recC (Mystery Widget): needs manual reconciliation", result.Errors[0])
	assert.Equal(t, "airtable record recD: missing name", result.Errors[1])

	got, err := f.products.GetByID(ctx, geek.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AirtableRecordID)
	assert.Equal(t, "recA", *got.AirtableRecordID)
	require.Len(t, got.ImageURLs, 1)
	assert.True(t, strings.HasPrefix(got.ImageURLs[0], "http://cdn.test/uploads/products/"))
	require.NotNil(t, got.Brand)
	assert.Equal(t, "Geek Bar", got.Brand.Name)

	// 已有图片不覆盖，品牌从名称提取
	got, err = f.products.GetByID(ctx, woods.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/bw.jpg"}, []string(got.ImageURLs))
	require.NotNil(t, got.Brand)
	assert.Equal(t, "Backwoods", got.Brand.Name)

	// 再次运行无变化
	again, err := f.svc.SyncImagesAndBrands(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 3, again.Skipped)
}

func TestAirtableSync_RecordsWithSKUUseStrictMatcher(t *testing.T) {
	f := newAirtableFixture(t, false)
	ctx := context.Background()

	geek := f.seed(t, "GB-1", "Geek Bar Pulse Disposable Vape Watermelon")
	f.seed(t, "BW-5", "Backwoods Honey Berry Cigars 5 Pack")

	f.api.records = []airtable.Record{
		// SKU 规范化后一致
		{ID: "recA", Fields: map[string]interface{}{"Name": "Geek Bar Pulse Watermelon", "SKU": "gb 1", "Brand": "Geek Bar"}},
		// SKU 对不上，名称相似度不足以通过通用阈值
		{ID: "recB", Fields: map[string]interface{}{"Name": "Backwoods Honey Berry", "SKU": "ZZ-404"}},
	}

	result, err := f.svc.SyncImagesAndBrands(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "recB")

	got, err := f.products.GetByID(ctx, geek.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AirtableRecordID)
	assert.Equal(t, "recA", *got.AirtableRecordID)

	// 同一名称去掉 SKU 后走宽松匹配即可命中
	f.api.records = []airtable.Record{
		{ID: "recB", Fields: map[string]interface{}{"Name": "Backwoods Honey Berry"}},
	}
	result, err = f.svc.SyncImagesAndBrands(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, result.Errors)
}

func TestAirtableSync_WithoutStorageKeepsSourceURL(t *testing.T) {
	f := newAirtableFixture(t, false)
	p := f.seed(t, "GB-1", "Geek Bar Pulse Disposable Vape Watermelon")

	url := f.imageSrv.URL + "/a/photo.png"
	f.api.records = []airtable.Record{
		{ID: "recA", Fields: map[string]interface{}{
			"Name":   "Geek Bar Pulse Watermelon",
			"Images": attachment(url),
		}},
	}

	result, err := f.svc.SyncImagesAndBrands(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	got, err := f.products.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{url}, []string(got.ImageURLs))
}

func TestAirtableSync_ListError(t *testing.T) {
	f := newAirtableFixture(t, false)
	f.api.err = errors.New("airtable down")

	result, err := f.svc.SyncImagesAndBrands(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "airtable down")
}
