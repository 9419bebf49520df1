package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/pkg/lock"
	"vipsmoke_erp/pkg/vendors/zoho"
)

// ==================== 测试替身 ====================

type fakeZoho struct {
	pages      [][]zoho.Item
	details    map[string]*zoho.Item
	detailErr  map[string]error
	categories []zoho.Category
	orders     map[string]*zoho.SalesOrder
	contacts   map[string]*zoho.Contact
	// invalid 按页注入解码失败的条目
	invalid map[int][]zoho.InvalidItem
	// listErr 按页注入列表错误
	listErr map[int]error
	// onList 每次列表请求时回调
	onList func(page int)

	listCalls   int
	detailCalls []string
	lastFilter  zoho.ListFilter
}

func newFakeZoho(items ...zoho.Item) *fakeZoho {
	f := &fakeZoho{
		details:   make(map[string]*zoho.Item),
		detailErr: make(map[string]error),
		orders:    make(map[string]*zoho.SalesOrder),
		contacts:  make(map[string]*zoho.Contact),
		invalid:   make(map[int][]zoho.InvalidItem),
		listErr:   make(map[int]error),
	}
	f.setItems(items...)
	return f
}

// setItems 每页两条
func (f *fakeZoho) setItems(items ...zoho.Item) {
	f.pages = nil
	for i := 0; i < len(items); i += 2 {
		end := i + 2
		if end > len(items) {
			end = len(items)
		}
		f.pages = append(f.pages, items[i:end])
	}
	for i := range items {
		item := items[i]
		f.details[item.ItemID] = &item
	}
}

func (f *fakeZoho) GetProducts(_ context.Context, page, perPage int, filter zoho.ListFilter) (*zoho.ItemPage, error) {
	f.listCalls++
	f.lastFilter = filter
	if f.onList != nil {
		f.onList(page)
	}
	if err := f.listErr[page]; err != nil {
		return nil, err
	}
	if page > len(f.pages) {
		return &zoho.ItemPage{Page: page, PerPage: perPage, Invalid: f.invalid[page]}, nil
	}
	return &zoho.ItemPage{
		Items:   f.pages[page-1],
		Invalid: f.invalid[page],
		Page:    page,
		PerPage: perPage,
		HasMore: page < len(f.pages),
	}, nil
}

func (f *fakeZoho) GetProduct(_ context.Context, itemID string) (*zoho.Item, error) {
	f.detailCalls = append(f.detailCalls, itemID)
	if err := f.detailErr[itemID]; err != nil {
		return nil, err
	}
	item, ok := f.details[itemID]
	if !ok {
		return nil, &zoho.APIError{StatusCode: 404, Message: "not found"}
	}
	cp := *item
	return &cp, nil
}

func (f *fakeZoho) GetCategories(context.Context) ([]zoho.Category, error) {
	return f.categories, nil
}

func (f *fakeZoho) GetSalesOrders(_ context.Context, page, _ int, _ string) (*zoho.SalesOrderPage, error) {
	if page > 1 {
		return &zoho.SalesOrderPage{}, nil
	}
	var list []zoho.SalesOrder
	for _, so := range f.orders {
		list = append(list, zoho.SalesOrder{SalesOrderID: so.SalesOrderID})
	}
	return &zoho.SalesOrderPage{SalesOrders: list}, nil
}

func (f *fakeZoho) GetSalesOrder(_ context.Context, id string) (*zoho.SalesOrder, error) {
	so, ok := f.orders[id]
	if !ok {
		return nil, &zoho.APIError{StatusCode: 404}
	}
	cp := *so
	return &cp, nil
}

func (f *fakeZoho) GetContact(_ context.Context, id string) (*zoho.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return nil, &zoho.APIError{StatusCode: 404}
	}
	return c, nil
}

func (f *fakeZoho) Ping(context.Context) error { return nil }

// ==================== 测试环境 ====================

func setupSyncTestDB(t *testing.T) *gorm.DB {
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

type syncFixture struct {
	svc      *SyncService
	zoho     *fakeZoho
	products repository.ProductRepository
	runs     repository.SyncRunRepository
	orders   repository.OrderRepository
	locker   lock.Locker
	db       *gorm.DB
}

func newSyncFixture(t *testing.T, items ...zoho.Item) *syncFixture {
	db := setupSyncTestDB(t)
	fz := newFakeZoho(items...)
	products := repository.NewProductRepository(db)
	categories := repository.NewCategoryRepository(db)
	orders := repository.NewOrderRepository(db)
	runs := repository.NewSyncRunRepository(db)
	locker := lock.NewMemoryLocker()

	svc := NewSyncService(
		fz, products, categories, orders, runs,
		NewFieldMapper(nil, nil),
		NewReferenceResolver(categories, repository.NewBrandRepository(db)),
		locker,
		SyncConfig{PageSize: 2, PageLimit: 10},
	)
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	return &syncFixture{svc: svc, zoho: fz, products: products, runs: runs, orders: orders, locker: locker, db: db}
}

func zohoItem(id, sku, name string, price float64) zoho.Item {
	return zoho.Item{
		ItemID:       id,
		SKU:          sku,
		Name:         name,
		Rate:         nf(price),
		StockOnHand:  nf(5),
		Status:       "active",
		CategoryID:   "cat-" + id,
		CategoryName: "Category " + id,
	}
}

// ==================== 商品同步 ====================

func TestSyncService_SyncProducts_Idempotent(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t,
		zohoItem("1", "GB-1", "Geek Bar Pulse Disposable Vape Watermelon", 19.99),
		zohoItem("2", "RAW-1", "RAW Classic Rolling Papers", 2.5),
		zohoItem("3", "KAVA-1", "Kava Root Powder", 30),
	)

	first, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 3, first.Processed)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, first.Failed)

	second, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 3, second.Succeeded)

	count, err := fx.products.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	dups, err := fx.products.CountDuplicateSKUs(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, dups)

	p, err := fx.products.FindBySKU(ctx, "GB-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.IsNicotine || p.IsAgeRestricted)
	assert.NotNil(t, p.CategoryID)
	assert.NotNil(t, p.BrandID)
	assert.Equal(t, 5, p.Stock)
}

func TestSyncService_SyncProducts_DetectsChanges(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t, zohoItem("1", "GB-1", "Geek Bar Pulse", 19.99))

	_, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	changed := zohoItem("1", "GB-1", "Geek Bar Pulse", 24.99)
	fx.zoho.setItems(changed)

	res, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	p, err := fx.products.FindBySKU(ctx, "GB-1")
	require.NoError(t, err)
	assert.Equal(t, "24.99", p.Price.String())
}

func TestSyncService_SyncProducts_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t,
		zohoItem("1", "A-1", "First Item", 1),
		zohoItem("2", "", "Item Without SKU", 2),
		zohoItem("3", "C-3", "Third Item", 3),
		zohoItem("4", "D-4", "Fourth Item", 4),
	)
	fx.zoho.detailErr["4"] = &zoho.APIError{StatusCode: 500, Message: "boom"}

	res, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Contains(t, fx.zoho.detailCalls, "3")

	require.Len(t, res.Errors, 2)
	assert.Equal(t, "zoho item 2: missing sku", res.Errors[0])
	assert.Contains(t, res.Errors[1], "zoho item 4")

	p, err := fx.products.FindBySKU(ctx, "C-3")
	require.NoError(t, err)
	assert.NotNil(t, p)

	last, err := fx.runs.LastSuccessful(ctx, model.ResourceProducts)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Failed)
	assert.Contains(t, last.ErrorSample, "missing sku")
}

func TestSyncService_SyncProducts_AuthErrorAborts(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t,
		zohoItem("1", "A-1", "First Item", 1),
		zohoItem("2", "B-2", "Second Item", 2),
		zohoItem("3", "C-3", "Third Item", 3),
	)
	fx.zoho.detailErr["2"] = fmt.Errorf("获取商品: %w", zoho.ErrUnauthorized)

	res, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Created)
	assert.NotContains(t, fx.zoho.detailCalls, "3")

	last, err := fx.runs.LastSuccessful(ctx, model.ResourceProducts)
	require.NoError(t, err)
	assert.Nil(t, last, "中止的运行不能作为增量游标")
}

func TestSyncService_SyncProducts_Incremental(t *testing.T) {
	ctx := context.Background()
	cursor := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	newer := zohoItem("1", "NEW-1", "Recently Changed", 10)
	newer.LastModifiedTime = cursor.Add(time.Hour).Format(zoho.TimeLayout)
	older := zohoItem("2", "OLD-2", "Unchanged Item", 20)
	older.LastModifiedTime = cursor.Add(-time.Hour).Format(zoho.TimeLayout)
	oldest := zohoItem("3", "OLD-3", "Very Old Item", 30)
	oldest.LastModifiedTime = cursor.Add(-48 * time.Hour).Format(zoho.TimeLayout)

	fx := newSyncFixture(t, newer, older, oldest)

	finished := cursor.Add(time.Minute)
	require.NoError(t, fx.runs.Create(ctx, &model.SyncRun{
		Resource:   model.ResourceProducts,
		Mode:       model.SyncModeFull,
		StartedAt:  cursor,
		FinishedAt: &finished,
		Success:    true,
	}))

	res, err := fx.svc.SyncProducts(ctx, SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, model.SyncModeIncremental, res.Mode)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []string{"1"}, fx.zoho.detailCalls)
	require.NotNil(t, fx.zoho.lastFilter.LastModifiedAfter)
	assert.True(t, fx.zoho.lastFilter.LastModifiedAfter.Equal(cursor))
	// 第一页已到达游标，不再翻页
	assert.Equal(t, 1, fx.zoho.listCalls)
}

func TestSyncService_SyncProducts_IncrementalWithoutHistoryRunsFull(t *testing.T) {
	fx := newSyncFixture(t, zohoItem("1", "A-1", "First Item", 1))

	res, err := fx.svc.SyncProducts(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeFull, res.Mode)
	assert.Nil(t, fx.zoho.lastFilter.LastModifiedAfter)
}

func TestSyncService_SyncProducts_Locked(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t, zohoItem("1", "A-1", "First Item", 1))

	lease, err := fx.locker.TryLock(ctx, "sync:"+model.ResourceProducts, time.Minute)
	require.NoError(t, err)

	_, err = fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	assert.True(t, errors.Is(err, ErrSyncInProgress))
	assert.Empty(t, fx.zoho.detailCalls)

	require.NoError(t, lease.Release(ctx))
	_, err = fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	assert.NoError(t, err)
}

func TestSyncService_SyncProducts_InvalidListItems(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t,
		zohoItem("1", "A-1", "First Item", 12.5),
		zohoItem("3", "C-3", "Third Item", 1),
		zohoItem("4", "D-4", "Fourth Item", 4),
	)
	fx.zoho.invalid[1] = []zoho.InvalidItem{
		{ItemID: "2", Index: 1, Err: fmt.Errorf("%w: rate N/A", zoho.ErrInvalidPayload)},
	}
	fx.zoho.invalid[2] = []zoho.InvalidItem{{Index: 0, Err: zoho.ErrInvalidPayload}}

	res, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "zoho item 2")
	assert.Contains(t, res.Errors[1], "page 2 #0")
	assert.NotContains(t, fx.zoho.detailCalls, "2")
}

func TestSyncService_SyncProducts_BadItemOnRealPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"t","expires_in":3600}`))
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"message":"success","items":[
			{"item_id":"1","name":"Widget","sku":"W-1","rate":12.5},
			{"item_id":"2","name":"Broken","sku":"B-2","rate":"N/A"},
			{"item_id":"3","name":"Gadget","sku":"G-3","rate":1}
		],"page_context":{"has_more_page":false}}`))
	})
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/items/")
		names := map[string]string{"1": "Widget", "3": "Gadget"}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 0,
			"item": map[string]interface{}{"item_id": id, "name": names[id], "sku": "SKU-" + id, "rate": 5, "status": "active"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := zoho.NewClient(zoho.Config{
		ClientID:       "cid",
		ClientSecret:   "secret",
		RefreshToken:   "refresh",
		OrganizationID: "org",
		AccountsURL:    srv.URL,
		APIBaseURL:     srv.URL,
		RateLimit:      1000,
	}, &zoho.MemoryTokenStore{}, zoho.WithRetry(0, 0))

	db := setupSyncTestDB(t)
	categories := repository.NewCategoryRepository(db)
	svc := NewSyncService(
		client,
		repository.NewProductRepository(db), categories,
		repository.NewOrderRepository(db), repository.NewSyncRunRepository(db),
		NewFieldMapper(nil, nil),
		NewReferenceResolver(categories, repository.NewBrandRepository(db)),
		lock.NewMemoryLocker(),
		SyncConfig{PageSize: 3, PageLimit: 5},
	)

	res, err := svc.SyncProducts(context.Background(), SyncOptions{FullSync: true})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "zoho item 2")
}

func TestSyncService_SyncProducts_ListErrorOnLaterPage(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t,
		zohoItem("1", "A-1", "First Item", 1),
		zohoItem("2", "B-2", "Second Item", 2),
		zohoItem("3", "C-3", "Third Item", 3),
		zohoItem("4", "D-4", "Fourth Item", 4),
	)
	fx.zoho.listErr[2] = &zoho.APIError{StatusCode: 503, Message: "service unavailable"}

	res, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Created)
	assert.Contains(t, res.Message, "获取第 2 页失败")
	assert.Equal(t, 2, fx.zoho.listCalls)

	// 第一页已写入的数据保留
	count, err := fx.products.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	last, err := fx.runs.LastSuccessful(ctx, model.ResourceProducts)
	require.NoError(t, err)
	assert.Nil(t, last, "中止的运行不能作为增量游标")
}

func TestSyncService_SyncInventory_ListErrorOnLaterPage(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t,
		zohoItem("1", "A-1", "First Item", 1),
		zohoItem("2", "B-2", "Second Item", 2),
		zohoItem("3", "C-3", "Third Item", 3),
	)
	_, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	fx.zoho.listErr[2] = errors.New("connection reset")
	fx.zoho.invalid[1] = []zoho.InvalidItem{{ItemID: "9", Index: 2, Err: zoho.ErrInvalidPayload}}

	res, err := fx.svc.SyncInventory(ctx)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
}

func TestSyncService_RenewsLeasePerPage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	key := "vipsmoke:lock:sync:" + model.ResourceProducts

	db := setupSyncTestDB(t)
	fz := newFakeZoho(
		zohoItem("1", "A-1", "First Item", 1),
		zohoItem("2", "B-2", "Second Item", 2),
		zohoItem("3", "C-3", "Third Item", 3),
		zohoItem("4", "D-4", "Fourth Item", 4),
		zohoItem("5", "E-5", "Fifth Item", 5),
	)
	categories := repository.NewCategoryRepository(db)
	svc := NewSyncService(
		fz, repository.NewProductRepository(db), categories,
		repository.NewOrderRepository(db), repository.NewSyncRunRepository(db),
		NewFieldMapper(nil, nil),
		NewReferenceResolver(categories, repository.NewBrandRepository(db)),
		lock.New(client),
		SyncConfig{PageSize: 2, PageLimit: 10, LockTTL: 2 * time.Second},
	)
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	var held []bool
	fz.onList = func(int) {
		// 每页耗时 1.5 秒，三页累计超过 TTL
		mr.FastForward(1500 * time.Millisecond)
		held = append(held, mr.Exists(key))
	}

	res, err := svc.SyncProducts(context.Background(), SyncOptions{FullSync: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.Created)
	assert.Equal(t, []bool{true, true, true}, held, "翻页时锁必须仍被持有")
	assert.False(t, mr.Exists(key), "结束后释放")
}

func TestSyncService_AbortsWhenLeaseLost(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	key := "vipsmoke:lock:sync:" + model.ResourceProducts

	db := setupSyncTestDB(t)
	fz := newFakeZoho(
		zohoItem("1", "A-1", "First Item", 1),
		zohoItem("2", "B-2", "Second Item", 2),
		zohoItem("3", "C-3", "Third Item", 3),
	)
	categories := repository.NewCategoryRepository(db)
	svc := NewSyncService(
		fz, repository.NewProductRepository(db), categories,
		repository.NewOrderRepository(db), repository.NewSyncRunRepository(db),
		NewFieldMapper(nil, nil),
		NewReferenceResolver(categories, repository.NewBrandRepository(db)),
		lock.New(client),
		SyncConfig{PageSize: 2, PageLimit: 10, LockTTL: time.Second},
	)
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	fz.onList = func(page int) {
		if page == 1 {
			// 第一页处理超时，锁过期后被其他实例获取
			mr.FastForward(2 * time.Second)
			require.NoError(t, mr.Set(key, "other-owner"))
		}
	}

	res, err := svc.SyncProducts(context.Background(), SyncOptions{FullSync: true})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Created)
	assert.Contains(t, res.Message, "续期同步锁失败")
	assert.Equal(t, 1, fz.listCalls)

	v, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-owner", v, "不能释放他人持有的锁")
}

func TestSyncService_SyncProductByID(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t, zohoItem("9", "W-9", "Webhook Item", 9))

	res, err := fx.svc.SyncProductByID(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeSingle, res.Mode)
	assert.Equal(t, 1, res.Created)

	res, err = fx.svc.SyncProductByID(ctx, "404")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
}

// ==================== 分类/库存/订单 ====================

func TestSyncService_SyncCategories(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t)
	fx.zoho.categories = []zoho.Category{
		{CategoryID: "10", Name: "Vapes", ParentCategoryID: "-1"},
		{CategoryID: "11", Name: "Disposables", ParentCategoryID: "10"},
		{CategoryID: "", Name: "Broken"},
	}

	res, err := fx.svc.SyncCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed)

	categories := repository.NewCategoryRepository(fx.db)
	parent, err := categories.FindByZohoID(ctx, "10")
	require.NoError(t, err)
	child, err := categories.FindByZohoID(ctx, "11")
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)

	res, err = fx.svc.SyncCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
}

func TestSyncService_SyncInventory(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t, zohoItem("1", "A-1", "First Item", 1))
	_, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	known := zohoItem("1", "A-1", "First Item", 1)
	known.StockOnHand = nf(42)
	unknown := zohoItem("2", "B-2", "Not Local", 1)
	fx.zoho.setItems(known, unknown)

	res, err := fx.svc.SyncInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)

	p, err := fx.products.FindBySKU(ctx, "A-1")
	require.NoError(t, err)
	assert.Equal(t, 42, p.Stock)
}

func TestSyncService_SyncOrders(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t, zohoItem("1", "A-1", "First Item", 10))
	_, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)

	fx.zoho.orders["so-1"] = &zoho.SalesOrder{
		SalesOrderID:     "so-1",
		SalesOrderNumber: "SO-00001",
		CustomerID:       "c-1",
		CustomerName:     "Jane Doe",
		Status:           model.OrderStatusConfirmed,
		Date:             "2024-06-01",
		Total:            nf(20),
		LineItems: []zoho.LineItem{
			{LineItemID: "li-1", ItemID: "1", SKU: "A-1", Name: "First Item", Quantity: nf(2), Rate: nf(10)},
		},
	}
	fx.zoho.contacts["c-1"] = &zoho.Contact{ContactID: "c-1", Email: "jane@example.com"}

	res, err := fx.svc.SyncOrders(ctx, OrderSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	order, err := fx.orders.FindByZohoID(ctx, "so-1")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, "jane@example.com", order.CustomerEmail)
	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].ProductID)

	res, err = fx.svc.SyncOrders(ctx, OrderSyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeIncremental, res.Mode)
	assert.Equal(t, 1, res.Skipped)
}

func TestSyncService_SyncFull(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t, zohoItem("1", "A-1", "First Item", 1))
	fx.zoho.categories = []zoho.Category{{CategoryID: "cat-1", Name: "Category 1"}}

	res, err := fx.svc.SyncFull(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Steps, 4)
	assert.Equal(t, model.ResourceCategories, res.Steps[0].Resource)
	assert.Equal(t, model.ResourceOrders, res.Steps[3].Resource)

	// 分类已由分类同步创建，商品同步应复用
	categories, err := repository.NewCategoryRepository(fx.db).List(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{"未超长原样返回", "abc", 5, "abc"},
		{"ASCII 按字节截断", "abcdef", 4, "abcd"},
		{"不拆分中文字符", "同步中止", 4, "同"},
		{"恰好落在字符边界", "同步中止", 6, "同步"},
		{"上限小于首字符", "同步", 2, ""},
		{"混合内容", "ok: 令牌失效", 6, "ok: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.s, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, len(got), tt.n)
		})
	}
}

func TestSyncRunner_PersistsTruncatedMessageAsValidUTF8(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t,
		zohoItem("1", "A-1", "First Item", 1),
		zohoItem("2", "B-2", "Second Item", 2),
		zohoItem("3", "C-3", "Third Item", 3),
	)
	// 第 2 页报错，错误信息为长中文
	fx.zoho.listErr[2] = errors.New(strings.Repeat("服务暂不可用", 60))

	res, err := fx.svc.SyncProducts(ctx, SyncOptions{FullSync: true})
	require.NoError(t, err)
	require.False(t, res.Success)

	var run model.SyncRun
	require.NoError(t, fx.db.Where("resource = ?", model.ResourceProducts).Order("started_at DESC").First(&run).Error)
	assert.LessOrEqual(t, len(run.Message), 500)
	assert.True(t, utf8.ValidString(run.Message))
	assert.NotEmpty(t, run.Message)
}
