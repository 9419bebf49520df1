package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/metrics"
	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/pkg/lock"
	"vipsmoke_erp/pkg/vendors/zoho"
)

// ErrSyncInProgress 同一资源已有同步在运行
var ErrSyncInProgress = errors.New("同步正在进行中")

// maxStoredErrors SyncRun 中保存的错误样本条数
const maxStoredErrors = 20

// ZohoAPI 同步所需的 Zoho 接口
type ZohoAPI interface {
	GetProducts(ctx context.Context, page, perPage int, filter zoho.ListFilter) (*zoho.ItemPage, error)
	GetProduct(ctx context.Context, itemID string) (*zoho.Item, error)
	GetCategories(ctx context.Context) ([]zoho.Category, error)
	GetSalesOrders(ctx context.Context, page, perPage int, startDate string) (*zoho.SalesOrderPage, error)
	GetSalesOrder(ctx context.Context, salesOrderID string) (*zoho.SalesOrder, error)
	GetContact(ctx context.Context, contactID string) (*zoho.Contact, error)
	Ping(ctx context.Context) error
}

// ==================== 同步结果 ====================

// SyncResult 单次同步汇总，随 HTTP 响应返回后丢弃
type SyncResult struct {
	Resource   string        `json:"resource"`
	Mode       string        `json:"mode"`
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Processed  int           `json:"processed"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Created    int           `json:"created"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Errors     []string      `json:"errors"`
	Steps      []*SyncResult `json:"steps,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DurationMs int64         `json:"duration_ms"`
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

func newSyncResult(resource, mode string) *SyncResult {
	return &SyncResult{Resource: resource, Mode: mode, Errors: []string{}, StartedAt: time.Now()}
}

func (r *SyncResult) record(o outcome) {
	r.Succeeded++
	switch o {
	case outcomeCreated:
		r.Created++
	case outcomeUpdated:
		r.Updated++
	case outcomeSkipped:
		r.Skipped++
	}
}

// fail 记录单条失败，错误信息必须包含供应商记录 ID
func (r *SyncResult) fail(source, vendorID string, err error) {
	r.Failed++
	var mapErr *MappingError
	if errors.As(err, &mapErr) {
		r.Errors = append(r.Errors, err.Error())
		return
	}
	r.Errors = append(r.Errors, fmt.Sprintf("%s %s: %v", source, vendorID, err))
}

func (r *SyncResult) finish(err error) {
	r.FinishedAt = time.Now()
	r.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	r.Success = err == nil
	if err != nil {
		r.Message = fmt.Sprintf("同步中止: %v", err)
		return
	}
	r.Message = fmt.Sprintf("同步完成: 成功 %d, 失败 %d (新增 %d, 更新 %d, 跳过 %d)",
		r.Succeeded, r.Failed, r.Created, r.Updated, r.Skipped)
}

// absorb 汇总子步骤结果
func (r *SyncResult) absorb(step *SyncResult) {
	r.Steps = append(r.Steps, step)
	r.Processed += step.Processed
	r.Succeeded += step.Succeeded
	r.Failed += step.Failed
	r.Created += step.Created
	r.Updated += step.Updated
	r.Skipped += step.Skipped
	r.Errors = append(r.Errors, step.Errors...)
}

func (r *SyncResult) counts() metrics.SyncCounts {
	return metrics.SyncCounts{Created: r.Created, Updated: r.Updated, Skipped: r.Skipped, Failed: r.Failed}
}

// ==================== 服务 ====================

// SyncConfig 同步参数
type SyncConfig struct {
	PageSize  int
	PageLimit int           // 翻页安全上限
	PageDelay time.Duration // 页间间隔
	LockTTL   time.Duration
}

// SyncOptions 商品同步选项
type SyncOptions struct {
	FullSync bool
	// Since 显式指定增量起点，为空时取上次成功运行的开始时间
	Since *time.Time
}

// SyncService 同步编排
// 每种资源独立线性执行: 拉取 -> 映射 -> 持久化，直到分页结束
type SyncService struct {
	*syncRunner
	zoho       ZohoAPI
	products   repository.ProductRepository
	categories repository.CategoryRepository
	orders     repository.OrderRepository
	mapper     *FieldMapper
	resolver   *ReferenceResolver
	cfg        SyncConfig
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewSyncService 创建同步服务
func NewSyncService(
	zohoAPI ZohoAPI,
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	orders repository.OrderRepository,
	runs repository.SyncRunRepository,
	mapper *FieldMapper,
	resolver *ReferenceResolver,
	locker lock.Locker,
	cfg SyncConfig,
) *SyncService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &SyncService{
		syncRunner: newSyncRunner(locker, runs, cfg.LockTTL),
		zoho:       zohoAPI,
		products:   products,
		categories: categories,
		orders:     orders,
		mapper:     mapper,
		resolver:   resolver,
		cfg:        cfg,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// syncRunner 资源锁与运行记录，各类同步共用
type syncRunner struct {
	locker  lock.Locker
	runs    repository.SyncRunRepository
	lockTTL time.Duration
}

func newSyncRunner(locker lock.Locker, runs repository.SyncRunRepository, lockTTL time.Duration) *syncRunner {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &syncRunner{locker: locker, runs: runs, lockTTL: lockTTL}
}

// run 加锁执行单个资源的同步，并记录 SyncRun
func (s *syncRunner) run(ctx context.Context, resource, mode string, fn func(ctx context.Context, result *SyncResult) error) (*SyncResult, error) {
	lease, err := s.locker.TryLock(ctx, "sync:"+resource, s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, fmt.Errorf("%w: %s", ErrSyncInProgress, resource)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			logrus.WithError(err).Warn("[SyncService] 释放锁失败")
		}
	}()

	log := logrus.WithFields(logrus.Fields{"resource": resource, "mode": mode})
	log.Info("[SyncService] 开始同步")
	ctx = context.WithValue(ctx, heldLeaseKey{}, &heldLease{lease: lease, ttl: s.lockTTL})

	result := newSyncResult(resource, mode)
	runRecord := &model.SyncRun{Resource: resource, Mode: mode, StartedAt: result.StartedAt}
	if err := s.runs.Create(ctx, runRecord); err != nil {
		log.WithError(err).Warn("[SyncService] 创建运行记录失败")
	}

	fnErr := fn(ctx, result)
	result.finish(fnErr)
	s.persistRun(runRecord, result)
	metrics.RecordSync(resource, result.Mode, result.Success, result.counts(), time.Duration(result.DurationMs)*time.Millisecond)

	entry := log.WithFields(logrus.Fields{
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"created":   result.Created,
		"updated":   result.Updated,
		"skipped":   result.Skipped,
	})
	if fnErr != nil {
		entry.WithError(fnErr).Error("[SyncService] 同步中止")
	} else {
		entry.Info("[SyncService] 同步完成")
	}
	return result, nil
}

type heldLeaseKey struct{}

type heldLease struct {
	lease lock.Lease
	ttl   time.Duration
}

// renewLease 续期当前运行持有的资源锁，分页同步每翻一页调用一次
// 锁已丢失时返回错误，调用方应中止，避免与新持有者并发写入
func renewLease(ctx context.Context) error {
	h, ok := ctx.Value(heldLeaseKey{}).(*heldLease)
	if !ok {
		return nil
	}
	if err := h.lease.Extend(ctx, h.ttl); err != nil {
		return fmt.Errorf("续期同步锁失败: %w", err)
	}
	return nil
}

func (s *syncRunner) persistRun(run *model.SyncRun, result *SyncResult) {
	finished := result.FinishedAt
	run.Mode = result.Mode
	run.FinishedAt = &finished
	run.Success = result.Success
	run.Processed = result.Processed
	run.Succeeded = result.Succeeded
	run.Failed = result.Failed
	run.Created = result.Created
	run.Updated = result.Updated
	run.Skipped = result.Skipped
	run.Message = truncate(result.Message, 500)
	sample := result.Errors
	if len(sample) > maxStoredErrors {
		sample = sample[:maxStoredErrors]
	}
	run.ErrorSample = strings.Join(sample, "\n")

	// 请求可能已取消，记录仍需落库
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.runs.Update(ctx, run); err != nil {
		logrus.WithError(err).Warn("[SyncService] 保存运行记录失败")
	}
}

// ==================== 商品 ====================

// SyncProducts 同步商品
// 增量模式以上次成功运行的开始时间为游标，无历史记录时退化为全量
func (s *SyncService) SyncProducts(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	mode := model.SyncModeFull
	var cursor *time.Time
	if !opts.FullSync {
		cursor = opts.Since
		if cursor == nil {
			last, err := s.runs.LastSuccessful(ctx, model.ResourceProducts)
			if err != nil {
				return nil, fmt.Errorf("读取同步游标失败: %w", err)
			}
			if last != nil {
				started := last.StartedAt
				cursor = &started
			}
		}
		if cursor != nil {
			mode = model.SyncModeIncremental
		}
	}

	return s.run(ctx, model.ResourceProducts, mode, func(ctx context.Context, result *SyncResult) error {
		s.resolver.Reset()
		filter := zoho.ListFilter{LastModifiedAfter: cursor}

		for page := 1; page <= s.cfg.PageLimit; page++ {
			if page > 1 {
				if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
					return err
				}
				if err := renewLease(ctx); err != nil {
					return err
				}
			}

			resp, err := s.zoho.GetProducts(ctx, page, s.cfg.PageSize, filter)
			if err != nil {
				return fmt.Errorf("获取第 %d 页失败: %w", page, err)
			}

			s.failInvalid(resp, result)

			reachedCursor := false
			for i := range resp.Items {
				brief := &resp.Items[i]
				if cursor != nil {
					if mt := brief.ModifiedAt(); mt != nil && !mt.After(*cursor) {
						// 按修改时间倒序，之后的记录均未变化
						reachedCursor = true
						continue
					}
				}
				result.Processed++
				if err := s.syncItem(ctx, brief.ItemID, result); err != nil {
					return err
				}
			}

			if !resp.HasMore || reachedCursor {
				return nil
			}
		}
		logrus.WithField("page_limit", s.cfg.PageLimit).Warn("[SyncService] 达到翻页上限，提前结束")
		return nil
	})
}

// failInvalid 将列表中解码失败的条目逐条记为失败
func (s *SyncService) failInvalid(resp *zoho.ItemPage, result *SyncResult) {
	for _, bad := range resp.Invalid {
		result.Processed++
		id := bad.ItemID
		if id == "" {
			id = fmt.Sprintf("page %d #%d", resp.Page, bad.Index)
		}
		result.fail("zoho item", id, bad.Err)
	}
}

// SyncProductByID 同步单个商品 (Webhook 触发)，不占用资源锁
func (s *SyncService) SyncProductByID(ctx context.Context, itemID string) (*SyncResult, error) {
	result := newSyncResult(model.ResourceProducts, model.SyncModeSingle)
	result.Processed = 1
	err := s.syncItem(ctx, itemID, result)
	result.finish(err)
	return result, err
}

// syncItem 拉取详情、映射并写入
// 仅认证错误向上返回以中止整个同步，其余记为单条失败
func (s *SyncService) syncItem(ctx context.Context, itemID string, result *SyncResult) error {
	detail, err := s.zoho.GetProduct(ctx, itemID)
	if err != nil {
		if zoho.IsAuthError(err) || ctx.Err() != nil {
			return err
		}
		result.fail("zoho item", itemID, err)
		return nil
	}

	fields, err := s.mapper.MapZohoItem(detail)
	if err != nil {
		result.fail("zoho item", itemID, err)
		return nil
	}

	o, err := s.persistProduct(ctx, fields)
	if err != nil {
		result.fail("zoho item", itemID, err)
		return nil
	}
	result.record(o)
	return nil
}

// persistProduct 按自然键写入，数据无变化时跳过
func (s *SyncService) persistProduct(ctx context.Context, f *ProductFields) (outcome, error) {
	categoryID, err := s.resolver.ResolveCategory(ctx, f.ZohoCategoryID, f.CategoryName)
	if err != nil {
		return 0, err
	}
	brandID, err := s.resolver.ResolveBrand(ctx, f.BrandName)
	if err != nil {
		return 0, err
	}

	existing, err := s.products.FindByNaturalKey(ctx, f.SKU, f.ZohoItemID)
	if err != nil {
		return 0, fmt.Errorf("查询本地商品失败: %w", err)
	}

	now := time.Now()
	if existing == nil {
		p := &model.Product{Status: model.ProductStatusActive}
		ApplyProductFields(p, f, categoryID, brandID)
		p.LastSyncedAt = &now
		if err := s.products.Create(ctx, p); err != nil {
			return 0, fmt.Errorf("创建商品失败: %w", err)
		}
		return outcomeCreated, nil
	}

	if !ApplyProductFields(existing, f, categoryID, brandID) {
		return outcomeSkipped, nil
	}
	existing.LastSyncedAt = &now
	if err := s.products.Update(ctx, existing); err != nil {
		return 0, fmt.Errorf("更新商品失败: %w", err)
	}
	return outcomeUpdated, nil
}

// ApplyProductFields 将映射字段写入商品，返回是否有变化
// 缺失的可选字段不覆盖已有值，合规标记只置位不清除
func ApplyProductFields(p *model.Product, f *ProductFields, categoryID, brandID *uuid.UUID) bool {
	changed := false
	setStr := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	setStrPtr := func(dst **string, v *string) {
		if v != nil && (*dst == nil || **dst != *v) {
			val := *v
			*dst = &val
			changed = true
		}
	}
	setFloat := func(dst **float64, v *float64) {
		if v != nil && (*dst == nil || **dst != *v) {
			val := *v
			*dst = &val
			changed = true
		}
	}
	setUUID := func(dst **uuid.UUID, v *uuid.UUID) {
		if v != nil && (*dst == nil || **dst != *v) {
			val := *v
			*dst = &val
			changed = true
		}
	}
	setFlag := func(dst *bool, v bool) {
		if v && !*dst {
			*dst = true
			changed = true
		}
	}

	setStrPtr(&p.SKU, f.SKU)
	setStrPtr(&p.ZohoItemID, f.ZohoItemID)
	setStrPtr(&p.AirtableRecordID, f.AirtableRecordID)
	setStr(&p.Name, f.Name)
	setStr(&p.Description, f.Description)
	setStr(&p.Status, f.Status)
	setStr(&p.Unit, f.Unit)

	if f.Price != nil && !p.Price.Equal(*f.Price) {
		p.Price = *f.Price
		changed = true
	}
	if f.Stock != nil && p.Stock != *f.Stock {
		p.Stock = *f.Stock
		changed = true
	}

	setFloat(&p.WeightGrams, f.WeightGrams)
	setFloat(&p.LengthMM, f.LengthMM)
	setFloat(&p.WidthMM, f.WidthMM)
	setFloat(&p.HeightMM, f.HeightMM)

	if len(f.ImageURLs) > 0 && !equalStrings(p.ImageURLs, f.ImageURLs) {
		p.ImageURLs = append(p.ImageURLs[:0:0], f.ImageURLs...)
		changed = true
	}

	setFlag(&p.IsNicotine, f.Flags.IsNicotine)
	setFlag(&p.IsTobacco, f.Flags.IsTobacco)
	setFlag(&p.IsAgeRestricted, f.Flags.IsAgeRestricted)

	setUUID(&p.CategoryID, categoryID)
	setUUID(&p.BrandID, brandID)

	if f.VendorModifiedAt != nil && (p.VendorModifiedAt == nil || !p.VendorModifiedAt.Equal(*f.VendorModifiedAt)) {
		t := *f.VendorModifiedAt
		p.VendorModifiedAt = &t
		changed = true
	}

	// 原始报文仅随其他变化一起更新，数据库可能重排 JSON
	if changed && len(f.RawPayload) > 0 {
		p.RawPayload = f.RawPayload
	}
	return changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ==================== 分类 ====================

// SyncCategories 同步分类 (Zoho 分类接口不分页)
func (s *SyncService) SyncCategories(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, model.ResourceCategories, model.SyncModeFull, func(ctx context.Context, result *SyncResult) error {
		list, err := s.zoho.GetCategories(ctx)
		if err != nil {
			return err
		}

		// 子分类 Zoho ID -> 父分类 Zoho ID
		parents := make(map[string]string)
		byZohoID := make(map[string]*model.Category)

		for _, zc := range list {
			result.Processed++
			if strings.TrimSpace(zc.CategoryID) == "" || strings.TrimSpace(zc.Name) == "" {
				result.fail("zoho category", zc.CategoryID, errors.New("缺少 category_id 或 name"))
				continue
			}
			c, o, err := s.upsertCategory(ctx, zc)
			if err != nil {
				result.fail("zoho category", zc.CategoryID, err)
				continue
			}
			result.record(o)
			byZohoID[zc.CategoryID] = c
			if zc.ParentCategoryID != "" && zc.ParentCategoryID != "-1" {
				parents[zc.CategoryID] = zc.ParentCategoryID
			}
		}

		// 第二轮绑定父分类
		for childZohoID, parentZohoID := range parents {
			child, parent := byZohoID[childZohoID], byZohoID[parentZohoID]
			if child == nil || parent == nil {
				continue
			}
			if child.ParentID != nil && *child.ParentID == parent.ID {
				continue
			}
			parentID := parent.ID
			child.ParentID = &parentID
			if err := s.categories.Update(ctx, child); err != nil {
				logrus.WithError(err).WithField("category_id", childZohoID).Warn("[SyncService] 绑定父分类失败")
			}
		}
		return nil
	})
}

func (s *SyncService) upsertCategory(ctx context.Context, zc zoho.Category) (*model.Category, outcome, error) {
	zohoID := zc.CategoryID
	active := zc.IsActive == nil || *zc.IsActive

	c, err := s.categories.FindByZohoID(ctx, zohoID)
	if err != nil {
		return nil, 0, err
	}
	if c == nil {
		// 商品同步时可能已按名称创建
		c, err = s.categories.FindBySlug(ctx, Slugify(zc.Name))
		if err != nil {
			return nil, 0, err
		}
	}
	if c == nil {
		c = &model.Category{ZohoCategoryID: &zohoID, Name: zc.Name, Slug: Slugify(zc.Name), IsActive: active}
		if err := s.categories.Create(ctx, c); err != nil {
			return nil, 0, err
		}
		return c, outcomeCreated, nil
	}

	if c.ZohoCategoryID != nil && *c.ZohoCategoryID == zohoID && c.Name == zc.Name && c.IsActive == active {
		return c, outcomeSkipped, nil
	}
	c.ZohoCategoryID = &zohoID
	c.Name = zc.Name
	c.IsActive = active
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, 0, err
	}
	return c, outcomeUpdated, nil
}

// ==================== 库存 ====================

// SyncInventory 同步库存数量，仅更新已存在的本地商品
func (s *SyncService) SyncInventory(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, model.ResourceInventory, model.SyncModeFull, func(ctx context.Context, result *SyncResult) error {
		for page := 1; page <= s.cfg.PageLimit; page++ {
			if page > 1 {
				if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
					return err
				}
				if err := renewLease(ctx); err != nil {
					return err
				}
			}
			resp, err := s.zoho.GetProducts(ctx, page, s.cfg.PageSize, zoho.ListFilter{Status: "Active"})
			if err != nil {
				return fmt.Errorf("获取第 %d 页失败: %w", page, err)
			}

			s.failInvalid(resp, result)
			for _, item := range resp.Items {
				result.Processed++
				if !item.StockOnHand.Valid {
					result.record(outcomeSkipped)
					continue
				}
				hit, err := s.products.UpdateStockByZohoItemID(ctx, item.ItemID, int(item.StockOnHand.Float64))
				if err != nil {
					result.fail("zoho item", item.ItemID, err)
					continue
				}
				if hit {
					result.record(outcomeUpdated)
				} else {
					result.record(outcomeSkipped)
				}
			}

			if !resp.HasMore {
				return nil
			}
		}
		return nil
	})
}

// ==================== 订单 ====================

// OrderSyncOptions 订单同步选项
type OrderSyncOptions struct {
	// StartDate 为空时从上次成功同步的日期开始
	StartDate *time.Time
}

// SyncOrders 同步销售订单
func (s *SyncService) SyncOrders(ctx context.Context, opts OrderSyncOptions) (*SyncResult, error) {
	mode := model.SyncModeFull
	start := opts.StartDate
	if start == nil {
		last, err := s.runs.LastSuccessful(ctx, model.ResourceOrders)
		if err != nil {
			return nil, fmt.Errorf("读取同步游标失败: %w", err)
		}
		if last != nil {
			t := last.StartedAt
			start = &t
		}
	}
	startDate := ""
	if start != nil {
		mode = model.SyncModeIncremental
		startDate = start.Format("2006-01-02")
	}

	return s.run(ctx, model.ResourceOrders, mode, func(ctx context.Context, result *SyncResult) error {
		for page := 1; page <= s.cfg.PageLimit; page++ {
			if page > 1 {
				if err := s.sleep(ctx, s.cfg.PageDelay); err != nil {
					return err
				}
				if err := renewLease(ctx); err != nil {
					return err
				}
			}
			resp, err := s.zoho.GetSalesOrders(ctx, page, s.cfg.PageSize, startDate)
			if err != nil {
				return fmt.Errorf("获取第 %d 页失败: %w", page, err)
			}

			for _, brief := range resp.SalesOrders {
				result.Processed++
				if err := s.syncOrder(ctx, brief.SalesOrderID, result); err != nil {
					return err
				}
			}
			if !resp.HasMore {
				return nil
			}
		}
		return nil
	})
}

// SyncOrderByID 同步单个订单 (Webhook 触发)
func (s *SyncService) SyncOrderByID(ctx context.Context, salesOrderID string) (*SyncResult, error) {
	result := newSyncResult(model.ResourceOrders, model.SyncModeSingle)
	result.Processed = 1
	err := s.syncOrder(ctx, salesOrderID, result)
	result.finish(err)
	return result, err
}

func (s *SyncService) syncOrder(ctx context.Context, salesOrderID string, result *SyncResult) error {
	so, err := s.zoho.GetSalesOrder(ctx, salesOrderID)
	if err != nil {
		if zoho.IsAuthError(err) || ctx.Err() != nil {
			return err
		}
		result.fail("zoho salesorder", salesOrderID, err)
		return nil
	}
	if err := so.Validate(); err != nil {
		result.fail("zoho salesorder", salesOrderID, err)
		return nil
	}

	if so.Email == "" && so.CustomerID != "" {
		if contact, err := s.zoho.GetContact(ctx, so.CustomerID); err == nil && contact != nil {
			so.Email = contact.Email
		}
	}

	order := s.mapper.MapSalesOrder(so)
	for i := range order.Items {
		item := &order.Items[i]
		if item.ZohoItemID == "" {
			continue
		}
		if p, err := s.products.FindByZohoItemID(ctx, item.ZohoItemID); err == nil && p != nil {
			item.ProductID = &p.ID
		}
	}

	existing, err := s.orders.FindByZohoID(ctx, so.SalesOrderID)
	if err != nil {
		result.fail("zoho salesorder", salesOrderID, err)
		return nil
	}

	o := outcomeCreated
	if existing != nil {
		if orderUnchanged(existing, order) {
			result.record(outcomeSkipped)
			return nil
		}
		// 保留履约字段
		order.ID = existing.ID
		order.CreatedAt = existing.CreatedAt
		order.ShipStationOrderID = existing.ShipStationOrderID
		order.PushedAt = existing.PushedAt
		order.TrackingNumber = existing.TrackingNumber
		order.Carrier = existing.Carrier
		order.ShippedAt = existing.ShippedAt
		o = outcomeUpdated
	}

	if err := s.orders.Save(ctx, order); err != nil {
		result.fail("zoho salesorder", salesOrderID, err)
		return nil
	}
	result.record(o)
	return nil
}

func orderUnchanged(existing, incoming *model.Order) bool {
	if existing.Status != incoming.Status ||
		!existing.Total.Equal(incoming.Total) ||
		existing.CustomerEmail != incoming.CustomerEmail ||
		len(existing.Items) != len(incoming.Items) {
		return false
	}
	for i := range incoming.Items {
		found := false
		for j := range existing.Items {
			a, b := existing.Items[j], incoming.Items[i]
			if a.ZohoLineItemID == b.ZohoLineItemID && a.Quantity == b.Quantity && a.Rate.Equal(b.Rate) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ==================== 全量 ====================

// SyncFull 依次同步分类、商品、库存、订单
// 单个资源失败不影响后续资源
func (s *SyncService) SyncFull(ctx context.Context) (*SyncResult, error) {
	lease, err := s.locker.TryLock(ctx, "sync:full", s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, fmt.Errorf("%w: full", ErrSyncInProgress)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = lease.Release(context.Background()) }()

	total := newSyncResult("full", model.SyncModeFull)
	steps := []struct {
		resource string
		fn       func() (*SyncResult, error)
	}{
		{model.ResourceCategories, func() (*SyncResult, error) { return s.SyncCategories(ctx) }},
		{model.ResourceProducts, func() (*SyncResult, error) { return s.SyncProducts(ctx, SyncOptions{FullSync: true}) }},
		{model.ResourceInventory, func() (*SyncResult, error) { return s.SyncInventory(ctx) }},
		{model.ResourceOrders, func() (*SyncResult, error) { return s.SyncOrders(ctx, OrderSyncOptions{}) }},
	}

	var failed []string
	for i, step := range steps {
		if i > 0 {
			if err := lease.Extend(ctx, s.lockTTL); err != nil {
				total.finish(fmt.Errorf("续期全量同步锁失败: %w", err))
				return total, nil
			}
		}
		res, err := step.fn()
		if err != nil {
			failed = append(failed, step.resource)
			total.Errors = append(total.Errors, fmt.Sprintf("%s: %v", step.resource, err))
			continue
		}
		total.absorb(res)
		if !res.Success {
			failed = append(failed, step.resource)
		}
		if ctx.Err() != nil {
			break
		}
	}

	var stepErr error
	if len(failed) > 0 {
		stepErr = fmt.Errorf("以下资源同步失败: %s", strings.Join(failed, ", "))
	}
	total.finish(stepErr)
	return total, nil
}

// ==================== 订单映射 ====================

// MapSalesOrder 映射 Zoho 销售订单
func (m *FieldMapper) MapSalesOrder(so *zoho.SalesOrder) *model.Order {
	order := &model.Order{
		ZohoSalesOrderID: so.SalesOrderID,
		SalesOrderNumber: so.SalesOrderNumber,
		CustomerID:       so.CustomerID,
		CustomerName:     so.CustomerName,
		CustomerEmail:    so.Email,
		Status:           so.Status,
		OrderDate:        so.OrderDate(),
		Total:            decimal.NewFromFloat(so.Total.Float64).Round(2),
		Currency:         so.CurrencyCode,
	}
	if so.ShippingAddress != nil {
		a := so.ShippingAddress
		order.ShippingAddress = map[string]interface{}{
			"name":    firstNonEmpty(a.Attention, so.CustomerName),
			"street1": a.Address,
			"street2": a.Street2,
			"city":    a.City,
			"state":   a.State,
			"zip":     a.Zip,
			"country": a.Country,
			"phone":   a.Phone,
		}
	}
	for _, li := range so.LineItems {
		order.Items = append(order.Items, model.OrderItem{
			ZohoLineItemID: li.LineItemID,
			ZohoItemID:     li.ItemID,
			SKU:            li.SKU,
			Name:           li.Name,
			Quantity:       int(li.Quantity.Float64),
			Rate:           decimal.NewFromFloat(li.Rate.Float64).Round(2),
		})
	}
	return order
}

// truncate 按字节上限截断，不拆分多字节字符
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
