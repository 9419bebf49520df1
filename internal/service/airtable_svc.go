package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/pkg/lock"
	"vipsmoke_erp/pkg/vendors/airtable"
)

// AirtableAPI 对账所需的 Airtable 接口
type AirtableAPI interface {
	ListAll(ctx context.Context, opts airtable.ListOptions, maxPages int) ([]airtable.Record, error)
}

// AirtableSyncService 用 Airtable 补齐商品图片和品牌
// 多数 Airtable 记录没有 SKU，按宽松匹配器对齐本地商品
// 带 SKU 的记录改用通用匹配器，SKU 对不上时不凭名称相似度强行回写
type AirtableSyncService struct {
	*syncRunner
	client   AirtableAPI
	products repository.ProductRepository
	mapper   *FieldMapper
	resolver *ReferenceResolver
	loose    *Matcher
	strict   *Matcher
	storage  *StorageService
	view     string
	maxPages int
}

// NewAirtableSyncService 创建对账服务，storage 为 nil 时不镜像图片
func NewAirtableSyncService(
	client AirtableAPI,
	products repository.ProductRepository,
	runs repository.SyncRunRepository,
	mapper *FieldMapper,
	resolver *ReferenceResolver,
	storage *StorageService,
	locker lock.Locker,
	view string,
	maxPages int,
	lockTTL time.Duration,
) *AirtableSyncService {
	if maxPages <= 0 {
		maxPages = 100
	}
	return &AirtableSyncService{
		syncRunner: newSyncRunner(locker, runs, lockTTL),
		client:     client,
		products:   products,
		mapper:     mapper,
		resolver:   resolver,
		loose:      NewBrandMatcher(),
		strict:     NewGeneralMatcher(),
		storage:    storage,
		view:       view,
		maxPages:   maxPages,
	}
}

// SyncImagesAndBrands 拉取全部 Airtable 记录并回写匹配到的商品
// 未匹配的记录写入 Errors，需人工处理
func (s *AirtableSyncService) SyncImagesAndBrands(ctx context.Context) (*SyncResult, error) {
	return s.run(ctx, model.ResourceAirtable, model.SyncModeFull, func(ctx context.Context, result *SyncResult) error {
		records, err := s.client.ListAll(ctx, airtable.ListOptions{PageSize: 100, View: s.view}, s.maxPages)
		if err != nil {
			return fmt.Errorf("获取 Airtable 记录失败: %w", err)
		}
		pool, err := s.products.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("加载本地商品失败: %w", err)
		}
		s.resolver.Reset()

		for _, rec := range records {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.Processed++

			fields, err := s.mapper.MapAirtableRecord(rec)
			if err != nil {
				result.fail("airtable record", rec.ID, err)
				continue
			}

			in := MatchInput{VendorID: rec.ID, Name: fields.Name, Brand: fields.BrandName}
			matcher := s.loose
			if fields.SKU != nil {
				in.SKU = *fields.SKU
				matcher = s.strict
			}
			match := matcher.FindBestMatch(in, pool)
			if match == nil {
				result.record(outcomeSkipped)
				result.Errors = append(result.Errors,
					fmt.Sprintf("airtable record %s (%s): needs manual reconciliation", rec.ID, fields.Name))
				continue
			}

			o, err := s.apply(ctx, match.Product, fields)
			if err != nil {
				result.fail("airtable record", rec.ID, err)
				continue
			}
			result.record(o)
		}
		return nil
	})
}

// apply 只补齐缺失信息: 图片、品牌、重量，以及合规标记置位
func (s *AirtableSyncService) apply(ctx context.Context, p *model.Product, f *ProductFields) (outcome, error) {
	patch := &ProductFields{
		AirtableRecordID: f.AirtableRecordID,
		Flags:            f.Flags,
	}
	if p.WeightGrams == nil {
		patch.WeightGrams = f.WeightGrams
	}
	if len(p.ImageURLs) == 0 && len(f.ImageURLs) > 0 {
		patch.ImageURLs = s.mirrorImages(ctx, f.ImageURLs)
	}

	var brandID = p.BrandID
	if p.BrandID == nil && f.BrandName != "" {
		id, err := s.resolver.ResolveBrand(ctx, f.BrandName)
		if err != nil {
			return 0, err
		}
		brandID = id
	}

	if !ApplyProductFields(p, patch, nil, brandID) {
		return outcomeSkipped, nil
	}
	if err := s.products.Update(ctx, p); err != nil {
		return 0, fmt.Errorf("更新商品失败: %w", err)
	}
	return outcomeUpdated, nil
}

// mirrorImages Airtable 附件链接会过期，镜像失败时保留原链接
func (s *AirtableSyncService) mirrorImages(ctx context.Context, urls []string) []string {
	if s.storage == nil {
		return urls
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		mirrored, err := s.storage.MirrorURL(ctx, u, "products")
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logrus.WithError(err).WithField("url", u).Warn("[AirtableSync] 图片镜像失败，保留原链接")
			}
			out = append(out, u)
			continue
		}
		out = append(out, mirrored)
	}
	return out
}
