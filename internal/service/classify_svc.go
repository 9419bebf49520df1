package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/compliance"
	"vipsmoke_erp/internal/metrics"
	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
)

const classifyPrompt = `You are a regulatory compliance analyst for a US smoke shop and vape retailer.
Classify the product below into exactly one category.

Product name: %s
Brand: %s
Description: %s
Store category: %s

Allowed categories: Nicotine, Tobacco, Hemp, Kratom, Kava, VapeHardware, Accessories, Standard
Allowed risk levels: low, medium, high

Output Schema (JSON only):
{
  "category": "one of the allowed categories",
  "substanceType": "short substance name, e.g. nicotine, cannabinoid, botanical, none",
  "confidence": 0.0,
  "riskLevel": "low | medium | high",
  "requiredCompliance": ["age_verification_21", "pact_act", "coa_required", "..."],
  "reasoning": "one or two sentences"
}`

// ComplianceService 商品合规分类
// 先走大模型，结果无效或调用失败时退回关键词分类
type ComplianceService struct {
	llm             LLM
	taxonomy        *compliance.Taxonomy
	products        repository.ProductRepository
	classifications repository.ClassificationRepository
}

// NewComplianceService 创建分类服务，llm 可为 nil (仅关键词)
func NewComplianceService(
	llm LLM,
	taxonomy *compliance.Taxonomy,
	products repository.ProductRepository,
	classifications repository.ClassificationRepository,
) *ComplianceService {
	if taxonomy == nil {
		taxonomy = compliance.Default()
	}
	return &ComplianceService{
		llm:             llm,
		taxonomy:        taxonomy,
		products:        products,
		classifications: classifications,
	}
}

// Classify 对商品分类，不会返回错误
func (s *ComplianceService) Classify(ctx context.Context, p *model.Product) compliance.Classification {
	var result compliance.Classification
	if s.llm != nil {
		var err error
		result, err = s.classifyWithLLM(ctx, p)
		if err == nil {
			metrics.RecordClassification(result.Source)
			return result
		}
		logrus.WithError(err).WithField("product_id", p.ID).Warn("[ComplianceService] AI 分类失败，使用关键词兜底")
	}

	result = s.taxonomy.Classify(productTexts(p)...)
	metrics.RecordClassification(result.Source)
	return result
}

func (s *ComplianceService) classifyWithLLM(ctx context.Context, p *model.Product) (compliance.Classification, error) {
	var out compliance.Classification
	brand := ""
	if p.Brand != nil {
		brand = p.Brand.Name
	}
	category := ""
	if p.Category != nil {
		category = p.Category.Name
	}

	productID := p.ID
	req := LLMRequest{
		Purpose:   model.AIPurposeClassify,
		ProductID: &productID,
		Prompt:    fmt.Sprintf(classifyPrompt, p.Name, brand, truncate(p.Description, 2000), category),
	}
	if err := s.llm.GenerateJSON(ctx, req, &out); err != nil {
		return out, err
	}
	if err := validateClassification(&out); err != nil {
		return out, err
	}
	out.Source = compliance.SourceAI
	return out, nil
}

// validateClassification 校验枚举与取值范围
func validateClassification(c *compliance.Classification) error {
	if !c.Category.Valid() {
		return fmt.Errorf("未知分类 %q", c.Category)
	}
	c.RiskLevel = compliance.RiskLevel(strings.ToLower(string(c.RiskLevel)))
	if !c.RiskLevel.Valid() {
		return fmt.Errorf("未知风险等级 %q", c.RiskLevel)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("置信度超出范围: %v", c.Confidence)
	}
	if c.RequiredCompliance == nil {
		c.RequiredCompliance = []string{}
	}
	return nil
}

func productTexts(p *model.Product) []string {
	texts := []string{p.Name, p.Description}
	if p.Category != nil {
		texts = append(texts, p.Category.Name)
	}
	return texts
}

// ==================== 持久化 ====================

// ClassifyProduct 分类并保存，同时置位商品合规标记
func (s *ComplianceService) ClassifyProduct(ctx context.Context, productID uuid.UUID) (*model.ProductClassification, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.classifyAndSave(ctx, p)
}

func (s *ComplianceService) classifyAndSave(ctx context.Context, p *model.Product) (*model.ProductClassification, error) {
	c := s.Classify(ctx, p)

	record := &model.ProductClassification{
		ProductID:          p.ID,
		Category:           string(c.Category),
		SubstanceType:      c.SubstanceType,
		Confidence:         c.Confidence,
		RiskLevel:          string(c.RiskLevel),
		RequiredCompliance: c.RequiredCompliance,
		Reasoning:          c.Reasoning,
		Source:             c.Source,
		ClassifiedAt:       time.Now(),
	}
	if err := s.classifications.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("保存分类失败: %w", err)
	}

	// 合规标记只置位不清除
	flags := c.Flags()
	fields := map[string]interface{}{}
	if flags.IsNicotine && !p.IsNicotine {
		fields["is_nicotine"] = true
	}
	if flags.IsTobacco && !p.IsTobacco {
		fields["is_tobacco"] = true
	}
	if flags.IsAgeRestricted && !p.IsAgeRestricted {
		fields["is_age_restricted"] = true
	}
	if len(fields) > 0 {
		if err := s.products.UpdateFields(ctx, p.ID, fields); err != nil {
			return nil, fmt.Errorf("更新合规标记失败: %w", err)
		}
	}
	return record, nil
}

// BatchClassifyResult 批量分类结果
type BatchClassifyResult struct {
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	BySource  map[string]int `json:"by_source"`
	Errors    []string       `json:"errors"`
}

// ClassifyBatch 对尚未分类的商品逐个分类
func (s *ComplianceService) ClassifyBatch(ctx context.Context, limit int) (*BatchClassifyResult, error) {
	if limit <= 0 {
		limit = 50
	}
	products, err := s.products.ListUnclassified(ctx, limit)
	if err != nil {
		return nil, err
	}

	result := &BatchClassifyResult{BySource: map[string]int{}, Errors: []string{}}
	for i := range products {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Processed++
		record, err := s.classifyAndSave(ctx, &products[i])
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("product %s: %v", products[i].ID, err))
			continue
		}
		result.BySource[record.Source]++
	}

	logrus.WithFields(logrus.Fields{
		"processed": result.Processed,
		"failed":    result.Failed,
		"by_source": result.BySource,
	}).Info("[ComplianceService] 批量分类完成")
	return result, nil
}
