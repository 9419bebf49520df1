package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
)

// 推荐方式
const (
	RecommendByEmbedding  = "embedding"
	RecommendBySimilarity = "similarity"
)

const (
	// maxEmbedPerRequest 单次请求最多补算的向量数
	maxEmbedPerRequest = 25
	sameCategoryBoost  = 0.15
	sameBrandBoost     = 0.15
)

// Recommendation 相似商品
type Recommendation struct {
	Product *model.Product `json:"product"`
	Score   float64        `json:"score"`
	Method  string         `json:"method"`
}

// RecommendService 相似商品推荐
// 优先用向量余弦相似度，向量不可用时按名称/分类/品牌打分
type RecommendService struct {
	llm        LLM
	products   repository.ProductRepository
	embeddings repository.EmbeddingRepository
}

// NewRecommendService 创建推荐服务
func NewRecommendService(llm LLM, products repository.ProductRepository, embeddings repository.EmbeddingRepository) *RecommendService {
	return &RecommendService{llm: llm, products: products, embeddings: embeddings}
}

// Similar 返回与指定商品最相似的若干商品
func (s *RecommendService) Similar(ctx context.Context, productID uuid.UUID, limit int) ([]Recommendation, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	target, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	pool, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]*model.Product, 0, len(pool))
	for _, p := range pool {
		if p.ID != target.ID {
			candidates = append(candidates, p)
		}
	}

	if s.llm != nil {
		recs, err := s.byEmbedding(ctx, target, candidates)
		if err == nil && len(recs) > 0 {
			return topN(recs, limit), nil
		}
		if err != nil {
			logrus.WithError(err).WithField("product_id", productID).Warn("[RecommendService] 向量推荐失败，改用文本相似度")
		}
	}
	return topN(s.bySimilarity(target, candidates), limit), nil
}

func (s *RecommendService) byEmbedding(ctx context.Context, target *model.Product, candidates []*model.Product) ([]Recommendation, error) {
	modelName := s.llm.EmbeddingModelName()
	targetVec, err := s.ensureEmbedding(ctx, target, nil)
	if err != nil {
		return nil, err
	}

	cached, err := s.embeddings.ListByModel(ctx, modelName)
	if err != nil {
		return nil, err
	}
	vectors := make(map[uuid.UUID]model.ProductEmbedding, len(cached))
	for _, e := range cached {
		vectors[e.ProductID] = e
	}

	budget := maxEmbedPerRequest
	var recs []Recommendation
	for _, p := range candidates {
		e, ok := vectors[p.ID]
		var vec []float32
		if ok && e.ContentHash == embeddingHash(p) {
			vec = e.Vector
		} else if budget > 0 {
			budget--
			existing := (*model.ProductEmbedding)(nil)
			if ok {
				existing = &e
			}
			if vec, err = s.ensureEmbedding(ctx, p, existing); err != nil {
				return nil, err
			}
		} else {
			continue
		}
		recs = append(recs, Recommendation{Product: p, Score: CosineSimilarity(targetVec, vec), Method: RecommendByEmbedding})
	}
	return recs, nil
}

// ensureEmbedding 内容未变化时复用缓存
func (s *RecommendService) ensureEmbedding(ctx context.Context, p *model.Product, existing *model.ProductEmbedding) ([]float32, error) {
	modelName := s.llm.EmbeddingModelName()
	hash := embeddingHash(p)

	if existing == nil {
		var err error
		if existing, err = s.embeddings.Get(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	if existing != nil && existing.ModelName == modelName && existing.ContentHash == hash && len(existing.Vector) > 0 {
		return existing.Vector, nil
	}

	vec, err := s.llm.Embed(ctx, model.AIPurposeRecommend, embeddingText(p))
	if err != nil {
		return nil, err
	}
	record := &model.ProductEmbedding{ProductID: p.ID, ModelName: modelName, ContentHash: hash, Vector: vec}
	if err := s.embeddings.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("保存向量失败: %w", err)
	}
	return vec, nil
}

// IndexEmbeddings 预先计算缺失或过期的向量，返回新计算的数量
func (s *RecommendService) IndexEmbeddings(ctx context.Context, limit int) (int, error) {
	if s.llm == nil {
		return 0, fmt.Errorf("AI 服务未配置")
	}
	pool, err := s.products.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	cached, err := s.embeddings.ListByModel(ctx, s.llm.EmbeddingModelName())
	if err != nil {
		return 0, err
	}
	hashes := make(map[uuid.UUID]string, len(cached))
	for _, e := range cached {
		hashes[e.ProductID] = e.ContentHash
	}

	indexed := 0
	for _, p := range pool {
		if limit > 0 && indexed >= limit {
			break
		}
		if hashes[p.ID] == embeddingHash(p) {
			continue
		}
		if _, err := s.ensureEmbedding(ctx, p, nil); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

func (s *RecommendService) bySimilarity(target *model.Product, candidates []*model.Product) []Recommendation {
	recs := make([]Recommendation, 0, len(candidates))
	for _, p := range candidates {
		score := JaccardSimilarity(target.Name, p.Name)
		if target.CategoryID != nil && p.CategoryID != nil && *target.CategoryID == *p.CategoryID {
			score += sameCategoryBoost
		}
		if target.BrandID != nil && p.BrandID != nil && *target.BrandID == *p.BrandID {
			score += sameBrandBoost
		}
		if score <= 0 {
			continue
		}
		recs = append(recs, Recommendation{Product: p, Score: math.Min(score, 1), Method: RecommendBySimilarity})
	}
	return recs
}

// topN 按得分降序，同分按商品 ID 升序
func topN(recs []Recommendation, n int) []Recommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Product.ID.String() < recs[j].Product.ID.String()
	})
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs
}

// ==================== 向量工具 ====================

func embeddingText(p *model.Product) string {
	parts := []string{p.Name}
	if p.Brand != nil && p.Brand.Name != "" {
		parts = append(parts, "Brand: "+p.Brand.Name)
	}
	if p.Description != "" {
		parts = append(parts, truncate(p.Description, 1000))
	}
	return strings.Join(parts, "\n")
}

func embeddingHash(p *model.Product) string {
	sum := sha256.Sum256([]byte(embeddingText(p)))
	return hex.EncodeToString(sum[:])
}

// CosineSimilarity 余弦相似度，维度不一致或零向量返回 0
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
