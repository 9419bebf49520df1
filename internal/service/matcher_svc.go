package service

import (
	"strings"
	"unicode"

	"vipsmoke_erp/internal/model"
)

// MatchType 匹配方式
type MatchType string

const (
	MatchExactSKU   MatchType = "exact_sku"
	MatchPartialSKU MatchType = "partial_sku"
	MatchName       MatchType = "name"
)

// 评分常量
const (
	ExactSKUScore     = 1.0
	PartialSKUScore   = 0.8
	PartialSKUMinLen  = 3 // 双方长度须大于该值
	DefaultBrandBoost = 0.2
	GeneralMatchFloor = 0.7
	BrandMatchFloor   = 0.3
	GeneralNameWeight = 0.7
	BrandNameWeight   = 0.6
)

// MatchInput 待匹配的供应商记录
type MatchInput struct {
	VendorID string `json:"vendor_id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
}

// MatchCandidate 匹配结果，仅在内存中使用
type MatchCandidate struct {
	Input     MatchInput     `json:"input"`
	Product   *model.Product `json:"product"`
	Score     float64        `json:"score"`
	MatchType MatchType      `json:"match_type"`
}

// Matcher 商品匹配器
// 只返回得分严格大于 Floor 的候选
type Matcher struct {
	Floor      float64
	NameWeight float64
	BrandBoost float64
	brands     *BrandExtractor
}

// NewGeneralMatcher 通用匹配器
func NewGeneralMatcher() *Matcher {
	return &Matcher{
		Floor:      GeneralMatchFloor,
		NameWeight: GeneralNameWeight,
		BrandBoost: DefaultBrandBoost,
		brands:     DefaultBrandExtractor(),
	}
}

// NewBrandMatcher 品牌/图片同步用的宽松匹配器
func NewBrandMatcher() *Matcher {
	return &Matcher{
		Floor:      BrandMatchFloor,
		NameWeight: BrandNameWeight,
		BrandBoost: DefaultBrandBoost,
		brands:     DefaultBrandExtractor(),
	}
}

// Score 计算单个候选的得分
// 规则按优先级评估，后续规则得分更高时才覆盖
func (m *Matcher) Score(in MatchInput, p *model.Product) (float64, MatchType) {
	var score float64
	var matchType MatchType

	a, b := NormalizeSKU(in.SKU), NormalizeSKU(p.SKUValue())
	switch {
	case a != "" && a == b:
		return ExactSKUScore, MatchExactSKU
	case len(a) > PartialSKUMinLen && len(b) > PartialSKUMinLen &&
		(strings.Contains(a, b) || strings.Contains(b, a)):
		score, matchType = PartialSKUScore, MatchPartialSKU
	}

	nameScore := m.NameWeight * JaccardSimilarity(in.Name, p.Name)
	if m.brandsMatch(in, p) {
		nameScore += m.BrandBoost
	}
	if nameScore > 1 {
		nameScore = 1
	}
	if nameScore > score {
		score, matchType = nameScore, MatchName
	}
	return score, matchType
}

func (m *Matcher) brandsMatch(in MatchInput, p *model.Product) bool {
	inBrand := in.Brand
	if inBrand == "" {
		inBrand = m.brands.Extract(in.Name)
	}
	var pBrand string
	if p.Brand != nil {
		pBrand = p.Brand.Name
	}
	if pBrand == "" {
		pBrand = m.brands.Extract(p.Name)
	}
	na, nb := normalizeBrand(inBrand), normalizeBrand(pBrand)
	return na != "" && na == nb
}

// FindBestMatch 在候选池中找得分最高且超过阈值的商品
// 同分时取 ID 字典序最小者，与池的顺序无关
func (m *Matcher) FindBestMatch(in MatchInput, pool []*model.Product) *MatchCandidate {
	var best *MatchCandidate
	for _, p := range pool {
		if p == nil {
			continue
		}
		score, matchType := m.Score(in, p)
		if score <= m.Floor {
			continue
		}
		if best == nil || score > best.Score ||
			(score == best.Score && p.ID.String() < best.Product.ID.String()) {
			best = &MatchCandidate{Input: in, Product: p, Score: score, MatchType: matchType}
		}
	}
	return best
}

// MatchAll 逐条匹配，返回命中结果和需人工处理的记录
func (m *Matcher) MatchAll(inputs []MatchInput, pool []*model.Product) ([]MatchCandidate, []MatchInput) {
	var matched []MatchCandidate
	var unmatched []MatchInput
	for _, in := range inputs {
		if c := m.FindBestMatch(in, pool); c != nil {
			matched = append(matched, *c)
		} else {
			unmatched = append(unmatched, in)
		}
	}
	return matched, unmatched
}

// ==================== 相似度 ====================

// NormalizeSKU 转大写并去除非字母数字字符
func NormalizeSKU(sku string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(sku) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// JaccardSimilarity 按空白分词后的词集合 Jaccard 系数
func JaccardSimilarity(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func normalizeBrand(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}
