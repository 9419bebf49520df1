package compliance

import (
	"sort"
	"strings"
)

// ==================== 枚举 ====================

// Category 合规分类
type Category string

const (
	CategoryNicotine     Category = "Nicotine"
	CategoryTobacco      Category = "Tobacco"
	CategoryHemp         Category = "Hemp"
	CategoryKratom       Category = "Kratom"
	CategoryKava         Category = "Kava"
	CategoryVapeHardware Category = "VapeHardware"
	CategoryAccessories  Category = "Accessories"
	CategoryStandard     Category = "Standard"
)

// Valid 是否为已知分类
func (c Category) Valid() bool {
	switch c {
	case CategoryNicotine, CategoryTobacco, CategoryHemp, CategoryKratom,
		CategoryKava, CategoryVapeHardware, CategoryAccessories, CategoryStandard:
		return true
	}
	return false
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

func (r RiskLevel) rank() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	}
	return 0
}

// 分类来源
const (
	SourceAI      = "ai"
	SourceKeyword = "keyword"
)

// 关键词兜底的置信度
const (
	KeywordMatchConfidence = 0.6
	NoMatchConfidence      = 0.3
)

// ==================== 关键词族 ====================

// Family 一组关键词及其合规属性
type Family struct {
	Name               string
	Keywords           []string
	Category           Category
	SubstanceType      string
	Risk               RiskLevel
	Nicotine           bool
	Tobacco            bool
	AgeRestricted      bool
	RequiredCompliance []string
}

// Flags 商品合规标记
type Flags struct {
	IsNicotine      bool
	IsTobacco       bool
	IsAgeRestricted bool
}

// Detection 关键词命中结果
type Detection struct {
	Families []*Family
	Matched  []string
	Flags    Flags
}

// Empty 未命中任何关键词
func (d Detection) Empty() bool {
	return len(d.Families) == 0
}

// Classification 商品合规分类结果
type Classification struct {
	Category           Category  `json:"category"`
	SubstanceType      string    `json:"substanceType"`
	Confidence         float64   `json:"confidence"`
	RiskLevel          RiskLevel `json:"riskLevel"`
	RequiredCompliance []string  `json:"requiredCompliance"`
	Reasoning          string    `json:"reasoning"`
	Source             string    `json:"source"`
}

// Flags 由分类推导合规标记
func (c Classification) Flags() Flags {
	switch c.Category {
	case CategoryNicotine:
		return Flags{IsNicotine: true, IsAgeRestricted: true}
	case CategoryTobacco:
		return Flags{IsTobacco: true, IsNicotine: true, IsAgeRestricted: true}
	case CategoryHemp, CategoryKratom, CategoryVapeHardware:
		return Flags{IsAgeRestricted: true}
	}
	return Flags{}
}

// Taxonomy 关键词分类表
// 映射器与分类兜底共用同一份
type Taxonomy struct {
	families []*Family
}

// NewTaxonomy 使用自定义关键词族创建
func NewTaxonomy(families ...*Family) *Taxonomy {
	for _, f := range families {
		for i, kw := range f.Keywords {
			f.Keywords[i] = strings.ToLower(kw)
		}
	}
	return &Taxonomy{families: families}
}

// Default 默认分类表
func Default() *Taxonomy {
	return NewTaxonomy(
		&Family{
			Name:               "nicotine",
			Keywords:           []string{"nicotine", "nic salt", "e-liquid", "ejuice", "e-juice", "disposable vape", "zyn", "nicotine pouch"},
			Category:           CategoryNicotine,
			SubstanceType:      "nicotine",
			Risk:               RiskHigh,
			Nicotine:           true,
			AgeRestricted:      true,
			RequiredCompliance: []string{"age_verification_21", "pact_act", "state_flavor_ban_check"},
		},
		&Family{
			Name:               "tobacco",
			Keywords:           []string{"tobacco", "cigar", "cigarillo", "hookah", "shisha", "pipe tobacco", "snuff", "chew"},
			Category:           CategoryTobacco,
			SubstanceType:      "tobacco",
			Risk:               RiskHigh,
			Nicotine:           true,
			Tobacco:            true,
			AgeRestricted:      true,
			RequiredCompliance: []string{"age_verification_21", "pact_act", "tobacco_excise_tax"},
		},
		&Family{
			Name:               "hemp",
			Keywords:           []string{"thca", "delta-8", "delta 8", "delta-9", "delta 9", "d8", "hhc", "thcp", "cbd", "cbg", "cbn", "hemp", "cannabinoid"},
			Category:           CategoryHemp,
			SubstanceType:      "cannabinoid",
			Risk:               RiskMedium,
			AgeRestricted:      true,
			RequiredCompliance: []string{"age_verification_21", "coa_required", "farm_bill_thc_limit"},
		},
		&Family{
			Name:               "kratom",
			Keywords:           []string{"kratom", "mitragyna", "7-oh", "mit"},
			Category:           CategoryKratom,
			SubstanceType:      "botanical",
			Risk:               RiskMedium,
			AgeRestricted:      true,
			RequiredCompliance: []string{"age_verification_21", "state_kratom_ban_check"},
		},
		&Family{
			Name:               "kava",
			Keywords:           []string{"kava", "kavalactone"},
			Category:           CategoryKava,
			SubstanceType:      "botanical",
			Risk:               RiskLow,
			RequiredCompliance: []string{"fda_dietary_supplement_label"},
		},
		&Family{
			Name:               "vape_hardware",
			Keywords:           []string{"vape", "vaporizer", "510", "cartridge", "coil", "atomizer", "battery mod"},
			Category:           CategoryVapeHardware,
			SubstanceType:      "hardware",
			Risk:               RiskMedium,
			AgeRestricted:      true,
			RequiredCompliance: []string{"age_verification_21", "pact_act"},
		},
		&Family{
			Name:               "accessories",
			Keywords:           []string{"glass", "bong", "water pipe", "grinder", "rolling paper", "rolling tray", "lighter", "torch"},
			Category:           CategoryAccessories,
			SubstanceType:      "accessory",
			Risk:               RiskLow,
			AgeRestricted:      true,
			RequiredCompliance: []string{"age_verification_21"},
		},
	)
}

// Families 返回全部关键词族
func (t *Taxonomy) Families() []*Family {
	return t.families
}

// Detect 对文本做大小写不敏感的子串匹配
func (t *Taxonomy) Detect(texts ...string) Detection {
	joined := strings.ToLower(strings.Join(texts, " "))
	var d Detection
	if strings.TrimSpace(joined) == "" {
		return d
	}

	for _, f := range t.families {
		hit := false
		for _, kw := range f.Keywords {
			if containsKeyword(joined, kw) {
				d.Matched = append(d.Matched, kw)
				hit = true
			}
		}
		if !hit {
			continue
		}
		d.Families = append(d.Families, f)
		d.Flags.IsNicotine = d.Flags.IsNicotine || f.Nicotine
		d.Flags.IsTobacco = d.Flags.IsTobacco || f.Tobacco
		d.Flags.IsAgeRestricted = d.Flags.IsAgeRestricted || f.AgeRestricted
	}
	return d
}

// Flags 仅返回合规标记
func (t *Taxonomy) Flags(texts ...string) Flags {
	return t.Detect(texts...).Flags
}

// Classify 关键词兜底分类，确定性且不会失败
// 多族命中时取风险最高者，同风险取定义顺序靠前者
func (t *Taxonomy) Classify(texts ...string) Classification {
	d := t.Detect(texts...)
	if d.Empty() {
		return Classification{
			Category:           CategoryStandard,
			SubstanceType:      "none",
			Confidence:         NoMatchConfidence,
			RiskLevel:          RiskLow,
			RequiredCompliance: []string{},
			Reasoning:          "未命中任何合规关键词，按普通商品处理",
			Source:             SourceKeyword,
		}
	}

	primary := d.Families[0]
	for _, f := range d.Families[1:] {
		if f.Risk.rank() > primary.Risk.rank() {
			primary = f
		}
	}

	required := mergeCompliance(d.Families)
	return Classification{
		Category:           primary.Category,
		SubstanceType:      primary.SubstanceType,
		Confidence:         KeywordMatchConfidence,
		RiskLevel:          primary.Risk,
		RequiredCompliance: required,
		Reasoning:          "关键词命中: " + strings.Join(d.Matched, ", "),
		Source:             SourceKeyword,
	}
}

func mergeCompliance(families []*Family) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range families {
		for _, r := range f.RequiredCompliance {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}

// wholeWordKeywords 常见词根，需整词匹配
// "glass" 不应命中 "sunglasses" 或 "fiberglass"
var wholeWordKeywords = map[string]bool{
	"glass": true,
}

// containsKeyword 子串匹配
// 短关键词 (<=3 字符) 及 wholeWordKeywords 要求词边界，避免 "mit" 命中 "summit"
func containsKeyword(text, kw string) bool {
	if len(kw) > 3 && !wholeWordKeywords[kw] {
		return strings.Contains(text, kw)
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		i := start + idx
		j := i + len(kw)
		if (i == 0 || !isWordChar(text[i-1])) && (j == len(text) || !isWordChar(text[j])) {
			return true
		}
		start = i + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
