package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vipsmoke_erp/internal/api/dto"
	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/internal/service"
)

// Recommender 相似商品推荐
type Recommender interface {
	Similar(ctx context.Context, productID uuid.UUID, limit int) ([]service.Recommendation, error)
}

// ProductClassifier 单品合规分类
type ProductClassifier interface {
	ClassifyProduct(ctx context.Context, productID uuid.UUID) (*model.ProductClassification, error)
}

type ProductController struct {
	products   repository.ProductRepository
	recommend  Recommender
	classifier ProductClassifier
}

func NewProductController(products repository.ProductRepository, recommend Recommender, classifier ProductClassifier) *ProductController {
	return &ProductController{products: products, recommend: recommend, classifier: classifier}
}

// ==================== 查询接口 ====================

// GetProducts 获取商品列表
// @Summary 分页查询本地商品
// @Tags Product
// @Param keyword query string false "名称/SKU 搜索"
// @Param status query string false "状态筛选"
// @Param category_id query string false "分类ID"
// @Param brand_id query string false "品牌ID"
// @Param age_restricted query bool false "是否年龄限制"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ProductListResp
// @Router /api/products [get]
func (ctl *ProductController) GetProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}

	filter := repository.ProductFilter{
		Keyword:  c.Query("keyword"),
		Status:   c.Query("status"),
		Page:     page,
		PageSize: pageSize,
	}
	for key, dst := range map[string]**uuid.UUID{"category_id": &filter.CategoryID, "brand_id": &filter.BrandID} {
		if v := c.Query(key); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				badRequest(c, "无效的 "+key)
				return
			}
			*dst = &id
		}
	}
	if v := c.Query("age_restricted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "无效的 age_restricted")
			return
		}
		filter.AgeRestricted = &b
	}

	products, total, err := ctl.products.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	list := make([]dto.ProductResp, 0, len(products))
	for i := range products {
		list = append(list, dto.ToProductResp(&products[i]))
	}
	c.JSON(http.StatusOK, dto.ProductListResp{
		Code:     0,
		Message:  "success",
		Data:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetProduct 获取商品详情
// @Summary 获取单个商品详情
// @Tags Product
// @Param id path string true "商品ID"
// @Success 200 {object} dto.ProductResp
// @Router /api/products/{id} [get]
func (ctl *ProductController) GetProduct(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	p, err := ctl.products.GetByID(c.Request.Context(), id)
	if repository.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "商品不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": dto.ToProductResp(p)})
}

// GetRecommendations 相似商品
// @Summary 相似商品推荐
// @Tags Product
// @Param id path string true "商品ID"
// @Param limit query int false "数量" default(10)
// @Success 200 {object} []dto.RecommendationResp
// @Router /api/products/{id}/recommendations [get]
func (ctl *ProductController) GetRecommendations(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	recs, err := ctl.recommend.Similar(c.Request.Context(), id, limit)
	if repository.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "商品不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "推荐失败: " + err.Error()})
		return
	}

	data := make([]dto.RecommendationResp, 0, len(recs))
	for _, r := range recs {
		data = append(data, dto.RecommendationResp{
			Product: dto.ToProductResp(r.Product),
			Score:   r.Score,
			Method:  r.Method,
		})
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": data})
}

// Classify 单品合规分类
// @Summary 对单个商品执行合规分类
// @Tags Compliance
// @Param id path string true "商品ID"
// @Success 200 {object} model.ProductClassification
// @Router /api/products/{id}/classify [post]
func (ctl *ProductController) Classify(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	pc, err := ctl.classifier.ClassifyProduct(c.Request.Context(), id)
	if repository.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "商品不存在"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "分类失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": pc})
}
