package controller

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vipsmoke_erp/internal/api/dto"
	"vipsmoke_erp/internal/service"
)

// BatchClassifier 批量合规分类
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, limit int) (*service.BatchClassifyResult, error)
}

// COAValidator COA 校验
type COAValidator interface {
	Validate(ctx context.Context, doc []byte, mimeType, productName string) *service.COAResult
	ValidateURL(ctx context.Context, url, productName string) *service.COAResult
}

// ComplianceController 合规分类与 COA 校验
type ComplianceController struct {
	classifier BatchClassifier
	coa        COAValidator
}

func NewComplianceController(classifier BatchClassifier, coa COAValidator) *ComplianceController {
	return &ComplianceController{classifier: classifier, coa: coa}
}

// ClassifyBatch 批量分类未分类商品
// @Summary 批量合规分类
// @Tags Compliance
// @Accept json
// @Param body body dto.ClassifyBatchReq false "limit 默认 50"
// @Success 200 {object} service.BatchClassifyResult
// @Router /api/classify/batch [post]
func (ctl *ComplianceController) ClassifyBatch(c *gin.Context) {
	var req dto.ClassifyBatchReq
	if !bindOptionalJSON(c, &req) {
		return
	}
	result, err := ctl.classifier.ClassifyBatch(c.Request.Context(), req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "批量分类失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}

// ValidateCOA 校验 COA 文档
// @Summary 上传 COA (PDF/图片) 或提供链接进行校验
// @Tags Compliance
// @Accept multipart/form-data
// @Param file formData file false "COA 文件"
// @Param url formData string false "COA 链接"
// @Param product_name formData string false "商品名称"
// @Success 200 {object} service.COAResult
// @Router /api/coa/validate [post]
func (ctl *ComplianceController) ValidateCOA(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxCOASize+1<<20)
	productName := strings.TrimSpace(c.PostForm("product_name"))

	var result *service.COAResult
	if fh, err := c.FormFile("file"); err == nil {
		if fh.Size > service.MaxCOASize {
			badRequest(c, "文件过大")
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "读取文件失败")
			return
		}
		defer f.Close()
		doc, err := io.ReadAll(f)
		if err != nil {
			badRequest(c, "读取文件失败")
			return
		}
		mimeType := fh.Header.Get("Content-Type")
		if mimeType == "application/octet-stream" {
			mimeType = ""
		}
		result = ctl.coa.Validate(c.Request.Context(), doc, mimeType, productName)
	} else if url := strings.TrimSpace(c.PostForm("url")); url != "" {
		result = ctl.coa.ValidateURL(c.Request.Context(), url, productName)
	} else {
		badRequest(c, "请上传 file 或提供 url")
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": result})
}
