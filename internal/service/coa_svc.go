package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"vipsmoke_erp/internal/model"
)

// COA 校验规则
const (
	MaxDelta9THCPercent = 0.3
	MaxCOAAge           = 365 * 24 * time.Hour
	MaxCOASize          = 20 << 20
	// minPDFTextLen PDF 文本少于该长度视为扫描件
	minPDFTextLen = 40
)

// COA 文本来源
const (
	COASourcePDF    = "pdf"
	COASourceVision = "vision"
)

const coaOCRPrompt = `Transcribe all text from this Certificate of Analysis (COA) document exactly as written. Output plain text only.`

const coaExtractPrompt = `You are reviewing a hemp Certificate of Analysis (COA) for product "%s".
Extract the lab values from the document text below. Use null for anything not present.
Percentages must be numbers in percent units (e.g. 0.21 for 0.21%%). Convert mg/g by dividing by 10.

Output Schema (JSON only):
{
  "labName": "string or null",
  "batchNumber": "string or null",
  "productName": "string or null",
  "testDate": "YYYY-MM-DD or null",
  "totalThcPercent": 0.0,
  "delta9ThcPercent": 0.0,
  "cbdPercent": 0.0,
  "contaminantsPassed": true
}

Document text:
%s`

// COAExtraction 模型抽取的化验值
type COAExtraction struct {
	LabName            *string  `json:"labName"`
	BatchNumber        *string  `json:"batchNumber"`
	ProductName        *string  `json:"productName"`
	TestDate           *string  `json:"testDate"`
	TotalTHCPercent    *float64 `json:"totalThcPercent"`
	Delta9THCPercent   *float64 `json:"delta9ThcPercent"`
	CBDPercent         *float64 `json:"cbdPercent"`
	ContaminantsPassed *bool    `json:"contaminantsPassed"`
}

// COAResult 校验结果
type COAResult struct {
	IsValid            bool       `json:"is_valid"`
	LabName            string     `json:"lab_name"`
	BatchNumber        string     `json:"batch_number"`
	ProductName        string     `json:"product_name"`
	TestDate           *time.Time `json:"test_date"`
	TotalTHCPercent    *float64   `json:"total_thc_percent"`
	Delta9THCPercent   *float64   `json:"delta9_thc_percent"`
	CBDPercent         *float64   `json:"cbd_percent"`
	ContaminantsPassed *bool      `json:"contaminants_passed"`
	TextSource         string     `json:"text_source"`
	Errors             []string   `json:"errors"`
	Warnings           []string   `json:"warnings"`
}

func (r *COAResult) fail(format string, args ...interface{}) *COAResult {
	r.IsValid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	return r
}

// COAService 化验报告校验
type COAService struct {
	llm  LLM
	http *resty.Client
	now  func() time.Time
}

// NewCOAService 创建 COA 服务
func NewCOAService(llm LLM) *COAService {
	return &COAService{
		llm:  llm,
		http: resty.New().SetTimeout(30 * time.Second).SetResponseBodyLimit(MaxCOASize),
		now:  time.Now,
	}
}

// Validate 校验 COA 文档，不会返回错误，失败原因写入 Errors
func (s *COAService) Validate(ctx context.Context, doc []byte, mimeType, productName string) *COAResult {
	result := &COAResult{Errors: []string{}, Warnings: []string{}}
	if len(doc) == 0 {
		return result.fail("文档为空")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(doc)
	}
	if s.llm == nil {
		return result.fail("AI 服务未配置，无法解析 COA")
	}

	text, source, err := s.extractText(ctx, doc, mimeType)
	result.TextSource = source
	if err != nil {
		return result.fail("文本提取失败: %v", err)
	}

	var ext COAExtraction
	req := LLMRequest{
		Purpose: model.AIPurposeCOA,
		Prompt:  fmt.Sprintf(coaExtractPrompt, productName, truncate(text, 30000)),
	}
	if err := s.llm.GenerateJSON(ctx, req, &ext); err != nil {
		return result.fail("化验值抽取失败: %v", err)
	}

	evaluateCOA(result, &ext, s.now())
	logrus.WithFields(logrus.Fields{
		"product": productName,
		"valid":   result.IsValid,
		"source":  result.TextSource,
		"errors":  len(result.Errors),
	}).Info("[COAService] COA 校验完成")
	return result
}

// ValidateURL 下载远程 COA 后校验
func (s *COAService) ValidateURL(ctx context.Context, url, productName string) *COAResult {
	failed := &COAResult{Errors: []string{}, Warnings: []string{}}
	// 超过上限时 resty 读取中途即返回，不会缓冲完整响应
	resp, err := s.http.R().SetContext(ctx).Get(url)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return failed.fail("文档过大: 超过 %d 字节", MaxCOASize)
	}
	if err != nil {
		return failed.fail("下载失败: %v", err)
	}
	if resp.IsError() {
		return failed.fail("下载失败: HTTP %d", resp.StatusCode())
	}
	body := resp.Body()
	mimeType := resp.Header().Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return s.Validate(ctx, body, strings.TrimSpace(mimeType), productName)
}

// extractText PDF 优先直接取文本，扫描件和图片走视觉识别
func (s *COAService) extractText(ctx context.Context, doc []byte, mimeType string) (string, string, error) {
	if isPDF(doc, mimeType) {
		text, err := extractPDFText(doc)
		if err == nil && len(strings.TrimSpace(text)) >= minPDFTextLen {
			return text, COASourcePDF, nil
		}
		logrus.WithError(err).Debug("[COAService] PDF 无可用文本，改用视觉识别")
		mimeType = "application/pdf"
	} else if !strings.HasPrefix(mimeType, "image/") {
		return "", "", fmt.Errorf("不支持的文件类型: %s", mimeType)
	}

	text, err := s.llm.GenerateText(ctx, LLMRequest{
		Purpose:     model.AIPurposeCOA,
		Prompt:      coaOCRPrompt,
		Attachments: []Attachment{{MIMEType: mimeType, Data: doc}},
	})
	if err != nil {
		return "", COASourceVision, err
	}
	if strings.TrimSpace(text) == "" {
		return "", COASourceVision, ErrEmptyAIResponse
	}
	return text, COASourceVision, nil
}

func isPDF(doc []byte, mimeType string) bool {
	return mimeType == "application/pdf" || bytes.HasPrefix(doc, []byte("%PDF"))
}

// extractPDFText 解析 PDF 文本层，畸形文件可能触发 panic
func extractPDFText(doc []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("PDF 解析异常: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// evaluateCOA 应用合规规则
func evaluateCOA(result *COAResult, ext *COAExtraction, now time.Time) {
	result.IsValid = true
	result.LabName = deref(ext.LabName)
	result.BatchNumber = deref(ext.BatchNumber)
	result.ProductName = deref(ext.ProductName)
	result.TotalTHCPercent = ext.TotalTHCPercent
	result.Delta9THCPercent = ext.Delta9THCPercent
	result.CBDPercent = ext.CBDPercent
	result.ContaminantsPassed = ext.ContaminantsPassed

	if strings.TrimSpace(result.LabName) == "" {
		result.fail("缺少检测机构名称")
	}

	switch {
	case ext.Delta9THCPercent == nil:
		result.fail("缺少 Δ9-THC 含量")
	case *ext.Delta9THCPercent > MaxDelta9THCPercent:
		result.fail("Δ9-THC 含量 %.3f%% 超过 %.1f%% 上限", *ext.Delta9THCPercent, MaxDelta9THCPercent)
	}

	if d := deref(ext.TestDate); d == "" {
		result.fail("缺少检测日期")
	} else if t, err := time.Parse("2006-01-02", d); err != nil {
		result.fail("检测日期格式无效: %s", d)
	} else {
		result.TestDate = &t
		switch {
		case t.After(now):
			result.fail("检测日期 %s 晚于当前日期", d)
		case now.Sub(t) > MaxCOAAge:
			result.fail("检测日期 %s 超过一年", d)
		}
	}

	if ext.ContaminantsPassed != nil && !*ext.ContaminantsPassed {
		result.fail("污染物检测未通过")
	}
	if ext.TotalTHCPercent != nil && *ext.TotalTHCPercent > MaxDelta9THCPercent {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("总 THC %.3f%% 超过 %.1f%%，部分州按总 THC 监管", *ext.TotalTHCPercent, MaxDelta9THCPercent))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
