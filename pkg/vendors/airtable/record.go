package airtable

import (
	"fmt"
	"strconv"
	"strings"
)

// Record Airtable 记录，字段按列名动态存在
type Record struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime"`
	Fields      map[string]interface{} `json:"fields"`
}

// Attachment 附件
type Attachment struct {
	ID       string
	URL      string
	Filename string
	Type     string
}

// String 读取文本字段，依次尝试给定列名
func (r Record) String(names ...string) string {
	for _, name := range names {
		v, ok := r.Fields[name]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		case []interface{}:
			// 查找类字段返回数组，取第一个文本
			for _, item := range val {
				if s, ok := item.(string); ok && s != "" {
					return s
				}
			}
		default:
			return fmt.Sprint(val)
		}
	}
	return ""
}

// Float 读取数值字段，缺失返回 nil
func (r Record) Float(names ...string) *float64 {
	for _, name := range names {
		v, ok := r.Fields[name]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case float64:
			return &val
		case string:
			s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(val), "$"))
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// Attachments 读取附件字段
func (r Record) Attachments(name string) []Attachment {
	raw, ok := r.Fields[name].([]interface{})
	if !ok {
		return nil
	}
	var out []Attachment
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		a := Attachment{}
		a.ID, _ = m["id"].(string)
		a.URL, _ = m["url"].(string)
		a.Filename, _ = m["filename"].(string)
		a.Type, _ = m["type"].(string)
		if a.URL != "" {
			out = append(out, a)
		}
	}
	return out
}
