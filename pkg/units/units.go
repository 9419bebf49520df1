package units

import (
	"fmt"
	"math"
	"strings"
)

// 换算系数 (均为乘法系数)
const (
	GramsPerPound    = 453.592
	GramsPerOunce    = 28.3495
	GramsPerKilogram = 1000.0

	MillimetersPerInch       = 25.4
	MillimetersPerCentimeter = 10.0
	MillimetersPerMeter      = 1000.0
)

// UnknownUnitError 不支持的单位
type UnknownUnitError struct {
	Kind string
	Unit string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("不支持的%s单位: %q", e.Kind, e.Unit)
}

// WeightToGrams 重量统一换算为克
// 支持 lb/lbs/pound, oz/ounce, kg, g
func WeightToGrams(value float64, unit string) (float64, error) {
	switch normalizeUnit(unit) {
	case "lb", "lbs", "pound", "pounds":
		return round3(value * GramsPerPound), nil
	case "oz", "ounce", "ounces":
		return round3(value * GramsPerOunce), nil
	case "kg", "kgs", "kilogram", "kilograms":
		return round3(value * GramsPerKilogram), nil
	case "g", "gram", "grams", "":
		return round3(value), nil
	}
	return 0, &UnknownUnitError{Kind: "重量", Unit: unit}
}

// DimensionToMM 长度统一换算为毫米
// 支持 in/inch, cm, m, mm
func DimensionToMM(value float64, unit string) (float64, error) {
	switch normalizeUnit(unit) {
	case "in", "inch", "inches":
		return round3(value * MillimetersPerInch), nil
	case "cm", "centimeter", "centimeters":
		return round3(value * MillimetersPerCentimeter), nil
	case "m", "meter", "meters":
		return round3(value * MillimetersPerMeter), nil
	case "mm", "millimeter", "millimeters", "":
		return round3(value), nil
	}
	return 0, &UnknownUnitError{Kind: "长度", Unit: unit}
}

func normalizeUnit(unit string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), ".")
}

// round3 保留三位小数，避免浮点尾差
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
