// Package pricing 提供基于 pip 精度的价格归整工具。
// 屏障价由 entry ± mult*ATR 计算得到，落库前统一按品种 pip 精度取整，
// 避免浮点尾数污染持久化结果。
package pricing

import "github.com/shopspring/decimal"

// RoundToPip 将价格按 pipSize 归整（四舍五入到最近的 pip 网格）。
// pipSize <= 0 时原样返回。
func RoundToPip(price, pipSize float64) float64 {
	if pipSize <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	pip := decimal.NewFromFloat(pipSize)
	steps := p.Div(pip).Round(0)
	out, _ := steps.Mul(pip).Float64()
	return out
}

// PipDistance 返回两价差折算的 pip 数（绝对值）。
func PipDistance(a, b, pipSize float64) float64 {
	if pipSize <= 0 {
		return 0
	}
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	out, _ := diff.Div(decimal.NewFromFloat(pipSize)).Float64()
	return out
}
