// Package signal 提供每行标签对应的做多概率（confidence）。
// 引擎把模型视为黑盒：给定 (symbol, timestamp) 返回 [0,1] 概率。
package signal

import "fmt"

// Provider 抽象置信度来源。找不到对应信号时 ok 返回 false。
type Provider interface {
	Confidence(symbol string, timestamp int64) (float64, bool)
}

// StaticProvider 内存映射实现，测试与小批量回放用。
type StaticProvider struct {
	values map[string]float64
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{values: make(map[string]float64)}
}

func (p *StaticProvider) Set(symbol string, timestamp int64, confidence float64) {
	p.values[key(symbol, timestamp)] = confidence
}

func (p *StaticProvider) Confidence(symbol string, timestamp int64) (float64, bool) {
	v, ok := p.values[key(symbol, timestamp)]
	return v, ok
}

func key(symbol string, timestamp int64) string {
	return fmt.Sprintf("%s@%d", symbol, timestamp)
}
