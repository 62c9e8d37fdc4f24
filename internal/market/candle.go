package market

import "fmt"

// Candle 表示单根已收盘 K 线（毫秒时间戳）。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Series 是单个 symbol 的升序 K 线序列。
type Series struct {
	Symbol  string
	Candles []Candle
}

// Validate 检查时间戳严格递增且无重复；违规视为输入错误，打标前必须拒绝。
func (s Series) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("series symbol 不能为空")
	}
	for i := 1; i < len(s.Candles); i++ {
		prev, cur := s.Candles[i-1].OpenTime, s.Candles[i].OpenTime
		if cur == prev {
			return fmt.Errorf("series %s: duplicate timestamp at index %d (%d)", s.Symbol, i, cur)
		}
		if cur < prev {
			return fmt.Errorf("series %s: non-monotonic timestamp at index %d (%d < %d)", s.Symbol, i, cur, prev)
		}
	}
	return nil
}

func (s Series) Len() int { return len(s.Candles) }
