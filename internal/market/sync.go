package market

import (
	"context"
	"fmt"
	"time"

	"fxlab/internal/logger"
)

// SyncService 负责把远端 K 线补齐到本地缓存。
type SyncService struct {
	store  *Store
	source CandleSource
}

func NewSyncService(store *Store, source CandleSource) *SyncService {
	return &SyncService{store: store, source: source}
}

// Ensure 确保 [start, end] 范围的 K 线已缓存，必要时分批拉取。
// 返回本次新写入的条数。
func (s *SyncService) Ensure(ctx context.Context, symbol string, tf Timeframe, start, end int64) (int, error) {
	if s.source == nil {
		return 0, fmt.Errorf("未配置数据源")
	}
	start, end = tf.AlignRange(start, end)
	if start <= 0 || end <= 0 || end < start {
		return 0, fmt.Errorf("非法时间范围 [%d, %d]", start, end)
	}
	manifest, err := s.store.Manifest(ctx, symbol, tf.Key)
	if err != nil {
		return 0, err
	}
	if manifest.Rows > 0 && manifest.MinTime <= start && manifest.MaxTime >= end {
		return 0, nil
	}

	fetchStart := start
	if manifest.Rows > 0 && manifest.MinTime <= start {
		// 头部已覆盖，只补尾部
		fetchStart = manifest.MaxTime + tf.durationMillis()
	}
	total := 0
	cursor := fetchStart
	for cursor <= end {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch, err := s.source.Fetch(ctx, FetchRequest{
			Symbol:   symbol,
			Interval: tf.SourceInterval,
			Start:    cursor,
			End:      end,
			Limit:    1000,
		})
		if err != nil {
			return total, fmt.Errorf("拉取 %s %s 失败: %w", symbol, tf.Key, err)
		}
		if len(batch) == 0 {
			break
		}
		n, err := s.store.InsertCandles(ctx, symbol, tf.Key, batch)
		if err != nil {
			return total, err
		}
		total += n
		last := batch[len(batch)-1].OpenTime
		next := last + tf.durationMillis()
		if next <= cursor {
			break
		}
		cursor = next
	}
	if total > 0 {
		logger.Infof("[sync] %s %s 补齐 %d 根 (range %s ~ %s)",
			symbol, tf.Key,
			total,
			time.UnixMilli(start).UTC().Format("2006-01-02"),
			time.UnixMilli(end).UTC().Format("2006-01-02"))
	}
	return total, nil
}

// LoadSeries 读取缓存并封装成按时间升序的 Series。
func (s *SyncService) LoadSeries(ctx context.Context, symbol string, tf Timeframe, start, end int64) (Series, error) {
	candles, err := s.store.RangeCandles(ctx, symbol, tf.Key, start, end)
	if err != nil {
		return Series{}, err
	}
	series := Series{Symbol: symbol, Candles: candles}
	if err := series.Validate(); err != nil {
		return Series{}, fmt.Errorf("%s 缓存数据非法: %w", symbol, err)
	}
	return series, nil
}
