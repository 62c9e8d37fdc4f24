package app

import (
	"context"
	"fmt"

	"fxlab/internal/feature"
	"fxlab/internal/label"
	"fxlab/internal/logger"
	"fxlab/internal/market"
	"fxlab/internal/regime"
)

// LabelPipeline 把「同步行情→特征→状态→打标→落库」串成一轮批处理。
type LabelPipeline struct {
	sync          *market.SyncService
	tf            market.Timeframe
	symbols       []string
	start         int64
	end           int64
	featureCfg    feature.Config
	engine        *label.Engine
	labels        *label.Store
	pipSize       func(string) float64
	maxConcurrent int
}

// Run 对全部符号执行一轮打标。单个符号准备失败即中止，避免半套标签入库。
func (p *LabelPipeline) Run(ctx context.Context) error {
	if len(p.symbols) == 0 {
		return fmt.Errorf("没有待处理的符号")
	}

	inputs := make([]label.SeriesInput, 0, len(p.symbols))
	for _, symbol := range p.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := p.sync.Ensure(ctx, symbol, p.tf, p.start, p.end); err != nil {
			return err
		}
		series, err := p.sync.LoadSeries(ctx, symbol, p.tf, p.start, p.end)
		if err != nil {
			return err
		}
		if series.Len() == 0 {
			logger.Warnf("[pipeline] %s %s 区间内无数据，跳过", symbol, p.tf.Key)
			continue
		}
		set, err := feature.Build(series, p.featureCfg)
		if err != nil {
			return fmt.Errorf("%s 特征计算失败: %w", symbol, err)
		}
		tags, err := regime.Classify(series, set)
		if err != nil {
			return fmt.Errorf("%s 状态分类失败: %w", symbol, err)
		}
		inputs = append(inputs, label.SeriesInput{
			Series:   series,
			Features: set,
			Tags:     tags,
			PipSize:  p.pipSize(symbol),
		})
		logger.Debugf("[pipeline] %s 就绪：%d bars", symbol, series.Len())
	}
	if len(inputs) == 0 {
		return fmt.Errorf("所有符号均无可用数据")
	}

	labels, err := p.engine.LabelAll(ctx, inputs, p.maxConcurrent)
	if err != nil {
		return err
	}
	if err := p.labels.SaveAll(ctx, labels); err != nil {
		return err
	}
	logger.Infof("✓ 打标完成：%d 个符号共 %d 条标签", len(inputs), len(labels))
	return nil
}
