package label

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"fxlab/internal/regime"
)

// labelModel 打标数据集的落库模型。
type labelModel struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Symbol      string `gorm:"size:32;index:idx_symbol_ts,unique,priority:1"`
	Timestamp   int64  `gorm:"index:idx_symbol_ts,unique,priority:2"`
	OriginIndex int
	Outcome     int `gorm:"index"`

	Entry   float64
	ATR     float64
	LongTP  float64
	LongSL  float64
	ShortTP float64
	ShortSL float64

	TPMult    float64
	SLMult    float64
	Horizon   int
	DecidedAt int

	Regime datatypes.JSON `gorm:"type:json"`

	CreatedAt int64 `gorm:"autoCreateTime:milli"`
}

func (labelModel) TableName() string { return "labels" }

// Store 基于 Gorm + SQLite 的标签数据集存储，供训练侧按时间切分取数。
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("label store: 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&labelModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveAll 批量落库，(symbol, timestamp) 冲突时覆盖旧值。
func (s *Store) SaveAll(ctx context.Context, labels []Label) error {
	if len(labels) == 0 {
		return nil
	}
	models := make([]labelModel, 0, len(labels))
	for _, l := range labels {
		regimeJSON, err := json.Marshal(l.Regime)
		if err != nil {
			return fmt.Errorf("marshal regime %s@%d: %w", l.Symbol, l.Timestamp, err)
		}
		models = append(models, labelModel{
			Symbol:      l.Symbol,
			Timestamp:   l.Timestamp,
			OriginIndex: l.OriginIndex,
			Outcome:     int(l.Outcome),
			Entry:       l.Entry,
			ATR:         l.ATR,
			LongTP:      l.LongTP,
			LongSL:      l.LongSL,
			ShortTP:     l.ShortTP,
			ShortSL:     l.ShortSL,
			TPMult:      l.TPMult,
			SLMult:      l.SLMult,
			Horizon:     l.Horizon,
			DecidedAt:   l.DecidedAt,
			Regime:      datatypes.JSON(regimeJSON),
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
			UpdateAll: true,
		}).
		CreateInBatches(models, 200).Error
}

// ListBySymbol 按时间升序取某 symbol 的全部标签。
func (s *Store) ListBySymbol(ctx context.Context, symbol string) ([]Label, error) {
	var models []labelModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models)
}

// ListAll 取全部标签，先按 symbol 再按时间排序。
func (s *Store) ListAll(ctx context.Context) ([]Label, error) {
	var models []labelModel
	err := s.db.WithContext(ctx).
		Order("symbol ASC, timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models)
}

func fromModels(models []labelModel) ([]Label, error) {
	out := make([]Label, 0, len(models))
	for _, m := range models {
		var tag regime.Tag
		if len(m.Regime) > 0 {
			if err := json.Unmarshal(m.Regime, &tag); err != nil {
				return nil, fmt.Errorf("unmarshal regime %s@%d: %w", m.Symbol, m.Timestamp, err)
			}
		}
		out = append(out, Label{
			Symbol:      m.Symbol,
			OriginIndex: m.OriginIndex,
			Timestamp:   m.Timestamp,
			Outcome:     Outcome(m.Outcome),
			Entry:       m.Entry,
			ATR:         m.ATR,
			LongTP:      m.LongTP,
			LongSL:      m.LongSL,
			ShortTP:     m.ShortTP,
			ShortSL:     m.ShortSL,
			TPMult:      m.TPMult,
			SLMult:      m.SLMult,
			Horizon:     m.Horizon,
			DecidedAt:   m.DecidedAt,
			Regime:      tag,
		})
	}
	return out, nil
}
