package signal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"fxlab/internal/logger"
)

// feedSchema 约束信号文件结构，解析前先校验，坏文件不会污染内存快照。
const feedSchema = `{
	"type": "object",
	"required": ["signals"],
	"properties": {
		"signals": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["symbol", "timestamp", "confidence"],
				"properties": {
					"symbol": {"type": "string", "minLength": 1},
					"timestamp": {"type": "integer"},
					"confidence": {"type": "number"}
				}
			}
		}
	}
}`

// FileProvider 从 JSON 信号文件读取置信度，可选 fsnotify 热更新。
type FileProvider struct {
	path   string
	schema *jsonschema.Schema

	mu     sync.RWMutex
	values map[string]float64

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider 读取并校验信号文件；watch 为 true 时监听文件变更。
func NewFileProvider(path string, watch bool) (*FileProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("signal feed 路径不能为空")
	}
	schema, err := jsonschema.CompileString("feed.json", feedSchema)
	if err != nil {
		return nil, fmt.Errorf("compile feed schema: %w", err)
	}
	p := &FileProvider{
		path:   path,
		schema: schema,
		values: make(map[string]float64),
	}
	if err := p.reload(); err != nil {
		return nil, err
	}
	if watch {
		if err := p.startWatch(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *FileProvider) Confidence(symbol string, timestamp int64) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key(symbol, timestamp)]
	return v, ok
}

// Count 返回当前快照内的信号条数。
func (p *FileProvider) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.values)
}

func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	return p.watcher.Close()
}

func (p *FileProvider) reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read signal feed: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("signal feed 不是合法 JSON: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return fmt.Errorf("signal feed 校验失败: %w", err)
	}

	next := make(map[string]float64)
	gjson.GetBytes(raw, "signals").ForEach(func(_, item gjson.Result) bool {
		symbol := strings.ToUpper(item.Get("symbol").String())
		ts := item.Get("timestamp").Int()
		next[key(symbol, ts)] = item.Get("confidence").Float()
		return true
	})

	p.mu.Lock()
	p.values = next
	p.mu.Unlock()
	logger.Infof("[signal] 加载 %d 条置信度 (%s)", len(next), filepath.Base(p.path))
	return nil
}

func (p *FileProvider) startWatch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// 监听目录而非文件本身，编辑器原子写会替换 inode
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	p.watcher = watcher
	p.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-p.done:
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != filepath.Clean(p.path) {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := p.reload(); err != nil {
					logger.Errorf("signal feed 重载失败 (%s): %v", evt.Name, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("signal feed watcher: %v", err)
			}
		}
	}()
	return nil
}
