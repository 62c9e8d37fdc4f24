package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// AlphaVantageSource 基于 Alpha Vantage FX_DAILY 接口拉取外汇日线。
// 免费额度很低，内置速率限制避免被封。
type AlphaVantageSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewAlphaVantageSource(base, apiKey string, perMinute int) *AlphaVantageSource {
	if base == "" {
		base = "https://www.alphavantage.co"
	}
	if perMinute <= 0 {
		perMinute = 5
	}
	return &AlphaVantageSource{
		baseURL: base,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (a *AlphaVantageSource) Name() string { return "alphavantage" }

func (a *AlphaVantageSource) Fetch(ctx context.Context, req FetchRequest) ([]Candle, error) {
	from, to, err := splitPair(req.Symbol)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, _ := url.Parse(a.baseURL)
	u.Path = "/query"
	q := u.Query()
	q.Set("function", "FX_DAILY")
	q.Set("from_symbol", from)
	q.Set("to_symbol", to)
	q.Set("outputsize", "full")
	q.Set("apikey", a.apiKey)
	u.RawQuery = q.Encode()

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("alphavantage 返回状态码 %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if msg := gjson.GetBytes(body, "Error Message"); msg.Exists() {
		return nil, fmt.Errorf("alphavantage: %s", msg.String())
	}
	if note := gjson.GetBytes(body, "Note"); note.Exists() {
		return nil, fmt.Errorf("alphavantage 触发限流: %s", note.String())
	}
	series := gjson.GetBytes(body, `Time Series FX (Daily)`)
	if !series.Exists() {
		return nil, fmt.Errorf("alphavantage 响应缺少日线序列")
	}

	out := make([]Candle, 0, 256)
	series.ForEach(func(key, value gjson.Result) bool {
		day, err := time.ParseInLocation("2006-01-02", key.String(), time.UTC)
		if err != nil {
			return true
		}
		openTime := day.UnixMilli()
		if req.Start > 0 && openTime < req.Start {
			return true
		}
		if req.End > 0 && openTime > req.End {
			return true
		}
		out = append(out, Candle{
			OpenTime:  openTime,
			CloseTime: day.Add(24*time.Hour).UnixMilli() - 1,
			Open:      value.Get(`1\. open`).Float(),
			High:      value.Get(`2\. high`).Float(),
			Low:       value.Get(`3\. low`).Float(),
			Close:     value.Get(`4\. close`).Float(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[len(out)-req.Limit:]
	}
	return out, nil
}

// splitPair 把 EURUSD 形式的符号拆成 from/to 两段。
func splitPair(symbol string) (string, string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") {
		parts := strings.SplitN(s, "/", 2)
		if len(parts[0]) != 3 || len(parts[1]) != 3 {
			return "", "", fmt.Errorf("无法解析货币对: %s", symbol)
		}
		return parts[0], parts[1], nil
	}
	if len(s) != 6 {
		return "", "", fmt.Errorf("无法解析货币对: %s", symbol)
	}
	return s[:3], s[3:], nil
}
