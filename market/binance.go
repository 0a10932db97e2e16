package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"paperarena/config"
	"paperarena/logger"
)

// BinanceSource 币安现货行情数据源
// 只使用公开接口（ticker/price、klines），无需 API Key
type BinanceSource struct {
	client     *binance.Client
	quoteAsset string
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewBinanceSource 创建币安行情数据源
func NewBinanceSource(cfg *config.Config) *BinanceSource {
	client := binance.NewClient("", "")
	if cfg.Market.BaseURL != "" {
		client.BaseURL = cfg.Market.BaseURL
	}

	rps := cfg.Market.RequestsPerSec
	return &BinanceSource{
		client:     client,
		quoteAsset: cfg.Market.QuoteAsset,
		timeout:    time.Duration(cfg.Market.TimeoutSeconds) * time.Second,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// PairSymbol 把用户输入的币种转成交易对符号（BTC → BTCUSDT）
func (b *BinanceSource) PairSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(s, b.quoteAsset) {
		return s
	}
	return s + b.quoteAsset
}

// GetPrice 获取当前价格
func (b *BinanceSource) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	pair := b.PairSymbol(symbol)
	prices, err := b.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		logger.Warn("⚠️ [行情] 获取 %s 价格失败: %v", pair, err)
		return 0, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: 交易对 %s 无报价", ErrPriceUnavailable, pair)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: 无效的报价 %q", ErrPriceUnavailable, prices[0].Price)
	}
	return price, nil
}

// GetKlines 获取K线序列
func (b *BinanceSource) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	pair := b.PairSymbol(symbol)
	raw, err := b.client.NewKlinesService().
		Symbol(pair).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		logger.Warn("⚠️ [行情] 获取 %s K线失败: %v", pair, err)
		return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}

	klines := make([]Kline, 0, len(raw))
	var lastOpen time.Time
	for _, k := range raw {
		parsed, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
		}
		// 数据源按时间升序返回；乱序说明数据异常
		if !lastOpen.IsZero() && !parsed.OpenTime.After(lastOpen) {
			return nil, fmt.Errorf("%w: K线时间顺序异常", ErrPriceUnavailable)
		}
		lastOpen = parsed.OpenTime
		klines = append(klines, parsed)
	}
	return klines, nil
}

// GetSummary 获取最近 hours 小时的行情摘要（基于1小时K线）
func (b *BinanceSource) GetSummary(ctx context.Context, symbol string, hours int) (*Summary, error) {
	if hours <= 0 {
		hours = 24
	}

	price, err := b.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}

	klines, err := b.GetKlines(ctx, symbol, "1h", hours)
	if err != nil {
		return nil, err
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%w: 无K线数据", ErrPriceUnavailable)
	}

	summary := &Summary{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Price:  price,
		Hours:  hours,
		High:   klines[0].High,
		Low:    klines[0].Low,
	}
	for _, k := range klines {
		if k.High > summary.High {
			summary.High = k.High
		}
		if k.Low < summary.Low {
			summary.Low = k.Low
		}
		summary.Volume += k.Volume
	}
	if base := klines[0].Close; base > 0 {
		summary.ChangePercent = (price - base) / base * 100
	}
	return summary, nil
}

// parseKline 解析单条K线
func parseKline(k *binance.Kline) (Kline, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("无效的开盘价 %q", k.Open)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("无效的最高价 %q", k.High)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("无效的最低价 %q", k.Low)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("无效的收盘价 %q", k.Close)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("无效的成交量 %q", k.Volume)
	}

	return Kline{
		OpenTime:  time.UnixMilli(k.OpenTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: time.UnixMilli(k.CloseTime),
	}, nil
}
