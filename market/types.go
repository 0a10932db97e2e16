package market

import (
	"context"
	"errors"
	"time"
)

// ErrPriceUnavailable 行情不可用（数据源不可达或币种不存在）
var ErrPriceUnavailable = errors.New("行情数据不可用")

// Kline K线数据
type Kline struct {
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	CloseTime time.Time `json:"close_time"`
}

// Summary 一段时间内的行情摘要（用于仪表盘与 AI 上下文）
type Summary struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change_percent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	Hours         int     `json:"hours"`
}

// Source 行情数据源接口
type Source interface {
	// GetPrice 获取当前价格
	GetPrice(ctx context.Context, symbol string) (float64, error)
	// GetKlines 获取K线序列（按开盘时间严格递增）
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]Kline, error)
	// GetSummary 获取最近 hours 小时的行情摘要
	GetSummary(ctx context.Context, symbol string, hours int) (*Summary, error)
}
