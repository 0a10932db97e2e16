package portfolio

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"paperarena/logger"
)

// Action 交易方向
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

var (
	// ErrInvalidAction 无效的交易方向
	ErrInvalidAction = errors.New("无效的交易方向")
	// ErrInvalidQuantity 交易数量必须大于0
	ErrInvalidQuantity = errors.New("交易数量必须大于0")
	// ErrInvalidLeverage 杠杆倍数必须不小于1
	ErrInvalidLeverage = errors.New("杠杆倍数必须不小于1")
	// ErrInsufficientFunds 可用资金不足
	ErrInsufficientFunds = errors.New("可用资金不足")
	// ErrNoPosition 没有可卖出的持仓
	ErrNoPosition = errors.New("没有可卖出的持仓")
	// ErrInsufficientPosition 持仓数量不足
	ErrInsufficientPosition = errors.New("持仓数量不足")
)

// Position 持仓
// Quantity 恒大于0：数量减到0的持仓会被整体移除
// AvgEntryPrice 是所有买入成交按数量加权的均价
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	Leverage      decimal.Decimal `json:"leverage"`
}

// Trade 成交记录（创建后不可变）
// Leverage/Cost 仅买入时有意义，Proceeds/RealizedProfit 仅卖出时有意义
type Trade struct {
	Timestamp      time.Time       `json:"timestamp"`
	Action         Action          `json:"action"`
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Leverage       decimal.Decimal `json:"leverage"`
	Cost           decimal.Decimal `json:"cost"`
	Proceeds       decimal.Decimal `json:"proceeds"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
}

// Stats 成交统计
type Stats struct {
	TotalTrades   int             `json:"total_trades"`
	BuyTrades     int             `json:"buy_trades"`
	SellTrades    int             `json:"sell_trades"`
	AvgSellProfit decimal.Decimal `json:"avg_sell_profit"`
}

// PriceSource 行情价格接口（由 market 包实现）
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// Ledger 模拟交易账本
// 每个浏览器会话持有一个独立实例；互斥锁只用来防止同一会话并发请求，
// 不提供跨会话共享
type Ledger struct {
	mu             sync.Mutex
	cash           decimal.Decimal
	positions      map[string]*Position
	trades         []Trade
	startingCash   decimal.Decimal
	inceptionValue decimal.Decimal
	inceptionTime  time.Time
	prices         PriceSource
}

// NewLedger 创建账本
func NewLedger(startingCash float64, prices PriceSource) *Ledger {
	cash := decimal.NewFromFloat(startingCash)
	return &Ledger{
		cash:           cash,
		positions:      make(map[string]*Position),
		startingCash:   cash,
		inceptionValue: cash,
		inceptionTime:  time.Now(),
		prices:         prices,
	}
}

// Reset 重置为初始状态
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cash = l.startingCash
	l.positions = make(map[string]*Position)
	l.trades = nil
	l.inceptionValue = l.startingCash
	l.inceptionTime = time.Now()
}

// ExecuteTrade 执行一笔模拟交易
// 成功时返回追加的成交记录；失败时账本完全不变（不存在半执行状态）
func (l *Ledger) ExecuteTrade(ctx context.Context, action Action, symbol string, quantity, leverage float64) (*Trade, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if action != ActionBuy && action != ActionSell {
		return nil, ErrInvalidAction
	}

	qty := decimal.NewFromFloat(quantity)
	if !qty.IsPositive() {
		return nil, ErrInvalidQuantity
	}

	lev := decimal.NewFromFloat(leverage)
	if lev.LessThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidLeverage
	}

	// 先取价格，再加锁修改账本，避免把网络请求压在锁里
	priceF, err := l.prices.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	price := decimal.NewFromFloat(priceF)

	l.mu.Lock()
	defer l.mu.Unlock()

	if action == ActionBuy {
		return l.executeBuy(symbol, qty, price, lev)
	}
	return l.executeSell(symbol, qty, price)
}

// executeBuy 买入：占用资金 = 数量×价格/杠杆
// 注意：调用前必须已持有 l.mu
func (l *Ledger) executeBuy(symbol string, qty, price, lev decimal.Decimal) (*Trade, error) {
	cost := qty.Mul(price).Div(lev)
	if cost.GreaterThan(l.cash) {
		return nil, ErrInsufficientFunds
	}

	l.cash = l.cash.Sub(cost)

	if pos, ok := l.positions[symbol]; ok {
		// 合并持仓：数量相加，均价按数量加权，杠杆取最新一次买入的值
		newQty := pos.Quantity.Add(qty)
		pos.AvgEntryPrice = pos.Quantity.Mul(pos.AvgEntryPrice).
			Add(qty.Mul(price)).
			Div(newQty)
		pos.Quantity = newQty
		pos.Leverage = lev
	} else {
		l.positions[symbol] = &Position{
			Symbol:        symbol,
			Quantity:      qty,
			AvgEntryPrice: price,
			Leverage:      lev,
		}
	}

	trade := Trade{
		Timestamp: time.Now(),
		Action:    ActionBuy,
		Symbol:    symbol,
		Quantity:  qty,
		Price:     price,
		Leverage:  lev,
		Cost:      cost,
	}
	l.trades = append(l.trades, trade)

	logger.Info("🟢 [交易] 买入 %s %s @ $%s（杠杆 %sx，占用资金 $%s）",
		qty, symbol, price, lev, cost.StringFixed(2))
	return &trade, nil
}

// executeSell 卖出：回收资金 = 数量×价格，已实现盈亏 =（价格−均价）×数量×持仓杠杆
// 注意：调用前必须已持有 l.mu
func (l *Ledger) executeSell(symbol string, qty, price decimal.Decimal) (*Trade, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return nil, ErrNoPosition
	}
	if qty.GreaterThan(pos.Quantity) {
		return nil, ErrInsufficientPosition
	}

	proceeds := qty.Mul(price)
	profit := price.Sub(pos.AvgEntryPrice).Mul(qty).Mul(pos.Leverage)

	l.cash = l.cash.Add(proceeds)
	pos.Quantity = pos.Quantity.Sub(qty)
	if !pos.Quantity.IsPositive() {
		delete(l.positions, symbol)
	}

	trade := Trade{
		Timestamp:      time.Now(),
		Action:         ActionSell,
		Symbol:         symbol,
		Quantity:       qty,
		Price:          price,
		Proceeds:       proceeds,
		RealizedProfit: profit,
	}
	l.trades = append(l.trades, trade)

	logger.Info("🔴 [交易] 卖出 %s %s @ $%s（已实现盈亏 $%s）",
		qty, symbol, price, profit.StringFixed(2))
	return &trade, nil
}

// Value 计算账户总价值（现金 + 持仓市值）
// 某个持仓取价失败时按0计入并返回 degraded=true，不让整体估值失败
func (l *Ledger) Value(ctx context.Context) (decimal.Decimal, bool) {
	l.mu.Lock()
	cash := l.cash
	positions := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		positions = append(positions, *p)
	}
	l.mu.Unlock()

	total := cash
	degraded := false
	for _, p := range positions {
		priceF, err := l.prices.GetPrice(ctx, p.Symbol)
		if err != nil {
			logger.Warn("⚠️ [估值] %s 取价失败，本次按0计入: %v", p.Symbol, err)
			degraded = true
			continue
		}
		total = total.Add(p.Quantity.Mul(decimal.NewFromFloat(priceF)))
	}
	return total, degraded
}

// Cash 当前可用资金
func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// InceptionValue 账户初始价值
func (l *Ledger) InceptionValue() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inceptionValue
}

// InceptionTime 账户创建（或最近一次重置）时间
func (l *Ledger) InceptionTime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inceptionTime
}

// TradingHours 开户至今的小时数
func (l *Ledger) TradingHours() float64 {
	return time.Since(l.InceptionTime()).Hours()
}

// Positions 返回持仓快照（按币种排序）
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Position 返回指定币种的持仓快照
func (l *Ledger) Position(symbol string) (Position, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.positions[symbol]; ok {
		return *p, true
	}
	return Position{}, false
}

// Trades 返回全部成交记录快照（按时间先后）
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Stats 返回成交统计
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Stats{TotalTrades: len(l.trades)}
	sellProfit := decimal.Zero
	for _, t := range l.trades {
		switch t.Action {
		case ActionBuy:
			stats.BuyTrades++
		case ActionSell:
			stats.SellTrades++
			sellProfit = sellProfit.Add(t.RealizedProfit)
		}
	}
	if stats.SellTrades > 0 {
		stats.AvgSellProfit = sellProfit.Div(decimal.NewFromInt(int64(stats.SellTrades)))
	}
	return stats
}
