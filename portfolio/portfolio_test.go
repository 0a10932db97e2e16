package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"paperarena/market"
)

// fakePriceSource 测试用价格源
type fakePriceSource struct {
	prices map[string]float64
}

func (f *fakePriceSource) GetPrice(_ context.Context, symbol string) (float64, error) {
	if p, ok := f.prices[symbol]; ok {
		return p, nil
	}
	return 0, market.ErrPriceUnavailable
}

func newTestLedger(prices map[string]float64) *Ledger {
	return NewLedger(10000, &fakePriceSource{prices: prices})
}

func mustTrade(t *testing.T, l *Ledger, action Action, symbol string, qty, lev float64) *Trade {
	t.Helper()
	trade, err := l.ExecuteTrade(context.Background(), action, symbol, qty, lev)
	if err != nil {
		t.Fatalf("交易失败 %s %s: %v", action, symbol, err)
	}
	return trade
}

func decEqual(t *testing.T, got decimal.Decimal, want float64, what string) {
	t.Helper()
	if !got.Equal(decimal.NewFromFloat(want)) {
		t.Errorf("%s: 期望 %v, 得到 %s", what, want, got)
	}
}

// 场景：10000 起始资金，100 买1，200 买1，250 卖1
func TestBuySellScenario(t *testing.T) {
	src := &fakePriceSource{prices: map[string]float64{"X": 100}}
	l := NewLedger(10000, src)

	mustTrade(t, l, ActionBuy, "X", 1, 1)
	decEqual(t, l.Cash(), 9900, "第一次买入后现金")

	pos, ok := l.Position("X")
	if !ok {
		t.Fatal("应存在 X 持仓")
	}
	decEqual(t, pos.Quantity, 1, "持仓数量")
	decEqual(t, pos.AvgEntryPrice, 100, "持仓均价")

	src.prices["X"] = 200
	mustTrade(t, l, ActionBuy, "X", 1, 1)
	decEqual(t, l.Cash(), 9700, "第二次买入后现金")

	pos, _ = l.Position("X")
	decEqual(t, pos.Quantity, 2, "加仓后数量")
	decEqual(t, pos.AvgEntryPrice, 150, "加权均价")

	src.prices["X"] = 250
	trade := mustTrade(t, l, ActionSell, "X", 1, 1)
	decEqual(t, trade.RealizedProfit, 100, "已实现盈亏 (250-150)×1×1")
	decEqual(t, l.Cash(), 9950, "卖出后现金")

	pos, ok = l.Position("X")
	if !ok {
		t.Fatal("部分卖出后持仓应保留")
	}
	decEqual(t, pos.Quantity, 1, "剩余数量")
	decEqual(t, pos.AvgEntryPrice, 150, "部分卖出不改变均价")
}

// 场景：5倍杠杆买入只占用 1/5 资金
func TestBuyWithLeverage(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 50})

	trade := mustTrade(t, l, ActionBuy, "X", 10, 5)
	decEqual(t, trade.Cost, 100, "占用资金 10×50/5")
	decEqual(t, l.Cash(), 9900, "杠杆买入后现金")

	pos, _ := l.Position("X")
	decEqual(t, pos.Leverage, 5, "持仓杠杆")
}

// 均价加权不变量：任意买入序列的均价 = Σ(qi·pi)/Σqi
func TestWeightedAverageInvariant(t *testing.T) {
	src := &fakePriceSource{prices: map[string]float64{"Y": 0}}
	l := NewLedger(1000000, src)

	fills := []struct{ qty, price float64 }{
		{1, 100}, {2, 130}, {0.5, 90}, {3, 210}, {0.25, 55},
	}

	sumQP := decimal.Zero
	sumQ := decimal.Zero
	for _, f := range fills {
		src.prices["Y"] = f.price
		mustTrade(t, l, ActionBuy, "Y", f.qty, 1)
		q := decimal.NewFromFloat(f.qty)
		sumQP = sumQP.Add(q.Mul(decimal.NewFromFloat(f.price)))
		sumQ = sumQ.Add(q)
	}

	pos, _ := l.Position("Y")
	want := sumQP.Div(sumQ)
	if !pos.AvgEntryPrice.Equal(want) {
		t.Errorf("均价不变量被破坏: 期望 %s, 得到 %s", want, pos.AvgEntryPrice)
	}
	if !pos.Quantity.Equal(sumQ) {
		t.Errorf("数量不变量被破坏: 期望 %s, 得到 %s", sumQ, pos.Quantity)
	}
}

// 合并持仓保留最新一次买入的杠杆
func TestMergeKeepsNewestLeverage(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 100})
	mustTrade(t, l, ActionBuy, "X", 1, 2)
	mustTrade(t, l, ActionBuy, "X", 1, 5)

	pos, _ := l.Position("X")
	decEqual(t, pos.Leverage, 5, "合并后杠杆")
}

// 全部卖出必须移除持仓
func TestSellAllRemovesPosition(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 100})
	mustTrade(t, l, ActionBuy, "X", 2, 1)
	mustTrade(t, l, ActionSell, "X", 2, 1)

	if _, ok := l.Position("X"); ok {
		t.Error("全部卖出后持仓应被移除")
	}
	if len(l.Positions()) != 0 {
		t.Error("持仓列表应为空")
	}
}

// 资金不足的买入必须失败且账本不变
func TestBuyInsufficientFunds(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 100})

	_, err := l.ExecuteTrade(context.Background(), ActionBuy, "X", 200, 1)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("期望 ErrInsufficientFunds, 得到 %v", err)
	}
	decEqual(t, l.Cash(), 10000, "失败后现金不变")
	if len(l.Positions()) != 0 || len(l.Trades()) != 0 {
		t.Error("失败的交易不应留下任何痕迹")
	}
}

// 无持仓卖出与超量卖出必须失败且账本不变
func TestSellFailures(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 100})

	if _, err := l.ExecuteTrade(context.Background(), ActionSell, "X", 1, 1); !errors.Is(err, ErrNoPosition) {
		t.Errorf("期望 ErrNoPosition, 得到 %v", err)
	}

	mustTrade(t, l, ActionBuy, "X", 1, 1)
	cashBefore := l.Cash()

	if _, err := l.ExecuteTrade(context.Background(), ActionSell, "X", 2, 1); !errors.Is(err, ErrInsufficientPosition) {
		t.Errorf("期望 ErrInsufficientPosition, 得到 %v", err)
	}
	if !l.Cash().Equal(cashBefore) {
		t.Error("超量卖出失败后现金不应变化")
	}
	pos, _ := l.Position("X")
	decEqual(t, pos.Quantity, 1, "超量卖出失败后持仓不变")
}

// 参数校验
func TestExecuteTradeValidation(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 100})

	if _, err := l.ExecuteTrade(context.Background(), Action("HOLD"), "X", 1, 1); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("期望 ErrInvalidAction, 得到 %v", err)
	}
	if _, err := l.ExecuteTrade(context.Background(), ActionBuy, "X", 0, 1); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("期望 ErrInvalidQuantity, 得到 %v", err)
	}
	if _, err := l.ExecuteTrade(context.Background(), ActionBuy, "X", 1, 0.5); !errors.Is(err, ErrInvalidLeverage) {
		t.Errorf("期望 ErrInvalidLeverage, 得到 %v", err)
	}
	if _, err := l.ExecuteTrade(context.Background(), ActionBuy, "NOPE", 1, 1); !errors.Is(err, market.ErrPriceUnavailable) {
		t.Errorf("期望 ErrPriceUnavailable, 得到 %v", err)
	}
}

// 每笔成功交易恰好追加一条成交记录，字段与计算一致
func TestTradeRecordFields(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 100})

	buy := mustTrade(t, l, ActionBuy, "x", 2, 4)
	trades := l.Trades()
	if len(trades) != 1 {
		t.Fatalf("期望 1 条成交记录, 得到 %d", len(trades))
	}
	if buy.Action != ActionBuy || buy.Symbol != "X" {
		t.Errorf("买入记录字段错误: %+v", buy)
	}
	decEqual(t, buy.Price, 100, "买入成交价")
	decEqual(t, buy.Cost, 50, "买入占用资金 2×100/4")

	sell := mustTrade(t, l, ActionSell, "X", 1, 1)
	trades = l.Trades()
	if len(trades) != 2 {
		t.Fatalf("期望 2 条成交记录, 得到 %d", len(trades))
	}
	decEqual(t, sell.Proceeds, 100, "卖出回收资金")
	// (100-100)×1×4 = 0
	decEqual(t, sell.RealizedProfit, 0, "平价卖出盈亏为0")
}

// 估值：正常情况现金+持仓市值，取价失败的持仓按0计入
func TestValue(t *testing.T) {
	src := &fakePriceSource{prices: map[string]float64{"A": 100, "B": 50}}
	l := NewLedger(10000, src)

	mustTrade(t, l, ActionBuy, "A", 1, 1)
	mustTrade(t, l, ActionBuy, "B", 2, 1)
	// 现金 10000-100-100=9800，市值 100+100=200

	total, degraded := l.Value(context.Background())
	if degraded {
		t.Error("价格齐全时不应降级")
	}
	decEqual(t, total, 10000, "总价值")

	// B 取价失败 → 按0计入并标记降级
	delete(src.prices, "B")
	total, degraded = l.Value(context.Background())
	if !degraded {
		t.Error("取价失败时应标记降级")
	}
	decEqual(t, total, 9900, "降级后的总价值（现金9800+A市值100）")
}

// 成交统计
func TestStats(t *testing.T) {
	src := &fakePriceSource{prices: map[string]float64{"X": 100}}
	l := NewLedger(10000, src)

	mustTrade(t, l, ActionBuy, "X", 2, 1)
	src.prices["X"] = 150
	mustTrade(t, l, ActionSell, "X", 1, 1) // 盈利 50
	src.prices["X"] = 120
	mustTrade(t, l, ActionSell, "X", 1, 1) // 盈利 20

	stats := l.Stats()
	if stats.TotalTrades != 3 || stats.BuyTrades != 1 || stats.SellTrades != 2 {
		t.Errorf("统计数量错误: %+v", stats)
	}
	decEqual(t, stats.AvgSellProfit, 35, "平均卖出盈亏 (50+20)/2")
}

// 重置恢复初始状态
func TestReset(t *testing.T) {
	l := newTestLedger(map[string]float64{"X": 100})
	mustTrade(t, l, ActionBuy, "X", 1, 1)

	l.Reset()
	decEqual(t, l.Cash(), 10000, "重置后现金")
	if len(l.Positions()) != 0 || len(l.Trades()) != 0 {
		t.Error("重置后持仓和成交记录应清空")
	}
	decEqual(t, l.InceptionValue(), 10000, "重置后初始价值")
}
