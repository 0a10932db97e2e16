package ai

import (
	"fmt"
	"strings"

	"paperarena/market"
)

// SystemPrompt 所有 AI 调用使用的系统提示词
// 提示词保持英文，模型对英文指令的遵循度更稳定
const SystemPrompt = "You are an elite crypto trading AI based on DeepSeek's winning Alpha Arena strategy."

// BuildMarketContext 构建多币种实时行情上下文
func BuildMarketContext(summaries []*market.Summary) string {
	var sb strings.Builder
	sb.WriteString("**REAL-TIME MARKET DATA:**\n\n")

	for _, s := range summaries {
		if s == nil {
			continue
		}
		fmt.Fprintf(&sb, `**%s/USDT:**
- Current: $%.2f
- %dh Change: %+.2f%%
- %dh High: $%.2f
- %dh Low: $%.2f
- Volume: %.0f

`, s.Symbol, s.Price, s.Hours, s.ChangePercent, s.Hours, s.High, s.Hours, s.Low, s.Volume)
	}
	return sb.String()
}

// BuildTradePrompt 构建交易建议提示词
// positionsJSON 为当前持仓的 JSON 文本，cash 为可用资金文本
func BuildTradePrompt(summaries []*market.Summary, cash, positionsJSON string, maxLeverage int) string {
	return fmt.Sprintf(`%s

**PORTFOLIO:**
- Cash: $%s
- Positions: %s

**MISSION:** Analyze and provide ONE specific trade recommendation that will likely profit in the next 1-6 hours.

Use DeepSeek's winning strategy:
1. Identify strongest momentum
2. Recommend aggressive entry with leverage
3. Set clear profit target (5-20%%)
4. Explain why this will profit

**FORMAT:**
TRADE SIGNAL: BUY/SELL
SYMBOL: [crypto]
AMOUNT: $[USD]
LEVERAGE: [1-%d]x
ENTRY: $[price]
TARGET: $[price] ([%%] profit)
STOP LOSS: $[price]
REASONING: [why this wins]
CONFIDENCE: [1-10]
`, BuildMarketContext(summaries), cash, positionsJSON, maxLeverage)
}

// BuildAnalysisPrompt 构建单币种技术分析提示词（基于一段K线序列）
func BuildAnalysisPrompt(symbol string, klines []market.Kline) string {
	if len(klines) == 0 {
		return fmt.Sprintf("Analyze %s: no recent market data is available.", symbol)
	}

	current := klines[len(klines)-1].Close
	base := klines[0].Close
	var change float64
	if base > 0 {
		change = (current - base) / base * 100
	}

	high := klines[0].High
	low := klines[0].Low
	for _, k := range klines {
		if k.High > high {
			high = k.High
		}
		if k.Low < low {
			low = k.Low
		}
	}

	days := len(klines) / 24
	if days == 0 {
		days = 1
	}

	return fmt.Sprintf(`Analyze %s:

Current: $%.2f
%dd Change: %+.2f%%
%dd High: $%.2f
%dd Low: $%.2f

Provide:
1. Trend (bullish/bearish)
2. Support/resistance levels
3. Entry/exit recommendations
4. Risk/reward ratio
`, symbol, current, days, change, days, high, days, low)
}
