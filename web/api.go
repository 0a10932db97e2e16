package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"paperarena/ai"
	"paperarena/logger"
	"paperarena/market"
	"paperarena/metrics"
	"paperarena/portfolio"
)

// Version 版本号（由 main 注入）
var Version = "dev"

// 全局依赖（从 main.go 注入）
var (
	marketSource   market.Source
	aiClient       *ai.Client
	sessionManager *SessionManager

	tradeSymbols    []string
	maxLeverage     = 5
	defaultInterval = "1h"
	klineLimitMax   = 1000

	startTime = time.Now()
)

// SetMarketSource 注入行情数据源
func SetMarketSource(src market.Source) {
	marketSource = src
}

// SetAIClient 注入 AI 客户端
func SetAIClient(c *ai.Client) {
	aiClient = c
}

// SetSessionManager 注入会话管理器
func SetSessionManager(sm *SessionManager) {
	sessionManager = sm
}

// SetTradingParams 注入交易参数
func SetTradingParams(symbols []string, maxLev int, interval string, klineMax int) {
	tradeSymbols = symbols
	if maxLev > 0 {
		maxLeverage = maxLev
	}
	if interval != "" {
		defaultInterval = interval
	}
	if klineMax > 0 {
		klineLimitMax = klineMax
	}
}

// currentSession 取出请求对应的会话，失败时写入错误响应
func currentSession(c *gin.Context) (*Session, bool) {
	session, err := sessionManager.GetOrCreateSession(c)
	if err != nil {
		logger.Error("❌ 创建会话失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return session, true
}

// getVersion 返回版本号
func getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}

// getStatus 返回系统状态
func getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":         true,
		"symbols":         tradeSymbols,
		"max_leverage":    maxLeverage,
		"active_sessions": sessionManager.SessionCount(),
		"uptime":          int64(time.Since(startTime).Seconds()),
	})
}

// requestSymbols 解析 ?symbols=BTC,ETH，缺省时使用配置的交易币种
func requestSymbols(c *gin.Context) []string {
	raw := c.Query("symbols")
	if raw == "" {
		return tradeSymbols
	}
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			symbols = append(symbols, p)
		}
	}
	if len(symbols) == 0 {
		return tradeSymbols
	}
	return symbols
}

// getPrices 返回各币种当前价格；取价失败的币种归入 errors
func getPrices(c *gin.Context) {
	ctx := c.Request.Context()
	pm := metrics.GetPrometheusMetrics()

	prices := make(map[string]float64)
	failed := make(map[string]string)
	for _, symbol := range requestSymbols(c) {
		start := time.Now()
		price, err := marketSource.GetPrice(ctx, symbol)
		if err != nil {
			pm.RecordPriceRequest("ticker_price", "error", time.Since(start))
			failed[symbol] = T(c, "ErrPriceUnavailable", map[string]interface{}{"Symbol": symbol})
			continue
		}
		pm.RecordPriceRequest("ticker_price", "success", time.Since(start))
		pm.SetCurrentPrice(symbol, price)
		prices[symbol] = price
	}

	c.JSON(http.StatusOK, gin.H{
		"prices": prices,
		"errors": failed,
	})
}

// getKlines 返回K线序列
func getKlines(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": T(c, "ErrInvalidRequest")})
		return
	}

	interval := c.DefaultQuery("interval", defaultInterval)
	limit := 168
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "168")); err == nil && l > 0 {
		limit = l
		if limit > klineLimitMax {
			limit = klineLimitMax
		}
	}

	start := time.Now()
	klines, err := marketSource.GetKlines(c.Request.Context(), symbol, interval, limit)
	pm := metrics.GetPrometheusMetrics()
	if err != nil {
		pm.RecordPriceRequest("klines", "error", time.Since(start))
		c.JSON(http.StatusBadGateway, gin.H{"error": T(c, "ErrPriceUnavailable", map[string]interface{}{"Symbol": symbol})})
		return
	}
	pm.RecordPriceRequest("klines", "success", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": interval,
		"klines":   klines,
	})
}

// getMarketSummary 返回各币种最近 N 小时的行情摘要
func getMarketSummary(c *gin.Context) {
	hours := 24
	if h, err := strconv.Atoi(c.DefaultQuery("hours", "24")); err == nil && h > 0 && h <= 24*30 {
		hours = h
	}

	ctx := c.Request.Context()
	summaries := make([]*market.Summary, 0, len(tradeSymbols))
	for _, symbol := range requestSymbols(c) {
		summary, err := marketSource.GetSummary(ctx, symbol, hours)
		if err != nil {
			logger.Warn("⚠️ 获取 %s 行情摘要失败: %v", symbol, err)
			continue
		}
		metrics.GetPrometheusMetrics().SetCurrentPrice(symbol, summary.Price)
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

// maskAPIKey 遮蔽密钥，仅保留前4位
func maskAPIKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", 8)
}

// getAICredentials 返回可用的 AI 提供商与当前会话的凭证状态
func getAICredentials(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	current := gin.H{"configured": false}
	if creds := session.AICredentials(); creds != nil {
		current = gin.H{
			"configured": true,
			"provider":   creds.Provider,
			"api_key":    maskAPIKey(creds.APIKey),
			"base_url":   creds.BaseURL,
			"model":      creds.Model,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"providers": ai.Providers(),
		"current":   current,
	})
}

// aiCredentialsRequest AI 凭证配置请求
type aiCredentialsRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	Model    string `json:"model"`
}

// setAICredentials 保存当前会话的 AI 凭证
func setAICredentials(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	var req aiCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": T(c, "ErrInvalidRequest")})
		return
	}

	creds, err := ai.ResolveCredentials(req.Provider, req.APIKey, req.BaseURL, req.Model)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": T(c, "ErrUnknownProvider", map[string]interface{}{"Provider": req.Provider})})
		return
	}

	session.SetAICredentials(&creds)
	logger.Info("✅ 会话 AI 凭证已更新: provider=%s model=%s", creds.Provider, creds.Model)
	c.JSON(http.StatusOK, gin.H{"message": T(c, "AICredentialsSaved", map[string]interface{}{"Provider": creds.Provider})})
}

// sessionAICredentials 取出会话凭证，未配置时写入错误响应
func sessionAICredentials(c *gin.Context, session *Session) (*ai.Credentials, bool) {
	creds := session.AICredentials()
	if creds == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": T(c, "ErrAICredentialsMissing")})
		return nil, false
	}
	return creds, true
}

// positionsJSON 序列化会话持仓供提示词使用
func positionsJSON(ledger *portfolio.Ledger) string {
	type promptPosition struct {
		Symbol   string  `json:"symbol"`
		Quantity float64 `json:"quantity"`
		AvgPrice float64 `json:"avg_price"`
		Leverage float64 `json:"leverage"`
	}

	positions := ledger.Positions()
	out := make([]promptPosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, promptPosition{
			Symbol:   p.Symbol,
			Quantity: p.Quantity.InexactFloat64(),
			AvgPrice: p.AvgEntryPrice.InexactFloat64(),
			Leverage: p.Leverage.InexactFloat64(),
		})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// postAIRecommendation 请求 AI 交易建议
func postAIRecommendation(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	creds, ok := sessionAICredentials(c, session)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	summaries := make([]*market.Summary, 0, len(tradeSymbols))
	for _, symbol := range tradeSymbols {
		summary, err := marketSource.GetSummary(ctx, symbol, 24)
		if err != nil {
			logger.Warn("⚠️ 获取 %s 行情摘要失败: %v", symbol, err)
			continue
		}
		summaries = append(summaries, summary)
	}
	if len(summaries) == 0 {
		c.JSON(http.StatusBadGateway, gin.H{"error": T(c, "ErrRecommendationUnavailable", map[string]interface{}{"Reason": "no market data"})})
		return
	}

	cash := session.Ledger.Cash().StringFixed(2)
	prompt := ai.BuildTradePrompt(summaries, cash, positionsJSON(session.Ledger), maxLeverage)

	start := time.Now()
	reply, err := aiClient.Chat(ctx, *creds, ai.SystemPrompt, prompt)
	pm := metrics.GetPrometheusMetrics()
	if err != nil {
		pm.RecordAIRequest(creds.Provider, "error", time.Since(start))
		logger.Error("❌ AI 建议请求失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": T(c, "ErrRecommendationUnavailable", map[string]interface{}{"Reason": err.Error()})})
		return
	}
	pm.RecordAIRequest(creds.Provider, "success", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"recommendation": reply,
		"model":          creds.Model,
		"generated_at":   time.Now(),
	})
}

// getAIAnalysis 请求单币种的 AI 技术分析（基于最近7天1小时K线）
func getAIAnalysis(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	creds, ok := sessionAICredentials(c, session)
	if !ok {
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": T(c, "ErrInvalidRequest")})
		return
	}

	ctx := c.Request.Context()
	klines, err := marketSource.GetKlines(ctx, symbol, "1h", 168)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": T(c, "ErrPriceUnavailable", map[string]interface{}{"Symbol": symbol})})
		return
	}

	prompt := ai.BuildAnalysisPrompt(symbol, klines)

	start := time.Now()
	reply, err := aiClient.Chat(ctx, *creds, ai.SystemPrompt, prompt)
	pm := metrics.GetPrometheusMetrics()
	if err != nil {
		pm.RecordAIRequest(creds.Provider, "error", time.Since(start))
		c.JSON(http.StatusBadGateway, gin.H{"error": T(c, "ErrRecommendationUnavailable", map[string]interface{}{"Reason": err.Error()})})
		return
	}
	pm.RecordAIRequest(creds.Provider, "success", time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"symbol":       symbol,
		"analysis":     reply,
		"model":        creds.Model,
		"generated_at": time.Now(),
	})
}

// positionView 持仓视图（带实时估值）
type positionView struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	Leverage      float64 `json:"leverage"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PriceOK       bool    `json:"price_ok"`
}

// getPortfolio 返回当前会话的资产组合
func getPortfolio(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}
	ledger := session.Ledger
	ctx := c.Request.Context()

	// 每个持仓只取一次价格：视图与总价值基于同一份报价，
	// 取价失败的持仓估值按 0 计入并标记降级
	cash := ledger.Cash().InexactFloat64()
	totalValue := cash
	degraded := false

	positions := ledger.Positions()
	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		view := positionView{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity.InexactFloat64(),
			AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
			Leverage:      p.Leverage.InexactFloat64(),
		}
		if price, err := marketSource.GetPrice(ctx, p.Symbol); err == nil {
			view.CurrentPrice = price
			view.MarketValue = price * view.Quantity
			view.UnrealizedPnL = (price - view.AvgEntryPrice) * view.Quantity * view.Leverage
			view.PriceOK = true
			totalValue += view.MarketValue
		} else {
			logger.Warn("⚠️ 估值时获取 %s 价格失败: %v", p.Symbol, err)
			degraded = true
		}
		views = append(views, view)
	}

	inception := ledger.InceptionValue().InexactFloat64()
	returnPct := 0.0
	if inception > 0 {
		returnPct = (totalValue - inception) / inception * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"cash":            cash,
		"positions":       views,
		"total_value":     totalValue,
		"degraded":        degraded,
		"inception_value": inception,
		"inception_time":  ledger.InceptionTime(),
		"trading_hours":   ledger.TradingHours(),
		"return_percent":  returnPct,
	})
}

// tradeRequest 下单请求：quantity 与 amount_usd 二选一
type tradeRequest struct {
	Action    string  `json:"action" binding:"required"`
	Symbol    string  `json:"symbol" binding:"required"`
	Quantity  float64 `json:"quantity"`
	AmountUSD float64 `json:"amount_usd"`
	Leverage  float64 `json:"leverage"`
}

// tradeErrorResponse 将账本错误映射为本地化响应
func tradeErrorResponse(c *gin.Context, symbol string, err error) {
	var key string
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, portfolio.ErrInvalidAction):
		key = "ErrInvalidAction"
	case errors.Is(err, portfolio.ErrInvalidQuantity):
		key = "ErrInvalidQuantity"
	case errors.Is(err, portfolio.ErrInvalidLeverage):
		key = "ErrInvalidLeverage"
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		key = "ErrInsufficientFunds"
	case errors.Is(err, portfolio.ErrNoPosition):
		c.JSON(status, gin.H{"error": T(c, "ErrNoPosition", map[string]interface{}{"Symbol": symbol})})
		return
	case errors.Is(err, portfolio.ErrInsufficientPosition):
		key = "ErrInsufficientPosition"
	case errors.Is(err, market.ErrPriceUnavailable):
		key = "ErrPriceUnavailable"
		status = http.StatusBadGateway
		c.JSON(status, gin.H{"error": T(c, key, map[string]interface{}{"Symbol": symbol})})
		return
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": T(c, "ErrTradeFailed")})
		return
	}
	c.JSON(status, gin.H{"error": T(c, key)})
}

// postTrade 执行模拟交易
func postTrade(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": T(c, "ErrInvalidRequest")})
		return
	}

	action := portfolio.Action(strings.ToUpper(strings.TrimSpace(req.Action)))
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	leverage := req.Leverage
	if leverage == 0 {
		leverage = 1
	}
	if leverage > float64(maxLeverage) {
		c.JSON(http.StatusBadRequest, gin.H{"error": T(c, "ErrLeverageTooHigh", map[string]interface{}{"MaxLeverage": maxLeverage})})
		return
	}

	ctx := c.Request.Context()
	quantity := req.Quantity
	if quantity <= 0 && req.AmountUSD > 0 {
		// 以当前市价将美元金额换算为币数量
		price, err := marketSource.GetPrice(ctx, symbol)
		if err != nil {
			tradeErrorResponse(c, symbol, fmt.Errorf("%w: %v", market.ErrPriceUnavailable, err))
			return
		}
		quantity = req.AmountUSD / price
	}

	trade, err := session.Ledger.ExecuteTrade(ctx, action, symbol, quantity, leverage)
	pm := metrics.GetPrometheusMetrics()
	if err != nil {
		pm.RecordTrade(string(action), symbol, "failure")
		tradeErrorResponse(c, symbol, err)
		return
	}
	pm.RecordTrade(string(action), symbol, "success")
	pm.RecordTradeVolume(string(action), symbol, trade.Quantity.InexactFloat64())
	if trade.Action == portfolio.ActionSell {
		pm.RecordRealizedProfit(symbol, trade.RealizedProfit.InexactFloat64())
	}

	var message string
	if trade.Action == portfolio.ActionBuy {
		message = T(c, "TradeExecutedBuy", map[string]interface{}{
			"Quantity": trade.Quantity.StringFixed(6),
			"Symbol":   trade.Symbol,
			"Price":    trade.Price.StringFixed(2),
			"Leverage": trade.Leverage.StringFixed(0),
		})
	} else {
		message = T(c, "TradeExecutedSell", map[string]interface{}{
			"Quantity": trade.Quantity.StringFixed(6),
			"Symbol":   trade.Symbol,
			"Price":    trade.Price.StringFixed(2),
			"Profit":   trade.RealizedProfit.StringFixed(2),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"trade":   tradeView(trade),
	})
}

// tradeView 成交记录视图
func tradeView(t *portfolio.Trade) gin.H {
	return gin.H{
		"timestamp":       t.Timestamp,
		"action":          t.Action,
		"symbol":          t.Symbol,
		"quantity":        t.Quantity.InexactFloat64(),
		"price":           t.Price.InexactFloat64(),
		"leverage":        t.Leverage.InexactFloat64(),
		"cost":            t.Cost.InexactFloat64(),
		"proceeds":        t.Proceeds.InexactFloat64(),
		"realized_profit": t.RealizedProfit.InexactFloat64(),
	}
}

// getTrades 返回成交历史与统计
func getTrades(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	trades := session.Ledger.Trades()
	views := make([]gin.H, 0, len(trades))
	for i := range trades {
		views = append(views, tradeView(&trades[i]))
	}

	stats := session.Ledger.Stats()
	c.JSON(http.StatusOK, gin.H{
		"trades": views,
		"stats": gin.H{
			"total_trades":    stats.TotalTrades,
			"buy_trades":      stats.BuyTrades,
			"sell_trades":     stats.SellTrades,
			"avg_sell_profit": stats.AvgSellProfit.InexactFloat64(),
		},
	})
}

// postPortfolioReset 重置当前会话的账本
func postPortfolioReset(c *gin.Context) {
	session, ok := currentSession(c)
	if !ok {
		return
	}

	session.Ledger.Reset()
	logger.Info("ℹ️ 会话账本已重置")
	c.JSON(http.StatusOK, gin.H{"message": T(c, "PortfolioReset")})
}
