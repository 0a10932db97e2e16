package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"paperarena/config"
)

// newTestSource 创建指向本地假行情服务的 BinanceSource
func newTestSource(t *testing.T, handler http.Handler) *BinanceSource {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := config.DefaultConfig()
	cfg.Market.BaseURL = ts.URL
	return NewBinanceSource(cfg)
}

func TestPairSymbol(t *testing.T) {
	cfg := config.DefaultConfig()
	src := NewBinanceSource(cfg)

	cases := map[string]string{
		"BTC":     "BTCUSDT",
		"btc":     "BTCUSDT",
		" eth ":   "ETHUSDT",
		"BTCUSDT": "BTCUSDT",
	}
	for in, want := range cases {
		if got := src.PairSymbol(in); got != want {
			t.Errorf("PairSymbol(%q) = %q, 期望 %q", in, got, want)
		}
	}
}

func TestGetPrice(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"65000.50"}`)
	})
	src := newTestSource(t, mux)

	price, err := src.GetPrice(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("获取价格失败: %v", err)
	}
	if price != 65000.50 {
		t.Errorf("期望价格 65000.50, 得到 %.2f", price)
	}

	// 未知币种应返回 ErrPriceUnavailable
	_, err = src.GetPrice(context.Background(), "NOPE")
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("期望 ErrPriceUnavailable, 得到 %v", err)
	}
}

func TestGetPriceServerDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	src := newTestSource(t, mux)

	if _, err := src.GetPrice(context.Background(), "BTC"); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("服务端错误应映射为 ErrPriceUnavailable, 得到 %v", err)
	}
}

func TestGetKlines(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			[1700000000000,"100.0","110.0","95.0","105.0","1000.0",1700003599999,"105000.0",500,"600.0","63000.0","0"],
			[1700003600000,"105.0","120.0","104.0","118.0","1200.0",1700007199999,"141600.0",600,"700.0","82600.0","0"]
		]`)
	})
	src := newTestSource(t, mux)

	klines, err := src.GetKlines(context.Background(), "BTC", "1h", 2)
	if err != nil {
		t.Fatalf("获取K线失败: %v", err)
	}
	if len(klines) != 2 {
		t.Fatalf("期望 2 条K线, 得到 %d", len(klines))
	}
	if klines[0].Close != 105.0 || klines[1].Close != 118.0 {
		t.Errorf("收盘价解析错误: %+v", klines)
	}
	if !klines[1].OpenTime.After(klines[0].OpenTime) {
		t.Error("K线开盘时间应严格递增")
	}
	if klines[0].High != 110.0 || klines[0].Low != 95.0 || klines[0].Volume != 1000.0 {
		t.Errorf("K线字段解析错误: %+v", klines[0])
	}
}

func TestGetKlinesOutOfOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		// 第二条时间早于第一条
		fmt.Fprint(w, `[
			[1700003600000,"105.0","120.0","104.0","118.0","1200.0",1700007199999,"141600.0",600,"700.0","82600.0","0"],
			[1700000000000,"100.0","110.0","95.0","105.0","1000.0",1700003599999,"105000.0",500,"600.0","63000.0","0"]
		]`)
	})
	src := newTestSource(t, mux)

	if _, err := src.GetKlines(context.Background(), "BTC", "1h", 2); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("乱序K线应报错, 得到 %v", err)
	}
}

func TestGetSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"ETHUSDT","price":"120.0"}`)
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			[1700000000000,"100.0","110.0","95.0","100.0","1000.0",1700003599999,"105000.0",500,"600.0","63000.0","0"],
			[1700003600000,"105.0","125.0","90.0","118.0","1200.0",1700007199999,"141600.0",600,"700.0","82600.0","0"]
		]`)
	})
	src := newTestSource(t, mux)

	s, err := src.GetSummary(context.Background(), "eth", 24)
	if err != nil {
		t.Fatalf("获取摘要失败: %v", err)
	}
	if s.Symbol != "ETH" {
		t.Errorf("期望币种 ETH, 得到 %s", s.Symbol)
	}
	if s.Price != 120.0 {
		t.Errorf("期望价格 120.0, 得到 %.2f", s.Price)
	}
	// 涨幅以第一条收盘价为基准: (120-100)/100*100 = 20%
	if s.ChangePercent != 20.0 {
		t.Errorf("期望涨幅 20%%, 得到 %.2f%%", s.ChangePercent)
	}
	if s.High != 125.0 || s.Low != 90.0 {
		t.Errorf("高低价错误: high=%.2f low=%.2f", s.High, s.Low)
	}
	if s.Volume != 2200.0 {
		t.Errorf("期望成交量 2200, 得到 %.2f", s.Volume)
	}
}
