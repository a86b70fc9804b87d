// Package binance implements the exchange client against the Binance spot API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"crypto-trade-desk/internal/domain"
	"crypto-trade-desk/internal/exchange"
	"crypto-trade-desk/internal/observability"
)

const (
	mainnetBaseURL = "https://api.binance.com"
	testnetBaseURL = "https://testnet.binance.vision"

	recvWindowMs = 5000
)

// Config holds Binance API credentials and connection settings.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool

	// RequestsPerSecond caps outgoing REST calls. Binance allows 1200
	// request weight per minute; the default of 10 rps stays well under.
	RequestsPerSecond float64
}

// Client talks to the Binance spot REST API.
type Client struct {
	http    *resty.Client
	secret  string
	limiter *rate.Limiter
	ticker  *tickerStream // optional websocket price cache
}

// New creates a Binance client.
func New(cfg Config) *Client {
	baseURL := mainnetBaseURL
	if cfg.Testnet {
		baseURL = testnetBaseURL
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = 10
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("X-MBX-APIKEY", cfg.APIKey)

	return &Client{
		http:    http,
		secret:  cfg.APISecret,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// Compile-time interface check.
var _ exchange.Client = (*Client)(nil)

// binanceSymbol strips the slash: "BTC/USDT" -> "BTCUSDT".
func binanceSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// sign appends timestamp and HMAC-SHA256 signature to query values.
func (c *Client) sign(values url.Values) url.Values {
	values.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	values.Set("recvWindow", strconv.Itoa(recvWindowMs))

	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(values.Encode()))
	values.Set("signature", hex.EncodeToString(mac.Sum(nil)))
	return values
}

// apiError is the Binance error envelope.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func checkResponse(resp *resty.Response, apiErr *apiError) error {
	if resp.IsSuccess() {
		return nil
	}
	if apiErr != nil && apiErr.Msg != "" {
		return fmt.Errorf("binance api error %d: %s", apiErr.Code, apiErr.Msg)
	}
	return fmt.Errorf("binance http %d: %s", resp.StatusCode(), resp.String())
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// Balance returns the account balance for an asset.
func (c *Client) Balance(ctx context.Context, asset string) (*exchange.Balance, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		result accountResponse
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(c.sign(url.Values{})).
		SetResult(&result).
		SetError(&apiErr).
		Get("/api/v3/account")
	observability.RecordExchangeCall("account", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return nil, err
	}

	for _, b := range result.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, fmt.Errorf("parse free balance: %w", err)
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return nil, fmt.Errorf("parse locked balance: %w", err)
		}
		return &exchange.Balance{
			Asset:  asset,
			Free:   free,
			Locked: locked,
			Total:  free.Add(locked),
		}, nil
	}

	return nil, fmt.Errorf("asset %s not found in account", asset)
}

type priceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// LastPrice returns the latest traded price for a symbol. When the websocket
// ticker stream is running its cached price is preferred over a REST call.
func (c *Client) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c.ticker != nil {
		if price, ok := c.ticker.Price(symbol); ok {
			return price, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	start := time.Now()
	var (
		result priceResponse
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", binanceSymbol(symbol)).
		SetResult(&result).
		SetError(&apiErr).
		Get("/api/v3/ticker/price")
	observability.RecordExchangeCall("ticker_price", time.Since(start).Seconds())
	if err != nil {
		return decimal.Zero, fmt.Errorf("get ticker price: %w", err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse ticker price: %w", err)
	}
	return price, nil
}

type orderResponse struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

type ocoResponse struct {
	OrderListID int64 `json:"orderListId"`
	Orders      []struct {
		OrderID int64 `json:"orderId"`
	} `json:"orders"`
}

// PlaceBracketOrder submits a market entry followed by an OCO bracket of
// stop loss and take profit. A failure after the entry filled is still
// returned as an error; the caller owns the recovery policy.
func (c *Client) PlaceBracketOrder(ctx context.Context, order exchange.BracketOrder) (*exchange.OrderRefs, error) {
	entrySide := "BUY"
	exitSide := "SELL"
	if order.Side == domain.SignalTypeSell {
		entrySide, exitSide = "SELL", "BUY"
	}

	symbol := binanceSymbol(order.Symbol)

	// Entry at market.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	entryParams := url.Values{}
	entryParams.Set("symbol", symbol)
	entryParams.Set("side", entrySide)
	entryParams.Set("type", "MARKET")
	entryParams.Set("quantity", order.Quantity.String())

	start := time.Now()
	var (
		entry  orderResponse
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(c.sign(entryParams)).
		SetResult(&entry).
		SetError(&apiErr).
		Post("/api/v3/order")
	observability.RecordExchangeCall("order", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("place entry order: %w", err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return nil, fmt.Errorf("place entry order: %w", err)
	}

	// Protective OCO: stop loss + take profit.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ocoParams := url.Values{}
	ocoParams.Set("symbol", symbol)
	ocoParams.Set("side", exitSide)
	ocoParams.Set("quantity", order.Quantity.String())
	ocoParams.Set("price", order.TakeProfitPrice.String())
	ocoParams.Set("stopPrice", order.StopLossPrice.String())
	ocoParams.Set("stopLimitPrice", order.StopLossPrice.String())
	ocoParams.Set("stopLimitTimeInForce", "GTC")

	start = time.Now()
	var (
		oco       ocoResponse
		ocoAPIErr apiError
	)
	resp, err = c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(c.sign(ocoParams)).
		SetResult(&oco).
		SetError(&ocoAPIErr).
		Post("/api/v3/order/oco")
	observability.RecordExchangeCall("order_oco", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("place protective oco: %w", err)
	}
	if err := checkResponse(resp, &ocoAPIErr); err != nil {
		return nil, fmt.Errorf("place protective oco: %w", err)
	}

	refs := &exchange.OrderRefs{
		EntryOrderID: strconv.FormatInt(entry.OrderID, 10),
	}
	if len(oco.Orders) > 0 {
		refs.StopOrderID = strconv.FormatInt(oco.Orders[0].OrderID, 10)
	}
	if len(oco.Orders) > 1 {
		refs.TakeProfitOrderID = strconv.FormatInt(oco.Orders[1].OrderID, 10)
	}
	return refs, nil
}

// CloseMarket exits a position at market. Open protective orders for the
// symbol are cancelled first so the exit quantity is not double-reserved.
func (c *Client) CloseMarket(ctx context.Context, symbol string, side domain.SignalType, quantity decimal.Decimal) error {
	bSymbol := binanceSymbol(symbol)

	// Cancel outstanding protective orders. A "no orders" rejection is fine.
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	cancelParams := url.Values{}
	cancelParams.Set("symbol", bSymbol)

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(c.sign(cancelParams)).
		Delete("/api/v3/openOrders")
	observability.RecordExchangeCall("cancel_open_orders", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("cancel open orders: %w", err)
	}
	_ = resp

	exitSide := "SELL"
	if side == domain.SignalTypeSell {
		exitSide = "BUY"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	params := url.Values{}
	params.Set("symbol", bSymbol)
	params.Set("side", exitSide)
	params.Set("type", "MARKET")
	params.Set("quantity", quantity.String())

	start = time.Now()
	var apiErr apiError
	resp, err = c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(c.sign(params)).
		SetError(&apiErr).
		Post("/api/v3/order")
	observability.RecordExchangeCall("order", time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	return nil
}

// Klines fetches recent candles, oldest first.
func (c *Client) Klines(ctx context.Context, symbol, timeframe string, limit int) ([]*domain.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		raw    [][]any
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":   binanceSymbol(symbol),
			"interval": timeframe,
			"limit":    strconv.Itoa(limit),
		}).
		SetResult(&raw).
		SetError(&apiErr).
		Get("/api/v3/klines")
	observability.RecordExchangeCall("klines", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("get klines: %w", err)
	}
	if err := checkResponse(resp, &apiErr); err != nil {
		return nil, err
	}

	candles := make([]*domain.Candle, 0, len(raw))
	for _, k := range raw {
		candle, err := parseKline(symbol, timeframe, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseKline decodes one Binance kline row:
// [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(symbol, timeframe string, k []any) (*domain.Candle, error) {
	if len(k) < 6 {
		return nil, fmt.Errorf("malformed kline row: %d fields", len(k))
	}

	openTime, ok := k[0].(float64)
	if !ok {
		return nil, fmt.Errorf("malformed kline open time: %v", k[0])
	}

	fields := make([]decimal.Decimal, 5)
	for i := 1; i <= 5; i++ {
		s, ok := k[i].(string)
		if !ok {
			return nil, fmt.Errorf("malformed kline field %d: %v", i, k[i])
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("parse kline field %d: %w", i, err)
		}
		fields[i-1] = d
	}

	return &domain.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}
