package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable indica falha transitória no feed de preço (rede, HTTP 5xx,
// payload inválido). A política de retry é do resolver, não do cliente.
var ErrUnavailable = errors.New("price feed unavailable")

// Client consulta o preço atual num endpoint compatível com o ticker da
// Binance: GET {base}/api/v3/ticker/price?symbol=BTCUSDT
type Client struct {
	BaseURL string
	Symbol  string
	HTTP    *http.Client
}

func New(baseURL, symbol string) *Client {
	return &Client{
		BaseURL: baseURL,
		Symbol:  symbol,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Current retorna o preço corrente do símbolo configurado.
func (c *Client) Current(ctx context.Context) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.BaseURL, url.QueryEscape(c.Symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: http %d", ErrUnavailable, res.StatusCode)
	}

	var out tickerResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad price %q", ErrUnavailable, out.Price)
	}

	return price, nil
}
