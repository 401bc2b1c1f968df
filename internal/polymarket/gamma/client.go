// Package gamma consumes Polymarket gamma endpoints.
package gamma

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/daszybak/market_signals/pkg/httpclient"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// StringList handles the double-encoded JSON arrays the gamma API returns
// for outcomes, prices, and token ids.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), (*[]string)(l))
}

type Market struct {
	ID            string     `json:"id"`
	ConditionID   string     `json:"conditionId"`
	Question      string     `json:"question"`
	Slug          string     `json:"slug"`
	Outcomes      StringList `json:"outcomes"`
	OutcomePrices StringList `json:"outcomePrices"`
	ClobTokenIDs  StringList `json:"clobTokenIds"`
	Liquidity     string     `json:"liquidity"`
	Volume24h     string     `json:"volume24hr"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
}

type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Slug     string    `json:"slug"`
	Category string    `json:"category"`
	Markets  []*Market `json:"markets"`
}

func (c *Client) GetMarkets() ([]*Market, error) {
	return httpclient.GetResource[[]*Market](c.httpClient, c.baseURL, "/markets", []int{200})
}

func (c *Client) GetEventBySlug(slug string) (*Event, error) {
	return httpclient.GetResource[*Event](c.httpClient, c.baseURL, "/events/slug/"+slug, []int{200})
}
