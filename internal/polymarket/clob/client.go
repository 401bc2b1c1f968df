// Package clob calls Polymarket CLOB REST endpoints.
package clob

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/daszybak/market_signals/internal/price"
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

type MarketToken struct {
	Outcome string      `json:"outcome"`
	Price   price.Price `json:"price"`
	TokenID string      `json:"token_id"`
	Winner  bool        `json:"winner"`
}

type Market struct {
	ConditionID     string        `json:"condition_id"`
	Description     string        `json:"description"`
	Question        string        `json:"question"`
	EndDateISO      string        `json:"end_date_iso"`
	Active          bool          `json:"active"`
	Closed          bool          `json:"closed"`
	AcceptingOrders bool          `json:"accepting_orders"`
	MinimumTickSize price.Price   `json:"minimum_tick_size"`
	Tokens          []MarketToken `json:"tokens"`
}

type MarketPage struct {
	Limit      int       `json:"limit"`
	Count      int       `json:"count"`
	Data       []*Market `json:"data"`
	NextCursor *string   `json:"next_cursor,omitempty"`
}

func (c *Client) GetMarketByConditionID(conditionID string) (*Market, error) {
	market, err := httpclient.GetResource[*Market](c.httpClient, c.baseURL, "/markets/"+conditionID, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by condition ID %s: %w", conditionID, err)
	}
	return market, nil
}

func (c *Client) GetMarkets(nextCursor *string) (*MarketPage, error) {
	endpoint := "/markets"
	if nextCursor != nil {
		endpoint += "?next_cursor=" + *nextCursor
	}
	markets, err := httpclient.GetResource[*MarketPage](c.httpClient, c.baseURL, endpoint, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets page: %w", err)
	}
	return markets, nil
}

// GetAllMarkets pages through /markets until the terminal cursor ("-1",
// base64-encoded) is reached.
func (c *Client) GetAllMarkets() ([]*Market, error) {
	markets := []*Market{}
	firstPage, err := c.GetMarkets(nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't get first page of markets: %w", err)
	}
	markets = append(markets, firstPage.Data...)
	nextCursor := firstPage.NextCursor
	if nextCursor == nil {
		return markets, nil
	}
	for {
		page, err := c.GetMarkets(nextCursor)
		if err != nil {
			return nil, fmt.Errorf("couldn't get markets for next cursor %s: %w", *nextCursor, err)
		}
		markets = append(markets, page.Data...)
		if page.NextCursor == nil {
			break
		}
		nextCursor = page.NextCursor
		decodedNextCursor, _ := base64.StdEncoding.DecodeString(*page.NextCursor)
		if string(decodedNextCursor) == "-1" {
			break
		}
	}
	return markets, nil
}
