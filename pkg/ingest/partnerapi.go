package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// PartnerAPI pages through the partner transaction endpoint and yields the
// same row contract the file source produces. The API only reports
// subscription sales, so every row carries the recurring charge label; the
// shop field carries the transaction id (the API does not expose the shop).
type PartnerAPI struct {
	BaseURL     string
	AccessToken string
	Client      *http.Client

	// PageSize caps nodes per request; the endpoint default applies when 0.
	PageSize int
}

type transactionPage struct {
	Transactions []struct {
		ID        string `json:"id"`
		CreatedAt string `json:"createdAt"`
		NetAmount struct {
			Amount string `json:"amount"`
		} `json:"netAmount"`
	} `json:"transactions"`
	PageInfo struct {
		HasNextPage bool   `json:"hasNextPage"`
		EndCursor   string `json:"endCursor"`
	} `json:"pageInfo"`
}

func (s *PartnerAPI) Each(ctx context.Context, fn func(Row) error) error {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	cursor := ""
	for {
		page, err := s.fetchPage(ctx, client, cursor)
		if err != nil {
			return err
		}
		for _, node := range page.Transactions {
			row := Row{
				FieldShop:       node.ID,
				FieldChargeTime: node.CreatedAt,
				FieldChargeType: "RecurringApplicationFee",
				FieldRevenue:    node.NetAmount.Amount,
			}
			if err := fn(row); err != nil {
				return err
			}
		}
		if !page.PageInfo.HasNextPage {
			return nil
		}
		cursor = page.PageInfo.EndCursor
	}
}

func (s *PartnerAPI) fetchPage(ctx context.Context, client *http.Client, cursor string) (*transactionPage, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("after", cursor)
	}
	if s.PageSize > 0 {
		q.Set("first", fmt.Sprintf("%d", s.PageSize))
	}
	endpoint := s.BaseURL + "/transactions"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build transactions request")
	}
	req.Header.Set("X-Partner-Access-Token", s.AccessToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch transactions")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("transactions endpoint returned %s", resp.Status)
	}

	var page transactionPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "decode transactions page")
	}
	return &page, nil
}
