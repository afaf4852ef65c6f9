package binlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://lookup.binlist.net"

// Client queries a remote BIN lookup service.
type Client struct {
	Base string
	HTTP *http.Client
}

func NewClient(base string, hc *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

type remoteRecord struct {
	Scheme string `json:"scheme"`
	Type   string `json:"type"`
	Brand  string `json:"brand"`
	Bank   *struct {
		Name  string `json:"name"`
		URL   string `json:"url"`
		Phone string `json:"phone"`
	} `json:"bank"`
	Country *struct {
		Name  string `json:"name"`
		Emoji string `json:"emoji"`
	} `json:"country"`
}

// Fetch issues one GET {base}/{bin}. Missing response fields are replaced by
// the unknown sentinels.
func (c *Client) Fetch(ctx context.Context, bin string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/"+bin, nil)
	if err != nil {
		return Record{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept-Version", "3")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Record{}, fmt.Errorf("bin lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Record{}, fmt.Errorf("bin lookup status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var payload remoteRecord
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Record{}, fmt.Errorf("decode bin lookup: %w", err)
	}
	return payload.record(), nil
}

func (p remoteRecord) record() Record {
	r := Unknown()
	r.Source = SourceRemote
	if p.Bank != nil {
		r.Bank = orDefault(p.Bank.Name, UnknownBank)
		r.BankURL = p.Bank.URL
		r.BankPhone = p.Bank.Phone
	}
	if p.Country != nil {
		r.Country = orDefault(p.Country.Name, UnknownCountry)
		r.CountryEmoji = p.Country.Emoji
	}
	r.Scheme = orDefault(strings.ToUpper(p.Scheme), UnknownScheme)
	r.CardType = orDefault(strings.ToUpper(p.Type), UnknownType)
	r.Level = orDefault(p.Brand, UnknownLevel)
	return r
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
