package vinted

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type catalogResponse struct {
	Items []apiItem `json:"items"`
}

type apiItem struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	BrandTitle string   `json:"brand_title"`
	Price      apiPrice `json:"price"`
	Currency   string   `json:"currency"`
	URL        string   `json:"url"`
	Photo      *struct {
		URL            string `json:"url"`
		HighResolution *struct {
			Timestamp int64 `json:"timestamp"`
		} `json:"high_resolution"`
	} `json:"photo"`
	User struct {
		ID             int64  `json:"id"`
		CountryISOCode string `json:"country_iso_code"`
	} `json:"user"`
}

func (it apiItem) photoURL() string {
	if it.Photo == nil {
		return ""
	}
	return it.Photo.URL
}

func (it apiItem) timestamp() int64 {
	if it.Photo == nil || it.Photo.HighResolution == nil {
		return 0
	}
	return it.Photo.HighResolution.Timestamp
}

// apiPrice accepts the three shapes the catalog has served over time: a bare
// string, a bare number and an {amount, currency_code} object.
type apiPrice struct {
	Amount   string
	Currency string
}

func (p *apiPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		var obj struct {
			Amount       json.RawMessage `json:"amount"`
			CurrencyCode string          `json:"currency_code"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("price object: %w", err)
		}
		amount, err := scalarString(obj.Amount)
		if err != nil {
			return fmt.Errorf("price amount: %w", err)
		}
		p.Amount = amount
		p.Currency = obj.CurrencyCode
		return nil
	default:
		amount, err := scalarString(data)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		p.Amount = amount
		return nil
	}
}

func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

type userResponse struct {
	User struct {
		CountryISOCode string `json:"country_iso_code"`
	} `json:"user"`
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
