package services

import (
	"fmt"
	"html"
	"strings"
	"text/template"

	"vinted-monitor/models"
	"vinted-monitor/valuation"
)

// DefaultMessageTemplate is the chat message layout. It is rendered as
// Telegram HTML; every field is escaped before it reaches the template.
const DefaultMessageTemplate = `🆕 Title : {{.Title}}
💶 Price : {{.Price}}
🛍️ Brand : {{.Brand}}
📊 Sold comps : {{.MarketComps}}{{.ActiveListings}}
🔎 Match : {{.FuzzyMatch}}
💰 Profit : {{.ProfitEstimate}}{{.Confidence}}{{.Reference}}
{{if .Image}}<a href="{{.Image}}">&#8205;</a>{{end}}`

// MessageData holds the fields available to a message template.
type MessageData struct {
	Title          string
	Price          string
	Brand          string
	MarketComps    string
	ActiveListings string
	FuzzyMatch     string
	ProfitEstimate string
	Confidence     string
	Reference      string
	Image          string
}

// ParseMessageTemplate compiles a message layout; an empty text selects
// DefaultMessageTemplate.
func ParseMessageTemplate(text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultMessageTemplate
	}
	tmpl, err := template.New("message").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("services: parse message template: %w", err)
	}
	return tmpl, nil
}

// NewMessageData collects the rendered lines for one item.
func NewMessageData(item *models.Item, v valuation.ValuationResult) MessageData {
	brand := item.Brand
	if brand == "" {
		brand = "N/A"
	}
	price := item.Price

	return MessageData{
		Title:          html.EscapeString(item.Title),
		Price:          html.EscapeString(valuation.FormatMoney(&price, item.Currency)),
		Brand:          html.EscapeString(brand),
		MarketComps:    html.EscapeString(valuation.FormatMarketSummary(v.SoldSummary)),
		ActiveListings: html.EscapeString(valuation.FormatActiveSummary(v.ActiveSummary)),
		FuzzyMatch:     html.EscapeString(valuation.FormatFuzzyLine(v.Normalization)),
		ProfitEstimate: html.EscapeString(valuation.FormatProfitEstimate(v)),
		Confidence:     html.EscapeString(valuation.FormatConfidenceLine(v)),
		Reference:      html.EscapeString(valuation.BuildReferenceLine(v)),
		Image:          html.EscapeString(item.PhotoURL),
	}
}

// RenderMessage fills tmpl (DefaultMessageTemplate when nil) for one item.
func RenderMessage(item *models.Item, v valuation.ValuationResult, tmpl *template.Template) (string, error) {
	if tmpl == nil {
		var err error
		if tmpl, err = ParseMessageTemplate(""); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, NewMessageData(item, v)); err != nil {
		return "", fmt.Errorf("services: render message: %w", err)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
