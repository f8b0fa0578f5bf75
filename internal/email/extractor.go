package email

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/harborview/backoffice/internal/normalize"
)

// LineItem is one product line parsed from an invoice email. Quantity
// and prices are post-correction values.
type LineItem struct {
	RawName    string  `json:"rawName"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
}

// InvoiceData is the full extraction result for one invoice email.
type InvoiceData struct {
	OrderNumber string     `json:"orderNumber,omitempty"`
	LineItems   []LineItem `json:"products"`
	TotalAmount float64    `json:"totalAmount"`
}

// Message is a fetched email in decoded form.
type Message struct {
	ID           string
	Subject      string
	From         string
	HTMLBody     string
	InternalDate time.Time
}

// Source fetches emails. The Gmail implementation lives in gmail.go;
// tests substitute an in-memory one.
type Source interface {
	GetMessage(ctx context.Context, id string) (Message, error)
	ListMessages(ctx context.Context, query string, maxResults int64) ([]string, error)
}

// ErrSupplierNotFound reports that the notification email did not carry
// a recognizable supplier block. Expected for non-purchase emails.
var ErrSupplierNotFound = errors.New("email: could not find supplier name")

// ErrNoInvoiceMatch reports that no candidate invoice email matched the
// supplier's subject pattern and amount.
var ErrNoInvoiceMatch = errors.New("email: no matching invoice email")

// The card issuer's purchase notification renders the merchant name in
// a brand-blue block followed by a paragraph.
var supplierBlockPattern = regexp.MustCompile(`(?is)<div[^>]*color:\s*#006fcf[^>]*>.*?<p[^>]*>\s*([^<]+?)\s*</p>`)

// Amounts in the notification carry a trailing footnote asterisk.
var notificationAmountPattern = regexp.MustCompile(`\$([\d,]+(?:\.\d{1,2})?)\*`)

var defaultQuantityPattern = Pattern{Pattern: `(.*?)\s+x\s+(\d+)\s*$`, Flags: "i", GroupIndex: 2}

var trailingQuantitySuffix = regexp.MustCompile(`(?i)\s+x\s+\d+\s*$`)

// ExtractSupplierName pulls the merchant name out of a purchase
// notification body.
func ExtractSupplierName(htmlBody string) (string, error) {
	m := supplierBlockPattern.FindStringSubmatch(htmlBody)
	if m == nil {
		return "", ErrSupplierNotFound
	}
	return strings.TrimSpace(m[1]), nil
}

// ExtractNotificationAmount pulls the purchase amount out of a
// notification body. The second return is false when no amount is
// present.
func ExtractNotificationAmount(htmlBody string) (float64, bool) {
	m := notificationAmountPattern.FindStringSubmatch(htmlBody)
	if m == nil {
		return 0, false
	}
	return normalize.ParseAmount(m[1]), true
}

// FindInvoice scans a supplier's invoice emails, newest first, for one
// whose subject matches subjectPattern and whose body contains the
// given amount with or without cents. skip selects among the matches
// so a caller can page to the next candidate; the second return
// reports whether the selected match is the last one available.
func FindInvoice(ctx context.Context, src Source, invoiceEmail, subjectPattern string, amount float64, skip int) (Message, bool, error) {
	subjectRe, err := regexp.Compile("(?i)" + subjectPattern)
	if err != nil {
		return Message{}, false, fmt.Errorf("email: invoice subject pattern: %w", err)
	}

	ids, err := src.ListMessages(ctx, "from:"+invoiceEmail, 25)
	if err != nil {
		return Message{}, false, err
	}

	var matches []Message
	for _, id := range ids {
		msg, err := src.GetMessage(ctx, id)
		if err != nil {
			return Message{}, false, err
		}
		if subjectRe.MatchString(msg.Subject) && bodyContainsAmount(msg.HTMLBody, amount) {
			matches = append(matches, msg)
		}
	}
	if skip < 0 {
		skip = 0
	}
	if skip >= len(matches) {
		return Message{}, false, ErrNoInvoiceMatch
	}
	return matches[skip], skip == len(matches)-1, nil
}

func bodyContainsAmount(body string, amount float64) bool {
	withCents := decimal.NewFromFloat(amount).StringFixed(2)
	if strings.Contains(body, withCents) {
		return true
	}
	withoutCents := strings.TrimSuffix(withCents, ".00")
	return withoutCents != withCents && strings.Contains(body, withoutCents)
}

// ParseInvoice extracts order number, line items, and total from one
// invoice email body using the supplier's rule and correction config.
func ParseInvoice(htmlBody string, rule Rule, correction Correction) (InvoiceData, error) {
	var data InvoiceData
	if rule.OrderNumber != nil {
		data.OrderNumber = strings.TrimSpace(rule.OrderNumber.Extract(htmlBody))
	}
	if rule.Products == nil {
		return data, nil
	}

	raw, err := extractLineItems(htmlBody, *rule.Products)
	if err != nil {
		return data, err
	}

	seen := make(map[string]bool)
	total := decimal.Zero
	for _, item := range raw {
		item = ApplyCorrection(item, correction)
		if item.UnitPrice <= 0 {
			continue
		}
		if strings.Contains(strings.ToLower(item.RawName), "click here") {
			continue
		}
		key := strings.ToLower(item.RawName)
		if seen[key] {
			continue
		}
		seen[key] = true
		data.LineItems = append(data.LineItems, item)
		total = total.Add(decimal.NewFromFloat(item.TotalPrice))
	}
	data.TotalAmount = roundMoney(total)
	return data, nil
}

func extractLineItems(htmlBody string, rule ProductsRule) ([]LineItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("email: parse html: %w", err)
	}

	qtyPattern := defaultQuantityPattern
	if rule.QuantityPattern != nil {
		qtyPattern = *rule.QuantityPattern
	}
	qtyRe, err := qtyPattern.Compile()
	if err != nil {
		return nil, err
	}

	var items []LineItem
	doc.Find(rule.ContainerSelector).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(rule.NameSelector).First().Text())
		if name == "" {
			return
		}

		quantity := 1
		if m := qtyRe.FindStringSubmatch(name); m != nil && qtyPattern.GroupIndex < len(m) {
			if n, err := strconv.Atoi(strings.TrimSpace(m[qtyPattern.GroupIndex])); err == nil && n > 0 {
				quantity = n
			}
		}
		name = strings.TrimSpace(trailingQuantitySuffix.ReplaceAllString(name, ""))

		price := itemPrice(sel)
		items = append(items, LineItem{
			RawName:    name,
			Quantity:   quantity,
			UnitPrice:  price,
			TotalPrice: price * float64(quantity),
		})
	})
	return items, nil
}

// The price sits in a nested span inside the container's last
// sub-block in the supplier templates seen so far.
func itemPrice(sel *goquery.Selection) float64 {
	block := sel.Children().Last()
	span := block.Find("span span").Last()
	if span.Length() == 0 {
		span = block.Find("span").Last()
	}
	return normalize.ParseAmount(strings.TrimSpace(span.Text()))
}

// ApplyCorrection adjusts one raw line item per the supplier's
// configured quirks, in fixed order: discount, quantity multiplier,
// price divisor, then total recompute and 2-decimal rounding.
func ApplyCorrection(item LineItem, c Correction) LineItem {
	unit := safeDecimal(item.UnitPrice)

	if c.DiscountPercent > 0 {
		factor := decimal.NewFromFloat(1).Sub(decimal.NewFromFloat(c.DiscountPercent).Div(decimal.NewFromInt(100)))
		unit = unit.Mul(factor)
	}
	if c.QuantityMultiplier > 0 {
		item.Quantity = int(math.Round(float64(item.Quantity) * c.QuantityMultiplier))
	}
	if c.PriceDivisor > 0 {
		unit = unit.Div(decimal.NewFromFloat(c.PriceDivisor))
	}

	total := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
	item.UnitPrice = roundMoney(unit)
	item.TotalPrice = roundMoney(total)
	return item
}

func safeDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func roundMoney(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
