package email

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Pattern is a serializable regex reference used inside extraction
// rules. GroupIndex selects the capture group carrying the value.
type Pattern struct {
	Pattern    string `json:"pattern" validate:"required"`
	Flags      string `json:"flags,omitempty"`
	GroupIndex int    `json:"groupIndex" validate:"gte=0"`
}

// Compile builds the regexp, translating the "i" flag into Go's inline
// form. Other flags are ignored.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	src := p.Pattern
	if strings.Contains(p.Flags, "i") {
		src = "(?i)" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("email: pattern %q: %w", p.Pattern, err)
	}
	return re, nil
}

// Extract runs the pattern against text and returns the selected group,
// or "" when the pattern does not match or the group is out of range.
func (p Pattern) Extract(text string) string {
	re, err := p.Compile()
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil || p.GroupIndex >= len(m) {
		return ""
	}
	return m[p.GroupIndex]
}

// ProductsRule describes where line items live in a supplier's invoice
// template. QuantityPattern runs against the item name text.
type ProductsRule struct {
	ContainerSelector string   `json:"containerSelector" validate:"required"`
	NameSelector      string   `json:"nameSelector" validate:"required"`
	QuantityPattern   *Pattern `json:"quantityPattern,omitempty"`
}

// Rule is a supplier's full extraction configuration, stored per
// supplier and supplied to the extractor at call time.
type Rule struct {
	OrderNumber *Pattern      `json:"orderNumber,omitempty"`
	Total       *Pattern      `json:"total,omitempty"`
	Subtotal    *Pattern      `json:"subtotal,omitempty"`
	Shipping    *Pattern      `json:"shipping,omitempty"`
	Tax         *Pattern      `json:"tax,omitempty"`
	Discount    *Pattern      `json:"discount,omitempty"`
	Products    *ProductsRule `json:"products,omitempty"`
}

// Correction holds the supplier-specific price/quantity adjustments
// applied to every parsed line item, in the order the fields are
// listed. Zero values mean "no adjustment" for that step.
type Correction struct {
	DiscountPercent    float64 `json:"discountPercent" validate:"gte=0,lte=100"`
	QuantityMultiplier float64 `json:"quantityMultiplier" validate:"gte=0"`
	PriceDivisor       float64 `json:"priceDivisor" validate:"gte=0"`
}

var validate = validator.New()

// ValidateRule checks a rule's shape and compiles every pattern it
// carries, so a bad supplier configuration fails at save time rather
// than mid-extraction.
func ValidateRule(r Rule) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("email: invalid rule: %w", err)
	}
	for name, p := range map[string]*Pattern{
		"orderNumber": r.OrderNumber,
		"total":       r.Total,
		"subtotal":    r.Subtotal,
		"shipping":    r.Shipping,
		"tax":         r.Tax,
		"discount":    r.Discount,
	} {
		if p == nil {
			continue
		}
		if _, err := p.Compile(); err != nil {
			return fmt.Errorf("email: rule field %s: %w", name, err)
		}
	}
	if r.Products != nil && r.Products.QuantityPattern != nil {
		if _, err := r.Products.QuantityPattern.Compile(); err != nil {
			return fmt.Errorf("email: rule field products.quantityPattern: %w", err)
		}
	}
	return nil
}
