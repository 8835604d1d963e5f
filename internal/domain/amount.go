package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TaxAmount is a monetary total with the optional tax breakdown required on
// terminal receipts. The standard-rate and reduced-rate base/tax fields come
// in pairs: both present or both absent. A present zero is distinct from an
// absent field.
type TaxAmount struct {
	Total        decimal.Decimal
	StandardBase *decimal.Decimal
	StandardTax  *decimal.Decimal
	ReducedBase  *decimal.Decimal
	ReducedTax   *decimal.Decimal
	CityTax      *decimal.Decimal
	Tip          *decimal.Decimal
	Cashback     *decimal.Decimal
}

// Validate checks the pairing rule and amount signs. It is run once on the
// request total; allocated parts inherit presence from it.
func (a TaxAmount) Validate() error {
	if !a.Total.IsPositive() {
		return fmt.Errorf("%w: total must be positive, got %s", ErrInvalidAmount, a.Total.StringFixed(2))
	}

	if (a.StandardBase == nil) != (a.StandardTax == nil) {
		return fmt.Errorf("%w: standard_base and standard_tax must both be present or both absent", ErrUnpairedTaxField)
	}
	if (a.ReducedBase == nil) != (a.ReducedTax == nil) {
		return fmt.Errorf("%w: reduced_base and reduced_tax must both be present or both absent", ErrUnpairedTaxField)
	}

	for _, f := range a.optionalFields() {
		if f.value != nil && f.value.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidAmount, f.name, f.value.StringFixed(2))
		}
	}

	return nil
}

// HasStandardRate reports whether the standard-rate pair is present.
func (a TaxAmount) HasStandardRate() bool {
	return a.StandardBase != nil && a.StandardTax != nil
}

// HasReducedRate reports whether the reduced-rate pair is present.
func (a TaxAmount) HasReducedRate() bool {
	return a.ReducedBase != nil && a.ReducedTax != nil
}

type namedAmount struct {
	name  string
	value *decimal.Decimal
}

func (a TaxAmount) optionalFields() []namedAmount {
	return []namedAmount{
		{"standard_base", a.StandardBase},
		{"standard_tax", a.StandardTax},
		{"reduced_base", a.ReducedBase},
		{"reduced_tax", a.ReducedTax},
		{"city_tax", a.CityTax},
		{"tip", a.Tip},
		{"cashback", a.Cashback},
	}
}

// Allocate returns the share of total for the given percentage. Every present
// field is scaled by percentage/100 and rounded to cents independently, so the
// parts of a split may drift from the total by at most one cent per part.
// Absent fields stay absent.
func Allocate(total TaxAmount, percentage decimal.Decimal) TaxAmount {
	share := func(v decimal.Decimal) decimal.Decimal {
		return v.Mul(percentage).Div(hundred).Round(2)
	}
	optional := func(v *decimal.Decimal) *decimal.Decimal {
		if v == nil {
			return nil
		}
		s := share(*v)
		return &s
	}

	return TaxAmount{
		Total:        share(total.Total),
		StandardBase: optional(total.StandardBase),
		StandardTax:  optional(total.StandardTax),
		ReducedBase:  optional(total.ReducedBase),
		ReducedTax:   optional(total.ReducedTax),
		CityTax:      optional(total.CityTax),
		Tip:          optional(total.Tip),
		Cashback:     optional(total.Cashback),
	}
}

// Clone returns a copy that shares no pointers with a.
func (a TaxAmount) Clone() TaxAmount {
	cp := func(v *decimal.Decimal) *decimal.Decimal {
		if v == nil {
			return nil
		}
		c := *v
		return &c
	}
	return TaxAmount{
		Total:        a.Total,
		StandardBase: cp(a.StandardBase),
		StandardTax:  cp(a.StandardTax),
		ReducedBase:  cp(a.ReducedBase),
		ReducedTax:   cp(a.ReducedTax),
		CityTax:      cp(a.CityTax),
		Tip:          cp(a.Tip),
		Cashback:     cp(a.Cashback),
	}
}

// taxAmountJSON is the wire form: amounts as two-decimal strings.
type taxAmountJSON struct {
	Total        string  `json:"total"`
	StandardBase *string `json:"standard_base,omitempty"`
	StandardTax  *string `json:"standard_tax,omitempty"`
	ReducedBase  *string `json:"reduced_base,omitempty"`
	ReducedTax   *string `json:"reduced_tax,omitempty"`
	CityTax      *string `json:"city_tax,omitempty"`
	Tip          *string `json:"tip,omitempty"`
	Cashback     *string `json:"cashback,omitempty"`
}

// taxAmountInput accepts amounts either as JSON numbers or strings.
type taxAmountInput struct {
	Total        decimal.Decimal  `json:"total"`
	StandardBase *decimal.Decimal `json:"standard_base"`
	StandardTax  *decimal.Decimal `json:"standard_tax"`
	ReducedBase  *decimal.Decimal `json:"reduced_base"`
	ReducedTax   *decimal.Decimal `json:"reduced_tax"`
	CityTax      *decimal.Decimal `json:"city_tax"`
	Tip          *decimal.Decimal `json:"tip"`
	Cashback     *decimal.Decimal `json:"cashback"`
}

// FormatAmount renders v with exactly two decimals, or nil when v is absent.
func FormatAmount(v *decimal.Decimal) *string {
	if v == nil {
		return nil
	}
	s := v.StringFixed(2)
	return &s
}

// MarshalJSON implements json.Marshaler.
func (a TaxAmount) MarshalJSON() ([]byte, error) {
	return json.Marshal(taxAmountJSON{
		Total:        a.Total.StringFixed(2),
		StandardBase: FormatAmount(a.StandardBase),
		StandardTax:  FormatAmount(a.StandardTax),
		ReducedBase:  FormatAmount(a.ReducedBase),
		ReducedTax:   FormatAmount(a.ReducedTax),
		CityTax:      FormatAmount(a.CityTax),
		Tip:          FormatAmount(a.Tip),
		Cashback:     FormatAmount(a.Cashback),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *TaxAmount) UnmarshalJSON(data []byte) error {
	var in taxAmountInput
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*a = TaxAmount(in)
	return nil
}
