package service

import (
	"fmt"
	"strconv"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/pkg/apperror"

	"github.com/shopspring/decimal"
)

// quoteDecimals is the precision totals are quoted in.
const quoteDecimals = 2

// PricingServiceImpl resolves prices from a static table. It never touches
// bonus credits.
type PricingServiceImpl struct {
	table domain.PricingTable
}

// NewPricingService creates a new PricingServiceImpl.
func NewPricingService(table domain.PricingTable) *PricingServiceImpl {
	return &PricingServiceImpl{table: table}
}

// BuildPricingTable parses configured decimal strings into a table.
func BuildPricingTable(basePrice string, suffixPrices map[string]string, bonusSuffixLength int) (domain.PricingTable, error) {
	base, err := decimal.NewFromString(basePrice)
	if err != nil {
		return domain.PricingTable{}, fmt.Errorf("base price %q: %w", basePrice, err)
	}
	prices := make(map[int]decimal.Decimal, len(suffixPrices))
	for k, v := range suffixPrices {
		length, err := strconv.Atoi(k)
		if err != nil || length <= 0 {
			return domain.PricingTable{}, fmt.Errorf("suffix length %q is not a positive integer", k)
		}
		price, err := decimal.NewFromString(v)
		if err != nil {
			return domain.PricingTable{}, fmt.Errorf("suffix price %q: %w", v, err)
		}
		prices[length] = price
	}
	return domain.PricingTable{
		BasePrice:         base,
		SuffixPrices:      prices,
		BonusSuffixLength: bonusSuffixLength,
	}, nil
}

// Price returns the price of a custom ending of the given length. Length 0
// means no custom ending.
func (s *PricingServiceImpl) Price(suffixLength int) (decimal.Decimal, error) {
	if suffixLength == 0 {
		return decimal.Zero, nil
	}
	price, ok := s.table.SuffixPrices[suffixLength]
	if !ok {
		return decimal.Zero, apperror.ErrUnpricedSuffix(suffixLength)
	}
	return price, nil
}

// Total prices a draft. A bonus credit only covers the bonus-eligible length;
// UsedBonus reports eligibility, the credit is consumed by the caller.
func (s *PricingServiceImpl) Total(suffixLength int, bonusAvailable bool) (domain.Quote, error) {
	custom, err := s.Price(suffixLength)
	if err != nil {
		return domain.Quote{}, err
	}
	usedBonus := bonusAvailable && suffixLength > 0 && suffixLength == s.table.BonusSuffixLength
	paid := custom
	if usedBonus {
		paid = decimal.Zero
	}
	return domain.Quote{
		SuffixLength: suffixLength,
		Base:         s.table.BasePrice,
		CustomPrice:  custom,
		CustomPaid:   paid,
		Total:        s.table.BasePrice.Add(paid).Round(quoteDecimals),
		UsedBonus:    usedBonus,
	}, nil
}

// Variants lists the quotes a payment may match. A bonus quote also accepts
// the full-price payment, in which case no credit is consumed.
func (s *PricingServiceImpl) Variants(q domain.Quote) []domain.Quote {
	if !q.UsedBonus {
		return []domain.Quote{q}
	}
	full := q
	full.UsedBonus = false
	full.CustomPaid = q.CustomPrice
	full.Total = q.Base.Add(q.CustomPrice).Round(quoteDecimals)
	return []domain.Quote{q, full}
}
