package domain

import "github.com/shopspring/decimal"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// SOLDecimals is the number of decimal places in one lamport.
const SOLDecimals = 9

// Lamports is an amount of SOL in its smallest unit.
type Lamports uint64

// SOL converts the amount to a decimal SOL value without loss.
func (l Lamports) SOL() decimal.Decimal {
	return decimal.NewFromInt(int64(l)).Shift(-SOLDecimals)
}

// LamportsFromSOL rounds a SOL amount to the nearest lamport.
// Negative amounts map to zero.
func LamportsFromSOL(sol decimal.Decimal) Lamports {
	if sol.Sign() <= 0 {
		return 0
	}
	return Lamports(sol.Shift(SOLDecimals).Round(0).IntPart())
}
