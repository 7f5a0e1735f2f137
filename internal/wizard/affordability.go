// internal/wizard/affordability.go
package wizard

import (
	"errors"
	"math"
)

var ErrAffordabilityInputs = errors.New("requested amount, tenure and monthly income are needed")

// Estimate is shown to the underwriter next to the financials step. It is
// never used to block the wizard.
type Estimate struct {
	Principal         int64   `json:"principal"`
	TenureMonths      int64   `json:"tenure_months"`
	AnnualRatePercent float64 `json:"annual_rate_percent"`
	EMI               float64 `json:"emi"`
	TotalPayable      float64 `json:"total_payable"`
	TotalInterest     float64 `json:"total_interest"`
	MonthlyIncome     int64   `json:"monthly_income"`
	ExistingEMI       int64   `json:"existing_emi"`
	FOIR              float64 `json:"foir_percent"`
}

// EMI returns the equated monthly instalment, rounded to paise.
func EMI(principal float64, annualRatePercent float64, months int64) float64 {
	if months <= 0 || principal <= 0 {
		return 0
	}
	r := annualRatePercent / 12 / 100
	if r == 0 {
		return round2(principal / float64(months))
	}
	growth := math.Pow(1+r, float64(months))
	return round2(principal * r * growth / (growth - 1))
}

// FOIR is fixed obligations over income, as a percentage.
func FOIR(existingEMI, newEMI float64, monthlyIncome float64) float64 {
	if monthlyIncome <= 0 {
		return 0
	}
	return round2((existingEMI + newEMI) / monthlyIncome * 100)
}

// Affordability derives the display estimate from the draft.
func Affordability(d *Draft, annualRatePercent float64) (Estimate, error) {
	principal, okP := d.Int(FieldRequestedAmount)
	tenure, okT := d.Int(FieldRequestedTenure)
	income, okI := d.Int(FieldMonthlyIncome)
	if !okP || !okT || !okI || tenure <= 0 {
		return Estimate{}, ErrAffordabilityInputs
	}
	existing, _ := d.Int(FieldExistingEMI)

	emi := EMI(float64(principal), annualRatePercent, tenure)
	total := round2(emi * float64(tenure))

	return Estimate{
		Principal:         principal,
		TenureMonths:      tenure,
		AnnualRatePercent: annualRatePercent,
		EMI:               emi,
		TotalPayable:      total,
		TotalInterest:     round2(total - float64(principal)),
		MonthlyIncome:     income,
		ExistingEMI:       existing,
		FOIR:              FOIR(float64(existing), emi, float64(income)),
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
