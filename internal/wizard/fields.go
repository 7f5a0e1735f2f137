// internal/wizard/fields.go
package wizard

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Field names as they travel in the draft and in the submission document.
const (
	FieldFirstName     = "first_name"
	FieldLastName      = "last_name"
	FieldMobileNo      = "mobile_no"
	FieldEmail         = "email"
	FieldDateOfBirth   = "date_of_birth"
	FieldGender        = "gender"
	FieldPANNumber     = "pan_number"
	FieldAadhaarNumber = "aadhaar_number"

	FieldResAddressLine1    = "res_address_line1"
	FieldResAddressLine2    = "res_address_line2"
	FieldResCity            = "res_city"
	FieldResState           = "res_state"
	FieldResPincode         = "res_pincode"
	FieldResCountry         = "res_country"
	FieldOfficeAddressLine1 = "office_address_line1"
	FieldOfficeCity         = "office_city"
	FieldOfficePincode      = "office_pincode"

	FieldIncomeType      = "income_type"
	FieldRequestedAmount = "requested_amount"
	FieldRequestedTenure = "requested_tenure"
	FieldMonthlyIncome   = "monthly_income"
	FieldExistingEMI     = "existing_emi"
	FieldEmployerName    = "employer_name"
	FieldEmploymentType  = "employment_type"
	FieldBusinessName    = "business_name"
	FieldAnnualTurnover  = "annual_turnover"

	FieldBankAccountNumber   = "bank_account_number"
	FieldIFSCCode            = "ifsc_code"
	FieldAccountType         = "account_type"
	FieldMandateType         = "mandate_type"
	FieldDisbursementConsent = "disbursement_consent"
)

const (
	IncomeSalaried     = "Salaried"
	IncomeSelfEmployed = "Self-Employed"

	DefaultCountry = "India"

	MinLoanAmount = 10000
	MaxLoanAmount = 2000000
)

// Error messages surfaced to the console. The regex-backed ones are part of
// the acceptance contract and must not change.
const (
	MsgRequired        = "This field is required"
	MsgInvalidMobile   = "Invalid 10-digit mobile number"
	MsgInvalidPAN      = "Invalid PAN format (e.g., ABCDE1234F)"
	MsgInvalidAadhaar  = "Aadhaar must be 12 digits"
	MsgInvalidEmail    = "Invalid email address"
	MsgInvalidIFSC     = "Invalid IFSC Code"
	MsgInvalidPincode  = "Pincode must be 6 digits"
	MsgMinLoanAmount   = "Minimum loan amount is ₹10,000"
	MsgMaxLoanAmount   = "Maximum loan amount is ₹20 Lakhs"
	MsgAmountNotNumber = "Loan amount must be a number"
	MsgNotWholeNumber  = "Must be a whole number"
	MsgInvalidDate     = "Enter a valid date (YYYY-MM-DD)"
	MsgDOBNotPast      = "Date of birth must be in the past"
	MsgInvalidOption   = "Select a valid option"
	MsgConsentRequired = "You must authorise disbursement to the bank account above"
)

var (
	mobileRegex  = regexp.MustCompile(`^[6-9]\d{9}$`)
	panRegex     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]{1}$`)
	aadhaarRegex = regexp.MustCompile(`^\d{12}$`)
	emailRegex   = regexp.MustCompile(`\S+@\S+\.\S+`)
	ifscRegex    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	pincodeRegex = regexp.MustCompile(`^\d{6}$`)
)

var enumFields = map[string][]string{
	FieldGender:      {"M", "F", "O"},
	FieldIncomeType:  {IncomeSalaried, IncomeSelfEmployed},
	FieldAccountType: {"Savings", "Current"},
	FieldMandateType: {"eNACH", "UPI AutoPay", "Physical NACH"},
}

var wholeNumberFields = map[string]bool{
	FieldRequestedTenure: true,
	FieldMonthlyIncome:   true,
	FieldExistingEMI:     true,
	FieldAnnualTurnover:  true,
}

// knownFields is every field the console may send.
var knownFields = map[string]bool{
	FieldFirstName: true, FieldLastName: true, FieldMobileNo: true, FieldEmail: true,
	FieldDateOfBirth: true, FieldGender: true, FieldPANNumber: true, FieldAadhaarNumber: true,

	FieldResAddressLine1: true, FieldResAddressLine2: true, FieldResCity: true, FieldResState: true,
	FieldResPincode: true, FieldResCountry: true, FieldOfficeAddressLine1: true,
	FieldOfficeCity: true, FieldOfficePincode: true,

	FieldIncomeType: true, FieldRequestedAmount: true, FieldRequestedTenure: true,
	FieldMonthlyIncome: true, FieldExistingEMI: true, FieldEmployerName: true,
	FieldEmploymentType: true, FieldBusinessName: true, FieldAnnualTurnover: true,

	FieldBankAccountNumber: true, FieldIFSCCode: true, FieldAccountType: true,
	FieldMandateType: true, FieldDisbursementConsent: true,
}

// KnownField reports whether name is an application field. Session
// identifiers are not.
func KnownField(name string) bool {
	return knownFields[name]
}

// uppercaseFields are normalised on every keystroke.
var uppercaseFields = map[string]bool{
	FieldPANNumber: true,
	FieldIFSCCode:  true,
}

// now is swapped in tests.
var now = time.Now

// ValidateField returns the error message for a single field value, or ""
// when the value is acceptable. Empty values are never errors here; the
// required check belongs to the step.
func ValidateField(name, value string) string {
	if value == "" {
		return ""
	}

	switch name {
	case FieldMobileNo:
		if !mobileRegex.MatchString(value) {
			return MsgInvalidMobile
		}
	case FieldPANNumber:
		if !panRegex.MatchString(value) {
			return MsgInvalidPAN
		}
	case FieldAadhaarNumber:
		if !aadhaarRegex.MatchString(value) {
			return MsgInvalidAadhaar
		}
	case FieldEmail:
		if !emailRegex.MatchString(value) {
			return MsgInvalidEmail
		}
	case FieldIFSCCode:
		if !ifscRegex.MatchString(value) {
			return MsgInvalidIFSC
		}
	case FieldResPincode, FieldOfficePincode:
		if !pincodeRegex.MatchString(value) {
			return MsgInvalidPincode
		}
	case FieldRequestedAmount:
		return validateAmount(value)
	case FieldDateOfBirth:
		return validateDateOfBirth(value)
	}

	if options, ok := enumFields[name]; ok {
		for _, opt := range options {
			if value == opt {
				return ""
			}
		}
		return MsgInvalidOption
	}

	if wholeNumberFields[name] {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil || n < 0 {
			return MsgNotWholeNumber
		}
	}

	return ""
}

func validateAmount(value string) string {
	amount, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return MsgAmountNotNumber
	}

	msg := ""
	if amount < MinLoanAmount {
		msg = MsgMinLoanAmount
	}
	if amount > MaxLoanAmount {
		msg = MsgMaxLoanAmount
	}
	return msg
}

func validateDateOfBirth(value string) string {
	dob, err := time.Parse("2006-01-02", value)
	if err != nil {
		return MsgInvalidDate
	}
	n := now().UTC()
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	if !dob.Before(today) {
		return MsgDOBNotPast
	}
	return ""
}

// NormalizeField applies the keystroke-level transforms to a raw input value.
func NormalizeField(name, value string) string {
	if uppercaseFields[name] {
		return strings.ToUpper(value)
	}
	return value
}
