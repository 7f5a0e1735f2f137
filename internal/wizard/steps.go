// internal/wizard/steps.go
package wizard

import (
	"fmt"
	"sort"
	"strings"
)

// Step is a 1-based wizard step.
type Step int

const (
	StepIdentity Step = iota + 1
	StepAddress
	StepFinancials
	StepBank
	StepDocuments
)

const (
	FirstStep = StepIdentity
	LastStep  = StepDocuments
)

func (s Step) String() string {
	switch s {
	case StepIdentity:
		return "identity"
	case StepAddress:
		return "address"
	case StepFinancials:
		return "financials"
	case StepBank:
		return "bank"
	case StepDocuments:
		return "documents"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Valid reports whether s is within [1,5].
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// FieldErrors maps a field (or document slot) to its inline message.
type FieldErrors map[string]string

// Fields returns the keys in sorted order, handy for logs.
func (fe FieldErrors) Fields() []string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (fe FieldErrors) String() string {
	parts := make([]string, 0, len(fe))
	for _, k := range fe.Fields() {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

type stepRules struct {
	required []string
	optional []string
}

var rulesByStep = map[Step]stepRules{
	StepIdentity: {
		required: []string{FieldFirstName, FieldLastName, FieldMobileNo, FieldEmail, FieldPANNumber, FieldDateOfBirth},
		optional: []string{FieldAadhaarNumber, FieldGender},
	},
	StepAddress: {
		required: []string{FieldResAddressLine1, FieldResPincode, FieldOfficeAddressLine1, FieldOfficePincode},
	},
	StepFinancials: {
		required: []string{FieldRequestedAmount, FieldMonthlyIncome},
		optional: []string{FieldIncomeType, FieldRequestedTenure, FieldExistingEMI},
	},
	StepBank: {
		required: []string{FieldBankAccountNumber, FieldIFSCCode},
		optional: []string{FieldAccountType, FieldMandateType},
	},
}

var requiredDocuments = []DocumentSlot{SlotIdentityProof, SlotBankStatement}

// ValidateStep checks every rule of one step against the draft. The result
// is empty when the step may be completed.
func ValidateStep(step Step, d *Draft) FieldErrors {
	errs := FieldErrors{}

	if step == StepDocuments {
		for _, slot := range requiredDocuments {
			if !d.HasDocument(slot) {
				errs[string(slot)] = MsgRequired
			}
		}
		for _, slot := range d.Slots() {
			if err := CheckDocument(slot, d.Document(slot)); err != nil {
				errs[string(slot)] = documentMessage(err)
			}
		}
		return errs
	}

	rules, ok := rulesByStep[step]
	if !ok {
		return errs
	}

	required := rules.required
	optional := rules.optional
	if step == StepFinancials {
		if d.IncomeType() == IncomeSelfEmployed {
			required = append(append([]string{}, required...), FieldBusinessName)
			optional = append(append([]string{}, optional...), FieldAnnualTurnover)
		} else {
			required = append(append([]string{}, required...), FieldEmployerName)
			optional = append(append([]string{}, optional...), FieldEmploymentType)
		}
	}

	for _, name := range required {
		value := strings.TrimSpace(d.Get(name))
		if value == "" {
			errs[name] = MsgRequired
			continue
		}
		if msg := ValidateField(name, value); msg != "" {
			errs[name] = msg
		}
	}
	for _, name := range optional {
		if msg := ValidateField(name, strings.TrimSpace(d.Get(name))); msg != "" {
			errs[name] = msg
		}
	}

	if step == StepBank && !d.Bool(FieldDisbursementConsent) {
		errs[FieldDisbursementConsent] = MsgConsentRequired
	}

	return errs
}

// ValidateAll runs every step and returns the merged errors together with
// the steps that failed, in order.
func ValidateAll(d *Draft) (FieldErrors, []Step) {
	all := FieldErrors{}
	var failed []Step
	for s := FirstStep; s <= LastStep; s++ {
		errs := ValidateStep(s, d)
		if len(errs) == 0 {
			continue
		}
		failed = append(failed, s)
		for k, v := range errs {
			all[k] = v
		}
	}
	return all, failed
}
