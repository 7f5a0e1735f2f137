// internal/wizard/draft.go
package wizard

import (
	"sort"
	"strconv"
	"strings"
)

// Draft is the client-held application being composed across the five
// steps. Values are kept as the raw strings the console sends; numbers and
// booleans are parsed on read.
type Draft struct {
	fields    map[string]string
	documents map[DocumentSlot]*Document
}

// NewDraft returns an empty draft with the form defaults applied.
func NewDraft() *Draft {
	return &Draft{
		fields: map[string]string{
			FieldResCountry: DefaultCountry,
			FieldIncomeType: IncomeSalaried,
		},
		documents: make(map[DocumentSlot]*Document),
	}
}

// DraftFromMap builds a draft from a flat key/value document, as received by
// the validation worker. Values are stringified the way a form would send them.
func DraftFromMap(values map[string]interface{}) *Draft {
	d := NewDraft()
	for k, v := range values {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			d.fields[k] = NormalizeField(k, strings.TrimSpace(val))
		case bool:
			d.fields[k] = strconv.FormatBool(val)
		case float64:
			d.fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			d.fields[k] = strconv.Itoa(val)
		case int64:
			d.fields[k] = strconv.FormatInt(val, 10)
		default:
			continue
		}
	}
	return d
}

// Get returns the raw value of a field.
func (d *Draft) Get(name string) string {
	return d.fields[name]
}

// Set stores a value after keystroke normalisation.
func (d *Draft) Set(name, value string) {
	d.fields[name] = NormalizeField(name, value)
}

// Int parses a numeric field; ok is false for empty or non-numeric values.
func (d *Draft) Int(name string) (int64, bool) {
	raw := strings.TrimSpace(d.fields[name])
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// Bool reports whether a checkbox-style field is set.
func (d *Draft) Bool(name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(d.fields[name]))
	return err == nil && v
}

// IncomeType returns the branch discriminator, defaulting to Salaried.
func (d *Draft) IncomeType() string {
	if t := d.fields[FieldIncomeType]; t != "" {
		return t
	}
	return IncomeSalaried
}

// Document returns the attachment in a slot, or nil.
func (d *Draft) Document(slot DocumentSlot) *Document {
	return d.documents[slot]
}

// HasDocument reports whether a slot has an attachment.
func (d *Draft) HasDocument(slot DocumentSlot) bool {
	return d.documents[slot] != nil
}

// AttachDocument records a document that was already accepted by the slot.
// The validation worker uses this to mark slots that exist upstream.
func (d *Draft) AttachDocument(slot DocumentSlot, doc *Document) {
	d.documents[slot] = doc
}

// Values returns a copy of the field map.
func (d *Draft) Values() map[string]string {
	out := make(map[string]string, len(d.fields))
	for k, v := range d.fields {
		out[k] = v
	}
	return out
}

// Slots returns the attached slots in a stable order.
func (d *Draft) Slots() []DocumentSlot {
	slots := make([]DocumentSlot, 0, len(d.documents))
	for s := range d.documents {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// inactiveBranchFields returns the financial fields that belong to the income
// branch not currently selected. They are neither required nor sent.
func (d *Draft) inactiveBranchFields() []string {
	if d.IncomeType() == IncomeSelfEmployed {
		return []string{FieldEmployerName, FieldEmploymentType}
	}
	return []string{FieldBusinessName, FieldAnnualTurnover}
}
