// internal/wizard/snapshot.go
package wizard

// DocumentInfo describes an attachment without its bytes.
type DocumentInfo struct {
	Slot        DocumentSlot `json:"slot"`
	Name        string       `json:"name"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
}

// Snapshot is the read model rendered by the console.
type Snapshot struct {
	ID          string            `json:"id"`
	Step        Step              `json:"step"`
	StepName    string            `json:"step_name"`
	HighestStep Step              `json:"highest_step"`
	State       State             `json:"state"`
	Values      map[string]string `json:"values"`
	Documents   []DocumentInfo    `json:"documents"`
	Errors      FieldErrors       `json:"errors"`
	GlobalError string            `json:"global_error,omitempty"`
	Receipt     *Receipt          `json:"receipt,omitempty"`
}

// Snapshot copies the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := make([]DocumentInfo, 0, len(c.draft.documents))
	for _, slot := range c.draft.Slots() {
		doc := c.draft.documents[slot]
		docs = append(docs, DocumentInfo{
			Slot:        slot,
			Name:        doc.Name,
			ContentType: doc.ContentType,
			Size:        doc.Size,
		})
	}

	snap := Snapshot{
		ID:          c.id,
		Step:        c.step,
		StepName:    c.step.String(),
		HighestStep: c.highest,
		State:       c.state,
		Values:      c.draft.Values(),
		Documents:   docs,
		Errors:      copyErrors(c.errors),
		Receipt:     c.receipt,
	}
	if c.failure != nil {
		snap.GlobalError = c.failure.Message
	}
	return snap
}

// Draft returns a copy of the draft values and attachments, used by the
// affordability view.
func (c *Controller) Draft() *Draft {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := &Draft{
		fields:    c.draft.Values(),
		documents: make(map[DocumentSlot]*Document, len(c.draft.documents)),
	}
	for k, v := range c.draft.documents {
		d.documents[k] = v
	}
	return d
}

// Step returns the active step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
