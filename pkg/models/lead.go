package models

// LeadRecord is a flat mapping of field name to value, consumed but never
// owned by the automation core. Conditions read it; actions request
// mutations through the LeadStore collaborator.
type LeadRecord map[string]any

// Clone returns a shallow copy so callers can build patches without
// mutating the record handed to an evaluation.
func (r LeadRecord) Clone() LeadRecord {
	out := make(LeadRecord, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// LeadPatch is a partial update applied through the LeadStore.
type LeadPatch map[string]any
