package gan

// StepRecord holds the scalar losses observed at one reported training
// step.
type StepRecord struct {
	Step              int     `json:"step"`
	DiscriminatorLoss float64 `json:"discriminator_loss"`
	GeneratorLoss     float64 `json:"generator_loss"`
	GradientPenalty   float64 `json:"gradient_penalty"`
}

// TrainingHistory is the append-only sequence of reported step records. It
// stays retrievable after a failed run for diagnosis.
type TrainingHistory struct {
	records []StepRecord
}

func (h *TrainingHistory) append(rec StepRecord) {
	h.records = append(h.records, rec)
}

// Records returns the recorded steps in order.
func (h *TrainingHistory) Records() []StepRecord {
	return h.records
}

// Len returns the number of recorded steps.
func (h *TrainingHistory) Len() int {
	return len(h.records)
}

// Last returns the most recent record.
func (h *TrainingHistory) Last() (StepRecord, bool) {
	if len(h.records) == 0 {
		return StepRecord{}, false
	}
	return h.records[len(h.records)-1], true
}
