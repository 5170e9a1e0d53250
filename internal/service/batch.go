package service

// Item outcomes of batch operations
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ItemResult records what happened to one element of a batch.
type ItemResult struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchResult is the per-item report of a best-effort batch. Failed items
// never stop the rest of the batch.
type BatchResult struct {
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

func (b *BatchResult) ok(id, message string) {
	b.Succeeded++
	b.Items = append(b.Items, ItemResult{ID: id, Outcome: OutcomeOK, Message: message})
}

func (b *BatchResult) skip(id, message string) {
	b.Skipped++
	b.Items = append(b.Items, ItemResult{ID: id, Outcome: OutcomeSkipped, Message: message})
}

func (b *BatchResult) fail(id string, err error) {
	b.Failed++
	b.Items = append(b.Items, ItemResult{ID: id, Outcome: OutcomeFailed, Error: err.Error()})
}
