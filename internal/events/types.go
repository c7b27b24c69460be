package events

// Event enumerates high-level topics inside the backtest core.
type Event string

const (
	EventRunStarted     Event = "run.started"
	EventRunCompleted   Event = "run.completed"
	EventRunFailed      Event = "run.failed"
	EventBatchStarted   Event = "batch.started"
	EventBatchProgress  Event = "batch.progress"
	EventBatchCompleted Event = "batch.completed"
)

// RunEvent is the payload published for single-run lifecycle topics.
type RunEvent struct {
	RunID      string `json:"run_id"`
	StrategyID string `json:"strategy_id"`
	Symbol     string `json:"symbol"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BatchEvent is the payload published for batch lifecycle topics.
type BatchEvent struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}
