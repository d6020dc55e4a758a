package harness

// Trace entry types.
const (
	EntryEvent  = "event"
	EntryAction = "action"
	EntryError  = "error"
)

// CodeBidNotSubmitted marks a bid that failed before reaching the
// submitter, such as on a journal error.
const CodeBidNotSubmitted = "BID_NOT_SUBMITTED"

// TraceEntry is one observable step of a scenario run: an applied event,
// a submitted action, or an event the managers rejected.
type TraceEntry struct {
	Type string `json:"type"`
	// Seq is the 1-based scenario step that produced the entry.
	Seq int64 `json:"seq"`
	// Name is the event name or action kind.
	Name string `json:"name"`
	// Key is the entity or action target address.
	Key string `json:"key"`

	Status        string `json:"status,omitempty"` // actions
	Code          string `json:"code,omitempty"`   // errors
	BidAmount     string `json:"bid_amount,omitempty"`
	MinCollateral string `json:"min_collateral,omitempty"`
}

// DepositState is a deposit in the final mirror.
type DepositState struct {
	Address string `json:"address"`
	State   string `json:"state"`
}

// AuctionState is an auction in the final mirror.
type AuctionState struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	State   string `json:"state"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEntry `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final mirror contents, in creation order.
	Deposits []DepositState `json:"deposits"`
	Auctions []AuctionState `json:"auctions"`
}

// NewResult creates a passing, empty result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEntry{},
		Errors:   []string{},
		Deposits: []DepositState{},
		Auctions: []AuctionState{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(e TraceEntry) {
	r.Trace = append(r.Trace, e)
}
