package moderation

// FilterResult is the outcome of screening one piece of text.
type FilterResult struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"` // blocked_keyword | spam_pattern
	Term    string `json:"term,omitempty"`   // matched blocklist term or pattern name
}

// Reasons reported in FilterResult.Reason.
const (
	ReasonKeyword = "blocked_keyword"
	ReasonSpam    = "spam_pattern"
)
