package queue

// FuseMsg requests a (re-)fusion of the reference graph for a keyword.
// Fusion is incremental: the stored graph, if any, is passed back into the
// fusion core as existing state.
type FuseMsg struct {
	Keyword       string `json:"keyword"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// AuditMsg requests a coverage audit of one document against the reference
// graph of Keyword. Exactly one of Location (web URL or S3 key) and Text
// (raw inline text) is set.
type AuditMsg struct {
	AuditID       string `json:"audit_id"`
	Keyword       string `json:"keyword"`
	Location      string `json:"location,omitempty"`
	Text          string `json:"text,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// DeleteMsg requests removal of a keyword's graph, audits and archive.
type DeleteMsg struct {
	Keyword       string `json:"keyword"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
