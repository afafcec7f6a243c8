package types

// Receipt is one immutable audit record of a single execution attempt.
// Records are chained: Hash covers every other field including PrevHash,
// and the next record's PrevHash must equal this record's Hash.
type Receipt struct {
	TS        string   `json:"ts"`
	Intent    Intent   `json:"intent"`
	Command   string   `json:"command"`
	Decision  Decision `json:"decision"`
	Reason    string   `json:"reason"`
	TokenID   *string  `json:"token_id"`
	ExpiresAt *string  `json:"expires_at"`
	PrevHash  string   `json:"prev_hash"`
	Hash      string   `json:"hash"`
}
