// Package toolkit implements the Memory Toolkit's autonomous store /
// discard / summarize decisions without any further LLM calls, using a
// tagged-union decision type rather than dynamic dispatch, per the
// explicit design choice spec.md §4.5 calls for. Grounded on the
// teacher's memory.Deduplicator for the overlap-ratio gating technique,
// generalized from exact/near-duplicate cosine bands to plain token
// overlap since these decisions run on raw text, before any embedding
// call.
package toolkit

// Kind tags which action a Decision represents.
type Kind string

const (
	KindStore     Kind = "store"
	KindRetrieve  Kind = "retrieve"
	KindUpdate    Kind = "update"
	KindDiscard   Kind = "discard"
	KindSummarize Kind = "summarize"
)

// Decision is a tagged union over the five toolkit actions. Exactly the
// fields relevant to Kind are populated; callers switch on Kind rather
// than relying on dynamic dispatch.
type Decision struct {
	Kind Kind

	// KindStore
	StoreContent    string
	StoreImportance float64

	// KindUpdate
	UpdateTargetID string
	UpdateContent  string

	// KindDiscard
	DiscardTargetIDs []string

	// KindSummarize
	SummarizeSourceIDs  []string
	SummarizeContent    string
	SummarizeImportance float64
}
