package toolkit

import "context"

// Store and Forget are the host-supplied callbacks decisions execute
// against. They live outside this package because the host application
// (not the memory engine) owns what "storing" and "forgetting" ultimately
// mean for its own agent loop.
type Store func(ctx context.Context, content string, importance float64) error
type Forget func(ctx context.Context, id string) error

// ExecResult reports how many decisions of each kind succeeded and how
// many failed, without surfacing individual errors — a single failed
// discard or store should never abort the rest of the batch.
type ExecResult struct {
	Stored     int
	Discarded  int
	Summarized int
	Failed     int
}

// Execute applies a batch of decisions against the host callbacks,
// swallowing individual failures and counting them rather than
// propagating the first error, since a bad discard shouldn't block a good
// store. A nil callback silently disables the decisions that need it —
// the host simply doesn't support that capability.
func Execute(ctx context.Context, decisions []Decision, store Store, forget Forget) ExecResult {
	var result ExecResult
	for _, d := range decisions {
		switch d.Kind {
		case KindStore:
			if store == nil {
				continue
			}
			if err := store(ctx, d.StoreContent, d.StoreImportance); err != nil {
				result.Failed++
				continue
			}
			result.Stored++
		case KindDiscard:
			if forget == nil {
				continue
			}
			for _, id := range d.DiscardTargetIDs {
				if err := forget(ctx, id); err != nil {
					result.Failed++
					continue
				}
				result.Discarded++
			}
		case KindSummarize:
			if store == nil {
				continue
			}
			if err := store(ctx, d.SummarizeContent, d.SummarizeImportance); err != nil {
				result.Failed++
				continue
			}
			if forget != nil {
				for _, id := range d.SummarizeSourceIDs {
					if err := forget(ctx, id); err != nil {
						result.Failed++
						continue
					}
				}
			}
			result.Summarized++
		case KindUpdate, KindRetrieve:
			// Update/retrieve decisions are surfaced to the caller's own
			// prompt-injection path rather than executed here; nothing to
			// do against the store/forget callbacks.
		}
	}
	return result
}
