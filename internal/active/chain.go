package active

import "context"

// Recaller, WorkspaceSearcher, and WebSearcher are the three escalation
// steps the retrieval chain tries in order. Each is an external
// collaborator the host application supplies; active.Chain only sequences
// calls to them.
type Recaller interface {
	RecallMemory(ctx context.Context, query string) (string, error)
}

type WorkspaceSearcher interface {
	SearchWorkspace(ctx context.Context, query string) (string, error)
}

type WebSearcher interface {
	SearchWeb(ctx context.Context, query string) (string, error)
}

// ChainResult records which step produced the final answer, so callers
// can log/attribute it and so cross-verification only runs for web hits.
type ChainResult struct {
	Source string // "memory", "workspace", "web", or "" if nothing found
	Text   string
}

// Run executes the retrieval chain for a query at the given uncertainty
// level: memory recall, then workspace search, then web search, stopping
// at the first non-empty result. None and low skip the whole chain —
// DeriveLevel only yields low when the question isn't important, so every
// low is low-without-importance. Web search additionally requires at
// least medium uncertainty.
func Run(ctx context.Context, query string, level Level, recall Recaller, workspace WorkspaceSearcher, web WebSearcher) (ChainResult, error) {
	if level == LevelNone || level == LevelLow {
		return ChainResult{}, nil
	}

	if recall != nil {
		if text, err := recall.RecallMemory(ctx, query); err == nil && text != "" {
			return ChainResult{Source: "memory", Text: text}, nil
		}
	}

	if workspace != nil {
		if text, err := workspace.SearchWorkspace(ctx, query); err == nil && text != "" {
			return ChainResult{Source: "workspace", Text: text}, nil
		}
	}

	if level != LevelMedium && level != LevelHigh {
		return ChainResult{}, nil
	}

	if web != nil {
		if text, err := web.SearchWeb(ctx, query); err == nil && text != "" {
			return ChainResult{Source: "web", Text: text}, nil
		}
	}

	return ChainResult{}, nil
}
