package engine

import (
	"foresight/internal/types"
)

// enhance layers context awareness over freshly generated predictions:
// workflow-aligned predictions are boosted, a context snippet is attached,
// and values the user just acted on are de-prioritized. Confidence is
// clamped to 1.0 afterwards.
func (e *Engine) enhance(preds []types.Prediction, ctx types.Context) []types.Prediction {
	if len(preds) == 0 {
		return nil
	}

	snippet := contextSnippet(ctx)
	out := make([]types.Prediction, 0, len(preds))
	for _, p := range preds {
		p.Metadata = cloneMetadata(p.Metadata)

		if ctx.Workflow != nil && ctx.Workflow.Type != "" {
			if wf, _ := p.Metadata["workflow"].(string); wf == ctx.Workflow.Type {
				p.Confidence *= 1.2
			}
		}
		if len(snippet) > 0 {
			p.Metadata["context"] = snippet
		}
		if e.history.SeenWithin(types.ActionCommand, p.Value, recentWindow) {
			p.Confidence *= 0.9
			p.Metadata["recent"] = true
		}
		if p.Confidence > 1 {
			p.Confidence = 1
		}
		out = append(out, p)
	}
	return out
}

// contextSnippet reduces a context to the fields worth attaching to every
// prediction: branch, workflow type, and up to three recent files.
func contextSnippet(ctx types.Context) map[string]any {
	snippet := make(map[string]any)
	if ctx.Branch != "" {
		snippet["branch"] = ctx.Branch
	}
	if ctx.Workflow != nil && ctx.Workflow.Type != "" {
		snippet["workflowType"] = ctx.Workflow.Type
	}
	if len(ctx.RecentFiles) > 0 {
		files := ctx.RecentFiles
		if len(files) > 3 {
			files = files[:3]
		}
		snippet["recentFiles"] = files
	}
	return snippet
}

func cloneMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md)+2)
	for k, v := range md {
		out[k] = v
	}
	return out
}
