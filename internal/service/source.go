package service

import (
	"context"

	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/generation"
)

// ContentSource supplies the grounding material for a section's generation
// mode. Scope documents and source files live in an external document system;
// the orchestrator only needs their contents at prompt-build time.
type ContentSource interface {
	// ScopeDocument returns the structured scope text for scope-only mode.
	ScopeDocument(ctx context.Context, section *domain.Section) (string, error)

	// SourceAttachments returns the uploaded source documents for
	// source-of-truth mode.
	SourceAttachments(ctx context.Context, section *domain.Section) ([]generation.Attachment, error)
}

// emptyContentSource is the default ContentSource for deployments without a
// document system attached. Self-knowledge mode works unaffected; the other
// modes degrade to ungrounded prompts.
type emptyContentSource struct{}

// NewEmptyContentSource returns a ContentSource that supplies no material.
func NewEmptyContentSource() ContentSource {
	return emptyContentSource{}
}

func (emptyContentSource) ScopeDocument(context.Context, *domain.Section) (string, error) {
	return "", nil
}

func (emptyContentSource) SourceAttachments(context.Context, *domain.Section) ([]generation.Attachment, error) {
	return nil, nil
}
