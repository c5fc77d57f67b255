package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
)

var errNoResources = errors.New("no resources could be parsed from completion")

// ProseSearcher asks a search-grounded model for sectioned bullet lists and
// extracts resources from the free text.
type ProseSearcher struct {
	client *ChatClient
	logger *slog.Logger
}

var _ domain.Adapter = (*ProseSearcher)(nil)

// NewProseSearcher creates the llm-search-a adapter.
func NewProseSearcher(client *ChatClient, logger *slog.Logger) *ProseSearcher {
	return &ProseSearcher{client: client, logger: logger}
}

func (s *ProseSearcher) Source() domain.Source { return domain.SourceLLMSearchA }

func (s *ProseSearcher) Search(ctx context.Context, postalCode string) ([]domain.RawResult, error) {
	if !s.client.Configured() {
		return nil, fmt.Errorf("%s: %w", s.Source(), domain.ErrUpstreamConfig)
	}
	content, err := s.client.Complete(ctx, BuildPrompt(postalCode, ModeProse), false)
	if err != nil {
		return nil, err
	}

	// A prose answer with no bullets is a parse failure, the same as an
	// unusable structured answer from the JSON searcher.
	results := domain.ParseProse(content, s.Source(), postalCode)
	if len(results) == 0 {
		s.logger.Debug("completion listed no resources", "source", s.Source(), "postal_code", postalCode)
		return nil, errNoResources
	}
	return results, nil
}

// JSONSearcher asks for a strict JSON object and decodes it, falling back to
// the prose parser when the model ignores the format.
type JSONSearcher struct {
	client *ChatClient
	logger *slog.Logger
}

var _ domain.Adapter = (*JSONSearcher)(nil)

// NewJSONSearcher creates the llm-search-b adapter.
func NewJSONSearcher(client *ChatClient, logger *slog.Logger) *JSONSearcher {
	return &JSONSearcher{client: client, logger: logger}
}

func (s *JSONSearcher) Source() domain.Source { return domain.SourceLLMSearchB }

func (s *JSONSearcher) Search(ctx context.Context, postalCode string) ([]domain.RawResult, error) {
	if !s.client.Configured() {
		return nil, fmt.Errorf("%s: %w", s.Source(), domain.ErrUpstreamConfig)
	}
	content, err := s.client.Complete(ctx, BuildPrompt(postalCode, ModeJSON), true)
	if err != nil {
		return nil, err
	}

	results, err := decodeResources(content, s.Source(), postalCode)
	if err == nil {
		return results, nil
	}

	s.logger.Warn("structured completion unusable, parsing as prose", "source", s.Source(), "error", err)
	results = domain.ParseProse(content, s.Source(), postalCode)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %w", errNoResources, err)
	}
	return results, nil
}

type jsonResource struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Hours       string `json:"hours"`
}

// decodeResources reads {"resources":[...]}, tolerating a markdown code fence
// around the object.
func decodeResources(content string, source domain.Source, postalCode string) ([]domain.RawResult, error) {
	content = stripCodeFence(content)

	var payload struct {
		Resources []jsonResource `json:"resources"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("decode resources: %w", err)
	}
	if payload.Resources == nil {
		return nil, errors.New("decode resources: missing resources array")
	}

	out := make([]domain.RawResult, 0, len(payload.Resources))
	for _, r := range payload.Resources {
		out = append(out, domain.RawResult{
			Source:      source,
			Name:        r.Name,
			Category:    r.Category,
			Description: r.Description,
			Phone:       r.Phone,
			Website:     r.Website,
			Email:       r.Email,
			Address:     r.Address,
			City:        r.City,
			State:       r.State,
			PostalCode:  postalCode,
			Hours:       r.Hours,
		})
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
