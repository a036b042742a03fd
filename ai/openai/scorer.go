// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/poiesic/retrievit/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const scorerSystemPrompt = `You are a search relevance judge. Given a query and a document, respond with a single number between 0.0 and 1.0 indicating how relevant the document is to the query. 1.0 means the document fully answers the query, 0.0 means it is unrelated. Respond with only the number, no explanation.`

// Scorer implements ai.RelevanceScorer using OpenAI-compatible chat APIs.
// Each Score call asks the model to judge one query/document pair.
type Scorer struct {
	client llms.Model
	logger *slog.Logger
}

// newScorer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newScorer(config *ai.Config) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't
	// require authentication.
	client, err := openai.New(
		openai.WithBaseURL(config.ScorerHost),
		openai.WithToken("none"),
		openai.WithModel(config.ScorerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Scorer{
		client: client,
		logger: slog.Default().With("component", "openai-scorer"),
	}, nil
}

// NewScorer creates a new relevance scorer using the provided configuration.
//
// Returns ai.RelevanceScorer interface to enforce abstraction.
func NewScorer(config *ai.Config) (ai.RelevanceScorer, error) {
	return newScorer(config)
}

// Score asks the model to judge the query/text pair and parses the numeric
// reply. Replies outside [0, 1] are clamped.
func (s *Scorer) Score(ctx context.Context, query, text string) (float64, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(scorerSystemPrompt)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(fmt.Sprintf("Query: %s\n\nDocument: %s", query, text)),
			},
		},
	}

	response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		s.logger.Error("relevance scoring failed", "err", err)
		return 0, err
	}
	if len(response.Choices) == 0 {
		return 0, errors.New("openai scorer: empty response")
	}

	score, err := parseScore(response.Choices[0].Content)
	if err != nil {
		s.logger.Warn("unparseable relevance reply",
			"reply", response.Choices[0].Content, "err", err)
		return 0, err
	}
	return score, nil
}

// parseScore extracts the first numeric token from a model reply and clamps
// it into [0, 1]. Models occasionally wrap the number in prose or markup.
func parseScore(reply string) (float64, error) {
	for _, field := range strings.Fields(reply) {
		field = strings.Trim(field, "`*\"'.,:")
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		if value < 0 {
			value = 0
		}
		if value > 1 {
			value = 1
		}
		return value, nil
	}
	return 0, fmt.Errorf("no numeric score in reply %q", reply)
}
