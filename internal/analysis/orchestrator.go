// Package analysis orchestrates the reasoning stage of a debate job:
// prompt construction, parallel per-speaker evaluation, response parsing
// and the comparative synthesis.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mavalente92/debatelens/internal/ai"
	"github.com/mavalente92/debatelens/internal/segment"
	"github.com/mavalente92/debatelens/pkg/models"
)

// Orchestrator runs the full reasoning pass over a debate transcript.
type Orchestrator struct {
	client        models.ReasoningClient
	defaultModel  string
	fallbackModel string
	logger        *slog.Logger
}

// NewOrchestrator wires an Orchestrator. fallbackModel may equal
// defaultModel, in which case model fallback is a no-op retry.
func NewOrchestrator(client models.ReasoningClient, defaultModel, fallbackModel string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client:        client,
		defaultModel:  defaultModel,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

// AnalyzeDebate segments the transcript across speakers, evaluates every
// speaker in parallel and synthesizes the comparison. Individual speaker
// failures degrade to neutral analyses; AnalyzeDebate itself fails only
// when every single evaluation failed, which signals a dead provider
// rather than bad luck with one completion.
func (o *Orchestrator) AnalyzeDebate(ctx context.Context, text string, speakers []string, topic string) (models.DebateResult, error) {
	texts := segment.Assign(text, speakers)

	o.logger.Info("starting debate analysis",
		"speakers", len(speakers),
		"transcript_chars", len(text),
		"backend", o.client.Name(),
	)

	individual := make([]models.SpeakerAnalysis, len(speakers))
	errs := make([]error, len(speakers))

	var wg sync.WaitGroup
	for i, speaker := range speakers {
		wg.Add(1)
		go func(i int, speaker string) {
			defer wg.Done()
			individual[i], errs[i] = o.analyzeSpeaker(ctx, texts[speaker], speaker, topic)
		}(i, speaker)
	}
	wg.Wait()

	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			o.logger.Warn("speaker analysis degraded to neutral",
				"speaker", speakers[i], "error", err)
			individual[i] = NeutralSpeakerAnalysis(speakers[i])
		}
	}
	if failed == len(speakers) {
		return models.DebateResult{}, fmt.Errorf("all %d speaker evaluations failed: %w", failed, errs[0])
	}

	comparison := o.compare(ctx, individual, topic)

	return models.DebateResult{Individual: individual, Comparison: comparison}, nil
}

// analyzeSpeaker evaluates one participant, retrying once on the fallback
// model when the default model is rejected by the provider.
func (o *Orchestrator) analyzeSpeaker(ctx context.Context, text, speaker, topic string) (models.SpeakerAnalysis, error) {
	prompt := speakerPrompt(text, speaker, topic)

	response, err := o.client.Complete(ctx, o.defaultModel, systemPrompt, prompt)
	if err != nil && errors.Is(err, ai.ErrModelRejected) && o.fallbackModel != o.defaultModel {
		o.logger.Info("retrying with fallback model",
			"speaker", speaker, "model", o.fallbackModel)
		response, err = o.client.Complete(ctx, o.fallbackModel, systemPrompt, prompt)
	}
	if err != nil {
		return models.SpeakerAnalysis{}, err
	}

	return parseSpeakerAnalysis(response, speaker), nil
}

// compare runs the comparative synthesis. It never fails the job: on any
// error the neutral comparison is returned.
func (o *Orchestrator) compare(ctx context.Context, analyses []models.SpeakerAnalysis, topic string) models.Comparison {
	prompt := comparisonPrompt(analyses, topic)

	response, err := o.client.Complete(ctx, o.defaultModel, systemPrompt, prompt)
	if err != nil && errors.Is(err, ai.ErrModelRejected) && o.fallbackModel != o.defaultModel {
		response, err = o.client.Complete(ctx, o.fallbackModel, systemPrompt, prompt)
	}
	if err != nil {
		o.logger.Warn("comparison generation failed", "error", err)
		return NeutralComparison()
	}

	return parseComparison(response)
}
