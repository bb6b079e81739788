package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
)

// scriptedSynthesizer fails a configurable number of times per prompt
// before succeeding, and records every spec it was handed.
type scriptedSynthesizer struct {
	mu        sync.Mutex
	failures  map[string]int
	calls     map[string]int
	specs     []driven.SynthesisSpec
	permanent map[string]bool
}

func newScriptedSynthesizer() *scriptedSynthesizer {
	return &scriptedSynthesizer{
		failures:  make(map[string]int),
		calls:     make(map[string]int),
		permanent: make(map[string]bool),
	}
}

func (s *scriptedSynthesizer) Synthesize(_ context.Context, spec driven.SynthesisSpec) (*driven.SynthesizedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs = append(s.specs, spec)
	s.calls[spec.Prompt]++
	if s.permanent[spec.Prompt] {
		return nil, errors.New("provider rejected prompt")
	}
	if s.failures[spec.Prompt] > 0 {
		s.failures[spec.Prompt]--
		return nil, errors.New("transient provider error")
	}
	return &driven.SynthesizedImage{
		Payload: "data:image/png;base64,GEN_" + spec.Prompt,
		Width:   spec.Width,
		Height:  spec.Height,
	}, nil
}

func (s *scriptedSynthesizer) Ping(context.Context) error { return nil }
func (s *scriptedSynthesizer) Close() error               { return nil }

func (s *scriptedSynthesizer) callCount(prompt string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[prompt]
}

// testOrchestrator never sleeps for real; it counts backoff waits.
func testOrchestrator(synth driven.ImageSynthesizer, slept *[]time.Duration) *SynthesisOrchestrator {
	o := NewSynthesisOrchestrator(synth)
	o.sleep = func(_ context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return nil
	}
	return o
}

func TestSynthesisOrchestrator_CollectRequests_Component(t *testing.T) {
	o := NewSynthesisOrchestrator(nil)
	patch := domain.EditPatch{
		UnitType: domain.UnitComponent,
		Properties: map[string]any{
			domain.PropImagePrompt: "A friendly smiling T-Rex",
			domain.PropURL:         "",
			domain.PropWidth:       512,
			domain.PropHeight:      384,
		},
	}

	requests := o.CollectRequests(patch, domain.UnitComponent)

	require.Len(t, requests, 1)
	assert.Equal(t, "A friendly smiling T-Rex", requests[0].Prompt)
	assert.Equal(t, 512, requests[0].Width)
	assert.Equal(t, 384, requests[0].Height)
}

func TestSynthesisOrchestrator_CollectRequests_SkipsSatisfied(t *testing.T) {
	o := NewSynthesisOrchestrator(nil)
	patch := domain.EditPatch{
		UnitType: domain.UnitPage,
		Elements: []domain.Component{
			{ID: "el-1", Type: domain.TypeImagePlaceholder, Properties: map[string]any{
				domain.PropImagePrompt: "already has payload",
				domain.PropURL:         "data:image/png;base64,X",
			}},
			{ID: "el-2", Type: "text", Properties: map[string]any{
				domain.PropImagePrompt: "not an image element",
			}},
			{ID: "el-3", Type: domain.TypeImagePlaceholder, Properties: map[string]any{
				domain.PropImagePrompt: "needs one",
			}},
		},
	}

	requests := o.CollectRequests(patch, domain.UnitPage)

	require.Len(t, requests, 1)
	assert.Equal(t, "2:el-3", requests[0].ID)
	assert.Equal(t, "needs one", requests[0].Prompt)
}

func TestSynthesisOrchestrator_Generate_Succeeds(t *testing.T) {
	synth := newScriptedSynthesizer()
	o := testOrchestrator(synth, nil)

	results := o.Generate(context.Background(), []domain.ImageSynthesisRequest{
		{ID: "0:el-1", Prompt: "a red ball", Width: 640, Height: 480},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Contains(t, results[0].Payload, "GEN_")
}

func TestSynthesisOrchestrator_Generate_RetriesThenSucceeds(t *testing.T) {
	synth := newScriptedSynthesizer()
	prompt := AugmentPrompt("a red ball")
	synth.failures[prompt] = 2

	var slept []time.Duration
	o := testOrchestrator(synth, &slept)

	results := o.Generate(context.Background(), []domain.ImageSynthesisRequest{
		{ID: "0:el-1", Prompt: "a red ball", Width: 640, Height: 480},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, 3, synth.callCount(prompt))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestSynthesisOrchestrator_Generate_GivesUpAfterThreeAttempts(t *testing.T) {
	synth := newScriptedSynthesizer()
	prompt := AugmentPrompt("a red ball")
	synth.permanent[prompt] = true

	o := testOrchestrator(synth, nil)

	results := o.Generate(context.Background(), []domain.ImageSynthesisRequest{
		{ID: "0:el-1", Prompt: "a red ball", Width: 640, Height: 480},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Err, "image synthesis failed")
	assert.Equal(t, 3, synth.callCount(prompt))
}

func TestSynthesisOrchestrator_Generate_PartialFailureTolerated(t *testing.T) {
	synth := newScriptedSynthesizer()
	bad := AugmentPrompt("doomed prompt")
	synth.permanent[bad] = true

	o := testOrchestrator(synth, nil)

	results := o.Generate(context.Background(), []domain.ImageSynthesisRequest{
		{ID: "0:el-1", Prompt: "doomed prompt", Width: 640, Height: 480},
		{ID: "1:el-2", Prompt: "fine prompt", Width: 640, Height: 480},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestSynthesisOrchestrator_Generate_NilSynthesizer(t *testing.T) {
	o := NewSynthesisOrchestrator(nil)

	results := o.Generate(context.Background(), []domain.ImageSynthesisRequest{
		{ID: "0:el-1", Prompt: "a red ball"},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, domain.ErrSynthesizerUnavailable.Error(), results[0].Err)
}

func TestSynthesisOrchestrator_ApplyResults_Page(t *testing.T) {
	o := NewSynthesisOrchestrator(nil)
	patch := domain.EditPatch{
		UnitType: domain.UnitPage,
		Elements: []domain.Component{
			{ID: "el-1", Type: domain.TypeImagePlaceholder, Properties: map[string]any{
				domain.PropImagePrompt: "a red ball",
			}},
			{ID: "el-2", Type: domain.TypeImagePlaceholder, Properties: map[string]any{
				domain.PropImagePrompt: "a blue cat",
			}},
		},
	}

	patch = o.ApplyResults(patch, domain.UnitPage, []domain.ImageSynthesisResult{
		{ID: "0:el-1", Success: true, Payload: "data:image/png;base64,BALL"},
		{ID: "1:el-2", Success: false, Err: "image synthesis failed"},
	})

	assert.Equal(t, "data:image/png;base64,BALL",
		domain.PropString(patch.Elements[0].Properties, domain.PropURL))
	assert.Empty(t, domain.PropString(patch.Elements[1].Properties, domain.PropURL))
}

func TestSynthesisOrchestrator_ApplyResults_IDMismatchSkipped(t *testing.T) {
	o := NewSynthesisOrchestrator(nil)
	patch := domain.EditPatch{
		UnitType: domain.UnitPage,
		Elements: []domain.Component{
			{ID: "el-1", Type: domain.TypeImagePlaceholder},
		},
	}

	patch = o.ApplyResults(patch, domain.UnitPage, []domain.ImageSynthesisResult{
		{ID: "0:el-OTHER", Success: true, Payload: "data:image/png;base64,X"},
		{ID: "9:el-1", Success: true, Payload: "data:image/png;base64,Y"},
		{ID: "garbage", Success: true, Payload: "data:image/png;base64,Z"},
	})

	assert.Empty(t, domain.PropString(patch.Elements[0].Properties, domain.PropURL))
}

func TestSynthesisOrchestrator_ApplyResults_Component(t *testing.T) {
	o := NewSynthesisOrchestrator(nil)
	patch := domain.EditPatch{UnitType: domain.UnitComponent}

	patch = o.ApplyResults(patch, domain.UnitComponent, []domain.ImageSynthesisResult{
		{ID: "0:component", Success: true, Payload: "data:image/png;base64,X"},
	})

	assert.Equal(t, "data:image/png;base64,X", patch.Properties[domain.PropURL])
}

func TestAugmentPrompt(t *testing.T) {
	augmented := AugmentPrompt("a red ball")
	assert.Contains(t, augmented, "a red ball")
	assert.Contains(t, augmented, "child-friendly")

	// Idempotent
	assert.Equal(t, augmented, AugmentPrompt(augmented))
}

func TestNormalizeDimension(t *testing.T) {
	assert.Equal(t, 640, NormalizeDimension(640))
	assert.Equal(t, 512, NormalizeDimension(500))
	assert.Equal(t, 256, NormalizeDimension(10))
	assert.Equal(t, 2048, NormalizeDimension(5000))
	assert.Equal(t, 256, NormalizeDimension(0))
}
