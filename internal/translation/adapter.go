package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"captioner/internal/logging"
	"captioner/internal/subtitles"
)

const defaultCueTimeout = 30 * time.Second

// Stats summarizes one TranslateTrack call.
type Stats struct {
	Total      int
	Translated int
	Fallback   int
}

var errEmptyTranslation = errors.New("engine returned empty text")

// Adapter applies an Engine to every cue of a track.
type Adapter struct {
	engine  Engine
	timeout time.Duration
	workers int
	logger  *slog.Logger
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithCueTimeout bounds each engine call.
func WithCueTimeout(timeout time.Duration) AdapterOption {
	return func(a *Adapter) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// WithWorkers sets how many cues translate concurrently. One keeps strict
// track order.
func WithWorkers(workers int) AdapterOption {
	return func(a *Adapter) {
		if workers > 0 {
			a.workers = workers
		}
	}
}

// WithAdapterLogger routes fallback warnings to logger.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter wraps engine. A nil engine behaves like Identity.
func NewAdapter(engine Engine, opts ...AdapterOption) *Adapter {
	if engine == nil {
		engine = Identity{}
	}
	a := &Adapter{
		engine:  engine,
		timeout: defaultCueTimeout,
		workers: 1,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.logger, "translator")
	return a
}

// TranslateTrack rewrites each cue's text in place. A cue keeps its original
// text when the engine errors, exceeds the per-cue deadline, or returns blank
// output. Errors never propagate; the returned Stats report what happened.
// If ctx is cancelled the remaining cues are left untouched and counted as
// fallbacks; callers treat the whole run as cancelled.
func (a *Adapter) TranslateTrack(ctx context.Context, track *subtitles.Track, targetLang string) Stats {
	if track == nil || len(track.Cues) == 0 {
		return Stats{}
	}
	logger := logging.WithContext(ctx, a.logger)
	stats := Stats{Total: len(track.Cues)}

	workers := a.workers
	if workers > len(track.Cues) {
		workers = len(track.Cues)
	}

	if workers <= 1 {
		for i := range track.Cues {
			if a.translateCue(ctx, logger, track, i, targetLang) {
				stats.Translated++
			} else {
				stats.Fallback++
			}
		}
		return stats
	}

	// Each worker writes only the cue at the index it received, so cues never
	// share mutable state.
	indexes := make(chan int)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				ok := a.translateCue(ctx, logger, track, i, targetLang)
				mu.Lock()
				if ok {
					stats.Translated++
				} else {
					stats.Fallback++
				}
				mu.Unlock()
			}
		}()
	}
	for i := range track.Cues {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return stats
}

func (a *Adapter) translateCue(ctx context.Context, logger *slog.Logger, track *subtitles.Track, index int, targetLang string) bool {
	original := track.Cues[index].Text
	if ctx.Err() != nil {
		return false
	}
	translated, err := a.call(ctx, original, targetLang)
	if err != nil {
		logging.WarnWithContext(logger, "cue translation failed; keeping original text", "translation_fallback",
			logging.Int("cue", index+1),
			logging.String("target_lang", targetLang),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check translation provider credentials and availability"),
			logging.String(logging.FieldImpact, "cue is rendered in the source language"),
		)
		return false
	}
	track.Cues[index].Text = translated
	logger.Debug("cue translated",
		logging.Int("cue", index+1),
		logging.String("original", original),
		logging.String("translated", translated),
	)
	return true
}

type outcome struct {
	text string
	err  error
}

// call runs the engine on its own goroutine so an engine that ignores ctx
// still cannot hold the track past the per-cue deadline.
func (a *Adapter) call(ctx context.Context, text, targetLang string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("translation engine panicked: %v", r)}
			}
		}()
		translated, err := a.engine.Translate(callCtx, text, targetLang)
		done <- outcome{text: translated, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		return "", callCtx.Err()
	}
	if out.err != nil {
		return "", out.err
	}
	result := strings.TrimSpace(out.text)
	if result == "" {
		return "", errEmptyTranslation
	}
	return result, nil
}
