// Package transcribe wraps the speech-to-text source for demo deployments.
// Real transcription happens client-side (or via a third-party streaming
// API); the server only relays snapshots. The simulator stands in when no
// presenter-side source exists, feeding canned phrases on a timer.
package transcribe

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/promptdeck/promptdeck/internal/domain"
)

// Sink receives each simulated snapshot; the transport layer relays it to
// the room exactly like a presenter-sent one.
type Sink func(snap domain.TranscriptSnapshot)

// Provider is the seam a real streaming-transcription client would fill.
type Provider interface {
	Run(ctx context.Context, sink Sink)
}

var cannedPhrases = []string{
	"Welcome everyone, thanks for joining.",
	"Let's start with a quick overview of today's agenda.",
	"As you can see on this slide, the numbers speak for themselves.",
	"Feel free to drop your questions in the panel at any time.",
	"Moving on to the next section.",
	"This is the part I find most interesting.",
	"Let me zoom in on this detail for a second.",
	"We'll come back to this point during the Q and A.",
}

// Simulator emits a growing transcript from cannedPhrases.
type Simulator struct {
	Interval time.Duration
}

func NewSimulator(interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Simulator{Interval: interval}
}

func (s *Simulator) Run(ctx context.Context, sink Sink) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	var history []string
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "transcribe.simulator").Msg("simulator stopped")
			return
		case <-ticker.C:
			phrase := cannedPhrases[i%len(cannedPhrases)]
			history = append(history, phrase)
			sink(domain.TranscriptSnapshot{
				Transcription: strings.Join(history, " "),
				History:       append([]string(nil), history...),
			})
		}
	}
}
