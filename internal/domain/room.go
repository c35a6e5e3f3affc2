package domain

import "encoding/json"

type JoinCode string

const JoinCodeLen = 8

// Room is the presentation context attached to a live session. Membership,
// questions and transcript state live in core; this is the static meta set
// at creation time.
type Room struct {
	JoinCode    JoinCode `json:"joinCode"`
	PresenterID UserID   `json:"presenterId"`
	PDFURL      string   `json:"pdfUrl,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	PageTexts   []string `json:"pageTexts,omitempty"`
}

// TranscriptSnapshot is the presenter-supplied speech-to-text state, stored
// and relayed verbatim. ByPage is client-owned; the server never parses it.
type TranscriptSnapshot struct {
	Transcription string          `json:"transcription"`
	History       []string        `json:"history,omitempty"`
	CurrentPage   int             `json:"currentPage"`
	ByPage        json.RawMessage `json:"transcriptionsByPage,omitempty"`
	Seq           uint64          `json:"seq"`
}

// Active reports whether the room has ever received a transcription update.
func (s *TranscriptSnapshot) Active() bool {
	return s.Seq > 0
}
