package models

import (
	"encoding/json"
	"time"
)

// AnalysisState is set by the external analysis pipeline.
type AnalysisState string

const (
	AnalysisPending    AnalysisState = "pending"
	AnalysisProcessing AnalysisState = "processing"
	AnalysisCompleted  AnalysisState = "completed"
	AnalysisError      AnalysisState = "error"
)

// Terminal reports whether the pipeline will not change the state again.
func (s AnalysisState) Terminal() bool {
	return s == AnalysisCompleted || s == AnalysisError
}

// Label returns the display label for the state.
func (s AnalysisState) Label() string {
	switch s {
	case AnalysisPending:
		return "Pending"
	case AnalysisProcessing:
		return "Processing"
	case AnalysisCompleted:
		return "Completed"
	case AnalysisError:
		return "Error"
	default:
		return string(s)
	}
}

// Patient is the subject of an analysis.
type Patient struct {
	ID            int       `json:"id"`
	DocumentID    string    `json:"documentId,omitempty"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Location      *string   `json:"location,omitempty"`
	BirthDate     string    `json:"birthDate,omitempty"`
	Gender        string    `json:"gender,omitempty"`
	DocumentType  string    `json:"DocumentType,omitempty"`
	DocumentValue string    `json:"documentValue,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Analysis is an audio-based screening processed by the external pipeline.
type Analysis struct {
	ID                 int             `json:"id"`
	DocumentID         string          `json:"documentId,omitempty"`
	Type               string          `json:"type"`
	Data               json.RawMessage `json:"data,omitempty"`
	State              AnalysisState   `json:"state"`
	AnalysisInternalID *string         `json:"analysisInternalId,omitempty"`
	Patient            *Patient        `json:"patient,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	PublishedAt        *time.Time      `json:"publishedAt,omitempty"`
}

// AnalysisStatus is the polling view of an analysis.
type AnalysisStatus struct {
	Status        AnalysisState        `json:"status"`
	Transcription *AudioAnalysisResult `json:"transcription,omitempty"`
}

// AudioUpload describes one recording to forward for transcription.
type AudioUpload struct {
	Filename           string                 `validate:"required"`
	ContentType        string                 `validate:"omitempty"`
	Size               int64                  `validate:"gt=0"`
	AnalysisID         string                 `validate:"omitempty"`
	AnalysisInternalID string                 `validate:"required"`
	Metadata           map[string]interface{} `validate:"-"`
}

// Transcription is the text produced for an uploaded recording.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// AudioAnalysisResult is the remote response to an audio upload.
type AudioAnalysisResult struct {
	Success       bool          `json:"success"`
	Transcription Transcription `json:"transcription"`
	Error         string        `json:"error,omitempty"`
}
