package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
)

func uploadRequest(t *testing.T, audio []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if audio != nil {
		part, err := writer.CreateFormFile("audio", "visit.wav")
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/analysis/create", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAnalysisCreateUploadsRecording(t *testing.T) {
	app := newTestApp(t)
	app.analyses.result = &models.AudioAnalysisResult{Success: true, Transcription: models.Transcription{Text: "patient reports cough", Confidence: 0.91}}

	req := uploadRequest(t, []byte("RIFF-audio"), map[string]string{
		"analysisId":         "12",
		"analysisInternalId": "int-12",
		"metadata":           `{"duration":42}`,
	})
	rec := app.do(req, app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "patient reports cough")
	assert.Equal(t, "visit.wav", app.analyses.upload.Filename)
	assert.Equal(t, "int-12", app.analyses.upload.AnalysisInternalID)
	assert.EqualValues(t, 42, app.analyses.upload.Metadata["duration"])
	assert.Equal(t, []byte("RIFF-audio"), app.analyses.audio)
}

func TestAnalysisCreateJSONFailureIsStructured(t *testing.T) {
	app := newTestApp(t)
	app.analyses.err = appErrors.Clone(appErrors.ErrUpstream, "transcriber offline")

	req := uploadRequest(t, []byte("RIFF"), map[string]string{"analysisInternalId": "int-1"})
	req.Header.Set("Accept", "application/json")
	rec := app.do(req, app.signIn(t, adminRole))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var result models.AudioAnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "transcriber offline", result.Error)
}

func TestAnalysisCreateValidatesInput(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, adminRole)

	req := uploadRequest(t, nil, map[string]string{"analysisInternalId": "int-1"})
	req.Header.Set("Accept", "application/json")
	rec := app.do(req, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "an audio file is required")

	req = uploadRequest(t, bytes.Repeat([]byte("a"), 2048), map[string]string{"analysisInternalId": "int-1"})
	req.Header.Set("Accept", "application/json")
	rec = app.do(req, cookie)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = uploadRequest(t, []byte("RIFF"), map[string]string{"analysisInternalId": "int-1", "metadata": "not json"})
	rec = app.do(req, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "metadata must be a JSON object")
	assert.Contains(t, rec.Body.String(), `value="int-1"`)
}

func TestAnalysisCreateStopsReadingOversizeBody(t *testing.T) {
	app := newTestApp(t)
	cookie := app.signIn(t, adminRole)
	audio := bytes.Repeat([]byte("a"), 1024+uploadOverhead+1)

	req := uploadRequest(t, audio, map[string]string{"analysisInternalId": "int-1"})
	req.Header.Set("Accept", "application/json")
	rec := app.do(req, cookie)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	// no declared length: the body reader enforces the limit
	req = uploadRequest(t, audio, map[string]string{"analysisInternalId": "int-1"})
	req.Header.Set("Accept", "application/json")
	req.ContentLength = -1
	rec = app.do(req, cookie)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, app.analyses.audio)
}

func TestAnalysisDetail(t *testing.T) {
	app := newTestApp(t)
	internal := "int-12"
	app.analyses.analysis = &models.Analysis{
		ID:                 12,
		Type:               "voice",
		State:              models.AnalysisProcessing,
		AnalysisInternalID: &internal,
		Patient:            &models.Patient{Username: "maria", Email: "maria@mail.test"},
	}
	cookie := app.signIn(t, adminRole)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/analysis/12", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Processing")
	assert.Contains(t, rec.Body.String(), "int-12")
	assert.Contains(t, rec.Body.String(), "maria@mail.test")

	app.analyses.err = appErrors.Clone(appErrors.ErrNotFound, "analysis not found")
	rec = app.do(httptest.NewRequest(http.MethodGet, "/analysis/99", nil), cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "analysis not found")
}

func TestAnalysisStatus(t *testing.T) {
	app := newTestApp(t)
	app.analyses.status = &models.AnalysisStatus{Status: models.AnalysisCompleted}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/analysis/12/status", nil), app.signIn(t, adminRole))

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.JSONEq(t, `{"status":"completed"}`, string(env.Data))
}
