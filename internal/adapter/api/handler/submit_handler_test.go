package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventforge/eventforge/internal/domain/mocks"
	"github.com/eventforge/eventforge/internal/usecase"
)

func newSubmitHandler() (*SubmitHandler, *mocks.MockCanonicalStore) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := mocks.NewMockCanonicalStore()
	uc := usecase.NewSubmitUseCase(store, mocks.NewMockOverrideRepository(), mocks.NewMockGroupRepository(),
		logger, "p1", 30*24*time.Hour, 365*24*time.Hour, time.UTC)
	return NewSubmitHandler(uc, logger), store
}

func TestSubmitManualHandler(t *testing.T) {
	// A start date safely inside the collection window regardless of when
	// the test runs.
	startDate := time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "Valid Manual Event",
			body:           fmt.Sprintf(`{"title": "Hallway Track", "start_date": %q}`, startDate),
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Malformed JSON",
			body:           `{"title": "Hallway Track"`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown Field",
			body:           `{"title": "X", "start_date": "2026-09-20", "surprise": true}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing Title",
			body:           fmt.Sprintf(`{"start_date": %q}`, startDate),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown Group",
			body:           fmt.Sprintf(`{"title": "X", "start_date": %q, "group_id": "nope"}`, startDate),
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newSubmitHandler()

			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			h.SubmitManual(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %q)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}

func TestSubmitManualHandlerReturnsIdentityKey(t *testing.T) {
	h, store := newSubmitHandler()
	startDate := time.Now().UTC().AddDate(0, 1, 0).Format("2006-01-02")

	body := fmt.Sprintf(`{"title": "Hallway Track", "start_date": %q}`, startDate)
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	h.SubmitManual(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %q)", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	key := resp["identity_key"]
	if key == "" {
		t.Fatal("response carries no identity_key")
	}
	if _, ok := store.Events[key]; !ok {
		t.Error("returned identity key does not match the stored event")
	}
}

func TestSubmitOverrideHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "Valid Override",
			body:           `{"identity_key": "abc123", "patch": {"title": "Corrected"}}`,
			expectedStatus: http.StatusAccepted,
		},
		{
			name:           "Missing Identity Key",
			body:           `{"patch": {"title": "Corrected"}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Malformed JSON",
			body:           `{"identity_key": `,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newSubmitHandler()

			req := httptest.NewRequest(http.MethodPost, "/overrides", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			h.SubmitOverride(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %q)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}
