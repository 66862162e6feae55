package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-auth/internal/encoder"
	"github.com/kozaktomas/face-auth/internal/verifier"
)

func TestEnroll_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(enrollRequest(t, "alice", "image/jpeg", imageAlice))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[EnrollResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Face enrolled successfully", resp.Message)
	assert.Equal(t, "alice", resp.UserID)
	assert.Equal(t, 1, resp.Templates)
	assert.True(t, resp.Persisted)
	assert.False(t, resp.Timestamp.IsZero())

	assert.Equal(t, []string{"alice"}, env.verifier.Users())
	assert.Equal(t, 1, env.persister.Saves())
}

func TestEnroll_KeepsThreeTemplates(t *testing.T) {
	env := newTestEnv(t)

	var resp EnrollResponse
	for range 5 {
		rec := env.do(enrollRequest(t, "alice", "image/png", imageAlice))
		require.Equal(t, http.StatusOK, rec.Code)
		resp = decodeBody[EnrollResponse](t, rec)
	}
	assert.Equal(t, 3, resp.Templates)
}

func TestEnroll_PersistFailureStillSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.persister.SaveError = errors.New("disk full")

	rec := env.do(enrollRequest(t, "alice", "image/jpeg", imageAlice))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[EnrollResponse](t, rec)
	assert.True(t, resp.Success)
	assert.False(t, resp.Persisted)
}

func TestEnroll_Errors(t *testing.T) {
	tests := []struct {
		name        string
		userID      string
		contentType string
		data        []byte
		encodeErr   error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "missing user_id",
			contentType: "image/jpeg",
			data:        imageAlice,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "validation_error",
			wantMessage: "user_id is required",
		},
		{
			name:        "not an image",
			userID:      "alice",
			contentType: "text/plain",
			data:        imageAlice,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "validation_error",
			wantMessage: "File must be an image",
		},
		{
			name:        "no face",
			userID:      "alice",
			contentType: "image/jpeg",
			data:        imageNone,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "face_not_detected",
			wantMessage: "Failed to process face image. Ensure image contains exactly one clear face.",
		},
		{
			name:        "undecodable image",
			userID:      "alice",
			contentType: "image/jpeg",
			data:        imageAlice,
			encodeErr:   encoder.ErrDecodeFailure,
			wantStatus:  http.StatusBadRequest,
			wantCode:    "face_not_detected",
		},
		{
			name:        "encoder unavailable",
			userID:      "alice",
			contentType: "image/jpeg",
			data:        imageAlice,
			encodeErr:   encoder.ErrUnavailable,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "internal_server_error",
			wantMessage: "Internal server error during face enrollment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.encodeErr = tt.encodeErr

			rec := env.do(enrollRequest(t, tt.userID, tt.contentType, tt.data))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantCode, resp.Error)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Message)
			}
			assert.Zero(t, env.verifier.Count())
		})
	}
}

func TestEnroll_MissingFile(t *testing.T) {
	env := newTestEnv(t)

	body := &bytes.Buffer{}
	req := httptest.NewRequest(http.MethodPost, "/api/enroll?user_id=alice", body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	body.WriteString("--xyz--\r\n")

	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file is required", decodeBody[ErrorResponse](t, rec).Message)
}

func TestEnroll_NotMultipart(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/enroll?user_id=alice", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeBody[ErrorResponse](t, rec).Error)
}

func TestEnroll_SizeLimit(t *testing.T) {
	const limit = 64

	t.Run("exactly at limit", func(t *testing.T) {
		env := newTestEnv(t, verifier.WithMaxFileSize(limit))
		// The fake encoder finds no face in unknown bytes, so a 400 means the
		// size check passed.
		rec := env.do(enrollRequest(t, "alice", "image/jpeg", bytes.Repeat([]byte{1}, limit)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "face_not_detected", decodeBody[ErrorResponse](t, rec).Error)
	})

	t.Run("one byte over", func(t *testing.T) {
		env := newTestEnv(t, verifier.WithMaxFileSize(limit))
		rec := env.do(enrollRequest(t, "alice", "image/jpeg", bytes.Repeat([]byte{1}, limit+1)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "payload_too_large", decodeBody[ErrorResponse](t, rec).Error)
	})

	t.Run("body beyond multipart allowance", func(t *testing.T) {
		env := newTestEnv(t, verifier.WithMaxFileSize(limit))
		rec := env.do(enrollRequest(t, "alice", "image/jpeg", bytes.Repeat([]byte{1}, 256*1024)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}
