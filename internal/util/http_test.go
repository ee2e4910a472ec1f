package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teapotErr struct{}

func (teapotErr) Error() string   { return "short and stout" }
func (teapotErr) StatusCode() int { return http.StatusTeapot }

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 500, StatusOf(errors.New("plain")))
	assert.Equal(t, 404, StatusOf(NewStatusError(404, "not_found", "missing")))
	assert.Equal(t, 418, StatusOf(fmt.Errorf("wrapped: %w", teapotErr{})))
	assert.Equal(t, 500, StatusOf(&StatusError{Status: 200}))
}

func TestErrorBodyHidesServerErrorDetail(t *testing.T) {
	status, body := ErrorBody(errors.New("open /var/task/secret.db: permission denied"), "rid")
	assert.Equal(t, 500, status)
	assert.Equal(t, "internal_error", body.Code)
	assert.NotContains(t, body.Message, "/var/task")
	assert.Equal(t, "rid", body.RequestID)

	status, body = ErrorBody(NewStatusError(409, "already_decided", "appointment already decided"), "")
	assert.Equal(t, 409, status)
	assert.Equal(t, "already_decided", body.Code)
}

func TestWriteErrorShape(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 401, "unauthorized", "authentication required", "rid-1")

	assert.Equal(t, 401, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "unauthorized", got["error"])
	assert.Equal(t, "authentication required", got["message"])
	assert.Equal(t, "rid-1", got["request_id"])
}
