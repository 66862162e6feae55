package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordEnrollment("success")
	m.RecordEnrollment("success")
	m.RecordEnrollment("no_face")
	m.RecordVerification("login-event", "match", 10*time.Millisecond)
	m.RecordPersist("file", time.Millisecond, nil)
	m.RecordPersist("file", time.Millisecond, errors.New("disk full"))
	m.RecordEncoderCall(time.Millisecond, errors.New("timeout"))
	m.SetEnrolledUsers(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EnrollmentsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EnrollmentsTotal.WithLabelValues("no_face")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("login-event", "match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistTotal.WithLabelValues("file", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EncoderErrorsTotal))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.EnrolledUsers))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Creating two instances must not panic on duplicate registration.
	a := New()
	b := New()
	a.SetEnrolledUsers(1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.EnrolledUsers))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.SetEnrolledUsers(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "faceauth_enrolled_users 3"))
}
