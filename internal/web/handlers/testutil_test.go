package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mock"
	"github.com/kozaktomas/face-auth/internal/encoder"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/logger"
	"github.com/kozaktomas/face-auth/internal/verifier"
)

const testSecret = "handler-test-secret"

var (
	imageAlice = []byte("alice-face")
	imageBob   = []byte("bob-face")
	imageNone  = []byte("empty-room")
)

// testEnv wires a real verifier to a fake encoder and an in-memory persister.
type testEnv struct {
	handler   *FaceHandler
	verifier  *verifier.Verifier
	persister *mock.MockPersister
	tokens    *auth.TokenValidator
	encodeErr error
}

func newTestEnv(t *testing.T, opts ...verifier.Option) *testEnv {
	t.Helper()

	env := &testEnv{persister: mock.NewMockPersister(nil)}
	store := database.NewTemplateStore(env.persister, database.WithLogger(logger.Discard()))
	store.Load(context.Background())

	tokens, err := auth.NewTokenValidator(testSecret, "HS256")
	if err != nil {
		t.Fatalf("failed to create token validator: %v", err)
	}
	env.tokens = tokens

	faces := map[string][]facematch.Embedding{
		string(imageAlice): {{0.1, 0.2, 0.3}},
		string(imageBob):   {{0.9, -0.5, 0.7}},
	}
	enc := encoder.Func(func(_ context.Context, image []byte) ([]facematch.Embedding, error) {
		if env.encodeErr != nil {
			return nil, env.encodeErr
		}
		return faces[string(image)], nil
	})

	opts = append([]verifier.Option{verifier.WithLogger(logger.Discard())}, opts...)
	env.verifier = verifier.New(store, enc, tokens, opts...)
	env.handler = NewFaceHandler(env.verifier, logger.Discard())
	return env
}

func (e *testEnv) token(t *testing.T, identity string) string {
	t.Helper()
	tok, err := e.tokens.GenerateToken(identity, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return tok
}

// tokenFunc adapts a function to verifier.TokenValidator.
type tokenFunc func(string) (string, error)

func (f tokenFunc) Validate(token string) (string, error) { return f(token) }

// router mounts the handler the same way the server does.
func (e *testEnv) router() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/enroll", e.handler.Enroll)
	r.Delete("/api/enroll/{user_id}", e.handler.DeleteUser)
	r.Post("/api/verify", e.handler.Verify)
	r.Get("/api/users", e.handler.ListUsers)
	r.Get("/api/health", e.handler.Health)
	return r
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router().ServeHTTP(rec, req)
	return rec
}

// enrollRequest builds a multipart enrollment request.
func enrollRequest(t *testing.T, userID, contentType string, data []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="face.jpg"`)
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	writer.Close()

	path := "/api/enroll"
	if userID != "" {
		path += "?user_id=" + userID
	}
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// verifyRequest builds a JSON verification request.
func verifyRequest(t *testing.T, event, token string, image []byte) *http.Request {
	t.Helper()

	body, err := json.Marshal(VerifyRequest{
		Event:      event,
		Token:      token,
		FacialData: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", rec.Body.String(), err)
	}
	return v
}
