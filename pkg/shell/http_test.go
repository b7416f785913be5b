package shell

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/diseaseform/pkg/common/models"
	"github.com/synaptica-ai/diseaseform/pkg/gateway/middleware"
	"github.com/synaptica-ai/diseaseform/pkg/session"
	"github.com/synaptica-ai/diseaseform/pkg/voice"
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newServer(t *testing.T, transcript string) (*httptest.Server, *session.MemoryBackend) {
	return newServerWithOptions(t, transcript, HandlerOptions{})
}

func newServerWithOptions(t *testing.T, transcript string, opts HandlerOptions) (*httptest.Server, *session.MemoryBackend) {
	t.Helper()
	backend := session.NewMemoryBackend()
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Session(time.Hour, false))
	NewHandler(newShell(t, transcript), backend, opts).Register(api)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, backend
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	jar, _ := cookiejar.New(nil)
	return &client{t: t, base: srv.URL + "/api/v1", http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, c.base+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *client) send(req *http.Request, out interface{}) int {
	c.t.Helper()
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("decode %s: %v", req.URL.Path, err)
		}
	}
	return resp.StatusCode
}

func (c *client) voice(feature string, wav []byte, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("feature", feature)
	fw, _ := mw.CreateFormFile("audio", "clip.wav")
	_, _ = fw.Write(wav)
	_ = mw.Close()
	req, _ := http.NewRequest(http.MethodPost, c.base+"/form/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, out)
}

func speech() []byte {
	pcm := make([]int16, 16000)
	for i := range pcm {
		if i%16 < 8 {
			pcm[i] = 4000
		} else {
			pcm[i] = -4000
		}
	}
	return voice.Clip{PCM: pcm, SampleRate: 16000}.WAV()
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, _ := newServer(t, "")
	alice, bob := newClient(t, srv), newClient(t, srv)

	if code := alice.do(http.MethodPut, "/form/fields", models.EditFieldRequest{Feature: "Glucose", Value: "148"}, nil); code != http.StatusOK {
		t.Fatalf("alice edit: %d", code)
	}
	var view models.FormView
	if code := bob.do(http.MethodGet, "/form", nil, &view); code != http.StatusOK {
		t.Fatalf("bob render: %d", code)
	}
	if view.Fields[1].Value != "" {
		t.Fatalf("bob sees alice's value %q", view.Fields[1].Value)
	}
	alice.do(http.MethodGet, "/form", nil, &view)
	if view.Fields[1].Value != "148" || view.Fields[1].Key != "diabetes_Glucose" {
		t.Fatalf("alice lost her value: %+v", view.Fields[1])
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	srv, _ := newServer(t, "")
	c := newClient(t, srv)

	c.do(http.MethodPut, "/form/fields", models.EditFieldRequest{Feature: "BMI", Value: "33.6"}, nil)

	var view models.FormView
	if code := c.do(http.MethodPut, "/form/selection", models.SelectPanelRequest{PanelID: "parkinsons"}, &view); code != http.StatusOK {
		t.Fatalf("select: %d", code)
	}
	if view.PanelID != "parkinsons" || len(view.Fields) != 22 || len(view.Panels) != 3 {
		t.Fatalf("unexpected view %+v", view)
	}
	c.do(http.MethodPut, "/form/selection", models.SelectPanelRequest{PanelID: "diabetes"}, &view)
	if view.Fields[5].Value != "33.6" {
		t.Fatalf("value lost across selection: %+v", view.Fields[5])
	}
	if code := c.do(http.MethodPut, "/form/selection", models.SelectPanelRequest{PanelID: "kidney"}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown panel, got %d", code)
	}
	if code := c.do(http.MethodPut, "/form/fields", models.EditFieldRequest{Feature: "chol", Value: "1"}, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown feature, got %d", code)
	}
}

func TestPredictOverHTTP(t *testing.T) {
	srv, _ := newServer(t, "")
	c := newClient(t, srv)

	var res models.PredictionResponse
	c.do(http.MethodPost, "/form/predict", nil, &res)
	if res.Outcome != "invalid_input" || res.Message != "Please enter valid numeric values." {
		t.Fatalf("unexpected response %+v", res)
	}

	values := []string{"2", "120", "70", "20", "79", "25.0", "0.5", "30"}
	features := []string{"Pregnancies", "Glucose", "BloodPressure", "SkinThickness", "Insulin", "BMI", "DiabetesPedigreeFunction", "Age"}
	for i, f := range features {
		c.do(http.MethodPut, "/form/fields", models.EditFieldRequest{Feature: f, Value: values[i]}, nil)
	}
	c.do(http.MethodPost, "/form/predict", nil, &res)
	if res.Outcome != "positive" || res.Message != "The person is diabetic" {
		t.Fatalf("unexpected response %+v", res)
	}
}

func TestVoiceOverHTTP(t *testing.T) {
	srv, _ := newServer(t, " 72 ")
	c := newClient(t, srv)

	var res models.VoiceCaptureResponse
	if code := c.voice("Age", speech(), &res); code != http.StatusOK {
		t.Fatalf("voice: %d", code)
	}
	if !res.Success || res.Value != "72" || res.Message != "You said: 72" {
		t.Fatalf("unexpected response %+v", res)
	}

	silent := voice.Clip{PCM: make([]int16, 16000*6), SampleRate: 16000}.WAV()
	res = models.VoiceCaptureResponse{}
	c.voice("Age", silent, &res)
	if res.Success || res.ErrorKind != "timeout" || res.Message != "Listening timed out" || res.Value != "72" {
		t.Fatalf("unexpected timeout response %+v", res)
	}

	if code := c.voice("Age", []byte("not audio"), nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad audio, got %d", code)
	}
	if code := c.voice("Cholesterol", speech(), nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown feature, got %d", code)
	}
}

func TestEndSession(t *testing.T) {
	srv, backend := newServer(t, "")
	c := newClient(t, srv)
	c.do(http.MethodPut, "/form/fields", models.EditFieldRequest{Feature: "Age", Value: "40"}, nil)
	if backend.Len() != 1 {
		t.Fatalf("expected one session, got %d", backend.Len())
	}
	if code := c.do(http.MethodDelete, "/session", nil, nil); code != http.StatusNoContent {
		t.Fatalf("end session: %d", code)
	}
	if backend.Len() != 0 {
		t.Fatalf("session state not destroyed, %d left", backend.Len())
	}
	var view models.FormView
	c.do(http.MethodGet, "/form", nil, &view)
	if view.Fields[7].Value != "" {
		t.Fatalf("new session inherited old value %q", view.Fields[7].Value)
	}
}

func TestVoiceRateLimitIsPerSession(t *testing.T) {
	srv, _ := newServerWithOptions(t, "72", HandlerOptions{VoiceRPS: 1, VoiceBurst: 2})
	a, b := newClient(t, srv), newClient(t, srv)

	// Bind both sessions before spending a's budget.
	a.do(http.MethodGet, "/form", nil, nil)
	b.do(http.MethodGet, "/form", nil, nil)

	for i := 0; i < 2; i++ {
		if code := a.voice("Age", speech(), nil); code != http.StatusOK {
			t.Fatalf("a voice %d: %d", i, code)
		}
	}
	if code := a.voice("Age", speech(), nil); code != http.StatusTooManyRequests {
		t.Fatalf("expected a to be throttled, got %d", code)
	}
	if code := b.voice("Age", speech(), nil); code != http.StatusOK {
		t.Fatalf("b throttled by a's voice usage: %d", code)
	}
}

func TestEditReportsWrittenKey(t *testing.T) {
	srv, _ := newServer(t, "")
	c := newClient(t, srv)

	c.do(http.MethodPut, "/form/selection", models.SelectPanelRequest{PanelID: "heart"}, nil)
	var field models.FieldView
	if code := c.do(http.MethodPut, "/form/fields", models.EditFieldRequest{Feature: "age", Value: "54"}, &field); code != http.StatusOK {
		t.Fatalf("edit: %d", code)
	}
	if field.Key != "heart_age" || field.Value != "54" {
		t.Fatalf("unexpected field %+v", field)
	}
}
