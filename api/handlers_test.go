package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/maastricht-university/upsot-pipeline/clients"
	"github.com/maastricht-university/upsot-pipeline/config"
	"github.com/maastricht-university/upsot-pipeline/orchestrator"
	"github.com/maastricht-university/upsot-pipeline/output"
	"github.com/maastricht-university/upsot-pipeline/params"
	"github.com/maastricht-university/upsot-pipeline/storage"
	"github.com/maastricht-university/upsot-pipeline/transcript"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, string) (*transcript.Transcript, error) {
	return transcript.New([]transcript.Segment{
		{Start: 0, End: 5, Text: "hello and welcome"},
		{Start: 6, End: 12, Text: "the launch went exactly to plan"},
		{Start: 13, End: 20, Text: "we will be back next week"},
	}, "en")
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	audio, err := storage.NewLocal(filepath.Join(dir, "audio"))
	if err != nil {
		t.Fatal(err)
	}
	log, _ := test.NewNullLogger()
	p := orchestrator.NewPipeline(orchestrator.Options{
		Audio:       audio,
		Transcriber: stubTranscriber{},
		Renderer:    output.NewGenerator(),
		Mailer:      clients.NewMailer(config.SMTP{From: "tool@example.com", Port: 587}, true, log),
		Log:         log,
		Defaults:    params.Defaults(),
		OutputsDir:  filepath.Join(dir, "outputs"),
	})
	srv := httptest.NewServer(NewRouter(p, log, 1<<20))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func uploadAudio(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	fw, err := w.CreateFormFile("audio", "take.wav")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("RIFF...."))
	_ = w.Close()

	resp, err := http.Post(srv.URL+basePath+"/upload-audio", w.FormDataContentType(), &b)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	id, _ := body["session_id"].(string)
	if id == "" {
		t.Fatalf("upload: missing session_id in %v", body)
	}
	return id
}

func TestUpload_MissingFile(t *testing.T) {
	srv := newServer(t)
	resp := postJSON(t, srv.URL+basePath+"/upload-audio", "{}")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body := decode(t, resp); body["success"] != false {
		t.Errorf("expected success=false, got %v", body)
	}
}

func TestSessionInfo_NotFound(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + basePath + "/session-info/unknown")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestFlow_TranscribeParametersScriptOutputEmail(t *testing.T) {
	srv := newServer(t)
	id := uploadAudio(t, srv)

	resp := postJSON(t, srv.URL+basePath+"/transcribe/"+id, `{"parameters":{"up_sots_count":2}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transcribe: expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["segments_count"].(float64) != 3 {
		t.Errorf("expected 3 segments, got %v", body["segments_count"])
	}

	resp = postJSON(t, srv.URL+basePath+"/set-parameters/"+id, `{"sensitivity":1.5,"sort_by_relevance":false}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("set-parameters: expected 400, got %d", resp.StatusCode)
	}
	body = decode(t, resp)
	prm := body["parameters"].(map[string]any)
	if prm["sensitivity"].(float64) != params.DefaultSensitivity || prm["sort_by_relevance"] != false {
		t.Errorf("unexpected parameters after partial rejection: %v", prm)
	}
	if _, ok := body["fields"].(map[string]any)["sensitivity"]; !ok {
		t.Errorf("expected sensitivity field error, got %v", body["fields"])
	}

	resp = postJSON(t, srv.URL+basePath+"/set-parameters/"+id, `{"sort_by_relevance":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set-parameters: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+basePath+"/set-script/"+id, `{"script":"The launch went exactly to plan."}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set-script: expected 200, got %d", resp.StatusCode)
	}
	body = decode(t, resp)
	ups := body["up_sots"].([]any)
	if len(ups) != 1 || ups[0].(map[string]any)["start_time"].(float64) != 6 {
		t.Errorf("expected the scripted segment only, got %v", ups)
	}

	resp = postJSON(t, srv.URL+basePath+"/set-script/"+id, `{"script":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty script: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+basePath+"/generate-output/"+id, `{"formats":{"txt":true,"pdf":false,"edl":true}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate-output: expected 200, got %d", resp.StatusCode)
	}
	body = decode(t, resp)
	urls := body["download_urls"].(map[string]any)
	if len(urls) != 2 || urls["edl"] != basePath+"/download/"+id+"/edl" {
		t.Errorf("unexpected download urls %v", urls)
	}

	dl, err := http.Get(srv.URL + basePath + "/download/" + id + "/edl")
	if err != nil {
		t.Fatal(err)
	}
	if dl.StatusCode != http.StatusOK || !strings.Contains(dl.Header.Get("Content-Disposition"), ".edl") {
		t.Errorf("download: status %d, disposition %q", dl.StatusCode, dl.Header.Get("Content-Disposition"))
	}
	dl.Body.Close()

	dl, err = http.Get(srv.URL + basePath + "/download/" + id + "/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if dl.StatusCode != http.StatusBadRequest {
		t.Errorf("download pdf: expected 400, got %d", dl.StatusCode)
	}
	dl.Body.Close()

	resp = postJSON(t, srv.URL+basePath+"/send-email/"+id, `{"email":"not-an-email"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("send-email invalid: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+basePath+"/send-email/"+id, `{"email":"editor@example.com","include_txt":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send-email: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	info, err := http.Get(srv.URL + basePath + "/session-info/" + id)
	if err != nil {
		t.Fatal(err)
	}
	body = decode(t, info)
	sess := body["session"].(map[string]any)
	if sess["status"] != string(orchestrator.StatusSelected) {
		t.Errorf("expected selected status, got %v", sess["status"])
	}
	email := sess["email_sent"].(map[string]any)
	if email["recipient"] != "editor@example.com" || email["simulated"] != true {
		t.Errorf("unexpected email info %v", email)
	}
	if _, leaked := sess["audio_path"]; leaked {
		t.Error("session info must not expose file paths")
	}
}

func TestGenerateOutput_BeforeTranscription(t *testing.T) {
	srv := newServer(t)
	id := uploadAudio(t, srv)
	resp := postJSON(t, srv.URL+basePath+"/generate-output/"+id, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func sessionParameters(t *testing.T, srv *httptest.Server, id string) map[string]any {
	t.Helper()
	resp, err := http.Get(srv.URL + basePath + "/session-info/" + id)
	if err != nil {
		t.Fatal(err)
	}
	return decode(t, resp)["session"].(map[string]any)["parameters"].(map[string]any)
}

func TestSetParameters_WrongTypeKeepsValidFields(t *testing.T) {
	srv := newServer(t)
	id := uploadAudio(t, srv)

	resp := postJSON(t, srv.URL+basePath+"/set-parameters/"+id, `{"up_sots_count":"three","sensitivity":0.2}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	fields := body["fields"].(map[string]any)
	if _, ok := fields["up_sots_count"]; !ok || len(fields) != 1 {
		t.Errorf("expected only up_sots_count rejected, got %v", fields)
	}

	prm := sessionParameters(t, srv, id)
	if prm["sensitivity"].(float64) != 0.2 {
		t.Errorf("expected sensitivity 0.2 applied, got %v", prm["sensitivity"])
	}
	if prm["up_sots_count"].(float64) != params.DefaultUpSotsCount {
		t.Errorf("expected count unchanged, got %v", prm["up_sots_count"])
	}
}

func TestSetParameters_AllFieldsWrongType(t *testing.T) {
	srv := newServer(t)
	id := uploadAudio(t, srv)

	resp := postJSON(t, srv.URL+basePath+"/set-parameters/"+id, `{"sort_by_relevance":"no"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if _, ok := body["fields"].(map[string]any)["sort_by_relevance"]; !ok {
		t.Errorf("expected sort_by_relevance field error, got %v", body["fields"])
	}
}

func TestSetParameters_EmptyBody(t *testing.T) {
	srv := newServer(t)
	id := uploadAudio(t, srv)

	for _, body := range []string{`{}`, ``, `{"colour":"blue"}`, `[1,2]`} {
		resp := postJSON(t, srv.URL+basePath+"/set-parameters/"+id, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", body, resp.StatusCode)
		}
		if got := decode(t, resp)["error"]; got != "No parameters provided" {
			t.Errorf("%q: unexpected error %v", body, got)
		}
	}
}

func TestTranscribe_WrongTypeInlineParameter(t *testing.T) {
	srv := newServer(t)
	id := uploadAudio(t, srv)

	resp := postJSON(t, srv.URL+basePath+"/transcribe/"+id, `{"parameters":{"up_sots_count":1,"sensitivity":"high"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["parameters"].(map[string]any)["up_sots_count"].(float64) != 1 {
		t.Errorf("expected count 1 applied, got %v", body["parameters"])
	}
	if _, ok := body["parameter_errors"].(map[string]any)["sensitivity"]; !ok {
		t.Errorf("expected sensitivity reported, got %v", body["parameter_errors"])
	}
}

func TestGenerateOutput_UnknownFormat(t *testing.T) {
	srv := newServer(t)
	id := uploadAudio(t, srv)
	resp := postJSON(t, srv.URL+basePath+"/transcribe/"+id, "")
	resp.Body.Close()

	resp = postJSON(t, srv.URL+basePath+"/generate-output/"+id, `{"formats":{"docx":true}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
