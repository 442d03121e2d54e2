package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/trajgroups/pkg/observability"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
	"github.com/matzehuels/trajgroups/pkg/session"
)

// walkCSV is three entities over six frames; entity 2 walks towards the
// other two.
func walkCSV() string {
	var b strings.Builder
	b.WriteString("frame,id,x,y\n")
	for f := range 6 {
		fmt.Fprintf(&b, "%d,0,0,0\n%d,1,1,0\n%d,2,%d,0\n", f, f, f, 8-f)
	}
	return b.String()
}

func newServer(t *testing.T) (*httptest.Server, *session.Session) {
	t.Helper()
	r := pipeline.NewRunner(nil, nil, nil, log.NewWithOptions(io.Discard, log.Options{}))
	sess := session.New(r, nil)
	t.Cleanup(func() { sess.Close(context.Background()) })

	srv := httptest.NewServer(New(sess, Options{Gatherer: prometheus.NewRegistry(), MaxUpload: 4096}).Handler())
	t.Cleanup(srv.Close)
	return srv, sess
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeError(t *testing.T, data []byte) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("decode error body %q: %v", data, err)
	}
	return e
}

func TestHealth(t *testing.T) {
	srv, sess := newServer(t)
	resp, data := do(t, http.MethodGet, srv.URL+"/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["session"] != sess.ID {
		t.Errorf("body = %v", body)
	}
}

func TestUploadDataset(t *testing.T) {
	srv, sess := newServer(t)

	resp, data := do(t, http.MethodPost, srv.URL+"/v1/datasets/walk", walkCSV())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var info DatasetInfo
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatal(err)
	}
	if info.Name != "walk" || info.Entities != 3 || info.Frames != 6 || info.Hash == "" {
		t.Errorf("info = %+v", info)
	}
	if names := sess.Datasets(); len(names) != 1 || names[0] != "walk" {
		t.Errorf("session datasets = %v", names)
	}

	resp, data = do(t, http.MethodGet, srv.URL+"/v1/datasets", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), `"walk"`) {
		t.Errorf("list = %d %s", resp.StatusCode, data)
	}
}

func TestUploadDataset_Errors(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed", "frame,id,x,y\n0,0,zero,0\n", "INVALID_DATASET"},
		{"too large", walkCSV() + strings.Repeat("5,0,0,0\n", 1000), "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, http.MethodPost, srv.URL+"/v1/datasets/bad", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			e := decodeError(t, data)
			if e.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Error.Code, tt.wantCode)
			}
			if e.RequestID == "" {
				t.Error("missing request id")
			}
		})
	}
}

func TestStartRun_Wait(t *testing.T) {
	srv, _ := newServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/datasets/walk", walkCSV())

	resp, data := do(t, http.MethodPost, srv.URL+"/v1/datasets/walk/orderings?wait=true", `{"epsilon": 1.5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var run session.Run
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatal(err)
	}
	if run.Status != session.StatusDone || run.Result == nil || run.Result.Ordering == nil {
		t.Fatalf("run = %s", data)
	}
	if len(run.Result.Ordering.Layers) == 0 {
		t.Error("ordering has no layers")
	}

	resp, data = do(t, http.MethodGet, srv.URL+"/v1/runs/"+run.ID, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(data), run.ID) {
		t.Errorf("get run = %d %s", resp.StatusCode, data)
	}
}

func TestStartRun_Async(t *testing.T) {
	srv, sess := newServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/datasets/walk", walkCSV())

	resp, data := do(t, http.MethodPost, srv.URL+"/v1/datasets/walk/orderings", `{"epsilon": 1.5, "policy": "maximal"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var run session.Run
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("Location") != "/v1/runs/"+run.ID {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}

	sess.Wait()
	got, err := sess.Run(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != session.StatusDone {
		t.Errorf("status = %s (%s)", got.Status, got.Error)
	}
}

func TestStartRun_Errors(t *testing.T) {
	srv, _ := newServer(t)
	do(t, http.MethodPost, srv.URL+"/v1/datasets/walk", walkCSV())

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"unknown dataset", "/v1/datasets/missing/orderings", `{"epsilon": 1}`, http.StatusNotFound, "NOT_FOUND"},
		{"bad json", "/v1/datasets/walk/orderings", `{"epsilon":`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", "/v1/datasets/walk/orderings", `{"eps": 1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"negative epsilon", "/v1/datasets/walk/orderings", `{"epsilon": -1}`, http.StatusBadRequest, "INVALID_OPTION"},
		{"unknown policy", "/v1/datasets/walk/orderings", `{"epsilon": 1, "policy": "widest"}`, http.StatusBadRequest, "INVALID_OPTION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, http.MethodPost, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if e := decodeError(t, data); e.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestGetRun_NotFound(t *testing.T) {
	srv, _ := newServer(t)
	resp, data := do(t, http.MethodGet, srv.URL+"/v1/runs/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if e := decodeError(t, data); e.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q", e.Error.Code)
	}
}

type recordingHTTP struct {
	observability.NoopHTTPHooks
	routes chan string
}

func (r *recordingHTTP) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	r.routes <- fmt.Sprintf("%s %s %d", method, route, status)
}

func TestObserve_RoutePattern(t *testing.T) {
	rec := &recordingHTTP{routes: make(chan string, 4)}
	observability.SetHTTPHooks(rec)
	t.Cleanup(observability.Reset)

	srv, _ := newServer(t)
	do(t, http.MethodGet, srv.URL+"/v1/runs/abc", "")

	select {
	case got := <-rec.routes:
		if got != "GET /v1/runs/{id} 404" {
			t.Errorf("observed %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no response observed")
	}
}

func TestListenAndServe_Shutdown(t *testing.T) {
	r := pipeline.NewRunner(nil, nil, nil, log.NewWithOptions(io.Discard, log.Options{}))
	sess := session.New(r, nil)
	t.Cleanup(func() { sess.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(sess, Options{}).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
