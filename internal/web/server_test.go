package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/geoimport/internal/config"
	"github.com/JonMunkholm/geoimport/internal/core"
	"github.com/JonMunkholm/geoimport/internal/handler"
	"github.com/JonMunkholm/geoimport/internal/lock"
	"github.com/JonMunkholm/geoimport/internal/storage"
	"github.com/JonMunkholm/geoimport/internal/tasks"
)

const testSLD = `<?xml version="1.0"?><StyledLayerDescriptor version="1.0.0"><NamedLayer><Name>roads</Name></NamedLayer></StyledLayerDescriptor>`

type testEnv struct {
	srv    *Server
	store  *core.MemoryStore
	runner *tasks.Inline
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	files, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	store := core.NewMemoryStore()
	runner := tasks.NewInline()
	registry := core.NewRegistry(handler.Fallback())
	handler.Register(registry, handler.Deps{
		Assets:    core.NewAssetStore(store, lock.NewKeyed()),
		Repo:      store,
		Resources: store,
		Runner:    runner,
		Files:     files,
	}, nil)

	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Upload: config.UploadConfig{
			MaxFileSize:      1 << 20,
			MaxDocumentBytes: 1 << 20,
			Timeout:          10 * time.Second,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	srv := NewServer(Deps{
		Orchestrator: core.NewOrchestrator(registry, core.NewImportLimiter(2, time.Second), core.WithImportStore(store)),
		Registry:     registry,
		Files:        files,
		Catalog:      store,
	}, cfg)

	return &testEnv{srv: srv, store: store, runner: runner}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

// uploadRequest builds a multipart POST /api/imports.
func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mpw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mpw.CreateFormFile(core.FileKeyBase, filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(content))
	}
	for k, v := range fields {
		if err := mpw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	mpw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &body)
	req.Header.Set("Content-Type", mpw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["handlers"] != float64(2) {
		t.Errorf("handlers = %v, want 2", body["handlers"])
	}
}

func TestListHandlers(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/handlers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	descs := decode[[]map[string]any](t, rec)
	if len(descs) != 2 || descs[0]["id"] != "sld" || descs[1]["id"] != "xml" {
		t.Errorf("descriptors = %v", descs)
	}

	page := env.do(httptest.NewRequest(http.MethodGet, "/handlers", nil))
	if page.Code != http.StatusOK {
		t.Fatalf("page status = %d", page.Code)
	}
	if ct := page.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(page.Body.String(), "XML Metadata File") {
		t.Errorf("page missing xml handler: %s", page.Body.String())
	}
}

func TestCreateImport_Status(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		action   string
		resource string
		want     int
		wantCode string
	}{
		{"valid style", "roads.sld", testSLD, "resource_style_upload", "", http.StatusCreated, ""},
		{"malformed style", "roads.sld", "<StyledLayerDescriptor>", "resource_style_upload", "", http.StatusUnprocessableEntity, "VAL010"},
		{"no handler", "roads.shp", "x", "import", "", http.StatusUnsupportedMediaType, "IMP001"},
		{"wrong action for sld", "roads.sld", testSLD, "resource_metadata_upload", "", http.StatusUnsupportedMediaType, "IMP001"},
		{"no file", "", "", "resource_style_upload", "", http.StatusBadRequest, "FILE004"},
		{"unknown resource", "roads.sld", testSLD, "resource_style_upload", uuid.NewString(), http.StatusNotFound, "IMP003"},
		{"bad resource id", "roads.sld", testSLD, "resource_style_upload", "nope", http.StatusUnprocessableEntity, "VAL010"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			fields := map[string]string{"action": tt.action}
			if tt.resource != "" {
				fields["resource_id"] = tt.resource
			}

			rec := env.do(uploadRequest(t, tt.filename, tt.content, fields))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantCode != "" {
				if got := decode[ErrorResponse](t, rec).Code; got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
			}
		})
	}
}

func TestCreateImport_TooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Upload.MaxFileSize = 64 })

	rec := env.do(uploadRequest(t, "roads.sld", testSLD+strings.Repeat(" ", 256), map[string]string{"action": "resource_style_upload"}))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestImportLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	res := core.Resource{ID: uuid.New(), Title: "roads", Subtype: "vector"}
	env.store.PutResource(res)

	rec := env.do(uploadRequest(t, "roads.sld", testSLD, map[string]string{
		"action":      "resource_style_upload",
		"resource_id": res.ID.String(),
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body.String())
	}
	created := decode[core.Result](t, rec)
	if created.State != core.StateCompleted {
		t.Fatalf("state = %q", created.State)
	}

	got := env.do(httptest.NewRequest(http.MethodGet, "/api/imports/"+created.ImportID.String(), nil))
	if got.Code != http.StatusOK {
		t.Fatalf("get status = %d", got.Code)
	}
	status := decode[core.ImportStatus](t, got)
	if status.HandlerID != "sld" || status.State != core.StateCompleted {
		t.Errorf("status = %+v", status)
	}

	list := env.do(httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	if n := len(decode[[]core.ImportStatus](t, list)); n != 1 {
		t.Errorf("listed %d imports, want 1", n)
	}

	resp := env.do(httptest.NewRequest(http.MethodGet, "/api/resources/"+res.ID.String(), nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("resource status = %d", resp.Code)
	}
	withLinks := decode[resourceResponse](t, resp)
	if len(withLinks.Links) != 1 || withLinks.Links[0].AssetID != created.Outcome.AssetID {
		t.Errorf("links = %+v", withLinks.Links)
	}
	if !withLinks.Resource.SLDUploaded {
		t.Errorf("resource not styled: %+v", withLinks.Resource)
	}

	path := "/api/imports/" + created.ImportID.String() + "/rollback"
	first := env.do(httptest.NewRequest(http.MethodPost, path, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("rollback status = %d (body %s)", first.Code, first.Body.String())
	}
	second := env.do(httptest.NewRequest(http.MethodPost, path, nil))
	if second.Code != http.StatusOK {
		t.Fatalf("second rollback status = %d", second.Code)
	}
	if a, b := decode[core.Result](t, first), decode[core.Result](t, second); a.State != core.StateRolledBack || a.Outcome != b.Outcome {
		t.Errorf("rollback results differ: %+v vs %+v", a, b)
	}

	links, _ := env.store.ListLinks(t.Context(), res.ID)
	if len(links) != 0 {
		t.Errorf("links after rollback = %d, want 0", len(links))
	}

	var rollbacks int
	for _, run := range env.runner.Runs() {
		if run.TaskID == handler.TaskRollback {
			rollbacks++
		}
	}
	if rollbacks != 1 {
		t.Errorf("rollback tasks = %d, want 1", rollbacks)
	}
}

func TestImportRoutes_BadIDs(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/imports/not-a-uuid", http.StatusBadRequest},
		{http.MethodPost, "/api/imports/not-a-uuid/rollback", http.StatusBadRequest},
		{http.MethodGet, "/api/imports/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodPost, "/api/imports/" + uuid.NewString() + "/rollback", http.StatusNotFound},
		{http.MethodGet, "/api/resources/" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if rec := env.do(httptest.NewRequest(tt.method, tt.path, nil)); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSaveResource(t *testing.T) {
	env := newTestEnv(t, nil)

	id := uuid.New()
	body := `{"id":"` + id.String() + `","title":"rivers","subtype":"raster"}`
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/resources", strings.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d (body %s)", rec.Code, rec.Body.String())
	}

	got, err := env.store.GetResource(t.Context(), id)
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if got.Title != "rivers" || got.Subtype != "raster" {
		t.Errorf("resource = %+v", got)
	}

	bad := env.do(httptest.NewRequest(http.MethodPost, "/api/resources", strings.NewReader(`{"id":"nope"}`)))
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", bad.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	})

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/handlers", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/handlers", nil)
	req.Header.Set("X-API-Key", "secret")
	if rec := env.do(req); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.NotFoundError{Kind: "handler"}, http.StatusUnsupportedMediaType},
		{&core.NotFoundError{Kind: "import"}, http.StatusNotFound},
		{&core.InvalidInputError{Message: "bad"}, http.StatusUnprocessableEntity},
		{&core.UnsupportedActionError{}, http.StatusBadRequest},
		{core.ErrInvalidTransition, http.StatusConflict},
		{core.ErrTooManyImports, http.StatusServiceUnavailable},
		{&core.InvalidInputError{Message: "bad", Reason: core.ErrDocumentTooLarge.Error()}, http.StatusUnprocessableEntity},
		{core.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{&core.PersistenceError{Op: "x", Err: core.ErrPersistence}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondError_Formats(t *testing.T) {
	env := newTestEnv(t, nil)
	err := &core.NotFoundError{Kind: "import", Key: "42"}

	tests := []struct {
		name     string
		path     string
		accept   string
		wantType string
		wantBody string
	}{
		{"api route", "/api/imports/42", "", "application/json", `"code"`},
		{"browser", "/handlers", "text/html,application/xhtml+xml", "text/html", `class="alert"`},
		{"plain client", "/handlers", "", "text/plain", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			env.srv.respondError(rec, req, err, 0)

			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want %s", ct, tt.wantType)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
