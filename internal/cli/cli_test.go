package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zalando/go-keyring"

	"github.com/clustervision/lunactl/internal/progress"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

type statusStep struct {
	code int
	body string
}

// fakeDaemon answers a fixed set of routes and scripts status polls per
// request id. Unknown routes answer 404.
type fakeDaemon struct {
	mu       sync.Mutex
	routes   map[string]statusStep
	statuses map[string][]statusStep
	requests []recordedRequest
	password string
}

func newFakeDaemon() *fakeDaemon {
	return &fakeDaemon{
		routes:   map[string]statusStep{},
		statuses: map[string][]statusStep{},
		password: "secret",
	}
}

func (d *fakeDaemon) route(method, path string, code int, body string) {
	d.routes[method+" "+path] = statusStep{code: code, body: body}
}

func (d *fakeDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, _ := io.ReadAll(r.Body)
	req := recordedRequest{Method: r.Method, Path: r.URL.Path}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &req.Body)
	}
	d.requests = append(d.requests, req)

	if r.URL.Path == "/token" {
		var creds struct {
			Password string `json:"password"`
		}
		_ = json.Unmarshal(raw, &creds)
		if creds.Password != d.password {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"invalid credentials"}`)
			return
		}
		signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString([]byte("k"))
		fmt.Fprintf(w, `{"token":%q}`, signed)
		return
	}
	if r.Header.Get("x-access-tokens") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if id, ok := strings.CutPrefix(r.URL.Path, "/config/status/"); ok {
		steps := d.statuses[id]
		if len(steps) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		d.statuses[id] = steps[1:]
		w.WriteHeader(steps[0].code)
		fmt.Fprint(w, steps[0].body)
		return
	}

	step, ok := d.routes[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"no such route"}`)
		return
	}
	w.WriteHeader(step.code)
	fmt.Fprint(w, step.body)
}

func (d *fakeDaemon) last(method, path string) (recordedRequest, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.requests) - 1; i >= 0; i-- {
		if d.requests[i].Method == method && d.requests[i].Path == path {
			return d.requests[i], true
		}
	}
	return recordedRequest{}, false
}

type harness struct {
	daemon *fakeDaemon
	dir    string
	config string
	prefs  string
	stdin  io.Reader
}

func newHarness(t *testing.T, withPassword bool) *harness {
	t.Helper()
	t.Setenv("LUNA_PASSWORD", "")
	t.Setenv("LUNA_DEBUG", "")

	daemon := newFakeDaemon()
	srv := httptest.NewServer(daemon)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	password := ""
	if withPassword {
		password = `password = "secret"`
	}
	cfg := fmt.Sprintf(`[api]
endpoint = %q
username = "root"
%s
retries = 0

[client]
token_file = %q
`, srv.URL, password, filepath.Join(dir, "token.toml"))
	cfgPath := filepath.Join(dir, "luna.toml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return &harness{
		daemon: daemon,
		dir:    dir,
		config: cfgPath,
		prefs:  filepath.Join(dir, "prefs.toml"),
	}
}

func (h *harness) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", h.config, "--prefs", h.prefs}, args...)
	code := Execute(context.Background(), full, Options{
		Stdin:        h.stdin,
		Stdout:       &stdout,
		Stderr:       &stderr,
		Indicator:    func() progress.Indicator { return progress.NewLines(&stdout) },
		PollInterval: time.Millisecond,
	})
	return code, stdout.String(), stderr.String()
}

func TestNodeList_Table(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/node", 200,
		`{"config":{"node":{"node002":{"group":"compute","status":"installed"},"node001":{"group":"login","setupbmc":true}}}}`)

	code, out, errOut := h.run("node", "list")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	for _, want := range []string{"name", "group", "node001", "login", "node002", "installed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "node001") > strings.Index(out, "node002") {
		t.Fatalf("rows not sorted:\n%s", out)
	}
}

func TestNodeShow_JSON(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/node/node001", 200,
		`{"config":{"node":{"node001":{"group":"login"}}}}`)

	code, out, errOut := h.run("-o", "json", "node", "show", "node001")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	var got map[string]map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["node001"]["group"] != "login" {
		t.Fatalf("output = %v, want node001 in group login", got)
	}
}

func TestNodeChange_PostsConfigEnvelope(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodPost, "/config/node/node001", 200, `{"message":"node node001 updated"}`)

	code, out, errOut := h.run("node", "change", "node001", "--set", "group=compute", "--set", "setupbmc=false")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "node node001 updated\n" {
		t.Fatalf("output = %q, want daemon message", out)
	}

	req, ok := h.daemon.last(http.MethodPost, "/config/node/node001")
	if !ok {
		t.Fatalf("no POST recorded")
	}
	fields := req.Body["config"].(map[string]any)["node"].(map[string]any)["node001"].(map[string]any)
	if fields["group"] != "compute" || fields["setupbmc"] != false {
		t.Fatalf("payload fields = %v", fields)
	}
}

func TestNodeChange_RequiresSet(t *testing.T) {
	h := newHarness(t, true)
	code, _, errOut := h.run("node", "change", "node001")
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut, "luna: nothing to change") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestNodeAdd_EmptyAnswerPrintsConfirmation(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodPost, "/config/node/node003", 201, `{}`)

	code, out, errOut := h.run("node", "add", "node003", "--set", "group=compute")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "Node node003 created.\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestGroupRename_UsesNewNameField(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodPost, "/config/group/compute", 200, `{}`)

	code, out, errOut := h.run("group", "rename", "compute", "gpu")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	req, _ := h.daemon.last(http.MethodPost, "/config/group/compute")
	fields := req.Body["config"].(map[string]any)["group"].(map[string]any)["compute"].(map[string]any)
	if fields["newgroupname"] != "gpu" {
		t.Fatalf("payload fields = %v, want newgroupname", fields)
	}
	if out != "Group compute renamed to gpu.\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestNodeRemove(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/node/node009/_delete", 204, ``)

	code, out, errOut := h.run("node", "remove", "node009")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "Node node009 removed.\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestOSImagePack_Tracked(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/osimage/compute/_pack", 200, `{"message":"queued","request_id":"r1"}`)
	h.daemon.statuses["r1"] = []statusStep{
		{200, `{"message":"packing;;compressing"}`},
		{200, `{"message":"done"}`},
	}

	code, out, errOut := h.run("osimage", "pack", "compute")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	want := "Packing OS image compute...\npacking\ncompressing\ndone\nOS image compute packed.\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestOSImageClone_Tracked(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodPost, "/config/osimage/compute/_clone", 200, `{"request_id":"c1"}`)

	code, out, errOut := h.run("osimage", "clone", "compute", "compute-gpu")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	want := "Cloning OS image compute...\nOS image compute cloned as compute-gpu.\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
	req, _ := h.daemon.last(http.MethodPost, "/config/osimage/compute/_clone")
	fields := req.Body["config"].(map[string]any)["osimage"].(map[string]any)["compute"].(map[string]any)
	if fields["newosimage"] != "compute-gpu" {
		t.Fatalf("payload fields = %v", fields)
	}
}

func TestOSImageKernel_RequiresVersion(t *testing.T) {
	h := newHarness(t, true)
	code, _, errOut := h.run("osimage", "kernel", "compute")
	if code != 1 || !strings.Contains(errOut, "--version is required") {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
}

func TestOSImagePack_TrackingFailureReported(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/osimage/broken/_pack", 200, `{"request_id":"r2"}`)
	h.daemon.statuses["r2"] = []statusStep{
		{200, `{"message":"packing"}`},
		{500, `{"message":"image path missing"}`},
	}

	code, out, errOut := h.run("osimage", "pack", "broken")
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(errOut, "ERROR :: image path missing (status 500)") {
		t.Fatalf("stderr = %q", errOut)
	}
	if strings.Contains(out, "packed") {
		t.Fatalf("confirmation printed after failure: %q", out)
	}
}

func TestSubmitError_Reported(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/network", 500, `{"message":"database locked"}`)

	code, _, errOut := h.run("network", "list")
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if strings.TrimSpace(errOut) != "ERROR :: database locked (status 500)" {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestPowerOn_TracksControlOutcome(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodPost, "/control/action/power/_on", 200, `{"request_id":"p1"}`)
	h.daemon.statuses["p1"] = []statusStep{
		{200, `{"control":{"power":{"on":"node[001-002]","failed":{"node003":"timeout"}}}}`},
	}

	code, out, errOut := h.run("power", "on", "node[001-003]")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	want := "Power on node[001-003]...\nfailed: node003 (timeout)\non: node[001-002]\nPower on finished for node[001-003].\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}

	req, _ := h.daemon.last(http.MethodPost, "/control/action/power/_on")
	action := req.Body["control"].(map[string]any)["power"].(map[string]any)["on"].(map[string]any)
	if action["hostlist"] != "node[001-003]" {
		t.Fatalf("payload = %v", req.Body)
	}
}

func TestPowerStatus_SingleHostIsSynchronous(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/control/action/power/node001/_status", 200, `{"control":{"power":{"on":"node001"}}}`)

	code, out, errOut := h.run("power", "status", "node001")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "on: node001\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestRequestTrack(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.statuses["r7"] = []statusStep{{200, `{"message":"still going"}`}}

	code, out, errOut := h.run("request", "track", "r7", "--label", "Resuming")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	want := "Resuming...\nstill going\nRequest r7 finished.\n"
	if out != want {
		t.Fatalf("output = %q, want %q", out, want)
	}
}

func TestRequestStatus(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.statuses["r8"] = []statusStep{{200, `{"message":"a;;b"}`}}

	code, out, errOut := h.run("request", "status", "r8")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "a\nb\n" {
		t.Fatalf("output = %q", out)
	}

	code, out, _ = h.run("request", "status", "r8")
	if code != 0 || out != "Request r8 finished.\n" {
		t.Fatalf("second status: exit = %d, output = %q", code, out)
	}
}

func TestClusterShowAndChange(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/cluster", 200, `{"config":{"cluster":{"name":"hpc","ntp_server":"10.141.255.254"}}}`)
	h.daemon.route(http.MethodPost, "/config/cluster", 200, `{}`)

	code, out, errOut := h.run("cluster", "show")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if !strings.Contains(out, "ntp_server") || !strings.Contains(out, "10.141.255.254") {
		t.Fatalf("output = %q", out)
	}

	code, out, errOut = h.run("cluster", "change", "--set", "name=lab")
	if code != 0 || out != "Cluster updated.\n" {
		t.Fatalf("exit = %d, output = %q, stderr = %q", code, out, errOut)
	}
	req, _ := h.daemon.last(http.MethodPost, "/config/cluster")
	if req.Body["config"].(map[string]any)["cluster"].(map[string]any)["name"] != "lab" {
		t.Fatalf("payload = %v", req.Body)
	}
}

func TestSecretsList(t *testing.T) {
	h := newHarness(t, true)
	h.daemon.route(http.MethodGet, "/config/secrets/node", 200,
		`{"config":{"secrets":{"node":{"node001":[{"name":"sshkey","path":"/etc/ssh/key","content":"c2VjcmV0"}]}}}}`)

	code, out, errOut := h.run("secrets", "list", "node")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	for _, want := range []string{"owner", "node001", "sshkey", "/etc/ssh/key"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "c2VjcmV0") {
		t.Fatalf("secret content shown:\n%s", out)
	}

	if code, _, _ := h.run("secrets", "list", "rack"); code != 1 {
		t.Fatalf("exit = %d for invalid kind, want 1", code)
	}
}

func TestPrefsSetAndShow(t *testing.T) {
	h := newHarness(t, true)

	code, out, errOut := h.run("prefs", "set", "theme", "nightfox")
	if code != 0 || out != "Preference theme set to Nightfox.\n" {
		t.Fatalf("exit = %d, output = %q, stderr = %q", code, out, errOut)
	}
	if code, _, _ := h.run("prefs", "set", "theme", "solarized"); code != 1 {
		t.Fatalf("unknown theme accepted")
	}
	if code, _, _ := h.run("prefs", "set", "output", "yaml"); code != 0 {
		t.Fatalf("set output failed")
	}

	code, out, _ = h.run("prefs", "show")
	if code != 0 || !strings.Contains(out, "output: yaml") || !strings.Contains(out, "theme: Nightfox") {
		t.Fatalf("exit = %d, output = %q", code, out)
	}
}

func TestLogin_PasswordFromStdin(t *testing.T) {
	keyring.MockInit()
	h := newHarness(t, false)
	h.stdin = strings.NewReader("secret\n")

	code, out, errOut := h.run("login", "--password-stdin")
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if out != "Logged in as root.\n" {
		t.Fatalf("output = %q", out)
	}
	if stored, err := keyring.Get("luna", "root"); err != nil || stored != "secret" {
		t.Fatalf("keyring = %q, %v; want stored password", stored, err)
	}

	code, out, errOut = h.run("logout")
	if code != 0 || out != "Logged out root.\n" {
		t.Fatalf("exit = %d, output = %q, stderr = %q", code, out, errOut)
	}
	if _, err := keyring.Get("luna", "root"); err == nil {
		t.Fatalf("password still stored after logout")
	}
}

func TestLogin_RejectedPassword(t *testing.T) {
	keyring.MockInit()
	h := newHarness(t, false)
	h.stdin = strings.NewReader("wrong\n")

	code, _, errOut := h.run("login", "--password-stdin")
	if code != 1 || !strings.Contains(errOut, "invalid or missing credentials") {
		t.Fatalf("exit = %d, stderr = %q", code, errOut)
	}
	if _, err := keyring.Get("luna", "root"); err == nil {
		t.Fatalf("rejected password was stored")
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t, true)
	code, out, _ := h.run("version")
	if code != 0 || out != "luna dev\n" {
		t.Fatalf("exit = %d, output = %q", code, out)
	}
}

func TestParseSets(t *testing.T) {
	fields, err := parseSets([]string{"a=1", "b=true", "c=[\"x\"]", "d=plain text", "e=", "f=null"})
	if err != nil {
		t.Fatalf("parseSets returned error: %v", err)
	}
	if fields["a"] != float64(1) || fields["b"] != true || fields["d"] != "plain text" || fields["e"] != "" || fields["f"] != "null" {
		t.Fatalf("fields = %#v", fields)
	}
	if list, ok := fields["c"].([]any); !ok || len(list) != 1 || list[0] != "x" {
		t.Fatalf("c = %#v, want [x]", fields["c"])
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseSets([]string{bad}); err == nil {
			t.Fatalf("parseSets(%q) accepted", bad)
		}
	}
}

func TestSingleHost(t *testing.T) {
	tests := map[string]bool{
		"node001":        true,
		"node[001-004]":  false,
		"node001,node02": false,
	}
	for in, want := range tests {
		if got := singleHost(in); got != want {
			t.Fatalf("singleHost(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResourceNoun(t *testing.T) {
	tests := map[string]string{"Node": "node", "OS image": "OS image", "BMC setup": "BMC setup", "Other device": "other device"}
	for title, want := range tests {
		if got := (resource{title: title}).noun(); got != want {
			t.Fatalf("noun(%q) = %q, want %q", title, got, want)
		}
	}
}
