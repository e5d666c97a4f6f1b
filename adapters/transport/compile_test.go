package transport_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/artpar/channelgen/core/synth"
	"golang.org/x/tools/go/packages"
)

// chatModels stands in for the user-written message types the generated
// bindings refer to.
const chatModels = `package chat

import (
	"encoding/json"
	"errors"
)

type ChatMessage struct {
	Text string ` + "`json:\"text\"`" + `
}

func (m ChatMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

func (m ChatMessage) Validate() error {
	if m.Text == "" {
		return errors.New("text is required")
	}
	return nil
}

func UnmarshalChatMessage(data []byte) (ChatMessage, error) {
	var m ChatMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

type ChatAck struct {
	ID string ` + "`json:\"id\"`" + `
}

func (a ChatAck) Marshal() ([]byte, error) { return json.Marshal(a) }

func UnmarshalChatAck(data []byte) (ChatAck, error) {
	var a ChatAck
	err := json.Unmarshal(data, &a)
	return a, err
}

type ChatHeaders struct {
	TraceID string ` + "`json:\"traceId,omitempty\"`" + `
}

func (h ChatHeaders) Marshal() ([]byte, error) { return json.Marshal(h) }

func UnmarshalChatHeaders(data []byte) (ChatHeaders, error) {
	var h ChatHeaders
	err := json.Unmarshal(data, &h)
	return h, err
}
`

// httpClientRuntime drives the generated HTTP client against a live server.
const httpClientRuntime = `package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/artpar/channelgen/pkg/binding"
)

func TestRequestRetriesConfiguredStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/rooms/7" || r.URL.Query().Get("lang") != "en" || r.URL.Query().Get("limit") != "2" {
			t.Errorf("request = %s", r.URL)
		}
		if r.Header.Get("Authorization") != "Bearer t0k" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, ` + "`" + `{"id":"ack-1"}` + "`" + `)
	}))
	defer srv.Close()

	lang := "en"
	client := NewRoomMessageHTTPClient(srv.URL, binding.Auth{Token: "t0k"})
	ack, err := RequestRoomMessageHTTP(context.Background(), client, RoomMessageParameters{RoomID: 7, Lang: &lang}, ChatMessage{Text: "hi"}, nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); ack.ID != "ack-1" || n != 3 {
		t.Errorf("ack = %+v after %d calls", ack, n)
	}
}

func TestRequestGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewRoomMessageHTTPClient(srv.URL, binding.Auth{Token: "t0k"})
	_, err := RequestRoomMessageHTTP(context.Background(), client, RoomMessageParameters{RoomID: 7}, ChatMessage{Text: "hi"}, nil)
	var se *binding.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 1 + 2 retries", n)
	}
}

func TestPagesFollowsTotalCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		var items []int
		for i := offset; i < offset+2 && i < 5; i++ {
			items = append(items, i)
		}
		w.Header().Set("X-Total-Count", "5")
		json.NewEncoder(w).Encode(items)
	}))
	defer srv.Close()

	client := NewRoomMessageHTTPClient(srv.URL, binding.Auth{Token: "t0k"})
	var got []int
	err := client.Pages(context.Background(), binding.Outbound{Address: "/rooms/7"},
		func(d binding.Delivery) (int, error) {
			var items []int
			err := json.Unmarshal(d.Payload, &items)
			return len(items), err
		},
		func(d binding.Delivery) error {
			var items []int
			if err := json.Unmarshal(d.Payload, &items); err != nil {
				return err
			}
			got = append(got, items...)
			return nil
		})
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}
	if fmt.Sprint(got) != "[0 1 2 3 4]" {
		t.Errorf("items = %v", got)
	}
}
`

// generatedPackages renders each protocol into its own package under a
// directory inside this module so that the bindings import path resolves.
func generatedPackages(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp(".", "generated")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	all := func(ops ...synth.Operation) synth.Options { return synth.Options{Operations: ops, Validate: true} }
	cases := []struct {
		protocol string
		address  string
		opts     synth.Options
	}{
		{"nats", "rooms.{roomId}", all(synth.Publish, synth.Subscribe, synth.Request, synth.Reply,
			synth.JetStreamPublish, synth.JetStreamPushSubscribe, synth.JetStreamPullSubscribe)},
		{"kafka", "rooms.{roomId}", synth.Options{Validate: true}},
		{"mqtt", "rooms/{roomId}", synth.Options{Validate: true}},
		{"amqp", "rooms.{roomId}", all(synth.Publish, synth.Subscribe, synth.ExchangePublish)},
		{"websocket", "/rooms/{roomId}", synth.Options{Validate: true}},
		{"eventsource", "/rooms/{roomId}", synth.Options{Validate: true}},
		{"http_client", "/rooms/{roomId}", synth.Options{Validate: true, HTTP: &synth.HTTPOptions{
			Auth: "bearer",
			Retry: &synth.RetryOptions{
				MaxRetries: 2, InitialDelayMillis: 1, MaxDelayMillis: 2, RetryableStatus: []int{503},
			},
			Pagination: &synth.PaginationOptions{Style: "offset", Limit: 2},
		}}},
	}
	for _, c := range cases {
		src, _ := generate(t, chat(t, c.address), c.protocol, c.opts)
		pkg := filepath.Join(dir, c.protocol)
		if err := os.MkdirAll(pkg, 0o755); err != nil {
			t.Fatal(err)
		}
		write(t, filepath.Join(pkg, "bindings.go"), src)
		write(t, filepath.Join(pkg, "models.go"), chatModels)
	}
	write(t, filepath.Join(dir, "http_client", "client_test.go"), httpClientRuntime)
	return dir
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGeneratedCode_TypeChecks(t *testing.T) {
	if testing.Short() {
		t.Skip("loads generated packages with the go command")
	}
	dir := generatedPackages(t)

	cfg := &packages.Config{
		Mode:  packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo,
		Tests: true,
	}
	pkgs, err := packages.Load(cfg, "./"+filepath.ToSlash(dir)+"/...")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pkgs) == 0 {
		t.Fatal("no generated packages loaded")
	}
	for _, p := range pkgs {
		for _, e := range p.Errors {
			t.Errorf("%s: %v", p.PkgPath, e)
		}
	}
}

func TestGeneratedHTTPClient_Runs(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the generated client tests with the go command")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not found")
	}
	dir := generatedPackages(t)

	cmd := exec.Command(goBin, "test", "-count=1", "./"+filepath.ToSlash(filepath.Join(dir, "http_client")))
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("generated client tests failed: %v\n%s", err, out)
	}
}
