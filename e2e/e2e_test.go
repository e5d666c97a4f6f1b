// Package e2e provides end-to-end tests for generation and the preview server.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/channelgen/app"
	"github.com/artpar/channelgen/bootstrap"
)

const manifest = `package: shop
channels:
  - id: orderPlaced
    address: orders.{orderId}.placed
    protocols: [nats, kafka]
    parameters:
      - name: orderId
    messages:
      - name: OrderPlaced
        validate: true
  - id: getOrder
    address: /orders/{orderId}
    protocols: [http_client]
    parameters:
      - name: orderId
    messages:
      - name: OrderQuery
    reply:
      - name: Order
`

const extraChannel = `  - id: orderShipped
    address: orders/{orderId}/shipped
    protocols: [mqtt]
    parameters:
      - name: orderId
    messages:
      - name: OrderShipped
`

type project struct {
	dir      string
	config   string
	manifest string
	port     int
}

func setupProject(t *testing.T) project {
	t.Helper()
	dir := t.TempDir()
	p := project{
		dir:      dir,
		config:   filepath.Join(dir, "channelgen.yaml"),
		manifest: filepath.Join(dir, "channels.yaml"),
		port:     freePort(t),
	}

	cfg := fmt.Sprintf(`input: channels.yaml
output:
  dir: shop
channels:
  getOrder:
    http:
      method: GET
      auth: apiKey
history:
  enabled: true
  dsn: %s
server:
  port: %d
`, filepath.Join(dir, "history.db"), p.port)

	if err := os.WriteFile(p.config, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.manifest, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func (p project) addChannel(t *testing.T) {
	t.Helper()
	if err := os.WriteFile(p.manifest, []byte(manifest+extraChannel), 0644); err != nil {
		t.Fatal(err)
	}
}

func newApp(t *testing.T, p project) *bootstrap.App {
	t.Helper()
	a, err := bootstrap.New(bootstrap.Options{ConfigPath: p.config, LogOutput: io.Discard, Version: "e2e"})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// TestE2E_GenerateAndHistory generates a project twice and checks the files
// and the recorded runs.
func TestE2E_GenerateAndHistory(t *testing.T) {
	p := setupProject(t)
	a := newApp(t, p)
	ctx := context.Background()

	first, err := a.Generate.Generate(ctx, a.Config())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Status != app.StatusOK {
		t.Fatalf("status = %s, failures = %+v", first.Status, first.Failures)
	}

	for _, name := range []string{"order_placed.go", "get_order.go"} {
		src, err := os.ReadFile(filepath.Join(p.dir, "shop", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.Contains(src, []byte("package shop")) {
			t.Errorf("%s is not in package shop", name)
		}
	}

	second, err := a.Generate.Generate(ctx, a.Config())
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	for _, f := range second.Files {
		if f.Status != "unchanged" {
			t.Errorf("%s = %s on second run, want unchanged", f.Path, f.Status)
		}
	}

	runs, err := a.History.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second.RunID {
		t.Errorf("runs = %+v", runs)
	}
}

// TestE2E_PreviewServer starts the preview server and checks that it picks
// up manifest changes without a restart.
func TestE2E_PreviewServer(t *testing.T) {
	p := setupProject(t)
	a := newApp(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", p.port)
	waitForServer(t, base)
	client := &http.Client{Timeout: 5 * time.Second}

	var version struct{ Version string }
	getJSON(t, client, base+"/version", &version)
	if version.Version != "e2e" {
		t.Errorf("version = %q", version.Version)
	}

	var channels []struct{ ID string }
	getJSON(t, client, base+"/v1/channels", &channels)
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}

	resp, err := client.Post(base+"/v1/generate", "application/yaml", strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("generate request: %v", err)
	}
	var preview struct {
		Report struct{ Status string }
		Files  []struct{ Path string }
	}
	json.NewDecoder(resp.Body).Decode(&preview)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || preview.Report.Status != app.StatusOK || len(preview.Files) != 3 {
		t.Errorf("preview = %d %+v", resp.StatusCode, preview)
	}
	if _, err := os.Stat(filepath.Join(p.dir, "shop")); !os.IsNotExist(err) {
		t.Error("preview wrote output")
	}

	var spec struct {
		Paths      map[string]map[string]any
		Components struct{ SecuritySchemes map[string]any }
	}
	getJSON(t, client, base+"/openapi.json", &spec)
	if _, ok := spec.Paths["/orders/{orderId}"]["get"]; !ok {
		t.Errorf("openapi paths = %v", spec.Paths)
	}
	if _, ok := spec.Components.SecuritySchemes["apiKey"]; !ok {
		t.Errorf("security schemes = %v", spec.Components.SecuritySchemes)
	}

	p.addChannel(t)
	deadline := time.Now().Add(5 * time.Second)
	for {
		getJSON(t, client, base+"/v1/channels", &channels)
		if len(channels) == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("manifest change not picked up: %d channels", len(channels))
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// TestE2E_Watch regenerates when the manifest changes.
func TestE2E_Watch(t *testing.T) {
	p := setupProject(t)
	a := newApp(t, p)

	reports := make(chan app.Report, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, func(r app.Report, err error) {
			if err != nil {
				t.Errorf("watch generate: %v", err)
				return
			}
			reports <- r
		})
	}()

	first := receive(t, reports)
	if first.Channels != 2 {
		t.Fatalf("first run channels = %d, want 2", first.Channels)
	}

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	p.addChannel(t)

	second := receive(t, reports)
	if second.Channels != 3 {
		t.Errorf("second run channels = %d, want 3", second.Channels)
	}
	if _, err := os.Stat(filepath.Join(p.dir, "shop", "order_shipped.go")); err != nil {
		t.Errorf("new channel not generated: %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch: %v", err)
	}
}

func receive(t *testing.T, ch <-chan app.Report) app.Report {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no report within 5s")
		return app.Report{}
	}
}

func getJSON(t *testing.T, client *http.Client, url string, v any) {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s = %d: %s", url, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func waitForServer(t *testing.T, base string) {
	t.Helper()
	client := &http.Client{Timeout: 100 * time.Millisecond}

	for i := 0; i < 50; i++ {
		resp, err := client.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server did not start")
}
