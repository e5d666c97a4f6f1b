package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/channelgen/domain/descriptor"
	"github.com/artpar/channelgen/domain/param"
)

func TestParse(t *testing.T) {
	yaml := `
package: events

channels:
  - id: userSignedUp
    address: user.{userId}.signedup
    protocols: [nats, kafka]
    parameters:
      - { name: userId, type: integer }
    messages:
      - { name: UserSignedUp, validate: true }

  - id: listOrders
    address: /users/{userId}/orders
    parameters:
      - { name: userId }
      - { name: status, type: array, items: string, style: pipeDelimited }
      - { name: tags, type: array, items: string, collectionFormat: csv, location: query }
      - { name: limit, type: integer, required: true, explode: false }
    messages:
      - { name: OrderQuery }
    reply:
      - { name: OrderList }
    headers: { goType: RequestHeaders }
`

	m, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if m.Package != "events" || len(m.Channels) != 2 {
		t.Fatalf("Parse() = %+v", m)
	}

	c, ok := m.Channel("listOrders")
	if !ok {
		t.Fatal("listOrders not found")
	}
	d, warnings, err := descriptor.Build(c.Input(), c.Protocols)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}

	query := d.Query()
	if len(query) != 3 {
		t.Fatalf("Query() = %+v", query)
	}
	if query[0].Style != param.StylePipeDelimited || query[0].Type != param.TypeArray || query[0].Explode {
		t.Errorf("status = %+v", query[0])
	}
	if query[1].Style != param.StyleForm || query[1].Explode {
		t.Errorf("tags from csv = %+v", query[1])
	}
	if !query[2].Required || query[2].Scalar != param.ScalarInteger || query[2].Explode {
		t.Errorf("limit = %+v", query[2])
	}
	if h := d.Headers(); h == nil || h.GoType != "RequestHeaders" {
		t.Errorf("Headers() = %v", h)
	}
	if !d.HasReply() || d.Reply().Single().GoType != "OrderList" {
		t.Errorf("Reply() = %+v", d.Reply())
	}

	signup, _ := m.Channel("userSignedUp")
	if len(signup.Protocols) != 2 || !signup.Messages[0].Validate {
		t.Errorf("userSignedUp = %+v", signup)
	}
}

func TestParseJSON_AllowsComments(t *testing.T) {
	data := `{
  // generated from the asyncapi document
  "channels": [
    {
      "id": "ping",
      "address": "health.ping",
      "messages": [{"name": "Ping"},],
    },
  ],
}`
	m, err := ParseJSON([]byte(data))
	if err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if len(m.Channels) != 1 || m.Channels[0].Messages[0].Name != "Ping" {
		t.Errorf("ParseJSON() = %+v", m)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid minimal",
			yaml: `
channels:
  - { id: a, address: a, messages: [{ name: A }] }
`,
		},
		{
			name: "missing id",
			yaml: `
channels:
  - { address: a, messages: [{ name: A }] }
`,
			wantErr: "id is required",
		},
		{
			name: "duplicate channel",
			yaml: `
channels:
  - { id: a, address: a, messages: [{ name: A }] }
  - { id: a, address: b, messages: [{ name: B }] }
`,
			wantErr: `channel "a" is declared twice`,
		},
		{
			name: "no messages",
			yaml: `
channels:
  - { id: a, address: a }
`,
			wantErr: "at least one message is required",
		},
		{
			name: "unknown parameter type",
			yaml: `
channels:
  - id: a
    address: a.{x}
    parameters: [{ name: x, type: date }]
    messages: [{ name: A }]
`,
			wantErr: `unknown type "date"`,
		},
		{
			name: "message type is not an identifier",
			yaml: `
channels:
  - { id: a, address: a, messages: [{ name: A, goType: "pkg.A" }] }
`,
			wantErr: `message type "pkg.A"`,
		},
		{
			name: "bad package",
			yaml: `
package: my-events
channels: []
`,
			wantErr: "package",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Parse() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "billing")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "a.yaml"):     "package: events\nchannels:\n  - { id: a, address: a, messages: [{ name: A }] }\n",
		filepath.Join(sub, "b.jsonc"):    `{"channels": [{"id": "b", "address": "b", "messages": [{"name": "B"}]}]}`,
		filepath.Join(dir, "README.txt"): "not a manifest",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Package != "events" || len(m.Channels) != 2 {
		t.Errorf("Load() = %+v", m)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestLoad_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one.yaml", "two.yml"} {
		content := "channels:\n  - { id: same, address: a, messages: [{ name: A }] }\n"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "declared twice") {
		t.Errorf("Load() error = %v", err)
	}
}
