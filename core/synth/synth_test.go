package synth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/render"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/descriptor"
	"github.com/artpar/channelgen/domain/param"
)

type fakeAdapter struct {
	caps     synth.Capabilities
	delim    address.Delimiter
	wildcard string
}

func (f fakeAdapter) Protocol() string { return "fake" }
func (f fakeAdapter) Suffix() string { return "Fake" }
func (f fakeAdapter) Capabilities() synth.Capabilities { return f.caps }
func (f fakeAdapter) Delimiter() address.Delimiter { return f.delim }
func (f fakeAdapter) Wildcard() string { return f.wildcard }
func (f fakeAdapter) Imports(synth.Operation) []ir.Import { return nil }
func (f fakeAdapter) Shared(synth.Site) []ir.Decl { return nil }

func (f fakeAdapter) Client(synth.Operation) []ir.Param {
	return []ir.Param{{Name: "c", Type: "*Client"}}
}

func (f fakeAdapter) Dependencies(synth.Operation) []synth.Dependency {
	return []synth.Dependency{{Module: "example.com/fake", Purpose: "test"}}
}

func (f fakeAdapter) NativeSend(synth.Site) ir.Expr { return ir.Code("c.Send") }
func (f fakeAdapter) NativeRequest(synth.Site) ir.Expr { return ir.Code("c.Request") }

func (f fakeAdapter) NativeSource(site synth.Site) ir.Block {
	return ir.Block{ir.Return{Values: []ir.Expr{ir.Code("c.Open(ctx, " + site.Address + ")")}}}
}

var pubSub = fakeAdapter{
	caps:     synth.Capabilities{Publish: true, Subscribe: true, RequestReply: true},
	delim:    address.Dot,
	wildcard: "*",
}

func build(t *testing.T, in descriptor.Input) descriptor.Descriptor {
	t.Helper()
	d, _, err := descriptor.Build(in, []string{"fake"})
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", in.ID, err)
	}
	return d
}

func signedUp(t *testing.T) descriptor.Descriptor {
	return build(t, descriptor.Input{
		ID:      "userSignedUp",
		Address: "user.{userId}.signedup",
		Parameters: []descriptor.Parameter{
			{Spec: param.Spec{Name: "userId", Type: param.TypeScalar, Scalar: param.ScalarString}},
		},
		Messages: []descriptor.MessageRef{{Name: "UserSignedUp", Validate: true}},
	})
}

func operations(bindings []synth.Binding) []synth.Operation {
	var out []synth.Operation
	for _, b := range bindings {
		out = append(out, b.Operation)
	}
	return out
}

func sameOps(got, want []synth.Operation) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSynthesize_Operations(t *testing.T) {
	tests := []struct {
		name string
		opts synth.Options
		want []synth.Operation
	}{
		{"defaults to everything supported", synth.Options{}, []synth.Operation{synth.Publish, synth.Subscribe, synth.Request, synth.Reply}},
		{"explicit publish", synth.Options{Operations: []synth.Operation{synth.Publish}}, []synth.Operation{synth.Publish}},
		{"reverse swaps publish", synth.Options{Operations: []synth.Operation{synth.Publish}, Reverse: true}, []synth.Operation{synth.Subscribe}},
		{"request brings reply", synth.Options{Operations: []synth.Operation{synth.Request}}, []synth.Operation{synth.Request, synth.Reply}},
		{"reverse reply is still a pair", synth.Options{Operations: []synth.Operation{synth.Reply}, Reverse: true}, []synth.Operation{synth.Request, synth.Reply}},
	}

	s := synth.New(pubSub)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindings, err := s.Synthesize(synth.NewRun(), signedUp(t), "fake", tt.opts)
			if err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}
			if got := operations(bindings); !sameOps(got, tt.want) {
				t.Errorf("operations = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSynthesize_PublishSource(t *testing.T) {
	s := synth.New(pubSub)
	bindings, err := s.Synthesize(synth.NewRun(), signedUp(t), "FAKE", synth.Options{Operations: []synth.Operation{synth.Publish}})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	b := bindings[0]
	if b.Func != "PublishUserSignedUpFake" {
		t.Errorf("Func = %q", b.Func)
	}
	want := "binding.Publish(ctx, userSignedUpTopicChannel, params.values(), msg, nil, c.Send)"
	if !strings.Contains(b.Source, want) {
		t.Errorf("source does not contain %q:\n%s", want, b.Source)
	}
	if !strings.Contains(b.Source, "func PublishUserSignedUpFake(ctx context.Context, c *Client, params UserSignedUpParameters, msg UserSignedUp) error") {
		t.Errorf("unexpected signature:\n%s", b.Source)
	}
	if len(b.Dependencies) != 2 || b.Dependencies[0] != synth.Runtime || b.Dependencies[1].Module != "example.com/fake" {
		t.Errorf("Dependencies = %+v", b.Dependencies)
	}
}

func TestSynthesize_SubscribeUsesWildcardFilter(t *testing.T) {
	s := synth.New(pubSub)
	bindings, err := s.Synthesize(synth.NewRun(), signedUp(t), "fake", synth.Options{Operations: []synth.Operation{synth.Subscribe}})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	src := bindings[0].Source
	for _, want := range []string{
		`addr, err := userSignedUpTopicChannel.Pattern(filter.filter(), "*")`,
		"return c.Open(ctx, addr)",
		"binding.Dispatch(d, userSignedUpTopicDecoder, handler)",
		"handler(nil, UserSignedUpInbound{}, err)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source does not contain %q:\n%s", want, src)
		}
	}
}

func TestSynthesize_Errors(t *testing.T) {
	pushOnly := fakeAdapter{caps: synth.Capabilities{Subscribe: true, PushOnly: true}, delim: address.Slash}
	s := synth.New(pubSub)

	t.Run("publish on push-only transport", func(t *testing.T) {
		s := synth.New(pushOnly)
		bindings, err := s.Synthesize(synth.NewRun(), signedUp(t), "fake", synth.Options{
			Operations: []synth.Operation{synth.Subscribe, synth.Publish},
		})
		if !errors.Is(err, synth.ErrUnsupportedOperation) {
			t.Fatalf("err = %v, want ErrUnsupportedOperation", err)
		}
		if bindings != nil {
			t.Errorf("bindings = %v, want none", bindings)
		}
	})

	t.Run("unknown protocol", func(t *testing.T) {
		_, err := s.Synthesize(synth.NewRun(), signedUp(t), "carrier-pigeon", synth.Options{})
		if !errors.Is(err, synth.ErrUnknownProtocol) {
			t.Errorf("err = %v, want ErrUnknownProtocol", err)
		}
	})

	t.Run("required query without query support", func(t *testing.T) {
		d := build(t, descriptor.Input{
			ID:      "orders",
			Address: "orders.{region}",
			Parameters: []descriptor.Parameter{
				{Spec: param.Spec{Name: "region", Type: param.TypeScalar, Scalar: param.ScalarString}},
				{Spec: param.Spec{Name: "limit", Location: param.LocationQuery, Type: param.TypeScalar, Scalar: param.ScalarInteger, Required: true}},
			},
			Messages: []descriptor.MessageRef{{Name: "Order"}},
		})
		_, err := s.Synthesize(synth.NewRun(), d, "fake", synth.Options{})
		var unsat *synth.UnsatisfiableParameterError
		if !errors.As(err, &unsat) || unsat.Parameter != "limit" {
			t.Errorf("err = %v, want UnsatisfiableParameterError for limit", err)
		}
	})

	t.Run("label style on dot-delimited transport", func(t *testing.T) {
		d := build(t, descriptor.Input{
			ID:      "files",
			Address: "/files/{name}",
			Parameters: []descriptor.Parameter{
				{Spec: param.Spec{Name: "name", Style: param.StyleLabel, Type: param.TypeScalar, Scalar: param.ScalarString}},
			},
			Messages: []descriptor.MessageRef{{Name: "File"}},
		})
		_, err := s.Synthesize(synth.NewRun(), d, "fake", synth.Options{})
		if !errors.Is(err, synth.ErrUnsatisfiableParameter) {
			t.Errorf("err = %v, want ErrUnsatisfiableParameter", err)
		}
	})

	t.Run("message type is not an identifier", func(t *testing.T) {
		d := build(t, descriptor.Input{
			ID:       "raw",
			Address:  "raw",
			Messages: []descriptor.MessageRef{{Name: "Raw", GoType: "pkg.Raw"}},
		})
		_, err := s.Synthesize(synth.NewRun(), d, "fake", synth.Options{})
		if !errors.Is(err, descriptor.ErrInvalidChannel) {
			t.Errorf("err = %v, want ErrInvalidChannel", err)
		}
	})
}

func TestRun_ValidatorBuiltOnce(t *testing.T) {
	s := synth.New(pubSub)
	run := synth.NewRun()
	opts := synth.Options{Operations: []synth.Operation{synth.Request}, Validate: true}

	other := build(t, descriptor.Input{
		ID:       "userReplayed",
		Address:  "user.replayed",
		Messages: []descriptor.MessageRef{{Name: "UserSignedUp", Validate: true}},
	})
	for _, d := range []descriptor.Descriptor{signedUp(t), other} {
		bindings, err := s.Synthesize(run, d, "fake", opts)
		if err != nil {
			t.Fatalf("Synthesize(%s) failed: %v", d.ID(), err)
		}
		if !strings.Contains(bindings[0].Source, "UnmarshalUserSignedUp, validateUserSignedUp)") {
			t.Errorf("%s request does not validate replies:\n%s", d.ID(), bindings[0].Source)
		}
	}

	if run.Len() != 1 {
		t.Errorf("run built %d validators, want 1", run.Len())
	}
	if vs := run.Validators(); len(vs) != 1 || vs[0].DeclName() != "validateUserSignedUp" {
		t.Errorf("Validators() = %v", vs)
	}
}

func TestSynthesize_RendersCompleteFile(t *testing.T) {
	d := build(t, descriptor.Input{
		ID:      "chat",
		Address: "rooms.{room}.{kind}",
		Parameters: []descriptor.Parameter{
			{Spec: param.Spec{Name: "room", Type: param.TypeScalar, Scalar: param.ScalarInteger}},
			{Spec: param.Spec{Name: "kind", Type: param.TypeScalar, Scalar: param.ScalarString}},
			{Spec: param.Spec{Name: "tags", Location: param.LocationQuery, Type: param.TypeArray, Scalar: param.ScalarString}},
			{Spec: param.Spec{Name: "verbose", Location: param.LocationQuery, Type: param.TypeScalar, Scalar: param.ScalarBoolean}},
		},
		Messages: []descriptor.MessageRef{
			{Name: "Joined", Tag: "joined", Validate: true},
			{Name: "Left", Tag: "left"},
		},
		Reply:   []descriptor.MessageRef{{Name: "Ack"}},
		Headers: &descriptor.TypeRef{GoType: "ChatHeaders"},
	})

	s := synth.New(fakeAdapter{caps: synth.Capabilities{Publish: true, Subscribe: true, RequestReply: true, Query: true}, delim: address.Dot, wildcard: "*"})
	run := synth.NewRun()
	bindings, err := s.Synthesize(run, d, "fake", synth.Options{Validate: true})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	decls := append([]ir.Decl{}, bindings[0].Shared...)
	for _, b := range bindings {
		decls = append(decls, b.Decls...)
	}
	decls = append(decls, run.Validators()...)

	src, err := render.File("events", decls)
	if err != nil {
		t.Fatalf("render.File failed: %v", err)
	}
	for _, want := range []string{
		"type ChatMessage interface",
		"func decodeChatMessage(data []byte) (ChatMessage, error)",
		`tag, err := binding.Discriminator(data, "type")`,
		"func validateChatMessage(m ChatMessage) error",
		"Verbose *bool",
		"Tags    []string",
		"func (p ChatParameters) filter() map[string]any",
		"type ChatResponder = binding.Responder[ChatMessage, Ack, ChatInbound]",
		"binding.MarshalFunc(func() ([]byte, error)",
		"if headers != nil {",
	} {
		if !strings.Contains(string(src), want) {
			t.Errorf("file does not contain %q", want)
		}
	}
}

func TestSynthesize_Extensions(t *testing.T) {
	streams := pubSub
	streams.caps.JetStream = true

	tests := []struct {
		name  string
		opts  synth.Options
		want  []synth.Operation
		funcs []string
	}{
		{"defaults leave extensions out", synth.Options{}, []synth.Operation{synth.Publish, synth.Subscribe, synth.Request, synth.Reply}, nil},
		{
			"named extensions",
			synth.Options{Operations: []synth.Operation{synth.JetStreamPullSubscribe, synth.Publish, synth.JetStreamPublish}},
			[]synth.Operation{synth.Publish, synth.JetStreamPublish, synth.JetStreamPullSubscribe},
			[]string{"PublishUserSignedUpFake", "JetStreamPublishUserSignedUpFake", "JetStreamPullUserSignedUpFake"},
		},
		{
			"reverse leaves extensions alone",
			synth.Options{Operations: []synth.Operation{synth.JetStreamPushSubscribe}, Reverse: true},
			[]synth.Operation{synth.JetStreamPushSubscribe},
			[]string{"JetStreamSubscribeUserSignedUpFake"},
		},
	}

	s := synth.New(streams)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindings, err := s.Synthesize(synth.NewRun(), signedUp(t), "fake", tt.opts)
			if err != nil {
				t.Fatalf("Synthesize failed: %v", err)
			}
			if got := operations(bindings); !sameOps(got, tt.want) {
				t.Errorf("operations = %v, want %v", got, tt.want)
			}
			for i, f := range tt.funcs {
				if bindings[i].Func != f {
					t.Errorf("binding %d func = %q, want %q", i, bindings[i].Func, f)
				}
			}
		})
	}

	// A subscribe variant alone still gets the handler type and decoder.
	bindings, err := s.Synthesize(synth.NewRun(), signedUp(t), "fake", synth.Options{Operations: []synth.Operation{synth.JetStreamPushSubscribe}})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	var shared []string
	for _, d := range bindings[0].Shared {
		shared = append(shared, d.DeclName())
	}
	joined := strings.Join(shared, " ")
	for _, want := range []string{"UserSignedUpHandler", "userSignedUpTopicDecoder"} {
		if !strings.Contains(joined, want) {
			t.Errorf("shared decls %v lack %s", shared, want)
		}
	}

	_, err = synth.New(pubSub).Synthesize(synth.NewRun(), signedUp(t), "fake", synth.Options{Operations: []synth.Operation{synth.ExchangePublish}})
	if !errors.Is(err, synth.ErrUnsupportedOperation) {
		t.Errorf("exchange publish without support err = %v", err)
	}
}

func TestParseOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    synth.Operation
		wantErr bool
	}{
		{"publish", synth.Publish, false},
		{" Reply ", synth.Reply, false},
		{"JetStream_Pull_Subscribe", synth.JetStreamPullSubscribe, false},
		{"exchange_publish", synth.ExchangePublish, false},
		{"broadcast", "", true},
	}
	for _, tt := range tests {
		got, err := synth.ParseOperation(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOperation(%q) = %q, %v", tt.in, got, err)
		}
	}
	if synth.JetStreamPublish.Kind() != synth.Publish || synth.JetStreamPullSubscribe.Kind() != synth.Subscribe || synth.Request.Kind() != synth.Request {
		t.Error("Kind does not map variants to their common operation")
	}
}
