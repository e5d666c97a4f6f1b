// Package openapi exports HTTP request/reply channels as an OpenAPI 3.0
// document. Paths, parameters and bodies are derived from the channel
// descriptors, so the document describes exactly what the generated
// http_client bindings send.
package openapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/descriptor"
	"github.com/artpar/channelgen/domain/param"
)

// Spec represents an OpenAPI 3.0 specification.
type Spec struct {
	OpenAPI    string              `json:"openapi"`
	Info       Info                `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components Components          `json:"components"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// Info provides API metadata.
type Info struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// Server represents a server URL.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// PathItem contains operations for a path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

// Operation represents an API operation.
type Operation struct {
	Tags        []string              `json:"tags,omitempty"`
	Summary     string                `json:"summary,omitempty"`
	Description string                `json:"description,omitempty"`
	OperationID string                `json:"operationId,omitempty"`
	Parameters  []Parameter           `json:"parameters,omitempty"`
	RequestBody *RequestBody          `json:"requestBody,omitempty"`
	Responses   map[string]Response   `json:"responses"`
	Security    []SecurityRequirement `json:"security,omitempty"`
}

// Parameter represents an API parameter.
type Parameter struct {
	Name          string  `json:"name"`
	In            string  `json:"in"` // path, query
	Description   string  `json:"description,omitempty"`
	Required      bool    `json:"required,omitempty"`
	Style         string  `json:"style,omitempty"`
	Explode       *bool   `json:"explode,omitempty"`
	AllowReserved bool    `json:"allowReserved,omitempty"`
	Schema        *Schema `json:"schema,omitempty"`
}

// RequestBody represents a request body.
type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required,omitempty"`
	Content     map[string]MediaType `json:"content"`
}

// Response represents an API response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// MediaType represents a media type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty"`
}

// Schema represents a JSON Schema.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Format               string             `json:"format,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	OneOf                []*Schema          `json:"oneOf,omitempty"`
	Discriminator        *Discriminator     `json:"discriminator,omitempty"`
	GoType               string             `json:"x-go-type,omitempty"`
}

// Discriminator selects a oneOf variant by a property value.
type Discriminator struct {
	PropertyName string            `json:"propertyName"`
	Mapping      map[string]string `json:"mapping,omitempty"`
}

// Components contains reusable schemas.
type Components struct {
	Schemas         map[string]*Schema        `json:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty"`
}

// SecurityScheme defines an authentication method.
type SecurityScheme struct {
	Type         string      `json:"type"`
	Scheme       string      `json:"scheme,omitempty"`
	BearerFormat string      `json:"bearerFormat,omitempty"`
	Description  string      `json:"description,omitempty"`
	Name         string      `json:"name,omitempty"`
	In           string      `json:"in,omitempty"`
	Flows        *OAuthFlows `json:"flows,omitempty"`
}

// OAuthFlows lists the OAuth 2 flows a scheme supports.
type OAuthFlows struct {
	ClientCredentials *OAuthFlow `json:"clientCredentials,omitempty"`
}

// OAuthFlow is one OAuth 2 flow.
type OAuthFlow struct {
	TokenURL string            `json:"tokenUrl"`
	Scopes   map[string]string `json:"scopes"`
}

// SecurityRequirement specifies required security schemes.
type SecurityRequirement map[string][]string

// Tag provides metadata for a group of operations.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Channel is one HTTP channel to export.
type Channel struct {
	Descriptor  descriptor.Descriptor
	Description string
	Method      string // defaults to POST
	Auth        string // "bearer", "basic", "apiKey", "oauth2" or empty
}

// Generator generates OpenAPI specs from channels.
type Generator struct {
	channels []Channel
	info     Info
	servers  []Server
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(channels []Channel) *Generator {
	sorted := append([]Channel(nil), channels...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Descriptor.ID() < sorted[j].Descriptor.ID()
	})
	return &Generator{
		channels: sorted,
		info: Info{
			Title:       "channelgen HTTP channels",
			Version:     "1.0.0",
			Description: "Generated from the channel manifest",
		},
	}
}

// SetInfo sets the API info.
func (g *Generator) SetInfo(info Info) {
	g.info = info
}

// AddServer adds a server URL.
func (g *Generator) AddServer(url, description string) {
	g.servers = append(g.servers, Server{URL: url, Description: description})
}

// Generate creates the OpenAPI specification. Two channels on the same path
// and method is an error.
func (g *Generator) Generate() (*Spec, error) {
	spec := &Spec{
		OpenAPI: "3.0.3",
		Info:    g.info,
		Servers: g.servers,
		Paths:   make(map[string]PathItem),
		Components: Components{
			Schemas: make(map[string]*Schema),
		},
		Tags: make([]Tag, 0),
	}

	tags := make(map[string]bool)
	for _, ch := range g.channels {
		tag := tagFor(ch.Descriptor.Template())
		if !tags[tag] {
			tags[tag] = true
			spec.Tags = append(spec.Tags, Tag{Name: tag})
		}
		if err := g.addChannel(spec, ch, tag); err != nil {
			return nil, err
		}
	}
	sort.Slice(spec.Tags, func(i, j int) bool { return spec.Tags[i].Name < spec.Tags[j].Name })

	return spec, nil
}

func (g *Generator) addChannel(spec *Spec, ch Channel, tag string) error {
	d := ch.Descriptor
	path := Path(d.Template())
	method := strings.ToLower(ch.Method)
	if method == "" {
		method = "post"
	}

	op := &Operation{
		Tags:        []string{tag},
		Summary:     d.ID(),
		Description: ch.Description,
		OperationID: d.ID(),
		Responses: map[string]Response{
			"200": {
				Description: "Reply",
				Content:     jsonContent(unionSchema(spec, d.Reply())),
			},
			"default": {Description: "Error"},
		},
	}

	for _, p := range d.Parameters() {
		op.Parameters = append(op.Parameters, parameter(p, "path"))
	}
	for _, p := range d.Query() {
		op.Parameters = append(op.Parameters, parameter(p, "query"))
	}

	if method != "get" && method != "delete" {
		op.RequestBody = &RequestBody{
			Required: true,
			Content:  jsonContent(unionSchema(spec, d.Messages())),
		}
	}

	if ch.Auth != "" {
		name, scheme, err := securityScheme(ch.Auth)
		if err != nil {
			return fmt.Errorf("channel %q: %w", d.ID(), err)
		}
		if spec.Components.SecuritySchemes == nil {
			spec.Components.SecuritySchemes = make(map[string]SecurityScheme)
		}
		spec.Components.SecuritySchemes[name] = scheme
		op.Security = []SecurityRequirement{{name: {}}}
	}

	item := spec.Paths[path]
	slot, err := item.slot(method)
	if err != nil {
		return fmt.Errorf("channel %q: %w", d.ID(), err)
	}
	if *slot != nil {
		return fmt.Errorf("channel %q: %s %s is already served by channel %q",
			d.ID(), strings.ToUpper(method), path, (*slot).OperationID)
	}
	*slot = op
	spec.Paths[path] = item
	return nil
}

func (p *PathItem) slot(method string) (**Operation, error) {
	switch method {
	case "get":
		return &p.Get, nil
	case "post":
		return &p.Post, nil
	case "put":
		return &p.Put, nil
	case "patch":
		return &p.Patch, nil
	case "delete":
		return &p.Delete, nil
	}
	return nil, fmt.Errorf("unsupported method %q", method)
}

// Path renders a channel address as an OpenAPI path.
func Path(t address.Template) string {
	p := address.Render(t, address.Slash)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// tagFor groups operations by the first literal path segment.
func tagFor(t address.Template) string {
	for _, seg := range t.Segments() {
		if seg.Kind != address.Literal {
			continue
		}
		parts := strings.FieldsFunc(seg.Value, func(r rune) bool { return r == '/' || r == '.' })
		if len(parts) > 0 {
			return parts[0]
		}
	}
	return "default"
}

func parameter(p param.Spec, in string) Parameter {
	explode := p.Explode
	out := Parameter{
		Name:     p.Name,
		In:       in,
		Required: p.Required || in == "path",
		Style:    string(p.Style),
		Explode:  &explode,
		Schema:   valueSchema(p),
	}
	if in == "query" {
		out.AllowReserved = p.AllowReserved
	}
	// positional is not an OpenAPI style; it renders like simple.
	if p.Style == param.StylePositional {
		out.Style = string(param.StyleSimple)
	}
	return out
}

func valueSchema(p param.Spec) *Schema {
	item := &Schema{Type: string(p.Scalar)}
	if p.Scalar == "" {
		item.Type = string(param.ScalarString)
	}
	switch p.Type {
	case param.TypeArray:
		return &Schema{Type: "array", Items: item}
	case param.TypeObject:
		return &Schema{Type: "object", AdditionalProperties: item}
	default:
		return item
	}
}

// unionSchema registers the message types of u and returns a schema for it.
func unionSchema(spec *Spec, u descriptor.Union) *Schema {
	if u.Empty() {
		return nil
	}
	if !u.IsUnion() {
		return messageRef(spec, u.Single())
	}

	s := &Schema{Discriminator: &Discriminator{PropertyName: u.Discriminator, Mapping: make(map[string]string)}}
	for _, m := range u.Types {
		ref := messageRef(spec, m)
		s.OneOf = append(s.OneOf, ref)
		s.Discriminator.Mapping[m.Tag] = ref.Ref
	}
	return s
}

func messageRef(spec *Spec, m descriptor.MessageRef) *Schema {
	if _, ok := spec.Components.Schemas[m.Name]; !ok {
		spec.Components.Schemas[m.Name] = &Schema{Type: "object", GoType: m.GoType}
	}
	return &Schema{Ref: "#/components/schemas/" + m.Name}
}

func jsonContent(s *Schema) map[string]MediaType {
	if s == nil {
		return nil
	}
	return map[string]MediaType{"application/json": {Schema: s}}
}

func securityScheme(auth string) (string, SecurityScheme, error) {
	switch auth {
	case "bearer":
		return "bearerAuth", SecurityScheme{Type: "http", Scheme: "bearer"}, nil
	case "basic":
		return "basicAuth", SecurityScheme{Type: "http", Scheme: "basic"}, nil
	case "apiKey":
		return "apiKey", SecurityScheme{Type: "apiKey", In: "header", Name: "X-API-Key"}, nil
	case "oauth2":
		return "oauth2", SecurityScheme{
			Type: "oauth2",
			Flows: &OAuthFlows{ClientCredentials: &OAuthFlow{
				TokenURL: "/oauth/token",
				Scopes:   map[string]string{},
			}},
		}, nil
	}
	return "", SecurityScheme{}, fmt.Errorf("unknown auth scheme %q", auth)
}

// ToJSON converts the spec to JSON.
func (spec *Spec) ToJSON() ([]byte, error) {
	return json.MarshalIndent(spec, "", "  ")
}

// ToJSONCompact converts the spec to compact JSON.
func (spec *Spec) ToJSONCompact() ([]byte, error) {
	return json.Marshal(spec)
}
