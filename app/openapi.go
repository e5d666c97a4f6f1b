package app

import (
	"fmt"
	"slices"

	"github.com/artpar/channelgen/config"
	"github.com/artpar/channelgen/core/openapi"
	"github.com/artpar/channelgen/core/schema"
	"github.com/artpar/channelgen/domain/descriptor"
)

// HTTPProtocol is the protocol whose channels are exported as OpenAPI.
const HTTPProtocol = "http_client"

// OpenAPI exports the http_client channels of m. Channels that fail to build
// are skipped; Generate reports them.
func OpenAPI(cfg *config.Config, m schema.Manifest, serverURL string) (*openapi.Spec, error) {
	var channels []openapi.Channel
	for _, ch := range m.Channels {
		override := cfg.Channels[ch.ID]
		if override.Skip {
			continue
		}
		protocols := Protocols(cfg, ch)
		if !slices.Contains(protocols, HTTPProtocol) {
			continue
		}

		d, _, err := descriptor.Build(ch.Input(), protocols)
		if err != nil {
			continue
		}
		c := openapi.Channel{Descriptor: d, Description: ch.Description}
		if h := override.HTTP; h != nil {
			c.Method = h.Method
			c.Auth = h.Auth
		}
		channels = append(channels, c)
	}

	gen := openapi.NewGenerator(channels)
	if pkg := cfg.Output.PackageName(m.Package); pkg != "" {
		gen.SetInfo(openapi.Info{
			Title:       pkg,
			Version:     "1.0.0",
			Description: fmt.Sprintf("HTTP channels of package %s", pkg),
		})
	}
	if serverURL != "" {
		gen.AddServer(serverURL, "")
	}
	return gen.Generate()
}
