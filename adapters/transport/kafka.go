package transport

import (
	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/domain/address"
)

var (
	importSarama    = ir.Import{Path: "github.com/Shopify/sarama"}
	importKafkabind = ir.Import{Path: "github.com/artpar/channelgen/pkg/binding/kafkabind"}
)

// Kafka binds channels to topics through sarama. Topic subscriptions are
// exact; Kafka has no single-segment wildcard.
type Kafka struct{}

func (Kafka) Protocol() string { return "kafka" }
func (Kafka) Suffix() string { return "Kafka" }

func (Kafka) Capabilities() synth.Capabilities {
	return synth.Capabilities{Publish: true, Subscribe: true}
}

func (Kafka) Delimiter() address.Delimiter { return address.Dot }
func (Kafka) Wildcard() string { return "" }

func (Kafka) Client(op synth.Operation) []ir.Param {
	if op == synth.Publish {
		return []ir.Param{{Name: "producer", Type: "sarama.SyncProducer"}}
	}
	return []ir.Param{{Name: "consumer", Type: "sarama.Consumer"}}
}

func (Kafka) Imports(synth.Operation) []ir.Import {
	return []ir.Import{importSarama, importKafkabind}
}

func (Kafka) Dependencies(synth.Operation) []synth.Dependency {
	return []synth.Dependency{{Module: "github.com/Shopify/sarama", Purpose: "Kafka client"}}
}

func (Kafka) NativeSend(synth.Site) ir.Expr {
	return ir.Call{Fun: "kafkabind.Sender", Args: ir.Codes("producer")}
}

func (Kafka) NativeRequest(synth.Site) ir.Expr { return notSupported() }

func (Kafka) NativeSource(site synth.Site) ir.Block {
	return ir.Block{ir.Return{Values: []ir.Expr{
		ir.Code("kafkabind.Open(consumer, " + site.Address + ", sarama.OffsetNewest)(ctx)"),
	}}}
}

func (Kafka) Shared(synth.Site) []ir.Decl { return nil }
