package corekit

// Layer describes the architectural slice a component belongs to: ingestion
// adapters feed the routing graph, which feeds the execution orchestrator.
type Layer string

const (
	LayerIngestion Layer = "ingestion"
	LayerRouting   Layer = "routing"
	LayerExecution Layer = "execution"
	LayerPlatform  Layer = "platform"
)

// Descriptor advertises a component's placement and capabilities. It does
// not change runtime behavior; it lets logging and metrics attach
// consistent labels across ingestion adapters, segment executors, and the
// solver.
type Descriptor struct {
	Name         string
	Layer        Layer
	Capabilities []string
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
