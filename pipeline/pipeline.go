// Package pipeline assembles a definition into a running reactive graph:
// it instantiates components through the factory registry, wires their
// ports, starts them in dependency-safe order, drives the timeline, and
// tears everything down in reverse.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/componentregistry"
	"github.com/c360/sensorweave/config"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/metric"
	"github.com/c360/sensorweave/natsclient"
	"github.com/c360/sensorweave/timeline"
)

// DefaultShutdownTimeout bounds each component's Stop call when the
// definition does not override it.
const DefaultShutdownTimeout = 5 * time.Second

// Options carries the external collaborators a pipeline hands to its
// components. Unset fields stay nil; components that require them fail
// their own validation.
type Options struct {
	Engine     infer.Engine
	Audio      capture.AudioOpener
	Camera     capture.DeviceOpener
	NATSClient *natsclient.Client
	Metrics    *metric.Registry
	Logger     *slog.Logger

	// Registry overrides the built-in factory catalog, primarily for
	// tests that register probe components.
	Registry *component.Registry
}

// instance pairs a declared component with its runtime handle.
type instance struct {
	name    string
	factory string
	comp    component.Reactor
}

// Pipeline is one assembled, runnable graph.
type Pipeline struct {
	id     string
	name   string
	def    *config.Definition
	tl     *timeline.Timeline
	reg    *component.Registry
	logger *slog.Logger

	nats     *natsclient.Client
	ownsNATS bool

	instances []instance
	started   []*component.Managed
}

// New assembles a pipeline from its definition: every component is
// created and every connection wired. No hardware or network is touched
// until Run.
func New(def *config.Definition, opts Options) (*Pipeline, error) {
	if def == nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: no definition provided", errors.ErrConfiguration),
			"pipeline", "New", "definition validation")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	logger = logger.With("pipeline", def.Name, "run_id", runID)

	tl := timeline.New(logger, opts.Metrics)

	reg := opts.Registry
	if reg == nil {
		var err error
		if reg, err = componentregistry.New(); err != nil {
			return nil, err
		}
	}

	p := &Pipeline{
		id:     runID,
		name:   def.Name,
		def:    def,
		tl:     tl,
		reg:    reg,
		logger: logger,
	}

	nats, ownsNATS, err := p.resolveNATS(opts)
	if err != nil {
		return nil, err
	}
	p.nats = nats
	p.ownsNATS = ownsNATS

	if err := p.createComponents(opts); err != nil {
		return nil, err
	}
	if err := p.wireConnections(); err != nil {
		return nil, err
	}

	logger.Info("Pipeline assembled",
		"components", len(p.instances),
		"connections", len(def.Connections))
	return p, nil
}

// resolveNATS returns the broker client: an injected one, one built from
// the definition, or none.
func (p *Pipeline) resolveNATS(opts Options) (*natsclient.Client, bool, error) {
	if opts.NATSClient != nil {
		return opts.NATSClient, false, nil
	}
	if p.def.NATS == nil {
		return nil, false, nil
	}

	cfg := natsclient.DefaultConfig()
	cfg.URL = p.def.NATS.URL
	if p.def.NATS.Name != "" {
		cfg.Name = p.def.NATS.Name
	}
	if p.def.NATS.ConnectTimeout > 0 {
		cfg.ConnectTimeout = p.def.NATS.ConnectTimeout
	}
	if p.def.NATS.MaxReconnects != 0 {
		cfg.MaxReconnects = p.def.NATS.MaxReconnects
	}

	return natsclient.NewClient(cfg, p.logger), true, nil
}

// createComponents instantiates every declared component through the
// registry, which also enforces unique names and exclusive hardware
// resource claims.
func (p *Pipeline) createComponents(opts Options) error {
	deps := component.Dependencies{
		Timeline:   p.tl,
		Engine:     opts.Engine,
		Audio:      opts.Audio,
		Camera:     opts.Camera,
		NATSClient: p.nats,
		Metrics:    opts.Metrics,
		Logger:     p.logger,
	}

	for _, decl := range p.def.Components {
		raw, err := decl.RawConfig()
		if err != nil {
			return err
		}
		comp, err := p.reg.CreateComponent(decl.Name, decl.Factory, raw, deps)
		if err != nil {
			return errors.Wrap(err, "pipeline", "createComponents",
				fmt.Sprintf("component %q creation", decl.Name))
		}
		p.instances = append(p.instances, instance{
			name:    decl.Name,
			factory: decl.Factory,
			comp:    comp,
		})
	}
	return nil
}

// endpointRef is one resolved connection endpoint: the declaring
// instance, its static descriptor, and the runtime port.
type endpointRef struct {
	instance string
	decl     component.Port
	port     timeline.AnyPort
}

// wireConnections resolves every connection endpoint and attaches the
// ports. Direction and payload type are checked per connection, then the
// whole graph is validated: every required input must be connected and
// the data edges must be acyclic. A misdeclared graph fails assembly
// rather than a running step.
func (p *Pipeline) wireConnections() error {
	fail := func(format string, args ...any) error {
		return errors.WrapFatal(
			fmt.Errorf("%w: "+format, append([]any{errors.ErrConfiguration}, args...)...),
			"pipeline", "wireConnections", "connection validation")
	}

	connected := make(map[string]bool)
	edges := make(map[string][]string)

	for _, conn := range p.def.Connections {
		from, err := p.resolveEndpoint(conn.From, component.DirectionOutput)
		if err != nil {
			return err
		}
		to, err := p.resolveEndpoint(conn.To, component.DirectionInput)
		if err != nil {
			return err
		}
		if err := timeline.ConnectNamed(from.port, to.port); err != nil {
			return fail("cannot connect %q to %q: %w", conn.From, conn.To, err)
		}
		connected[to.instance+"."+to.decl.Name] = true

		// Trigger inputs are declared feedback edges; they carry no data
		// and are exempt from the cycle check.
		if to.decl.Kind != timeline.KindTrigger {
			edges[from.instance] = append(edges[from.instance], to.instance)
		}
		p.logger.Debug("Connected ports", "from", conn.From, "to", conn.To)
	}

	if err := p.checkRequiredInputs(connected); err != nil {
		return err
	}
	return p.checkAcyclic(edges)
}

// checkRequiredInputs verifies every input declared Required received a
// connection. An unconnected required input would otherwise assemble
// cleanly and run forever producing nothing.
func (p *Pipeline) checkRequiredInputs(connected map[string]bool) error {
	for _, inst := range p.instances {
		for _, d := range inst.comp.InputPorts() {
			if d.Required && !connected[inst.name+"."+d.Name] {
				return errors.WrapFatal(
					fmt.Errorf("%w: required input %q of component %q is not connected",
						errors.ErrConfiguration, d.Name, inst.name),
					"pipeline", "checkRequiredInputs", "connection validation")
			}
		}
	}
	return nil
}

// checkAcyclic rejects cycles over the data edges. With trigger feedback
// excluded, a cycle means a step could re-enter its own producers.
func (p *Pipeline) checkAcyclic(edges map[string][]string) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return false
		case done:
			return true
		}
		state[name] = visiting
		for _, next := range edges[name] {
			if !visit(next) {
				return false
			}
		}
		state[name] = done
		return true
	}

	for _, inst := range p.instances {
		if !visit(inst.name) {
			return errors.WrapFatal(
				fmt.Errorf("%w: connection cycle through component %q", errors.ErrConfiguration, inst.name),
				"pipeline", "checkAcyclic", "connection validation")
		}
	}
	return nil
}

// resolveEndpoint finds an endpoint's runtime port and checks its
// declared direction.
func (p *Pipeline) resolveEndpoint(endpoint string, direction component.Direction) (endpointRef, error) {
	fail := func(format string, args ...any) error {
		return errors.WrapFatal(
			fmt.Errorf("%w: "+format, append([]any{errors.ErrConfiguration}, args...)...),
			"pipeline", "resolveEndpoint", "endpoint resolution")
	}

	instanceName, portName, err := config.ParseEndpoint(endpoint)
	if err != nil {
		return endpointRef{}, err
	}

	comp := p.reg.Component(instanceName)
	if comp == nil {
		return endpointRef{}, fail("endpoint %q refers to unknown component %q", endpoint, instanceName)
	}

	descriptors := comp.InputPorts()
	if direction == component.DirectionOutput {
		descriptors = comp.OutputPorts()
	}
	var decl component.Port
	declared := false
	for _, d := range descriptors {
		if d.Name == portName {
			decl = d
			declared = true
			break
		}
	}
	if !declared {
		return endpointRef{}, fail("component %q declares no %s port %q", instanceName, direction, portName)
	}

	wired, ok := comp.(component.Wired)
	if !ok {
		return endpointRef{}, fail("component %q exposes no runtime ports", instanceName)
	}
	port, ok := wired.Lookup(portName)
	if !ok {
		return endpointRef{}, errors.WrapFatal(
			fmt.Errorf("%w: component %q port %q", errors.ErrUnknownPort, instanceName, portName),
			"pipeline", "resolveEndpoint", "endpoint resolution")
	}
	return endpointRef{instance: instanceName, decl: decl, port: port}, nil
}

// startOrder ranks component types so consumers start before producers:
// sinks, then tasks, then adapters. Teardown runs in reverse.
func startOrder(t string) int {
	switch t {
	case component.TypeSink:
		return 0
	case component.TypeTask:
		return 1
	case component.TypeAdapter:
		return 2
	default:
		return 3
	}
}

// orderedInstances returns the instances in start order, declaration
// order breaking ties.
func (p *Pipeline) orderedInstances() []instance {
	ordered := make([]instance, len(p.instances))
	copy(ordered, p.instances)
	sort.SliceStable(ordered, func(i, j int) bool {
		return startOrder(ordered[i].comp.Meta().Type) < startOrder(ordered[j].comp.Meta().Type)
	})
	return ordered
}

// Run starts every component, drives the timeline until it halts, and
// tears the pipeline down. The returned error is the halting fault; nil
// means a graceful stop.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.ownsNATS {
		if err := p.nats.Connect(ctx); err != nil {
			return errors.WrapFatal(
				fmt.Errorf("%w: %v", errors.ErrConfiguration, err),
				"pipeline", "Run", "broker connection")
		}
	}

	if err := p.startComponents(ctx); err != nil {
		p.stopComponents()
		p.closeNATS()
		return err
	}

	p.logger.Info("Pipeline running")
	err := p.tl.Run(ctx)
	if err != nil {
		p.logger.Error("Pipeline halted on fault", "error", err)
	} else {
		p.logger.Info("Pipeline stopped gracefully", "steps", p.tl.Steps())
	}

	p.stopComponents()
	p.closeNATS()
	return err
}

// startComponents initializes and starts everything in start order. The
// first failure aborts the run; already-started components are stopped
// by the caller.
func (p *Pipeline) startComponents(ctx context.Context) error {
	for _, inst := range p.orderedInstances() {
		lc, ok := component.AsLifecycle(inst.comp)
		if !ok {
			continue
		}

		if err := lc.Initialize(); err != nil {
			return errors.Wrap(err, "pipeline", "startComponents",
				fmt.Sprintf("component %q initialization", inst.name))
		}

		compCtx, cancel := context.WithCancel(ctx)
		if err := lc.Start(compCtx); err != nil {
			cancel()
			return errors.Wrap(err, "pipeline", "startComponents",
				fmt.Sprintf("component %q start", inst.name))
		}

		p.started = append(p.started, &component.Managed{
			Component:  inst.comp,
			State:      component.StateReady,
			Context:    compCtx,
			Cancel:     cancel,
			StartOrder: len(p.started),
		})
		p.logger.Info("Component started",
			"component", inst.name, "type", inst.comp.Meta().Type)
	}
	return nil
}

// stopComponents tears down in reverse start order. Stop failures are
// logged and swallowed; teardown always completes.
func (p *Pipeline) stopComponents() {
	timeout := p.def.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	for i := len(p.started) - 1; i >= 0; i-- {
		m := p.started[i]
		m.Cancel()
		lc, ok := component.AsLifecycle(m.Component)
		if !ok {
			continue
		}
		if err := lc.Stop(timeout); err != nil {
			m.LastError = err
			p.logger.Warn("Component stop failed",
				"component", m.Component.Meta().Name, "error", err)
		}
		m.State = component.StateStopped
	}
	p.started = nil
}

func (p *Pipeline) closeNATS() {
	if p.ownsNATS && p.nats != nil {
		p.nats.Close(context.Background())
	}
}

// ID returns the unique run identifier.
func (p *Pipeline) ID() string { return p.id }

// Name returns the pipeline name from the definition.
func (p *Pipeline) Name() string { return p.name }

// Timeline exposes the pipeline's timeline, primarily for tests.
func (p *Pipeline) Timeline() *timeline.Timeline { return p.tl }

// Component returns a created instance by name, nil when absent.
func (p *Pipeline) Component(name string) component.Reactor {
	return p.reg.Component(name)
}

// Health reports per-component health, keyed by instance name.
func (p *Pipeline) Health() map[string]component.HealthStatus {
	out := make(map[string]component.HealthStatus, len(p.instances))
	for _, inst := range p.instances {
		out[inst.name] = inst.comp.Health()
	}
	return out
}
