package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ccu-tools/ccuflux/internal/ccu"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/config"
)

// fakeGateway implements PersistenceGateway.
type fakeGateway struct {
	mu       sync.Mutex
	connects int
	batches  [][]*write.Point
	writeErr error
	connErr  error
}

func (g *fakeGateway) Connect(_ config.InfluxDBConfig, _ bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connects++
	return g.connErr
}

func (g *fakeGateway) Write(_ context.Context, points []*write.Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.writeErr != nil {
		return g.writeErr
	}
	g.batches = append(g.batches, points)
	return nil
}

func (g *fakeGateway) batchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.batches)
}

// fakeSource implements ccu.EventSource and records its lifecycle.
type fakeSource struct {
	mu         sync.Mutex
	interfaces []string
	inits      int
	connects   int
	stops      int
	handler    func(ccu.Event)
	initErr    error
}

func (s *fakeSource) AddInterface(name, _ string, _ int, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interfaces = append(s.interfaces, name)
}

func (s *fakeSource) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	return s.initErr
}

func (s *fakeSource) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSource) OnEvent(handler func(ccu.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// emit delivers an event through the registered callback.
func (s *fakeSource) emit(event ccu.Event) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

// fakeDirectory implements ccu.Directory.
type fakeDirectory struct {
	interfaces []ccu.Interface
	ifaceErr   error
}

func (d *fakeDirectory) Lookup(string) (ccu.ChannelInfo, bool) { return ccu.ChannelInfo{}, false }

func (d *fakeDirectory) FetchInterfaces(context.Context) ([]ccu.Interface, error) {
	return d.interfaces, d.ifaceErr
}

func (d *fakeDirectory) FetchDevices(context.Context, bool) ([]ccu.Device, error) { return nil, nil }
func (d *fakeDirectory) FetchRooms(context.Context) ([]ccu.Room, error)           { return nil, nil }
func (d *fakeDirectory) FetchVariablesByIDs(context.Context, []string) ([]ccu.Variable, error) {
	return nil, nil
}
func (d *fakeDirectory) FetchProgramsByIDs(context.Context, []string) ([]ccu.Program, error) {
	return nil, nil
}
func (d *fakeDirectory) ClearCache() {}

// pipelineFixture wires a pipeline with fakes and returns the pieces.
type pipelineFixture struct {
	pipeline  *Pipeline
	gateway   *fakeGateway
	sources   []*fakeSource
	connected int
}

func newPipelineFixture(t *testing.T, directory ccu.Directory) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{gateway: &fakeGateway{}}

	pipeline, err := NewPipeline(Deps{
		Logger:  testLogger(),
		Gateway: f.gateway,
		NewDirectory: func(string, int) ccu.Directory {
			return directory
		},
		NewSource: func() ccu.EventSource {
			source := &fakeSource{}
			f.sources = append(f.sources, source)
			return source
		},
		Hostname:              "test-host",
		OnControllerConnected: func() { f.connected++ },
	})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	f.pipeline = pipeline
	return f
}

func testConfig() *config.Config {
	cfg, _ := config.Load("/nonexistent/config.yaml")
	cfg.CCU.Address = "192.168.1.50"
	cfg.InfluxDB.Host = "localhost"
	cfg.InfluxDB.Org = "home"
	cfg.InfluxDB.Bucket = "ccu"
	cfg.Whitelist = []string{"HUMIDITY"}
	return cfg
}

func TestPipeline_ReloadBootstrapsController(t *testing.T) {
	directory := &fakeDirectory{interfaces: []ccu.Interface{
		{Name: "HmIP-RF", Host: "192.168.1.50", Port: 2010},
	}}
	f := newPipelineFixture(t, directory)

	if err := f.pipeline.Reload(context.Background(), testConfig()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if len(f.sources) != 1 {
		t.Fatalf("sources created = %d, want 1", len(f.sources))
	}
	source := f.sources[0]
	if source.inits != 1 || source.connects != 1 {
		t.Errorf("inits = %d, connects = %d, want 1 each", source.inits, source.connects)
	}
	if len(source.interfaces) != 1 || source.interfaces[0] != "HmIP-RF" {
		t.Errorf("interfaces = %v, want [HmIP-RF]", source.interfaces)
	}
	if f.gateway.connects != 1 {
		t.Errorf("gateway connects = %d, want 1", f.gateway.connects)
	}
	if f.connected != 1 {
		t.Errorf("controller-connected notifications = %d, want 1", f.connected)
	}
}

func TestPipeline_EventFlowsThroughFilterToGateway(t *testing.T) {
	directory := &fakeDirectory{interfaces: []ccu.Interface{{Name: "HmIP-RF"}}}
	f := newPipelineFixture(t, directory)

	if err := f.pipeline.Reload(context.Background(), testConfig()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	source := f.sources[0]

	// Accepted by the whitelist.
	source.emit(ccu.Event{
		Address:       "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY",
		DatapointType: "HUMIDITY",
		Value:         55.2,
		ArrivalTime:   time.Now(),
	})
	if f.gateway.batchCount() != 1 {
		t.Fatalf("batches = %d after accepted event, want 1", f.gateway.batchCount())
	}

	// Skipped by the filter.
	source.emit(ccu.Event{
		Address:       "HmIP-RF.0001D3C99C6AB3:1.TEMPERATURE",
		DatapointType: "TEMPERATURE",
		Value:         21.5,
		ArrivalTime:   time.Now(),
	})
	if f.gateway.batchCount() != 1 {
		t.Errorf("batches = %d after filtered event, want still 1", f.gateway.batchCount())
	}
}

func TestPipeline_ReloadStopsPreviousSource(t *testing.T) {
	directory := &fakeDirectory{interfaces: []ccu.Interface{{Name: "HmIP-RF"}}}
	f := newPipelineFixture(t, directory)
	ctx := context.Background()
	cfg := testConfig()

	if err := f.pipeline.Reload(ctx, cfg); err != nil {
		t.Fatalf("first Reload() error = %v", err)
	}
	if err := f.pipeline.Reload(ctx, cfg); err != nil {
		t.Fatalf("second Reload() error = %v", err)
	}

	if len(f.sources) != 2 {
		t.Fatalf("sources created = %d, want 2", len(f.sources))
	}
	if f.sources[0].stops != 1 {
		t.Errorf("first source stops = %d, want 1", f.sources[0].stops)
	}
	if f.sources[1].stops != 0 {
		t.Errorf("second source stops = %d, want 0", f.sources[1].stops)
	}
	if f.sources[1].connects != 1 {
		t.Errorf("second source connects = %d, want 1", f.sources[1].connects)
	}
}

func TestPipeline_NoControllerConfigured(t *testing.T) {
	f := newPipelineFixture(t, &fakeDirectory{})
	cfg := testConfig()
	cfg.CCU.Address = ""

	if err := f.pipeline.Reload(context.Background(), cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if f.sources[0].connects != 0 {
		t.Errorf("source connects = %d without controller, want 0", f.sources[0].connects)
	}
	if f.connected != 0 {
		t.Errorf("controller-connected notifications = %d, want 0", f.connected)
	}
}

func TestPipeline_InterfaceFetchFailureIsDegraded(t *testing.T) {
	directory := &fakeDirectory{ifaceErr: errors.New("ccu unreachable")}
	f := newPipelineFixture(t, directory)

	// Interface resolution failure leaves ingestion off but is not fatal.
	if err := f.pipeline.Reload(context.Background(), testConfig()); err != nil {
		t.Fatalf("Reload() error = %v, want nil (degraded mode)", err)
	}
	if f.sources[0].connects != 0 {
		t.Errorf("source connects = %d, want 0", f.sources[0].connects)
	}
}

func TestPipeline_StopFlushesBuffer(t *testing.T) {
	directory := &fakeDirectory{interfaces: []ccu.Interface{{Name: "HmIP-RF"}}}
	f := newPipelineFixture(t, directory)
	cfg := testConfig()
	cfg.Buffer.Size = 100

	if err := f.pipeline.Reload(context.Background(), cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	f.sources[0].emit(ccu.Event{
		Address:       "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY",
		DatapointType: "HUMIDITY",
		Value:         55.2,
		ArrivalTime:   time.Now(),
	})
	if f.gateway.batchCount() != 0 {
		t.Fatalf("batches = %d below threshold, want 0", f.gateway.batchCount())
	}

	f.pipeline.Stop(context.Background())

	if f.gateway.batchCount() != 1 {
		t.Errorf("batches = %d after Stop, want 1 (final flush)", f.gateway.batchCount())
	}
	if f.sources[0].stops != 1 {
		t.Errorf("source stops = %d, want 1", f.sources[0].stops)
	}
}

func TestPipeline_GatewayFailureIsDegraded(t *testing.T) {
	directory := &fakeDirectory{interfaces: []ccu.Interface{{Name: "HmIP-RF"}}}
	f := newPipelineFixture(t, directory)
	f.gateway.connErr = errors.New("db starting up")

	// A database connect failure never blocks ingestion.
	if err := f.pipeline.Reload(context.Background(), testConfig()); err != nil {
		t.Fatalf("Reload() error = %v, want nil (degraded mode)", err)
	}
	if f.sources[0].connects != 1 {
		t.Errorf("source connects = %d, want 1", f.sources[0].connects)
	}
}

func TestPipeline_Stats(t *testing.T) {
	directory := &fakeDirectory{interfaces: []ccu.Interface{{Name: "HmIP-RF"}}}
	f := newPipelineFixture(t, directory)
	cfg := testConfig()
	cfg.Buffer.Size = 100

	if err := f.pipeline.Reload(context.Background(), cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	f.sources[0].emit(ccu.Event{
		Address:       "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY",
		DatapointType: "HUMIDITY",
		Value:         55.2,
		ArrivalTime:   time.Now(),
	})

	stats := f.pipeline.Stats()
	if stats.BufferedPoints != 1 {
		t.Errorf("BufferedPoints = %d, want 1", stats.BufferedPoints)
	}
	if stats.DroppedPoints != 0 {
		t.Errorf("DroppedPoints = %d, want 0", stats.DroppedPoints)
	}
}
