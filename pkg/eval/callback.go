// Copyright 2026, the declstack authors. All rights reserved.

package eval

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/declstack/declstack/pkg/value"
)

// ResolvedResourceOptions is a resource's `options:` block after every
// reference has been evaluated down to a concrete URN/provider-reference
// string (§4.6.5 step 2).
type ResolvedResourceOptions struct {
	Aliases                 []string
	CreateTimeout           string
	UpdateTimeout           string
	DeleteTimeout           string
	DeleteBeforeReplace     bool
	DependsOn               []string
	IgnoreChanges           []string
	Import                  string
	Parent                  string
	Protect                 bool
	Provider                string
	Providers               map[string]string
	Version                 string
	PluginDownloadURL       string
	ReplaceOnChanges        []string
	RetainOnDelete          bool
	ReplaceWith             string
	DeletedWith             string
	AdditionalSecretOutputs []string
	HideDiffs               []string
}

// RegisterResponse is the shape returned by register_resource and
// read_resource (§4.6.1).
type RegisterResponse struct {
	URN     string
	ID      string
	Outputs map[string]value.Value
	Stables []string
}

// InvokeResponse is the shape returned by invoke (§4.6.1).
type InvokeResponse struct {
	ReturnValues map[string]value.Value
	Failures     []string
}

// PackageRef is the opaque handle returned by register_package.
type PackageRef string

// Callback is the abstract RPC delegate the evaluator calls to perform side
// effects (§4.6.1). Implementations are responsible for their own
// thread-safety, since level-parallel evaluation may call these methods
// concurrently from multiple goroutines.
type Callback interface {
	RegisterResource(ctx context.Context, typeToken, logicalName string, custom, remote bool,
		inputs map[string]value.Value, opts ResolvedResourceOptions) (RegisterResponse, error)
	ReadResource(ctx context.Context, typeToken, logicalName, id, parentURN string,
		inputs map[string]value.Value, providerRef, version string) (RegisterResponse, error)
	Invoke(ctx context.Context, token string, args map[string]value.Value,
		providerRef, version, parentURN string, dependsOn []string) (InvokeResponse, error)
	RegisterOutputs(ctx context.Context, urn string, outputs map[string]value.Value) error
	Log(severity LogSeverity, message string)
	RegisterPackage(ctx context.Context, name, version, downloadURL string, parameterization map[string]string) (PackageRef, error)
}

// LogSeverity mirrors the orchestrator's log levels.
type LogSeverity int

const (
	LogDebug LogSeverity = iota
	LogInfo
	LogWarning
	LogError
)

// NoopCallback echoes inputs back as outputs and never errors; used for
// tests that only exercise expression evaluation, not registration.
type NoopCallback struct {
	counter uint64
}

func (c *NoopCallback) nextID() string {
	n := atomic.AddUint64(&c.counter, 1)
	return fmt.Sprintf("id-%04x", n)
}

func (c *NoopCallback) RegisterResource(_ context.Context, typeToken, logicalName string, _, _ bool,
	inputs map[string]value.Value, _ ResolvedResourceOptions) (RegisterResponse, error) {
	return RegisterResponse{
		URN:     fmt.Sprintf("urn:declstack:noop::noop::%s::%s", typeToken, logicalName),
		ID:      c.nextID(),
		Outputs: inputs,
	}, nil
}

func (c *NoopCallback) ReadResource(_ context.Context, typeToken, logicalName, id, _ string,
	inputs map[string]value.Value, _, _ string) (RegisterResponse, error) {
	return RegisterResponse{
		URN:     fmt.Sprintf("urn:declstack:noop::noop::%s::%s", typeToken, logicalName),
		ID:      id,
		Outputs: inputs,
	}, nil
}

func (c *NoopCallback) Invoke(_ context.Context, _ string, _ map[string]value.Value,
	_, _, _ string, _ []string) (InvokeResponse, error) {
	return InvokeResponse{ReturnValues: map[string]value.Value{}}, nil
}

func (c *NoopCallback) RegisterOutputs(context.Context, string, map[string]value.Value) error { return nil }
func (c *NoopCallback) Log(LogSeverity, string)                                               {}
func (c *NoopCallback) RegisterPackage(_ context.Context, name, version, _ string, _ map[string]string) (PackageRef, error) {
	return PackageRef(name + "@" + version), nil
}

// CapturedRegistration records one register_resource/read_resource call for
// test assertions.
type CapturedRegistration struct {
	TypeToken string
	Name      string
	Custom    bool
	Remote    bool
	Inputs    map[string]value.Value
	Options   ResolvedResourceOptions
}

// CapturedInvoke records one invoke call for test assertions.
type CapturedInvoke struct {
	Token    string
	Args     map[string]value.Value
	Provider string
	Version  string
}

// CapturedOutputs records one register_outputs call for test assertions.
type CapturedOutputs struct {
	URN     string
	Outputs map[string]value.Value
}

// MockCallback records every call it receives and returns pre-configured
// responses (consumed in FIFO order) or auto-generated placeholders when
// none are queued. All state is guarded by a single mutex so the mock is
// safe to share across goroutines in level-parallel evaluation, mirroring
// the Arc<Mutex<...>>-per-field shape of the original core's mock.
type MockCallback struct {
	mu sync.Mutex

	registerResponses []RegisterResponse
	readResponses     []RegisterResponse
	invokeResponses   []InvokeResponse

	Registrations []CapturedRegistration
	Reads         []CapturedRegistration
	Invocations   []CapturedInvoke
	Outputs       []CapturedOutputs
	Logs          []string

	urnPrefix string
	counter   uint32
}

// NewMockCallback creates a mock with no pre-configured responses.
func NewMockCallback() *MockCallback {
	return &MockCallback{urnPrefix: "urn:declstack:test::test"}
}

// WithRegisterResponses queues responses consumed in order by
// RegisterResource.
func (m *MockCallback) WithRegisterResponses(responses ...RegisterResponse) *MockCallback {
	m.registerResponses = append(m.registerResponses, responses...)
	return m
}

// WithInvokeResponses queues responses consumed in order by Invoke.
func (m *MockCallback) WithInvokeResponses(responses ...InvokeResponse) *MockCallback {
	m.invokeResponses = append(m.invokeResponses, responses...)
	return m
}

func (m *MockCallback) autoURN(typeToken, name string) string {
	return fmt.Sprintf("%s::%s::%s", m.urnPrefix, typeToken, name)
}

func (m *MockCallback) autoID() string {
	m.counter++
	return fmt.Sprintf("id-%04x", m.counter)
}

func (m *MockCallback) RegisterResource(_ context.Context, typeToken, name string, custom, remote bool,
	inputs map[string]value.Value, opts ResolvedResourceOptions) (RegisterResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Registrations = append(m.Registrations, CapturedRegistration{typeToken, name, custom, remote, inputs, opts})

	if len(m.registerResponses) > 0 {
		resp := m.registerResponses[0]
		m.registerResponses = m.registerResponses[1:]
		return resp, nil
	}
	return RegisterResponse{URN: m.autoURN(typeToken, name), ID: m.autoID(), Outputs: inputs}, nil
}

func (m *MockCallback) ReadResource(_ context.Context, typeToken, name, id, parentURN string,
	inputs map[string]value.Value, providerRef, version string) (RegisterResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reads = append(m.Reads, CapturedRegistration{TypeToken: typeToken, Name: name, Custom: true, Inputs: inputs})

	if len(m.readResponses) > 0 {
		resp := m.readResponses[0]
		m.readResponses = m.readResponses[1:]
		return resp, nil
	}
	return RegisterResponse{URN: m.autoURN(typeToken, name), ID: id, Outputs: inputs}, nil
}

func (m *MockCallback) Invoke(_ context.Context, token string, args map[string]value.Value,
	provider, version, _ string, _ []string) (InvokeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Invocations = append(m.Invocations, CapturedInvoke{token, args, provider, version})

	if len(m.invokeResponses) > 0 {
		resp := m.invokeResponses[0]
		m.invokeResponses = m.invokeResponses[1:]
		return resp, nil
	}
	return InvokeResponse{ReturnValues: map[string]value.Value{}}, nil
}

func (m *MockCallback) RegisterOutputs(_ context.Context, urn string, outputs map[string]value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outputs = append(m.Outputs, CapturedOutputs{urn, outputs})
	return nil
}

func (m *MockCallback) Log(_ LogSeverity, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, message)
}

func (m *MockCallback) RegisterPackage(_ context.Context, name, version, _ string, _ map[string]string) (PackageRef, error) {
	return PackageRef(name + "@" + version), nil
}
