// Package testutil provides transports and helpers for bridge tests.
package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/jsbridge/internal/transport"
)

// MockTransport is a mock implementation of transport.Transport for testing.
type MockTransport struct {
	mock.Mock
}

// Send mocks the Send method.
func (m *MockTransport) Send(message string) error {
	args := m.Called(message)
	return args.Error(0)
}

// Evaluate mocks the Evaluate method.
func (m *MockTransport) Evaluate(script string) error {
	args := m.Called(script)
	return args.Error(0)
}

// Attach mocks the Attach method.
func (m *MockTransport) Attach(in transport.Inbound) {
	m.Called(in)
}

// Detach mocks the Detach method.
func (m *MockTransport) Detach() {
	m.Called()
}

// NewMockTransport creates a mock transport whose methods all succeed.
func NewMockTransport(t *testing.T) *MockTransport {
	t.Helper()
	m := new(MockTransport)

	m.On("Send", mock.Anything).Return(nil).Maybe()
	m.On("Evaluate", mock.Anything).Return(nil).Maybe()
	m.On("Attach", mock.Anything).Return().Maybe()
	m.On("Detach").Return().Maybe()

	return m
}

// Recorder is an in-memory transport that keeps everything sent through it
// and lets a test play the remote side.
type Recorder struct {
	mu        sync.Mutex
	inbound   transport.Inbound
	attached  bool
	sent      []string
	evaluated []string
	sendErr   error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, message)
	return nil
}

func (r *Recorder) Evaluate(script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluated = append(r.evaluated, script)
	return nil
}

func (r *Recorder) Attach(in transport.Inbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound = in
	r.attached = true
}

func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound = transport.Inbound{}
	r.attached = false
}

// FailSends makes every later Send return err. Nil restores success.
func (r *Recorder) FailSends(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendErr = err
}

// Attached reports whether an inbound side is attached.
func (r *Recorder) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// Sent returns a copy of the messages sent so far.
func (r *Recorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

// Evaluated returns a copy of the scripts evaluated so far.
func (r *Recorder) Evaluated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.evaluated...)
}

// Last returns the most recent sent message, or "" if none.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1]
}

// Deliver plays a message arriving from the remote side.
func (r *Recorder) Deliver(raw string) {
	r.current().Message(raw)
}

// Console plays a console line arriving from the remote side.
func (r *Recorder) Console(line string) {
	r.current().Console(line)
}

// Ready plays the remote side finishing its load.
func (r *Recorder) Ready() {
	r.current().Ready()
}

// Reload plays the remote side starting to load again.
func (r *Recorder) Reload() {
	r.current().Reload()
}

func (r *Recorder) current() transport.Inbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inbound
}
