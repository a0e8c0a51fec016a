package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/okra-platform/shapegen/internal/codegen"
	"github.com/okra-platform/shapegen/internal/config"
)

type mockConfigLoader struct {
	mock.Mock
}

func (m *mockConfigLoader) LoadConfig() (*config.Config, string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*config.Config), args.String(1), args.Error(2)
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, opts codegen.Options) (*codegen.Result, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*codegen.Result), args.Error(1)
}

type mockSignalNotifier struct {
	mock.Mock
}

func (m *mockSignalNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) {
	m.Called(c, sig)
}

func (m *mockSignalNotifier) Stop(c chan<- os.Signal) {
	m.Called(c)
}

// mockOutput records everything printed.
type mockOutput struct {
	mu sync.Mutex
	b  strings.Builder
}

func (o *mockOutput) Printf(format string, a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(&o.b, format, a...)
}

func (o *mockOutput) Println(a ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(&o.b, a...)
}

func (o *mockOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}
