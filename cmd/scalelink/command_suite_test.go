package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/devicefactory"
	"github.com/srg/scalelink/internal/testutils"
	"github.com/srg/scalelink/pkg/config"
	"github.com/stretchr/testify/suite"
)

// syncBuffer is a bytes.Buffer safe for a command writing while the test reads
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CommandTestSuite runs commands against a mocked backend.
// All cmd/scalelink suites embed it.
type CommandTestSuite struct {
	suite.Suite

	Adapter    *testutils.MockAdapter
	Dialer     *testutils.MockDialer
	Config     *config.Config // as seen by the backend factory
	configPath string

	origBackend func(*config.Config, *logrus.Logger) (*devicefactory.Backend, error)
	origNoColor bool
}

func (s *CommandTestSuite) SetupTest() {
	s.Adapter = testutils.NewReadyAdapter()
	s.Dialer = &testutils.MockDialer{}
	s.Config = nil

	s.configPath = filepath.Join(s.T().TempDir(), "config.yaml")
	s.Require().NoError(os.WriteFile(s.configPath, []byte("log_level: panic\n"), 0o600))

	s.origBackend = newBackend
	newBackend = func(cfg *config.Config, _ *logrus.Logger) (*devicefactory.Backend, error) {
		s.Config = cfg
		return &devicefactory.Backend{Name: "mock", Adapter: s.Adapter, Dialer: s.Dialer}, nil
	}

	s.origNoColor = color.NoColor
	color.NoColor = true
}

func (s *CommandTestSuite) TearDownTest() {
	newBackend = s.origBackend
	color.NoColor = s.origNoColor
}

// ExecuteCommand runs the root command with args and returns its combined output
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	out, errCh := s.StartCommand(context.Background(), args...)
	err := <-errCh
	return out.String(), err
}

// StartCommand runs the root command in the background
func (s *CommandTestSuite) StartCommand(ctx context.Context, args ...string) (*syncBuffer, <-chan error) {
	out := &syncBuffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append(args, "--config", s.configPath))

	errCh := make(chan error, 1)
	go func() {
		errCh <- root.ExecuteContext(ctx)
	}()
	return out, errCh
}
