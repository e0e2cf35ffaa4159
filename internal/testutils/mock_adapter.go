package testutils

import (
	"context"
	"io"

	"github.com/srg/scalelink/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockAdapter implements device.Adapter with testify/mock.
//
//	adapter := testutils.NewReadyAdapter()
//	adapter.On("Bonded", mock.Anything).Return([]device.Handle{scale}, nil)
//	adapter.On("Scan", mock.Anything, mock.Anything).Run(testutils.ScanEmitting()).Return(nil)
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockAdapter) Enabled(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockAdapter) RequestEnable(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAdapter) CheckPermissions(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAdapter) Bonded(ctx context.Context) ([]device.Handle, error) {
	args := m.Called(ctx)
	handles, _ := args.Get(0).([]device.Handle)
	return handles, args.Error(1)
}

func (m *MockAdapter) Scan(ctx context.Context, handler func(device.Handle)) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}

func (m *MockAdapter) StopScan() error {
	args := m.Called()
	return args.Error(0)
}

// NewReadyAdapter returns a MockAdapter that is present, powered and granted.
// Bonded and Scan expectations are left to the test.
func NewReadyAdapter() *MockAdapter {
	m := &MockAdapter{}
	m.On("Available", mock.Anything).Return(true).Maybe()
	m.On("Enabled", mock.Anything).Return(true).Maybe()
	m.On("CheckPermissions", mock.Anything).Return(nil).Maybe()
	m.On("StopScan").Return(nil).Maybe()
	return m
}

// ScanEmitting returns a Run function for a Scan expectation. It reports
// handles to the scan handler in order, then blocks until the scan context is done.
func ScanEmitting(handles ...device.Handle) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		handler := args.Get(1).(func(device.Handle))
		for _, h := range handles {
			handler(h)
		}
		<-ctx.Done()
	}
}

// ScanEmittingThenEnd reports handles and returns without waiting, as a
// platform scan that finishes on its own.
func ScanEmittingThenEnd(handles ...device.Handle) func(args mock.Arguments) {
	return func(args mock.Arguments) {
		handler := args.Get(1).(func(device.Handle))
		for _, h := range handles {
			handler(h)
		}
	}
}

// MockDialer implements device.Dialer with testify/mock
type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context, h device.Handle, service device.ServiceID) (io.ReadWriteCloser, error) {
	args := m.Called(ctx, h, service)
	transport, _ := args.Get(0).(io.ReadWriteCloser)
	return transport, args.Error(1)
}

// MockScanStopper implements device.ScanStopper with testify/mock
type MockScanStopper struct {
	mock.Mock
}

func (m *MockScanStopper) StopScan() {
	m.Called()
}
