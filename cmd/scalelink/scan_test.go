package main

import (
	"testing"

	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ScanCommandTestSuite struct {
	CommandTestSuite
}

func (s *ScanCommandTestSuite) TestTableInDiscoveryOrder() {
	// GOAL: scan prints each device once, in the order it was discovered
	//
	// TEST SCENARIO: adapter reports Headset, BT, Headset again → two rows, Headset first

	other := testutils.Other("AA:BB:CC:DD:EE:FF")
	s.Adapter.On("Scan", mock.Anything, mock.Anything).
		Run(testutils.ScanEmittingThenEnd(other, testutils.Scale(), other)).
		Return(nil)

	out, err := s.ExecuteCommand("scan", "--duration", "2s")

	s.Require().NoError(err)
	testutils.AssertTranscript(s.T(), out, `
NAME     ADDRESS            BONDED
Headset  AA:BB:CC:DD:EE:FF  no
BT       00:11:22:33:44:55  no
`)
}

func (s *ScanCommandTestSuite) TestJSON() {
	s.Adapter.On("Scan", mock.Anything, mock.Anything).
		Run(testutils.ScanEmittingThenEnd(testutils.Scale())).
		Return(nil)

	out, err := s.ExecuteCommand("scan", "-d", "2s", "--format", "json")

	s.Require().NoError(err)
	s.JSONEq(`[{"name":"BT","address":"00:11:22:33:44:55","bonded":false}]`, out)
}

func (s *ScanCommandTestSuite) TestNothingFound() {
	s.Adapter.On("Scan", mock.Anything, mock.Anything).Return(nil)

	out, err := s.ExecuteCommand("scan", "-d", "2s")

	s.Require().NoError(err)
	testutils.AssertTranscript(s.T(), out, "No devices discovered")
}

func (s *ScanCommandTestSuite) TestInvalidFormat() {
	_, err := s.ExecuteCommand("scan", "--format", "xml")

	s.ErrorContains(err, "invalid format 'xml'")
	s.Nil(s.Config, "backend MUST NOT be opened for invalid arguments")
}

func (s *ScanCommandTestSuite) TestBluetoothOff() {
	s.Adapter = &testutils.MockAdapter{}
	s.Adapter.On("Available", mock.Anything).Return(true)
	s.Adapter.On("Enabled", mock.Anything).Return(false)

	_, err := s.ExecuteCommand("scan")

	s.ErrorIs(err, device.ErrAdapterUnavailable)
	s.Equal("Bluetooth is not available or not enabled: bluetooth is turned off", FormatUserError(err))
}

func (s *ScanCommandTestSuite) TestBackendFlagOverridesConfig() {
	_, err := s.ExecuteCommand("scan", "--backend", "serial")

	s.ErrorContains(err, "serial backend requires at least one port")
}

func TestScanCommandTestSuite(t *testing.T) {
	suite.Run(t, new(ScanCommandTestSuite))
}

type BondedCommandTestSuite struct {
	CommandTestSuite
}

func (s *BondedCommandTestSuite) TestSortedByAddress() {
	s.Adapter.On("Bonded", mock.Anything).
		Return([]device.Handle{testutils.Other("AA:BB:CC:DD:EE:FF"), testutils.Scale()}, nil)

	out, err := s.ExecuteCommand("bonded")

	s.Require().NoError(err)
	testutils.AssertTranscript(s.T(), out, `
NAME     ADDRESS            BONDED
BT       00:11:22:33:44:55  yes
Headset  AA:BB:CC:DD:EE:FF  yes
`)
}

func (s *BondedCommandTestSuite) TestPermissionDenied() {
	s.Adapter = &testutils.MockAdapter{}
	s.Adapter.On("Available", mock.Anything).Return(true)
	s.Adapter.On("Enabled", mock.Anything).Return(true)
	s.Adapter.On("CheckPermissions", mock.Anything).
		Return(&device.Error{Kind: device.KindPermissionDenied, Msg: "org.freedesktop.DBus.Error.AccessDenied"})

	_, err := s.ExecuteCommand("bonded")

	s.ErrorIs(err, device.ErrPermissionDenied)
	s.Equal("Bluetooth Permission Denied: org.freedesktop.DBus.Error.AccessDenied", FormatUserError(err))
}

func TestBondedCommandTestSuite(t *testing.T) {
	suite.Run(t, new(BondedCommandTestSuite))
}
