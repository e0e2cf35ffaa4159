//go:build linux

package bluez

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// connectPollInterval bounds each poll so ctx cancellation is noticed
const connectPollInterval = 100 * time.Millisecond

// dialRFCOMM connects an RFCOMM socket to address on channel
func dialRFCOMM(ctx context.Context, address string, channel uint8) (io.ReadWriteCloser, error) {
	bdaddr, err := parseBDAddr(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	sa := &unix.SockaddrRFCOMM{Addr: bdaddr, Channel: channel}
	err = unix.Connect(fd, sa)
	if err != nil && !errors.Is(err, unix.EINPROGRESS) {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("connect", err)
	}
	if err != nil {
		if err := waitConnected(ctx, fd); err != nil {
			_ = unix.Close(fd)
			return nil, err
		}
	}

	return os.NewFile(uintptr(fd), "rfcomm:"+address), nil
}

// waitConnected polls a non-blocking connect until it completes or ctx is done
func waitConnected(ctx context.Context, fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Poll(fds, int(connectPollInterval.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return os.NewSyscallError("poll", err)
		}
		if n == 0 {
			continue
		}
		soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return os.NewSyscallError("getsockopt", err)
		}
		if soErr != 0 {
			return os.NewSyscallError("connect", unix.Errno(soErr))
		}
		return nil
	}
}

// fileFromFD wraps a descriptor received from BlueZ. The descriptor is made
// non-blocking first so Close on the returned file unblocks a pending Read.
func fileFromFD(fd int, name string) (io.ReadWriteCloser, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to set non-blocking mode: %w", err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
