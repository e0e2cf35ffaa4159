//go:build !linux

package bluez

import (
	"context"
	"errors"
	"io"
	"os"
)

var errUnsupported = errors.New("bluez backend is only available on linux")

func dialRFCOMM(context.Context, string, uint8) (io.ReadWriteCloser, error) {
	return nil, errUnsupported
}

func fileFromFD(fd int, name string) (io.ReadWriteCloser, error) {
	_ = closeFD(fd)
	return nil, errUnsupported
}

func closeFD(fd int) error {
	return os.NewFile(uintptr(fd), "").Close()
}
