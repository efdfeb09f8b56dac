//go:build !linux

package console

import (
	"errors"
	"os"
)

func OpenSerial(path string, baud int) (*os.File, error) {
	return nil, errors.New("serial consoles are only supported on linux")
}
