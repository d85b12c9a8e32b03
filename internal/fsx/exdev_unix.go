//go:build unix

package fsx

import (
	"errors"
	"os"
	"syscall"
)

func isEXDEV(err error) bool {
	var le *os.LinkError
	if errors.As(err, &le) {
		err = le.Err
	}
	return errors.Is(err, syscall.EXDEV)
}
