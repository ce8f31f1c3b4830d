//go:build !unix

package filestore

import (
	"errors"
	"os"
)

var ErrLocked = errors.New("data dir is used by another process")

// Без flock блокировки нет.
func lockDir(string) (*os.File, error) { return nil, nil }

func unlockDir(*os.File) error { return nil }
