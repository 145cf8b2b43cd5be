//go:build !unix

package store

import "os"

// No advisory locking on this platform; the in-process mutex still applies.

func lockFile(*os.File) error {
	return nil
}

func unlockFile(*os.File) error {
	return nil
}

func removeLocked(path string) error {
	return os.Remove(path)
}
