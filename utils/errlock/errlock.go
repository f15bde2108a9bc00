// Package errlock marks a data directory as unusable after an error that
// left it inconsistent, until an operator inspects it and removes the lock.
package errlock

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const fileName = "errlock"

// maxFileLen bounds how much of a lock file is read back.
const maxFileLen = 5000

// Check returns an error if dir carries an error lock.
func Check(dir string) error {
	locked, reason, eLockPath, err := read(dir)
	if err != nil {
		return fmt.Errorf("not allowed to start due to an error reading the lock file %s: %w", eLockPath, err)
	}
	if locked {
		return fmt.Errorf("not allowed to start due to a previous error, fix the issue and then delete file %q: %s", eLockPath, reason)
	}
	return nil
}

// Permanent writes err into the lock file of dir and returns it annotated
// with the lock path.
func Permanent(dir string, err error) error {
	eLockPath, werr := write(dir, err.Error())
	if werr != nil {
		return fmt.Errorf("%w (failed to write lock file %s: %v)", err, eLockPath, werr)
	}
	return fmt.Errorf("permanently stopping, fix the issue and then delete file %q: %w", eLockPath, err)
}

// read errlock file
func read(dir string) (bool, string, string, error) {
	eLockPath := filepath.Join(dir, fileName)

	data, err := os.Open(eLockPath)
	if os.IsNotExist(err) {
		return false, "", eLockPath, nil
	}
	if err != nil {
		return false, "", eLockPath, err
	}
	defer data.Close()

	// read no more than maxFileLen bytes
	eLockBytes, err := io.ReadAll(io.LimitReader(data, maxFileLen))
	if err != nil {
		return true, "", eLockPath, fmt.Errorf("failed to read lock file %v: %w", eLockPath, err)
	}
	return true, string(eLockBytes), eLockPath, nil
}

// write errlock file
func write(dir string, eLockStr string) (string, error) {
	eLockPath := filepath.Join(dir, fileName)

	return eLockPath, os.WriteFile(eLockPath, []byte(eLockStr), 0666)
}
