package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// Exists reports whether path exists and whether it is a directory.
func Exists(path string) (isDir bool, exists bool, err error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return info.IsDir(), true, nil
}

// CreateDir creates path and any missing parents.
func CreateDir(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

// EnsureDir creates dir when it is absent. An existing non-directory at dir
// is an error.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	isDir, exists, err := Exists(dir)
	if err != nil {
		return err
	}
	if exists {
		if !isDir {
			return fmt.Errorf("%s exists and is not a directory", dir)
		}
		return nil
	}
	return CreateDir(dir)
}

// EnsureParentDir creates the directory that will contain file.
func EnsureParentDir(file string) error {
	return EnsureDir(filepath.Dir(file))
}
