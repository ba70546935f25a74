package tools

import (
	"os"
	"path/filepath"
)

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		err := os.MkdirAll(directory, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes data creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if err := CreateDirectoryIfDoesNotExist(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}

// NativePath converts a UTF-8 path to the platform's native representation
// before it reaches the scene-graph loader. On platforms whose native
// codepage is UTF-8 this is the identity.
func NativePath(path string) string {
	return path
}
