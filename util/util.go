package util

import (
	"io/ioutil"
	"os"

	"github.com/bluwireless/blade/log"
)

// FileMode is the default FileMode used when creating files.
const FileMode = 0664

// FileExists checks whether some file exists.
func FileExists(file string) bool {
	stat, err := os.Stat(file)
	return err == nil && !stat.IsDir()
}

// DirExists checks whether some directory exists.
func DirExists(dir string) bool {
	stat, err := os.Stat(dir)
	return err == nil && stat.IsDir()
}

// ReadFile reads the content of a file and aborts on failure.
func ReadFile(path string) []byte {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal("Failed to read file '%s': %s.\n", path, err)
	}
	return data
}

// WriteFile writes data to a file, creating it if necessary.
func WriteFile(path string, data []byte) {
	if err := ioutil.WriteFile(path, data, FileMode); err != nil {
		log.Fatal("Failed to write file '%s': %s.\n", path, err)
	}
}
