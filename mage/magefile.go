//go:build mage

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const (
	BINARY_NAME  = "../bin/message-board"
	MAIN_PATH    = "../cmd/server"
	STORAGE_FILE = "../storage/data/data.json"
)

// InitStorage creates an empty message file if none exists yet.
func InitStorage() error {
	fmt.Println("🗄️  Preparing message storage...")
	if _, err := os.Stat(STORAGE_FILE); err == nil {
		fmt.Println("Storage file already present, leaving it untouched")
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(STORAGE_FILE), 0o755); err != nil {
		return err
	}
	return os.WriteFile(STORAGE_FILE, []byte("{}\n"), 0o644)
}

func Build() error {
	fmt.Println("🔨 Building server binary...")
	return runCmd("go", "build", "-o", BINARY_NAME, MAIN_PATH)
}

func Test() error {
	fmt.Println("🧪 Running tests...")
	return runCmd("go", "test", "../...")
}

// Run starts the server from the repository root.
func Run() error {
	mg.Deps(InitStorage, Build)
	fmt.Println("🚀 Starting message board...")
	cmd := exec.Command("bin/message-board")
	cmd.Dir = ".."
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func Clean() error {
	fmt.Println("🧹 Cleaning up...")
	return removeIfExists(BINARY_NAME)
}

// removeIfExists treats an already missing file as removed.
func removeIfExists(name string) error {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func runCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
