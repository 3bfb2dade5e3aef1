//go:build mage

// Package main provides build targets for inkwell using Mage.
//
// Usage:
//
//	mage build      Compile the inkwell binary to bin/
//	mage test       Run all tests
//	mage cover      Run tests with a coverage profile
//	mage lint       Run go vet and golangci-lint
//	mage golden     Regenerate golden files
//	mage clean      Remove build artifacts
//	mage install    Install inkwell to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "inkwell"
	binaryDir  = "bin"
	cmdDir     = "./cmd/inkwell"
	coverFile  = "coverage.out"
	versionVar = "github.com/roach88/inkwell/internal/cli.Version"
)

// Default target when mage runs without arguments.
var Default = Build

// Build compiles the inkwell binary to bin/. The version comes from
// $INKWELL_VERSION when set.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if v := os.Getenv("INKWELL_VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionVar+"="+v)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Test runs every package's tests with the race detector.
func Test() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Cover writes a coverage profile and prints the per-function summary.
func Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverFile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverFile)
}

// Golden regenerates the CLI and harness golden files.
func Golden() error {
	return sh.RunV(binGo, "test", "./internal/cli/...", "./internal/harness/...", "-run", "Golden", "-update")
}

// Lint runs go vet and golangci-lint.
func Lint() error {
	if err := sh.RunV(binGo, "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.RemoveAll(coverFile); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
