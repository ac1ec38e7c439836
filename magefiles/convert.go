//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the CLI and converts input (a PDF or a directory of PDFs)
// into output.
func Convert(input, output string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "convert", input, output)
}

// Solve builds the CLI and writes step-by-step solutions for input.
func Solve(input, output string) error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "convert", "--solve", input, output)
}
