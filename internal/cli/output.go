// Package cli provides console output helpers for the trustforge commands.
package cli

import (
	"os"

	"github.com/fatih/color"
)

var (
	green = color.New(color.FgGreen).FprintfFunc()
	red   = color.New(color.FgRed).FprintfFunc()
	blue  = color.New(color.FgBlue).FprintfFunc()
)

// Successf prints a success message to stdout in green.
func Successf(format string, a ...interface{}) {
	green(os.Stdout, "[+] "+format+"\n", a...)
}

// Infof prints an informational message to stdout in blue.
func Infof(format string, a ...interface{}) {
	blue(os.Stdout, "    "+format+"\n", a...)
}

// Errorf prints an error message to stderr in red.
func Errorf(format string, a ...interface{}) {
	red(os.Stderr, "[!] Error: "+format+"\n", a...)
}
