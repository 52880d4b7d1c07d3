package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/thushan/chillm/internal/core/constants"
)

/*
   references:
   - https://no-color.org/
   - https://github.com/sitkevij/no_color
*/

// IsTerminal checks if stdout is a terminal using go-isatty
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// IsStderrTerminal is what the logger checks, since logs go to stderr
func IsStderrTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

// ShouldUseColors determines if coloured output should be used
func ShouldUseColors() bool {
	if noColor := os.Getenv("NO_COLOR"); noColor != "" {
		return false
	}

	if forceColor := os.Getenv("FORCE_COLOR"); forceColor != "" {
		return forceColor != "0"
	}

	if chillmColors := os.Getenv(constants.EnvForceColors); chillmColors != "" {
		return strings.ToLower(chillmColors) == "true"
	}

	return IsStderrTerminal()
}
