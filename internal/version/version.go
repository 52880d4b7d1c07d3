package version

import (
	"fmt"
	"io"
	"strings"

	"github.com/thushan/chillm/theme"
)

var (
	Name        = "chillm"
	ShortName   = "chillm"
	Authors     = "Thushan Fernando"
	Description = "Zero-config local and remote LLM access"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/thushan/chillm"
	GithubHomeUri   = "https://github.com/thushan/chillm"
	GithubLatestUri = "https://github.com/thushan/chillm/releases/latest"
)

// UserAgent is sent on every outbound HTTP request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", ShortName, Version)
}

func PrintVersionInfo(extendedInfo bool, w io.Writer) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)

	var b strings.Builder

	b.WriteString(theme.ColourSplash("chillm "))
	b.WriteString(theme.ColourVersion(latestUri))
	b.WriteString(" ")
	b.WriteString(Description)
	b.WriteString("\n")
	b.WriteString(theme.StyleUrl(githubUri))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s", User))
	}

	fmt.Fprintln(w, b.String())
}
