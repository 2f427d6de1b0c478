package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	`              _   _     __ _`,
	`  _ __  __ _ | |_| |_  / _| | ___ __ __ __`,
	` | '_ \/ _' ||  _| ' \|  _| |/ _ \\ V  V /`,
	` | .__/\__,_| \__|_||_|_| |_|\___/ \_/\_/`,
	` |_|`,
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6"}

// PrintBanner writes the ASCII art banner followed by the version.
func PrintBanner(w io.Writer, version string) {
	o := termenv.NewOutput(w)
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, o.String(line).Foreground(o.Color(bannerColors[i%len(bannerColors)])))
	}
	fmt.Fprintf(w, "%s\n\n", o.String("  v"+strings.TrimSpace(version)).Faint())
}
