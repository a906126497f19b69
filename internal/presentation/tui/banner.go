package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Aqueduct banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Water-toned gradient (Sky/Cyan/Teal)
	lines := []struct {
		text  string
		color string
	}{
		{"     _                        _            _   ", "#7dd3fc"},
		{"    / \\   __ _ _   _  ___  __| |_   _  ___| |_ ", "#38bdf8"},
		{"   / _ \\ / _` | | | |/ _ \\/ _` | | | |/ __| __|", "#22d3ee"},
		{"  / ___ \\ (_| | |_| |  __/ (_| | |_| | (__| |_ ", "#06b6d4"},
		{" /_/   \\_\\__, |\\__,_|\\___|\\__,_|\\__,_|\\___|\\__|", "#14b8a6"},
		{"            |_|                                ", "#0d9488"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
