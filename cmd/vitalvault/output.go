package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

func printSuccess(format string, args ...interface{}) {
	_, _ = successColor.Fprintf(os.Stdout, format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	_, _ = errorColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	_, _ = warnColor.Fprintf(os.Stderr, format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	_, _ = infoColor.Fprintf(os.Stdout, format+"\n", args...)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		printError("marshal output: %v", err)
		return
	}
	fmt.Println(string(data))
}

// ProgressDisplay renders a one-line progress indicator that rewrites
// itself in place. Errors are printed on their own lines above it.
type ProgressDisplay struct {
	mu      sync.Mutex
	phase   string
	current int
	total   int
	day     string
	closed  bool
}

func NewProgressDisplay() *ProgressDisplay {
	return &ProgressDisplay{}
}

// SetPhase replaces the status text shown before day counts exist.
func (p *ProgressDisplay) SetPhase(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.render()
}

// Update advances the day counter.
func (p *ProgressDisplay) Update(current, total int, day string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	p.total = total
	p.day = day
	p.render()
}

// AddError prints a failure line without disturbing the progress line.
func (p *ProgressDisplay) AddError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	fmt.Printf("\r\033[K")
	_, _ = errorColor.Printf("  ✗ %s\n", msg)
	p.render()
}

// Close finishes the progress line.
func (p *ProgressDisplay) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	fmt.Println()
}

func (p *ProgressDisplay) render() {
	if p.closed {
		return
	}

	var line strings.Builder
	if p.total > 0 {
		line.WriteString(fmt.Sprintf("Exporting [%d/%d]", p.current, p.total))
		if p.day != "" {
			line.WriteString(" " + p.day)
		}
		if p.phase != "" {
			line.WriteString(" " + p.phase)
		}
	} else if p.phase != "" {
		line.WriteString(p.phase)
	}

	fmt.Printf("\r\033[K%s", line.String())
}
