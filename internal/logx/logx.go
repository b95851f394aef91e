// Package logx provides component-scoped loggers for the module.
//
// Each package obtains its logger once via For and logs through it. Level
// and output are process-wide; SetLevel and SetOutput apply to every logger
// already handed out.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Component names a logging subsystem.
type Component string

const (
	App         Component = "app"
	Client      Component = "client"
	InnerTube   Component = "innertube"
	Cipher      Component = "cipher"
	Format      Component = "format"
	Downloader  Component = "downloader"
	Botguard    Component = "botguard"
	Postprocess Component = "postprocess"
	History     Component = "history"
)

var (
	mu      sync.Mutex
	level   = log.WarnLevel
	output  io.Writer = os.Stderr
	loggers = make(map[Component]*log.Logger)
)

func init() {
	if env := os.Getenv("YTGRAB_LOG"); env != "" {
		if lv, err := log.ParseLevel(env); err == nil {
			level = lv
		}
	}
}

// For returns the logger for a component, creating it on first use.
func For(c Component) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[c]; ok {
		return l
	}
	l := log.NewWithOptions(output, log.Options{
		Prefix: string(c),
		Level:  level,
	})
	loggers[c] = l
	return l
}

// SetLevel changes the level of all component loggers.
func SetLevel(lv log.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = lv
	for _, l := range loggers {
		l.SetLevel(lv)
	}
}

// SetOutput redirects all component loggers to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	for _, l := range loggers {
		l.SetOutput(w)
	}
}
