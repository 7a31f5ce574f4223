package main

import (
	"io"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/born-ml/saenet/internal/config"
)

// logs writes to stderr and, when configured, to a log file. Debug output
// is discarded unless the level is debug.
type logs struct {
	info  *log.Logger
	debug *log.Logger
	file  *os.File
}

func newLogs(name string, cfg *config.Config, stderr io.Writer) (*logs, error) {
	out := stderr
	l := &logs{}
	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		l.file = f
		out = io.MultiWriter(stderr, f)
	}

	flags := log.LstdFlags | log.Lmsgprefix
	l.info = log.New(out, name+": INFO - ", flags)
	l.debug = log.New(io.Discard, "", 0)
	if cfg.Debug() {
		l.debug = log.New(out, name+": DEBUG - ", flags)
	}
	return l, nil
}

func (l *logs) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
