package logger

import (
	"io"
	"log/slog"
)

// Option adjusts how New builds a logger.
type Option func(*config)

// WithDebug lowers the level to Debug. False keeps Info.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the charmbracelet/log handler for terminals.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects the slog JSON handler. It wins over WithPretty.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter sets the destination. The default is os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writer = w }
}

// WithSource adds the caller's file:line to every record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
