package terminal

import "io"

// Theme captures optional message prefixes the runner applies when printing.
type Theme struct {
	InfoPrefix  string
	WarnPrefix  string
	ErrorPrefix string
}

// Option configures the Runner.
type Option func(*Runner)

// WithPromptDriver overrides the prompt driver used by the runner.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutput sends informational output of the default survey driver to w.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.driver = &surveyDriver{out: w}
		}
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Runner) {
		r.theme = theme
	}
}

// WithMaxRounds caps how many times the runner redraws before giving up.
// Zero keeps the default.
func WithMaxRounds(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxRounds = n
		}
	}
}
