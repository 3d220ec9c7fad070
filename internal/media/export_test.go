package media

import "net/http"

// WithClient overrides the HTTP client used for downloads.
func WithClient(c *http.Client) Options {
	return func(o *options) {
		o.client = c
	}
}
