package querier

import (
	"net/http"

	"github.com/gigapi/gigapi-zoomview/core"
)

type formatterFn func(res *core.ViewResult, w http.ResponseWriter) error

var formatters = map[string]formatterFn{
	"text":   TextFormatter,
	"json":   JsonFormatter,
	"ndjson": NDJsonFormatter,
	"arrow":  ArrowFormatter,
}

func formatterFor(name string) (formatterFn, error) {
	if name == "" {
		name = "text"
	}
	f, ok := formatters[name]
	if !ok {
		return nil, core.ErrInvalidInput.New("unknown format " + name)
	}
	return f, nil
}

// TextFormatter writes the labeled STAT: blocks read by the viewers
func TextFormatter(res *core.ViewResult, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	return core.EncodeText(w, res.Sets)
}
