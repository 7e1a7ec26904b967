package querier

import (
	"encoding/json"
	"net/http"

	"github.com/gigapi/gigapi-zoomview/core"
)

func JsonFormatter(res *core.ViewResult, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

// NDJsonFormatter writes one statistic per line
func NDJsonFormatter(res *core.ViewResult, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, set := range res.Sets {
		if err := enc.Encode(set); err != nil {
			return err
		}
	}
	return nil
}
