package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RetrievalError reports a failed call to a remote data service. It carries
// the offending parameters so a failed run names exactly what was asked for.
// Retrieval failures are fatal to the run; there is no retry policy.
type RetrievalError struct {
	Service  string // "acs", "flows", or "tigerweb"
	Endpoint string
	Params   map[string]string
	Status   int // HTTP status, 0 when the request never completed
	Err      error
}

func (e *RetrievalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s retrieval failed: endpoint=%s", e.Service, e.Endpoint)
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	for _, k := range sortedKeys(e.Params) {
		fmt.Fprintf(&b, " %s=%s", k, e.Params[k])
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ComputationError reports undefined arithmetic in a Derive step, e.g. a
// growth rate over a zero prior estimate. The pipeline fails explicitly
// instead of letting Inf or NaN flow into rendered artifacts.
type ComputationError struct {
	Op     string
	Detail string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation %s: %s", e.Op, e.Detail)
}

// RenderError reports that the presentation adapter rejected its input,
// e.g. a choropleth row with no geometry.
type RenderError struct {
	Artifact string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Artifact, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
