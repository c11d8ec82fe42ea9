package telemetry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Device builds answer telemetry in two shapes: a JSON document with the
// heap figure under one of a few known keys, or a rendered status page with
// a labeled number in free text. The shape is picked by declared content
// type, not by trial and error.

// structuredHeapPaths are tried in order against a JSON payload. The
// detailed endpoint nests under "heap", the dashboard under "system", and
// the flat stats endpoint exposes the field at top level.
var structuredHeapPaths = []string{
	"heap.free",
	"system.freeHeap",
	"performance.freeHeap",
	"freeHeap",
	"free",
}

// heapPattern matches a labeled free-heap figure in page text, e.g.
// "Free Heap: 182456 bytes".
var heapPattern = regexp.MustCompile(`(?i)(?:free\s*heap|heap\s*free)\D*(\d+)`)

// parseStructured extracts the free-heap figure from a JSON payload.
func parseStructured(body []byte) (int64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("malformed JSON payload")
	}
	for _, path := range structuredHeapPaths {
		if result := gjson.GetBytes(body, path); result.Exists() {
			return result.Int(), nil
		}
	}
	return 0, fmt.Errorf("no free-heap field in payload")
}

// parseUnstructured scans free-form page text for a labeled heap figure.
func parseUnstructured(body []byte) (int64, error) {
	match := heapPattern.FindSubmatch(body)
	if match == nil {
		return 0, fmt.Errorf("no free-heap label in page text")
	}
	value, err := strconv.ParseInt(string(match[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("free-heap figure %q: %w", match[1], err)
	}
	return value, nil
}

// parseHeap dispatches on declared content type.
func parseHeap(contentType string, body []byte) (int64, error) {
	if isStructured(contentType) {
		return parseStructured(body)
	}
	return parseUnstructured(body)
}

func isStructured(contentType string) bool {
	mediaType := contentType
	if idx := strings.Index(mediaType, ";"); idx != -1 {
		mediaType = mediaType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
