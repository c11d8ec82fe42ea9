// Command fakedevice simulates an embedded device web server for manual
// harness runs. The -profile flag picks which endpoints the simulated build
// compiles in, so capability probing and mid-run fallback can be exercised
// without real hardware.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type buildProfile string

const (
	profileFull    buildProfile = "full"    // every endpoint present
	profileMinimal buildProfile = "minimal" // stats and root page only
	profileBare    buildProfile = "bare"    // root page only
)

type device struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	heapBase   int64
	leakPerSec int64
	started    time.Time

	simulation atomic.Bool
}

func main() {
	port := flag.Int("port", 8080, "Listening port")
	profile := flag.String("profile", "full", "Build profile: full, minimal, bare")
	heap := flag.Int64("heap", 182456, "Starting free heap in bytes")
	leak := flag.Int64("leak", 0, "Simulated heap leak in bytes per second")
	flag.Parse()

	d := &device{
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		heapBase:   *heap,
		leakPerSec: *leak,
		started:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", d.handleRoot)

	switch buildProfile(*profile) {
	case profileFull:
		mux.HandleFunc("/api/health", d.handleHealth)
		mux.HandleFunc("/api/memory/detailed", d.handleMemoryDetailed)
		mux.HandleFunc("/api/memory/stats", d.handleMemoryStats)
		mux.HandleFunc("/api/metrics", d.handleMetrics)
		mux.HandleFunc("/api/performance/test", d.handlePerformance)
		mux.HandleFunc("/api/performance/load", d.handlePerformance)
		mux.HandleFunc("/api/performance/benchmark", d.handlePerformance)
		mux.HandleFunc("/simulation-toggle", d.handleSimulationToggle)
	case profileMinimal:
		mux.HandleFunc("/api/memory/stats", d.handleMemoryStats)
	case profileBare:
	default:
		log.Fatalf("unknown profile %q", *profile)
	}

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("fake device (%s build) listening on %s", *profile, addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// freeHeap returns the current simulated heap figure: the base, minus any
// configured leak, plus a little jitter so stability classes vary.
func (d *device) freeHeap() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	leaked := int64(time.Since(d.started).Seconds()) * d.leakPerSec
	jitter := d.rnd.Int63n(2048) - 1024
	heap := d.heapBase - leaked + jitter
	if heap < 0 {
		heap = 0
	}
	return heap
}

func (d *device) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html><body><h1>Device Status</h1><p>Free Heap: %d bytes</p></body></html>", d.freeHeap())
}

func (d *device) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": int64(time.Since(d.started).Seconds()),
	})
}

func (d *device) handleMemoryDetailed(w http.ResponseWriter, r *http.Request) {
	heap := d.freeHeap()
	respondJSON(w, http.StatusOK, map[string]any{
		"heap": map[string]any{
			"free": heap,
			"min":  heap - 4096,
		},
		"uptime": int64(time.Since(d.started).Seconds()),
	})
}

func (d *device) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"freeHeap": d.freeHeap(),
		"status":   "ok",
	})
}

func (d *device) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"system": map[string]any{
			"freeHeap": d.freeHeap(),
			"uptime":   int64(time.Since(d.started).Seconds()),
		},
		"simulation": d.simulation.Load(),
	})
}

func (d *device) handlePerformance(w http.ResponseWriter, r *http.Request) {
	// A small processing delay makes latency percentiles non-trivial.
	time.Sleep(time.Duration(5+d.rnd.Intn(20)) * time.Millisecond)
	respondJSON(w, http.StatusOK, map[string]any{
		"performance": map[string]any{
			"freeHeap": d.freeHeap(),
		},
		"result": "ok",
	})
}

func (d *device) handleSimulationToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if err := r.ParseForm(); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"error": "bad form"})
		return
	}
	enabled := r.PostForm.Get("simulation") == "true"
	d.simulation.Store(enabled)
	respondJSON(w, http.StatusOK, map[string]any{"simulation": enabled})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
