package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/awmpietro/golang-api-surface-inference/internal/traffic"
	"github.com/awmpietro/golang-api-surface-inference/internal/transport/apidto"
)

type sample struct {
	latency time.Duration
	status  int
	err     error
}

type report struct {
	mu      sync.Mutex
	samples []sample
}

func (r *report) add(s sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

func main() {
	url := flag.String("url", "http://localhost:8080/endpoints/infer", "endpoint inference URL")
	rps := flag.Int("rps", 50, "target requests per second")
	duration := flag.Duration("duration", 60*time.Second, "test duration")
	workers := flag.Int("workers", 50, "maximum in-flight requests")
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP client timeout")
	entries := flag.Int("entries", 200, "network entries per request")
	variants := flag.Int("variants", 16, "distinct payloads cycled through; requests beyond this hit the endpoint cache")
	flag.Parse()

	if *rps <= 0 || *duration <= 0 || *workers <= 0 || *entries <= 0 || *variants <= 0 {
		fmt.Fprintln(os.Stderr, "rps, duration, workers, entries and variants must be > 0")
		os.Exit(2)
	}

	bodies, err := payloads(*variants, *entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build payloads: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: *timeout}
	rep := &report{}
	var g errgroup.Group
	g.SetLimit(*workers)

	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()
	deadline := time.Now().Add(*duration)

	for n := 0; ; n++ {
		if now := <-ticker.C; now.After(deadline) {
			break
		}
		body := bodies[n%len(bodies)]
		g.Go(func() error {
			rep.add(post(client, *url, body))
			return nil
		})
	}
	_ = g.Wait()

	if !summarize(rep.samples, *rps, *duration, *variants) {
		os.Exit(1)
	}
}

func post(client *http.Client, url string, body []byte) sample {
	start := time.Now()
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return sample{latency: time.Since(start), err: err}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return sample{latency: time.Since(start), status: resp.StatusCode}
}

func payloads(variants, entries int) ([][]byte, error) {
	out := make([][]byte, 0, variants)
	for v := 0; v < variants; v++ {
		b, err := json.Marshal(apidto.InferRequest{NetworkRequests: sampleTraffic(entries, v)})
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// summarize prints the run and reports whether it met the target.
func summarize(samples []sample, rps int, duration time.Duration, variants int) bool {
	if len(samples) == 0 {
		fmt.Fprintln(os.Stderr, "no requests executed")
		return false
	}

	latencies := make([]time.Duration, len(samples))
	var ok2xx, non2xx, errs int
	for i, s := range samples {
		latencies[i] = s.latency
		switch {
		case s.err != nil:
			errs++
		case s.status >= 200 && s.status < 300:
			ok2xx++
		default:
			non2xx++
		}
	}
	slices.Sort(latencies)

	var total time.Duration
	for _, d := range latencies {
		total += d
	}
	p90 := latencies[(len(latencies)-1)*90/100]
	achieved := float64(len(latencies)) / duration.Seconds()
	cacheHot := len(samples) > variants

	fmt.Printf("Load test finished\n")
	fmt.Printf("- target_rps: %d achieved_rps: %.2f duration: %s\n", rps, achieved, duration)
	fmt.Printf("- requests: %d 2xx: %d non_2xx: %d errors: %d\n", len(samples), ok2xx, non2xx, errs)
	fmt.Printf("- distinct_payloads: %d cache_hot: %t\n", variants, cacheHot)
	fmt.Printf("- avg_ms: %.3f p50_ms: %.3f p90_ms: %.3f p99_ms: %.3f\n",
		ms(total/time.Duration(len(latencies))),
		ms(latencies[(len(latencies)-1)*50/100]),
		ms(p90),
		ms(latencies[(len(latencies)-1)*99/100]),
	)
	if cacheHot {
		fmt.Println("note: requests past the first pass over the payloads are served from the endpoint cache")
	}

	if achieved >= float64(rps)*0.98 && p90 < 30*time.Millisecond && errs == 0 && non2xx == 0 {
		fmt.Println("PASS: meets target RPS and P90 < 30ms")
		return true
	}
	fmt.Println("FAIL: does not meet target (or has request errors)")
	return false
}

// sampleTraffic mimics a browsing session over a handful of REST resources.
// Each variant shifts the ids and timestamps so payloads hash differently.
func sampleTraffic(n, variant int) []traffic.NetworkEntry {
	paths := []string{"/api/users/%d", "/api/users/%d/orders", "/api/orders/%d?page=1&limit=20", "/api/products/%d/reviews"}
	methods := []string{http.MethodGet, http.MethodGet, http.MethodPost, http.MethodPut}
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(variant) * time.Hour)

	out := make([]traffic.NetworkEntry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, traffic.NetworkEntry{
			URL:            "https://shop.test" + fmt.Sprintf(paths[i%len(paths)], 100+i+variant*n),
			Method:         methods[(i/len(paths))%len(methods)],
			Status:         200,
			ResponseTimeMs: int64(20 + (i+variant)%80),
			Timestamp:      traffic.FormatTimestamp(start.Add(time.Duration(i) * 150 * time.Millisecond)),
		})
	}
	return out
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
