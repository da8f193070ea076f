package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const basePath = "/propertyapi/v1.0.0"

type call struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Query     string `json:"query"`
	Status    int    `json:"status"`
}

type stats struct {
	Count     int64            `json:"count"`
	PerPath   map[string]int64 `json:"per_path"`
	LastCalls []call           `json:"last_calls"`
	Since     string           `json:"since"`
}

var (
	mu        sync.Mutex
	count     int64
	perPath   = map[string]int64{}
	lastCalls []call
	since     time.Time
	maxStored = 50

	apiKey   string
	failMode string // "", "500", "429", "401" or "slow"
)

func main() {
	since = time.Now().UTC()

	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	apiKey = os.Getenv("STUB_API_KEY")

	http.HandleFunc(basePath+"/", propertyHandler)
	http.HandleFunc("/stats", statsHandler)
	http.HandleFunc("/fail", failHandler)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	http.HandleFunc("/reset", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		count = 0
		perPath = map[string]int64{}
		lastCalls = nil
		failMode = ""
		since = time.Now().UTC()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "reset")
	})

	log.Printf("attom-stub listening on %s (base=%s)", addr, basePath)
	log.Fatal(http.ListenAndServe(addr, nil))
}

// failHandler switches the injected failure mode, e.g. POST /fail?mode=500.
func failHandler(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", "500", "429", "401", "slow":
	default:
		http.Error(w, "mode must be one of 500, 429, 401, slow", http.StatusBadRequest)
		return
	}
	mu.Lock()
	failMode = mode
	mu.Unlock()
	log.Printf("attom-stub: fail mode=%q", mode)
	fmt.Fprintf(w, `{"mode":%q}`, mode)
}

func propertyHandler(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, basePath)

	mu.Lock()
	mode := failMode
	mu.Unlock()

	status := http.StatusOK
	switch {
	case apiKey != "" && r.Header.Get("apikey") != apiKey:
		status = http.StatusUnauthorized
	case mode == "500":
		status = http.StatusInternalServerError
	case mode == "429":
		status = http.StatusTooManyRequests
	case mode == "401":
		status = http.StatusUnauthorized
	case mode == "slow":
		time.Sleep(15 * time.Second)
	}

	record(endpoint, r.URL.RawQuery, status)

	if status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"status":{"code":%d,"msg":%q}}`, status, http.StatusText(status))
		return
	}

	q := r.URL.Query()
	prop, ok := buildProperty(endpoint, q.Get("address1"), q.Get("postalcode"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"status":{"code":404,"msg":"unknown endpoint"}}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   map[string]any{"code": 0, "msg": "SuccessWithResult", "total": 1},
		"property": []any{prop},
	})
}

// buildProperty returns a deterministic property object for the endpoint.
func buildProperty(endpoint, address, zip string) (map[string]any, bool) {
	h := fnv.New32a()
	h.Write([]byte(address + "|" + zip))
	seed := int(h.Sum32() % 1000)
	value := 250000 + seed*750

	prop := map[string]any{
		"identifier": map[string]any{"attomId": 100000 + seed},
		"address":    map[string]any{"oneLine": address, "postal1": zip},
	}

	switch endpoint {
	case "/property/detail":
		prop["building"] = map[string]any{"rooms": map[string]any{"beds": 2 + seed%4, "bathstotal": 1 + seed%3}}
	case "/assessment/detail":
		prop["assessment"] = map[string]any{
			"assessed": map[string]any{"assdttlvalue": value * 9 / 10},
			"tax":      map[string]any{"taxamt": value / 100, "taxyear": 2024},
		}
	case "/title":
		prop["owner"] = map[string]any{"ownershiptype": "INDIVIDUAL"}
		prop["sale"] = map[string]any{"saleTransDate": "2019-0" + strconv.Itoa(1+seed%9) + "-15"}
	case "/foreclosure":
		fc := map[string]any{"recordingDate": "2025-01-31"}
		if seed%10 == 0 {
			fc["status"] = "pre_foreclosure"
		}
		prop["foreclosure"] = fc
	case "/saleshistory/detail":
		prop["salehistory"] = []any{
			map[string]any{"amount": map[string]any{"saleamt": value * 85 / 100}, "saleTransDate": "2019-06-01"},
			map[string]any{"amount": map[string]any{"saleamt": value * 70 / 100}, "saleTransDate": "2012-03-20"},
		}
	case "/avm/detail":
		prop["avm"] = map[string]any{
			"amount":    map[string]any{"value": value, "scr": 80 + seed%20},
			"eventDate": "2025-03-01",
		}
	default:
		return nil, false
	}
	return prop, true
}

func record(endpoint, query string, status int) {
	mu.Lock()
	count++
	perPath[endpoint]++
	lastCalls = append(lastCalls, call{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Path:      endpoint,
		Query:     query,
		Status:    status,
	})
	if len(lastCalls) > maxStored {
		lastCalls = lastCalls[len(lastCalls)-maxStored:]
	}
	current := count
	mu.Unlock()

	log.Printf("call #%d: %s?%s -> %d", current, endpoint, query, status)
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	mu.Lock()
	paths := make(map[string]int64, len(perPath))
	for k, v := range perPath {
		paths[k] = v
	}
	s := stats{
		Count:     count,
		PerPath:   paths,
		LastCalls: lastCalls,
		Since:     since.Format(time.RFC3339),
	}
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
