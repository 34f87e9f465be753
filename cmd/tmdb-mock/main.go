package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// The mock data file maps "movie/<id>" and "tv/<id>" keys to raw details payloads.
func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-tmdb.json", "path to mock data file")
		apiKey  = flag.String("api-key", "", "api_key value to require, empty accepts any")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	file, err := os.ReadFile(*data)
	if err != nil {
		log.Fatalf("read mock data: %v", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(file, &payload); err != nil {
		log.Fatalf("parse mock data: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/3/", func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" && r.URL.Query().Get("api_key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		key := strings.TrimPrefix(r.URL.Path, "/3/")
		if *verbose {
			log.Printf("GET %s", key)
		}
		entry, ok := payload[key]
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(entry); err != nil {
			log.Printf("write response: %v", err)
		}
	})

	addr := ":" + *port
	log.Printf("mock tmdb listening on %s (%d titles)", addr, len(payload))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
