package main

import (
	"encoding/json"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// Standalone mock of the model collaborator API, for manual end-to-end
// testing without a real language model service.

type contextUpdateResponse struct {
	SegmentID   string    `json:"segment_id"`
	Tokens      []int     `json:"tokens"`
	Confidences []float64 `json:"confidences"`
	ProcessedAt time.Time `json:"processed_at"`
}

type continuationResponse struct {
	Text        string    `json:"text"`
	TokenCount  int       `json:"token_count"`
	ProcessedAt time.Time `json:"processed_at"`
}

type synthesisResponse struct {
	Samples []float64 `json:"samples"`
}

var (
	mu         sync.Mutex
	hasContext bool
)

func contextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	segmentID := r.FormValue("segment_id")
	duration := r.FormValue("duration")

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	log.Printf("CONTEXT UPDATE: segment=%s duration=%ss file=%s size=%d bytes",
		segmentID, duration, header.Filename, len(audioData))

	// One fake token per ~100ms of 16 kHz mono 16-bit audio
	tokenCount := len(audioData) / 3200
	if tokenCount < 1 {
		tokenCount = 1
	}
	tokens := make([]int, tokenCount)
	confidences := make([]float64, tokenCount)
	for i := range tokens {
		tokens[i] = rand.Intn(50000)
		confidences[i] = 0.5 + 0.5*rand.Float64()
	}

	mu.Lock()
	hasContext = true
	mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contextUpdateResponse{
		SegmentID:   segmentID,
		Tokens:      tokens,
		Confidences: confidences,
		ProcessedAt: time.Now(),
	})
}

func continuationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mu.Lock()
	ready := hasContext
	mu.Unlock()

	if !ready {
		http.Error(w, "no context established", http.StatusConflict)
		return
	}

	var req struct {
		MaxTokens int `json:"max_tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	response := continuationResponse{
		Text:        "a low hum rises and folds back into itself",
		TokenCount:  req.MaxTokens,
		ProcessedAt: time.Now(),
	}

	log.Printf("CONTINUATION: max_tokens=%d -> %q", req.MaxTokens, response.Text)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func synthesisHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text    string `json:"text"`
		Samples int    `json:"samples"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	if req.Samples <= 0 {
		http.Error(w, "samples must be positive", http.StatusBadRequest)
		return
	}

	// Quiet tone whose pitch depends on the text length
	freq := 220.0 + float64(len(req.Text)%12)*20.0
	samples := make([]float64, req.Samples)
	for i := range samples {
		samples[i] = 0.1 * math.Sin(2*math.Pi*freq*float64(i)/16000.0)
	}

	log.Printf("SYNTHESIS: %q -> %d samples at %.0f Hz", req.Text, req.Samples, freq)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(synthesisResponse{Samples: samples})
}

func main() {
	http.HandleFunc("/context", contextHandler)
	http.HandleFunc("/continuation", continuationHandler)
	http.HandleFunc("/synthesis", synthesisHandler)

	port := ":8475"
	log.Printf("Mock model server starting on port %s", port)
	log.Printf("Endpoints: /context /continuation /synthesis")

	if err := http.ListenAndServe(port, nil); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
