package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/arx-os/vecindex/pkg/vector"
)

func openIndex() (*vector.Index, error) {
	metric := vector.L2
	if appConfig.Metric == "dot" {
		metric = vector.Dot
	}
	return vector.Open(dataPath, vector.Options{
		Dims:   appConfig.Dims,
		Metric: metric,
		Seed:   appConfig.Build.Seed,
	})
}

// vectorRecord is one line of a build/insert source file: a JSON object
// per line, {"payload": <uint64>, "vector": [<float32>, ...]}.
type vectorRecord struct {
	Payload uint64    `json:"payload"`
	Vector  []float32 `json:"vector"`
}

// readVectorFile parses a newline-delimited JSON vector file, the way
// the teacher's converters stream line-oriented input rather than
// loading a whole structured document up front.
func readVectorFile(path string) ([]vectorRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []vectorRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		var rec vectorRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

func sourceFromRecords(records []vectorRecord) vector.BuildSource {
	return func(yield func(payload uint64, vec []float32) bool) {
		for _, r := range records {
			if !yield(r.Payload, r.Vector) {
				return
			}
		}
	}
}
