// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	staticLoadedTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "astra",
		Subsystem: "corpus",
		Name:      "static_records",
		Help:      "Number of static records loaded at startup",
	})

	staticSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "astra",
		Subsystem: "corpus",
		Name:      "static_lines_skipped_total",
		Help:      "Malformed static corpus lines skipped during load",
	})
)

// staticLine is the external line-delimited ingestion contract:
// one JSON object per line with fields "q" and "a".
type staticLine struct {
	Q string `json:"q"`
	A string `json:"a"`
}

// Snapshot is the immutable static partition.
//
// # Description
//
// Built once at process start by LoadSnapshot and passed by handle into
// the stores and the aggregator. No ambient global: whoever needs the
// snapshot receives it explicitly.
//
// # Thread Safety
//
// Immutable after construction. Safe for concurrent use.
type Snapshot struct {
	records []QuestionRecord
}

// NewSnapshot builds a Snapshot from pre-validated records. Intended for
// tests and for callers that assemble records from sources other than the
// line-delimited file format.
func NewSnapshot(records []QuestionRecord) *Snapshot {
	out := make([]QuestionRecord, 0, len(records))
	for _, r := range records {
		r.Origin = OriginStatic
		r.ID = ""
		out = append(out, r)
	}
	return &Snapshot{records: out}
}

// All returns the snapshot records in load order. The returned slice is
// shared; callers must not mutate it.
func (s *Snapshot) All() []QuestionRecord {
	return s.records
}

// Len returns the number of loaded records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// LoadSnapshot reads a line-delimited static corpus file.
//
// # Description
//
// Each line is a JSON object {"q": ..., "a": ...}. Malformed lines
// (invalid JSON, or an empty q or a after trimming) are skipped with one
// warning log per line and a metric increment; they never fail the load.
// An unreadable file is fatal: a service with no static corpus at all is
// a deployment error, not a degraded mode.
//
// # Inputs
//
//   - path: The corpus file path.
//   - logger: Warning sink for skipped lines. May be nil.
//
// # Outputs
//
//   - *Snapshot: The immutable snapshot. Nil on error.
//   - error: Non-nil only if the file cannot be opened or read.
func LoadSnapshot(path string, logger *slog.Logger) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open static corpus: %w", err)
	}
	defer f.Close()

	snap, err := ReadSnapshot(f, logger)
	if err != nil {
		return nil, fmt.Errorf("read static corpus %q: %w", path, err)
	}
	return snap, nil
}

// ReadSnapshot parses line-delimited records from r. See LoadSnapshot.
func ReadSnapshot(r io.Reader, logger *slog.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var records []QuestionRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var parsed staticLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			logger.Warn("skipping malformed corpus line",
				slog.Int("line", lineNo),
				slog.String("error", err.Error()),
			)
			staticSkippedTotal.Inc()
			continue
		}

		q := strings.TrimSpace(parsed.Q)
		a := strings.TrimSpace(parsed.A)
		if q == "" || a == "" {
			logger.Warn("skipping corpus line with empty field",
				slog.Int("line", lineNo),
			)
			staticSkippedTotal.Inc()
			continue
		}

		records = append(records, QuestionRecord{
			Question: q,
			Answer:   a,
			Origin:   OriginStatic,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	staticLoadedTotal.Set(float64(len(records)))
	logger.Info("static corpus loaded",
		slog.Int("records", len(records)),
	)
	return &Snapshot{records: records}, nil
}
