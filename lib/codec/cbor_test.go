// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// sampleRecord is a representative stored record using json struct
// tags (the convention for types that serve both JSON and CBOR,
// relying on fxamacker's fallback).
type sampleRecord struct {
	RunID      string `json:"run_id"`
	Agent      string `json:"agent,omitempty"`
	Iterations int    `json:"iterations"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		RunID:      "6d0f4a92-1b3c-4e8f-9a27-5c1d8e03b644",
		Agent:      "researcher",
		Iterations: 4,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	record := map[string]any{
		"agent":  "planner",
		"tokens": 512,
		"tools":  []string{"search", "fetch"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}

	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestTimeKeepsNanosecondPrecision(t *testing.T) {
	type stamped struct {
		StartedAt   time.Time `json:"started_at"`
		CompletedAt time.Time `json:"completed_at"`
	}

	original := stamped{
		StartedAt:   time.Date(2026, 3, 14, 9, 30, 0, 123456789, time.UTC),
		CompletedAt: time.Date(2026, 3, 14, 9, 30, 2, 987654321, time.UTC),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded stamped
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if !decoded.StartedAt.Equal(original.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", decoded.StartedAt, original.StartedAt)
	}
	if !decoded.CompletedAt.Equal(original.CompletedAt) {
		t.Errorf("CompletedAt = %v, want %v", decoded.CompletedAt, original.CompletedAt)
	}

	wantDuration := 2*time.Second + 864197532*time.Nanosecond
	if got := decoded.CompletedAt.Sub(decoded.StartedAt); got != wantDuration {
		t.Errorf("recomputed duration = %v, want %v", got, wantDuration)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	records := []sampleRecord{
		{RunID: "run-1", Agent: "researcher", Iterations: 1},
		{RunID: "run-2", Agent: "planner", Iterations: 2},
		{RunID: "run-3", Iterations: 0},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range records {
		var got sampleRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", i, err)
		}
		if got != want {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestOmitemptyRespected(t *testing.T) {
	// A zero-value omitempty field should not appear in output.
	withAgent := sampleRecord{RunID: "r", Agent: "x", Iterations: 1}
	withoutAgent := sampleRecord{RunID: "r", Iterations: 1}

	dataWith, err := Marshal(withAgent)
	if err != nil {
		t.Fatal(err)
	}
	dataWithout, err := Marshal(withoutAgent)
	if err != nil {
		t.Fatal(err)
	}

	// The encoding without the agent field should be shorter because
	// the omitted field is not present.
	if len(dataWithout) >= len(dataWith) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(dataWithout), len(dataWith))
	}
}

func TestDefaultMapTypeIsStringKeyed(t *testing.T) {
	data, err := Marshal(map[string]any{"location": "Lisbon", "units": "celsius"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	arguments, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded any-typed map is %T, want map[string]any", decoded)
	}
	if arguments["location"] != "Lisbon" {
		t.Errorf("location = %v, want Lisbon", arguments["location"])
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var record sampleRecord
	err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &record)
	if err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]any{"agent": "researcher"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}

	if !strings.Contains(notation, `"agent"`) {
		t.Errorf("notation %q does not contain \"agent\"", notation)
	}
	if !strings.Contains(notation, `"researcher"`) {
		t.Errorf("notation %q does not contain \"researcher\"", notation)
	}
}

func BenchmarkMarshal(b *testing.B) {
	record := sampleRecord{
		RunID:      "6d0f4a92-1b3c-4e8f-9a27-5c1d8e03b644",
		Agent:      "researcher",
		Iterations: 4,
	}

	b.ReportAllocs()
	for b.Loop() {
		Marshal(record)
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	record := sampleRecord{
		RunID:      "6d0f4a92-1b3c-4e8f-9a27-5c1d8e03b644",
		Agent:      "researcher",
		Iterations: 4,
	}
	data, err := Marshal(record)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		var decoded sampleRecord
		Unmarshal(data, &decoded)
	}
}
