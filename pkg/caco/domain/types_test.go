package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimeAcceptsZAndOffset(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
	}{
		{"z suffix", "2024-01-01T00:30:00Z"},
		{"explicit utc offset", "2024-01-01T00:30:00+00:00"},
		{"positive offset", "2024-01-01T01:30:00+01:00"},
		{"no offset", "2024-01-01T00:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.raw)
			if err != nil {
				t.Fatalf("ParseTime(%q) error: %v", tt.raw, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.raw, got, want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseTime(%q) location = %v, want UTC", tt.raw, got.Location())
			}
		})
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-time", "2024-13-40T99:00:00Z"} {
		if _, err := ParseTime(raw); err == nil {
			t.Errorf("ParseTime(%q) expected error", raw)
		}
	}
}

func TestFormatTimeRoundTrip(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC),
		time.Date(2024, 6, 15, 13, 30, 0, 0, time.FixedZone("CET", 3600)),
	}
	for _, tm := range times {
		parsed, err := ParseTime(FormatTime(tm))
		if err != nil {
			t.Fatalf("round trip of %v failed: %v", tm, err)
		}
		if !parsed.Equal(EnsureUTC(tm)) {
			t.Errorf("round trip of %v = %v, want %v", tm, parsed, EnsureUTC(tm))
		}
	}
}

func TestFormatTimeUsesZSuffix(t *testing.T) {
	got := FormatTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("X", -3600)))
	if got != "2024-01-01T11:00:00Z" {
		t.Errorf("FormatTime = %q, want 2024-01-01T11:00:00Z", got)
	}
}

func TestHourFloor(t *testing.T) {
	in := time.Date(2024, 1, 1, 10, 47, 12, 500, time.UTC)
	if got := HourFloor(in); !got.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("HourFloor = %v", got)
	}
}

func TestJobDurationSlots(t *testing.T) {
	tests := []struct {
		hours float64
		want  int
	}{
		{0.5, 1},
		{1.0, 2},
		{2.0, 4},
		{0.1, 1},  // rounds to zero slots, clamped to one
		{0.75, 2}, // rounds up
		{1.2, 2},
	}
	for _, tt := range tests {
		job := Job{DurationHours: tt.hours}
		if got := job.DurationSlots(); got != tt.want {
			t.Errorf("DurationSlots(%v) = %d, want %d", tt.hours, got, tt.want)
		}
	}
}

func TestJobIsFlexible(t *testing.T) {
	if (Job{MaxDeferralHours: 0}).IsFlexible() {
		t.Error("zero deferral should not be flexible")
	}
	if !(Job{MaxDeferralHours: 2}).IsFlexible() {
		t.Error("positive deferral should be flexible")
	}
}

func TestJobNormalizeDefaults(t *testing.T) {
	job := Job{
		JobID:       "j1",
		ArrivalTime: time.Date(2024, 1, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600)),
		Deadline:    time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
	}
	job.Normalize()
	if job.WorkloadType != "batch" {
		t.Errorf("WorkloadType = %q, want batch", job.WorkloadType)
	}
	if job.ClusterID != "default" {
		t.Errorf("ClusterID = %q, want default", job.ClusterID)
	}
	if job.ArrivalTime.Location() != time.UTC {
		t.Errorf("ArrivalTime not UTC: %v", job.ArrivalTime)
	}
}

func TestJobJSONWireNames(t *testing.T) {
	raw := `{
		"job_id": "train-1",
		"cluster_id": "hpc-a",
		"workload_type": "training",
		"arrival_time": "2024-01-01T00:00:00Z",
		"deadline": "2024-01-01T06:00:00+00:00",
		"duration_hours": 2,
		"power_kw": 250,
		"max_deferral_hours": 4,
		"priority": 5,
		"sla_penalty_per_hour": 1.5
	}`
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	job.Normalize()
	if job.JobID != "train-1" || job.PowerKW != 250 || job.Priority != 5 {
		t.Errorf("unexpected decode: %+v", job)
	}
	if !job.Deadline.Equal(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)) {
		t.Errorf("deadline = %v", job.Deadline)
	}

	out, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if decoded["arrival_time"] != "2024-01-01T00:00:00Z" {
		t.Errorf("arrival_time wire form = %v, want Z suffix", decoded["arrival_time"])
	}
}
