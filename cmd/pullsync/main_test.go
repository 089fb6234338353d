package main

import (
	"testing"
	"time"
)

func TestBuildOptionsDefaults(t *testing.T) {
	startTime, ignoreDeleted, maxItems, updateFields, dryRun = "", false, 0, nil, false

	opts, err := buildOptions()
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	if opts.StartTime != nil {
		t.Errorf("StartTime = %v, want nil", opts.StartTime)
	}
	if opts.IgnoreDeleted || opts.DryRun || opts.MaxItems != 0 {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestBuildOptionsStartTime(t *testing.T) {
	startTime = "2026-08-27T00:00:00Z"
	defer func() { startTime = "" }()

	opts, err := buildOptions()
	if err != nil {
		t.Fatalf("buildOptions: %v", err)
	}
	want := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	if opts.StartTime == nil || !opts.StartTime.Equal(want) {
		t.Errorf("StartTime = %v, want %v", opts.StartTime, want)
	}
}

func TestBuildOptionsRejectsBadStartTime(t *testing.T) {
	startTime = "yesterday"
	defer func() { startTime = "" }()

	if _, err := buildOptions(); err == nil {
		t.Error("want error for non-RFC3339 start time")
	}
}
