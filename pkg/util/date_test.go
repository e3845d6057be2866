package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseDateDayFirst(t *testing.T) {
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"01-02-2024", "01/02/2024", "1/2/2024", "2024-02-01", "01-Feb-2024", "01 Feb 2024", "01-02-2024 15:30", " 01.02.2024 "} {
		got, ok := ParseDate(s)
		if !ok {
			t.Fatalf("%q: expected ok", s)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", s, got, want)
		}
	}
	if _, ok := ParseDate("not a date"); ok {
		t.Fatalf("expected failure")
	}
	if _, ok := ParseDate(""); ok {
		t.Fatalf("expected failure on empty")
	}
}

func TestParseDateExcelSerial(t *testing.T) {
	got, ok := ParseDate("45323")
	if !ok {
		t.Fatalf("expected serial to parse")
	}
	want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if d, _ := ParseDate("45323.75"); !d.Equal(want) {
		t.Fatalf("time fraction should truncate, got %v", d)
	}
	if _, ok := ExcelSerialDate(0); ok {
		t.Fatalf("serial 0 is not a date")
	}
}

func TestParseFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"22,150.35", 22150.35, true},
		{" 100 ", 100, true},
		{"", 0, false},
		{"-", 0, false},
		{"NaN", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseFloat(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseFloat(%q) = %v, %v", tc.in, got, ok)
		}
	}
}
