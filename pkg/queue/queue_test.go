package queue

import (
	"encoding/json"
	"testing"
)

type runPayload struct {
	JobID string `json:"job_id"`
	Mode  string `json:"mode"`
}

func TestParsePayload(t *testing.T) {
	want := runPayload{JobID: "j-1", Mode: "frozen"}
	raw, _ := json.Marshal(want)

	inputs := map[string]interface{}{
		"value":   want,
		"pointer": &want,
		"raw":     json.RawMessage(raw),
		"bytes":   raw,
		"map":     map[string]interface{}{"job_id": "j-1", "mode": "frozen"},
	}
	for name, in := range inputs {
		got, err := ParsePayload[runPayload](in)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if *got != want {
			t.Errorf("%s: got %+v", name, *got)
		}
	}

	if _, err := ParsePayload[runPayload](42); err == nil {
		t.Fatalf("expected error for unsupported payload type")
	}
	if _, err := ParsePayload[runPayload](json.RawMessage("{")); err == nil {
		t.Fatalf("expected error for malformed json")
	}
}

func TestMessageEnvelopeKeepsPayloadRaw(t *testing.T) {
	msg := Message{ID: "m-1", Type: "backtest.run", Payload: json.RawMessage(`{"job_id":"j-2"}`)}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := ParsePayload[runPayload](back.Payload)
	if err != nil || got.JobID != "j-2" {
		t.Fatalf("payload lost in envelope: %+v %v", got, err)
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	q := &RedisQueue{config: QueueConfig{RetryDelay: 10}}
	for attempt, want := range map[int]int64{1: 10, 2: 20, 3: 40} {
		if got := q.retryDelay(attempt); int64(got) != want {
			t.Errorf("attempt %d: got %d want %d", attempt, got, want)
		}
	}
}
