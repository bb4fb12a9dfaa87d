package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCollectReplacesSnapshots(t *testing.T) {
	data := "data: {\"role\":\"assistant\",\"content\":{\"text\":\"Hel\"},\"finished\":false}\n" +
		"data: {\"role\":\"assistant\",\"content\":{\"text\":\"Hello\"},\"finished\":true}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "Hello" {
		t.Fatalf("expected final snapshot, got %q", text)
	}
}

func TestCollectSkipsMalformedLines(t *testing.T) {
	data := "data: {\"role\":\"assistant\",\"content\":{\"text\":\"draft\"},\"finished\":false}\n" +
		"data: {not json at all\n" +
		"data: [1,2,3]\n" +
		"data: {\"content\":{\"text\":\"no role\"},\"finished\":true}\n" +
		"data: {\"role\":\"assistant\",\"content\":{\"text\":\"final\"},\"finished\":true}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "final" {
		t.Fatalf("expected malformed lines skipped, got %q", text)
	}
}

func TestCollectEmptyStream(t *testing.T) {
	text, err := Collect(strings.NewReader(""))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty answer, got %q", text)
	}
}

func TestCollectStreamWithoutCompletionMarker(t *testing.T) {
	data := "data: {\"role\":\"assistant\",\"content\":{\"text\":\"partial answer\"},\"finished\":false}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "partial answer" {
		t.Fatalf("expected partial snapshot, got %q", text)
	}
}

func TestCollectStopsAtCompletionMarker(t *testing.T) {
	data := "data: {\"role\":\"assistant\",\"content\":{\"text\":\"done\"},\"finished\":true}\n" +
		"data: {\"role\":\"assistant\",\"content\":{\"text\":\"should never appear\"},\"finished\":false}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "done" {
		t.Fatalf("expected consumption to stop at the marker, got %q", text)
	}
}

func TestCollectFinishedOnNonAssistantEvent(t *testing.T) {
	data := "data: {\"role\":\"assistant\",\"content\":{\"text\":\"answer\"},\"finished\":false}\n" +
		"data: {\"role\":\"system\",\"content\":{\"text\":\"\"},\"finished\":true}\n" +
		"data: {\"role\":\"assistant\",\"content\":{\"text\":\"too late\"},\"finished\":false}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "answer" {
		t.Fatalf("expected stop on any attributed completion marker, got %q", text)
	}
}

func TestCollectIgnoresRolelessCompletionMarker(t *testing.T) {
	data := "data: {\"finished\":true}\n" +
		"data: {\"role\":\"assistant\",\"content\":{\"text\":\"kept going\"},\"finished\":true}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "kept going" {
		t.Fatalf("expected roleless events skipped entirely, got %q", text)
	}
}

func TestCollectIgnoresNonDataLines(t *testing.T) {
	data := "event: message\n" +
		": keepalive comment\n" +
		"\n" +
		"id: 42\n" +
		"data: {\"role\":\"assistant\",\"content\":{\"text\":\"only data counts\"},\"finished\":true}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "only data counts" {
		t.Fatalf("unexpected answer %q", text)
	}
}

func TestCollectEmptyTextNeverClearsSnapshot(t *testing.T) {
	data := "data: {\"role\":\"assistant\",\"content\":{\"text\":\"kept\"},\"finished\":false}\n" +
		"data: {\"role\":\"assistant\",\"content\":{\"text\":\"\"},\"finished\":true}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "kept" {
		t.Fatalf("expected empty snapshot ignored, got %q", text)
	}
}

func TestCollectTrimsWhitespace(t *testing.T) {
	data := "data: {\"role\":\"assistant\",\"content\":{\"text\":\"  Hello \\n\"},\"finished\":true}\n"
	text, err := Collect(strings.NewReader(data))
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "Hello" {
		t.Fatalf("expected trimmed answer, got %q", text)
	}
	if trimmed := strings.TrimSpace(text); trimmed != text {
		t.Fatalf("trim must be idempotent, got %q vs %q", trimmed, text)
	}
}

func TestFeedCountsMalformedEvents(t *testing.T) {
	c := NewCollector()
	c.Feed("data: {broken")
	c.Feed("data: {\"content\":{\"text\":\"roleless\"}}")
	c.Feed("data: {\"role\":\"assistant\",\"content\":{\"text\":\"ok\"},\"finished\":false}")
	if c.Malformed() != 2 {
		t.Fatalf("expected 2 malformed events, got %d", c.Malformed())
	}
	if c.Text() != "ok" {
		t.Fatalf("unexpected text %q", c.Text())
	}
}

func TestFeedAfterFinishedIsInert(t *testing.T) {
	c := NewCollector()
	done := c.Feed("data: {\"role\":\"assistant\",\"content\":{\"text\":\"final\"},\"finished\":true}")
	if !done {
		t.Fatalf("expected completion")
	}
	if !c.Feed("data: {\"role\":\"assistant\",\"content\":{\"text\":\"late\"},\"finished\":false}") {
		t.Fatalf("expected done to remain true")
	}
	if c.Text() != "final" {
		t.Fatalf("expected snapshot frozen after completion, got %q", c.Text())
	}
}

type failingReader struct {
	data []byte
	err  error
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, r.err
	}
	r.read = true
	n := copy(p, r.data)
	return n, nil
}

func TestCollectSurfacesReadErrors(t *testing.T) {
	readErr := errors.New("connection reset")
	r := &failingReader{
		data: []byte("data: {\"role\":\"assistant\",\"content\":{\"text\":\"partial\"},\"finished\":false}\n"),
		err:  readErr,
	}
	if _, err := Collect(r); !errors.Is(err, readErr) {
		t.Fatalf("expected read error surfaced, got %v", err)
	}
}

func TestCollectStopsReadingAfterCompletion(t *testing.T) {
	// The failure is only reachable if consumption continues past the
	// completion marker.
	r := &failingReader{
		data: []byte("data: {\"role\":\"assistant\",\"content\":{\"text\":\"done\"},\"finished\":true}\n"),
		err:  io.ErrUnexpectedEOF,
	}
	text, err := Collect(r)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if text != "done" {
		t.Fatalf("unexpected answer %q", text)
	}
}
