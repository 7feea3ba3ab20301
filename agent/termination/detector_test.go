package termination

import (
	"strings"
	"testing"
)

func TestDetectMarkerVariants(t *testing.T) {
	t.Parallel()

	d := MustNewDetector()
	positives := []string{
		"Great, talk soon! [END_SESSION]",
		"[END SESSION]",
		"bye [end_session]",
		"bye [End Session] now",
		"[ENDSESSION]",
		"[ END_SESSION ]",
		"Thanks!\n\n[END_session]\n",
	}
	for _, text := range positives {
		if !d.Detect(text) {
			t.Fatalf("Detect(%q) = false, want true", text)
		}
	}

	negatives := []string{
		"",
		"We can end the session whenever you like.",
		"END_SESSION",
		"[END-SESSION]",
		"[SESSION_END]",
		"[END_SESSIONS",
	}
	for _, text := range negatives {
		if d.Detect(text) {
			t.Fatalf("Detect(%q) = true, want false", text)
		}
	}
}

func TestStripScenario(t *testing.T) {
	t.Parallel()

	d := MustNewDetector()
	text := "Great, talk soon! [END_SESSION]"
	if !d.Detect(text) {
		t.Fatal("expected marker to be detected")
	}
	if got := d.Strip(text); got != "Great, talk soon!" {
		t.Fatalf("Strip() = %q", got)
	}
	if got := d.Strip("[end session]"); got != "" {
		t.Fatalf("Strip() of marker-only text = %q, want empty", got)
	}

	nested := "Bye [END_[END_SESSION]SESSION]"
	if got := d.Strip(nested); got != "Bye" {
		t.Fatalf("Strip(%q) = %q, want %q", nested, got, "Bye")
	}
	if got := d.Remove(nested); got != "Bye " {
		t.Fatalf("Remove(%q) = %q, want %q", nested, got, "Bye ")
	}
	if once := d.Strip(nested); d.Strip(once) != once || d.Detect(once) {
		t.Fatalf("Strip() left a marker behind: %q", once)
	}
}

func TestCustomMarkers(t *testing.T) {
	t.Parallel()

	d, err := NewDetector("[END_SESSION]", "<<done chatting>>")
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	if !d.Detect("ok <<DONE   CHATTING>>") {
		t.Fatal("expected custom marker to be detected")
	}
	if _, err := NewDetector("  ", "[]"); err == nil {
		t.Fatal("expected error for empty markers")
	}
}

func TestStreamFilterSplitMarker(t *testing.T) {
	t.Parallel()

	d := MustNewDetector()
	f := d.NewStreamFilter()

	var out strings.Builder
	for _, frag := range []string{"Great, talk ", "soon! [EN", "D_SESS", "ION]", ""} {
		out.WriteString(f.Write(frag))
	}
	out.WriteString(f.Flush())

	if got := out.String(); got != "Great, talk soon! " {
		t.Fatalf("filtered stream = %q", got)
	}
}

func TestStreamFilterReleasesNonMarkerBrackets(t *testing.T) {
	t.Parallel()

	f := MustNewDetector().NewStreamFilter()
	first := f.Write("pricing [see ")
	second := f.Write("docs] here")
	if first+second+f.Flush() != "pricing [see docs] here" {
		t.Fatalf("unexpected output %q + %q", first, second)
	}
}
