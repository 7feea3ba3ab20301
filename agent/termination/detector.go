package termination

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var DefaultMarkers = []string{"[END_SESSION]"}

var wordSeparators = regexp.MustCompile(`[\s_]+`)

// Detector recognises end-of-session markers in assistant text. Matching ignores case and
// tolerates whitespace or underscores between marker words, so "[END_SESSION]",
// "[end session]" and "[ENDSESSION]" are the same marker.
type Detector struct {
	pattern    *regexp.Regexp
	surrounded *regexp.Regexp
	holdback   int
	primary    string
}

func NewDetector(markers ...string) (*Detector, error) {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}

	alternatives := make([]string, 0, len(markers))
	longest := 0
	primary := ""
	for _, marker := range markers {
		expr, ok := markerExpr(marker)
		if !ok {
			continue
		}
		if primary == "" {
			primary = strings.TrimSpace(marker)
		}
		alternatives = append(alternatives, expr)
		if len(marker) > longest {
			longest = len(marker)
		}
	}
	if len(alternatives) == 0 {
		return nil, errors.New("at least one non-empty end marker is required")
	}

	joined := "(?:" + strings.Join(alternatives, "|") + ")"
	pattern, err := regexp.Compile("(?i)" + joined)
	if err != nil {
		return nil, fmt.Errorf("compile end marker pattern: %w", err)
	}
	surrounded, err := regexp.Compile(`(?i)\s*` + joined + `\s*`)
	if err != nil {
		return nil, fmt.Errorf("compile end marker pattern: %w", err)
	}

	return &Detector{
		pattern:    pattern,
		surrounded: surrounded,
		holdback:   longest*2 + 8,
		primary:    primary,
	}, nil
}

// Primary is the marker the model is instructed to emit.
func (d *Detector) Primary() string {
	return d.primary
}

func MustNewDetector(markers ...string) *Detector {
	d, err := NewDetector(markers...)
	if err != nil {
		panic(err)
	}
	return d
}

func markerExpr(marker string) (string, bool) {
	marker = strings.TrimSpace(marker)
	bracketed := strings.HasPrefix(marker, "[") && strings.HasSuffix(marker, "]")
	if bracketed {
		marker = strings.TrimSpace(marker[1 : len(marker)-1])
	}

	words := wordSeparators.Split(marker, -1)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(quoted) == 0 {
		return "", false
	}

	expr := strings.Join(quoted, `[\s_]*`)
	if bracketed {
		expr = `\[\s*` + expr + `\s*\]`
	}
	return expr, true
}

// Detect is the termination signal for one assistant message.
func (d *Detector) Detect(text string) bool {
	return d.pattern.MatchString(text)
}

// Strip removes every marker occurrence together with its surrounding whitespace and trims
// the result. It is the form shown to users and handed to the summarizer.
func (d *Detector) Strip(text string) string {
	return strings.TrimSpace(d.removeAll(d.surrounded, text, " "))
}

// Remove deletes marker tokens only, leaving surrounding text untouched.
func (d *Detector) Remove(text string) string {
	return d.removeAll(d.pattern, text, "")
}

// removeAll repeats the replacement until no marker is left, since deleting a nested
// marker such as "[END_[END_SESSION]SESSION]" can join its halves into a new one. Every
// pass drops non-space characters, so the loop ends.
func (d *Detector) removeAll(re *regexp.Regexp, text, repl string) string {
	for d.pattern.MatchString(text) {
		text = re.ReplaceAllString(text, repl)
	}
	return text
}
