// Package progress turns raw worker output into progress events.
//
// Classification is a pure function of one line. Precedence, first match
// wins:
//
//  1. a percentage with a bar or a current/total pair
//  2. a stage phrase, unless an error marker comes before it on the line
//  3. an informational phrase (always a diagnostic)
//  4. an error marker, unless the line has the shape of a tqdm bar
//  5. anything else is a diagnostic
package progress

import (
	"regexp"
	"strconv"
	"strings"

	"pdf-translator/internal/types"
)

// Band maps a worker-local 0-100 percentage into [From, To] of the overall
// progress.
type Band struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Apply remaps raw (0-100) into the band.
func (b Band) Apply(raw float64) float64 {
	return clamp(b.From + clamp(raw)*(b.To-b.From)/100)
}

// StageMarker is a stage phrase and the overall percentage it represents.
type StageMarker struct {
	Phrase string  `json:"phrase"`
	Anchor float64 `json:"anchor"`
}

// Classifier holds the vocabularies. The zero value classifies everything
// that is not a progress bar as a diagnostic.
type Classifier struct {
	// Band, when set, remaps percentages that carry a current/total pair.
	Band *Band
	// Stages are matched case-insensitively; the longest match wins.
	Stages []StageMarker
	// Informational phrases are logged but never reported as errors.
	Informational []string
	// ErrorMarkers are matched case-insensitively.
	ErrorMarkers []string
	// PercentLabels let a bare "NN%" count as progress when the line also
	// contains one of them, e.g. "Download progress: 45%".
	PercentLabels []string
}

var (
	percentRe = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s?%`)
	// 45/100 or 12.5M/100M or 3.2MB/10.0MB
	fractionRe = regexp.MustCompile(`(\d+(?:\.\d+)?)([kKMGTP]?)(i?B)?/(\d+(?:\.\d+)?)([kKMGTP]?)(i?B)?`)
	rateRe     = regexp.MustCompile(`\d(?:\.\d+)?\s?(?:it/s|s/it|[kKMG]?i?B/s)`)
)

// barRunes are the glyphs tqdm and similar libraries draw bars with.
const barRunes = "█▉▊▋▌▍▎▏#■"

// Classify turns one line into an event. It never fails; unrecognised text
// is a diagnostic.
func (c *Classifier) Classify(line string) types.ProgressEvent {
	if ev, ok := c.percentage(line); ok {
		return ev
	}
	if m, ok := c.stage(line); ok {
		return types.ProgressEvent{
			Kind:  types.EventStage,
			Text:  line,
			Stage: m.Phrase,
			Value: m.Anchor,
			Raw:   m.Anchor,
		}
	}
	if containsAny(line, c.Informational) {
		return types.ProgressEvent{Kind: types.EventDiagnostic, Text: line}
	}
	if containsAny(line, c.ErrorMarkers) && !HasBarShape(line) {
		return types.ProgressEvent{Kind: types.EventError, Text: line}
	}
	return types.ProgressEvent{Kind: types.EventDiagnostic, Text: line}
}

func (c *Classifier) percentage(line string) (types.ProgressEvent, bool) {
	locs := percentRe.FindAllStringSubmatchIndex(line, -1)
	if locs == nil {
		return types.ProgressEvent{}, false
	}
	loc := pickPercent(line, locs)
	raw, err := strconv.ParseFloat(line[loc[2]:loc[3]], 64)
	if err != nil || raw > 100 {
		return types.ProgressEvent{}, false
	}

	rest := line[loc[1]:]
	frac := fractionRe.FindStringSubmatch(rest)
	hasBar := hasBarGlyphs(line)
	labelled := containsAny(line, c.PercentLabels)
	if frac == nil && !hasBar && !labelled {
		return types.ProgressEvent{}, false
	}

	ev := types.ProgressEvent{
		Kind:  types.EventPercentage,
		Text:  line,
		Raw:   raw,
		Value: clamp(raw),
	}
	if frac != nil {
		ev.Current = scaled(frac[1], frac[2])
		ev.Total = scaled(frac[4], frac[5])
		ev.HasUnits = frac[2] != "" || frac[3] != "" || frac[5] != "" || frac[6] != ""
		if c.Band != nil {
			ev.Value = c.Band.Apply(raw)
		}
	}
	return ev, true
}

// stage finds the longest stage phrase in line. "Error translating page 3"
// reports a failure of that stage, so a phrase preceded by an error marker
// does not count.
// pickPercent chooses among several "NN%" matches. A tqdm description may
// carry its own percentage, so the one drawn right before the bar wins,
// then the last one before a current/total pair, then the first.
func pickPercent(line string, locs [][]int) []int {
	for _, loc := range locs {
		if strings.HasPrefix(strings.TrimLeft(line[loc[1]:], " "), "|") {
			return loc
		}
	}
	if f := fractionRe.FindStringIndex(line); f != nil {
		var best []int
		for _, loc := range locs {
			if loc[1] <= f[0] {
				best = loc
			}
		}
		if best != nil {
			return best
		}
	}
	return locs[0]
}

func (c *Classifier) stage(line string) (StageMarker, bool) {
	lower := strings.ToLower(line)
	var best StageMarker
	at := -1
	for _, m := range c.Stages {
		if m.Phrase == "" || len(m.Phrase) <= len(best.Phrase) {
			continue
		}
		if i := strings.Index(lower, strings.ToLower(m.Phrase)); i >= 0 {
			best, at = m, i
		}
	}
	if at < 0 {
		return StageMarker{}, false
	}
	if e := firstIndex(lower, c.ErrorMarkers); e >= 0 && e < at {
		return StageMarker{}, false
	}
	return best, true
}

// firstIndex returns the earliest position of any phrase in lower, or -1.
func firstIndex(lower string, phrases []string) int {
	first := -1
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if i := strings.Index(lower, strings.ToLower(p)); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	return first
}

// HasBarShape reports whether line looks like a tqdm progress line: bar
// glyphs or an iteration rate such as "5.00it/s".
func HasBarShape(line string) bool {
	return hasBarGlyphs(line) || rateRe.MatchString(line)
}

func hasBarGlyphs(line string) bool {
	i := strings.IndexByte(line, '|')
	if i < 0 {
		return false
	}
	j := strings.IndexByte(line[i+1:], '|')
	if j < 0 {
		return false
	}
	bar := line[i+1 : i+1+j]
	if bar == "" {
		return false
	}
	// an empty tqdm bar at 0% is all spaces
	return strings.ContainsAny(bar, barRunes) || strings.TrimSpace(bar) == ""
}

func containsAny(line string, phrases []string) bool {
	if len(phrases) == 0 {
		return false
	}
	lower := strings.ToLower(line)
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func scaled(num, suffix string) int64 {
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	switch suffix {
	case "k", "K":
		f *= 1e3
	case "M":
		f *= 1e6
	case "G":
		f *= 1e9
	case "T":
		f *= 1e12
	case "P":
		f *= 1e15
	}
	return int64(f)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
