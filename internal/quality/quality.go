package quality

import (
	"math"
	"strings"
	"unicode"
)

// Decision summarizes how trustworthy the recognized text of a page looks.
// A weak page is still assembled; the flag only feeds logs and reports.
type Decision struct {
	Quality   float64
	Weak      bool
	Reasons   []string
	WordCount int
}

func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Score rates OCR output of a resume page. Resumes are short, list-heavy and
// full of dates, so the thresholds are lenient on short lines and digits.
func Score(text string, minWords int) Decision {
	clean := normalize(text)
	wc := CountWords(clean)

	total := float64(len([]rune(clean)))
	if total == 0 {
		return Decision{Quality: 0, Weak: true, Reasons: []string{"empty_text"}}
	}

	alphaRatio := safeDiv(float64(countIf(clean, unicode.IsLetter)), total)
	digitRatio := safeDiv(float64(countIf(clean, unicode.IsDigit)), total)
	garbageRatio := safeDiv(float64(countGarbage(clean)), total)
	scrambled := scrambledRatio(clean)

	score := 1.0
	reasons := []string{}

	if wc < minWords {
		penalty := 0.45
		if wc < minWords/2 {
			penalty = 0.60
		}
		score -= penalty
		reasons = append(reasons, "low_word_count")
	}

	if alphaRatio < 0.25 {
		penalty := 0.35
		if alphaRatio < 0.15 {
			penalty = 0.50
		}
		// dates and phone numbers
		if digitRatio > 0.20 {
			penalty *= 0.6
		}
		score -= penalty
		reasons = append(reasons, "low_alpha_ratio")
	}

	if garbageRatio > 0.01 {
		score -= math.Min(0.50, garbageRatio*50)
		reasons = append(reasons, "garbage_chars")
	}

	if scrambled > 0.30 {
		score -= 0.25
		reasons = append(reasons, "scrambled_text")
	}

	if hasRepeatedRuns(clean) {
		score -= 0.20
		reasons = append(reasons, "repeated_patterns")
	}

	if alphaRatio > 0.60 && wc >= minWords {
		score += 0.10
		reasons = append(reasons, "good_prose")
	}

	score = math.Max(0, math.Min(1, score))
	return Decision{
		Quality:   score,
		Weak:      score < 0.50,
		Reasons:   reasons,
		WordCount: wc,
	}
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// hasRepeatedRuns reports runs of 5+ identical non-space runes ("-----").
// Underlines and dot leaders in resumes trigger it, so the penalty is small.
func hasRepeatedRuns(s string) bool {
	run := 0
	var last rune
	for _, r := range s {
		if r == last && !unicode.IsSpace(r) {
			run++
			if run >= 5 {
				return true
			}
			continue
		}
		run = 1
		last = r
	}
	return false
}

func scrambledRatio(s string) float64 {
	words := strings.Fields(s)
	if len(words) == 0 {
		return 0
	}
	single := 0
	for _, w := range words {
		if len([]rune(w)) == 1 {
			single++
		}
	}
	return float64(single) / float64(len(words))
}

func countIf(s string, pred func(rune) bool) int {
	n := 0
	for _, r := range s {
		if pred(r) {
			n++
		}
	}
	return n
}

func countGarbage(s string) int {
	n := 0
	for _, r := range s {
		if r == '�' || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			n++
		}
	}
	return n
}

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}
