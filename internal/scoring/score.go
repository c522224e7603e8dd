// Package scoring extracts a numeric 0-100 score from free-form evaluation text.
package scoring

import (
	"regexp"
	"strconv"
)

type pattern struct {
	re    *regexp.Regexp
	max   int
	scale int
}

// Patterns are tried in order; within a pattern the first in-range match wins.
var patterns = []pattern{
	{re: regexp.MustCompile(`(\d{1,3})\s*[/／]\s*100\b`), max: 100, scale: 1},
	{re: regexp.MustCompile(`(\d{1,2})\s*[/／]\s*10\b`), max: 10, scale: 10},
	{re: regexp.MustCompile(`(?i)(?:overall\s+score|score|rating|总分|整体评分|评分)\s*[:：]\s*(\d{1,3})`), max: 100, scale: 1},
}

// Parse returns the score on a 100-point scale, or nil when no pattern matches.
func Parse(text string) *int {
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 0 || n > p.max {
				continue
			}
			score := n * p.scale
			return &score
		}
	}
	return nil
}
