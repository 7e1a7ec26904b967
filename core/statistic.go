package core

import (
	"strings"
)

// StatisticKind is an aggregate computed per bucket
type StatisticKind string

const (
	StatMin    StatisticKind = "MIN"
	StatMax    StatisticKind = "MAX"
	StatAvg    StatisticKind = "AVG"
	StatMedian StatisticKind = "MEDIAN"
	StatQuart  StatisticKind = "QUART"
	// StatAll expands to every concrete statistic
	StatAll StatisticKind = "ALL"
)

// ConcreteStatistics lists the statistics ALL expands to, in output order
var ConcreteStatistics = []StatisticKind{StatMin, StatMax, StatAvg, StatMedian, StatQuart}

// ParseStatistic parses a statistic token, ignoring case
func ParseStatistic(s string) (StatisticKind, error) {
	k := StatisticKind(strings.ToUpper(strings.TrimSpace(s)))
	switch k {
	case StatMin, StatMax, StatAvg, StatMedian, StatQuart, StatAll:
		return k, nil
	}
	return "", ErrInvalidInput.New("unknown statistic " + s)
}

// ParseStatistics parses a list of tokens. Comma separated tokens are split.
func ParseStatistics(tokens []string) ([]StatisticKind, error) {
	var res []StatisticKind
	for _, t := range tokens {
		for _, part := range strings.Split(t, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := ParseStatistic(part)
			if err != nil {
				return nil, err
			}
			res = append(res, k)
		}
	}
	if len(res) == 0 {
		return nil, ErrInvalidInput.New("at least one statistic is required")
	}
	return res, nil
}

// ExpandStatistics replaces ALL with the concrete statistics and drops duplicates
func ExpandStatistics(stats []StatisticKind) []StatisticKind {
	seen := make(map[StatisticKind]bool, len(ConcreteStatistics))
	res := make([]StatisticKind, 0, len(stats))
	add := func(k StatisticKind) {
		if !seen[k] {
			seen[k] = true
			res = append(res, k)
		}
	}
	for _, k := range stats {
		if k == StatAll {
			for _, c := range ConcreteStatistics {
				add(c)
			}
			continue
		}
		add(k)
	}
	return res
}

// Lower returns the lowercase token used in table names and catalog rows
func (k StatisticKind) Lower() string {
	return strings.ToLower(string(k))
}

// Columns reports how many values a bucket of this statistic carries
func (k StatisticKind) Columns() int {
	if k == StatQuart {
		return 2
	}
	return 1
}
