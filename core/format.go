package core

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// FormatValue prints a float the way the viewer clients expect: 12.0, 0.5, 1.0E10, NaN
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(v, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-")
	exp = strings.TrimLeft(exp, "0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mantissa + "E" + exp
}

// EncodeText writes one block per statistic: a "STAT:" header, one line per bucket and a blank line
func EncodeText(w io.Writer, sets []BucketSet) error {
	bw := bufio.NewWriter(w)
	for _, set := range sets {
		if _, err := fmt.Fprintf(bw, "%s:\n", set.Statistic); err != nil {
			return err
		}
		for _, b := range set.Buckets {
			var line string
			switch set.Statistic {
			case StatAvg:
				line = fmt.Sprintf("Value: %s, Count: %d", FormatValue(b.V1), b.Count)
			case StatQuart:
				line = fmt.Sprintf("Q1: %s, Q3: %s", FormatValue(b.V1), FormatValue(b.V2))
			default:
				line = FormatValue(b.V1)
			}
			if _, err := bw.WriteString(line + "\n"); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeText parses the output of EncodeText. Bucket bounds are not part of the encoding and stay zero.
func DecodeText(r io.Reader) ([]BucketSet, error) {
	var (
		res []BucketSet
		cur *BucketSet
	)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			cur = nil
			continue
		}
		if cur == nil {
			if !strings.HasSuffix(line, ":") {
				return nil, ErrInvalidInput.New(fmt.Sprintf("line %d: expected a statistic header, got %q", lineNo, line))
			}
			stat, err := ParseStatistic(strings.TrimSuffix(line, ":"))
			if err != nil {
				return nil, err
			}
			res = append(res, BucketSet{Statistic: stat})
			cur = &res[len(res)-1]
			continue
		}
		b, err := decodeLine(cur.Statistic, line)
		if err != nil {
			return nil, ErrInvalidInput.New(fmt.Sprintf("line %d: %v", lineNo, err))
		}
		cur.Buckets = append(cur.Buckets, b)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func decodeLine(stat StatisticKind, line string) (Bucket, error) {
	b := Bucket{V1: math.NaN(), V2: math.NaN()}
	var err error
	switch stat {
	case StatAvg:
		fields, ferr := labeledFields(line, "Value", "Count")
		if ferr != nil {
			return b, ferr
		}
		if b.V1, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return b, err
		}
		if b.Count, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return b, err
		}
	case StatQuart:
		fields, ferr := labeledFields(line, "Q1", "Q3")
		if ferr != nil {
			return b, ferr
		}
		if b.V1, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return b, err
		}
		if b.V2, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return b, err
		}
	default:
		if b.V1, err = strconv.ParseFloat(line, 64); err != nil {
			return b, err
		}
	}
	if stat != StatAvg && !math.IsNaN(b.V1) {
		// the encoding carries no count for these statistics
		b.Count = 1
	}
	return b, nil
}

// labeledFields splits "A: x, B: y" into [x, y]
func labeledFields(line string, labels ...string) ([]string, error) {
	parts := strings.Split(line, ",")
	if len(parts) != len(labels) {
		return nil, fmt.Errorf("expected %d fields in %q", len(labels), line)
	}
	res := make([]string, len(parts))
	for i, p := range parts {
		label, val, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok || strings.TrimSpace(label) != labels[i] {
			return nil, fmt.Errorf("expected label %s in %q", labels[i], line)
		}
		res[i] = strings.TrimSpace(val)
	}
	return res, nil
}
