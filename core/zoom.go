package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ZoomToken is the unit half of a zoom tier: "co" for a factor, a calendar unit otherwise
type ZoomToken string

const (
	TokenFactor  ZoomToken = "co"
	TokenSeconds ZoomToken = "seconds"
	TokenMinutes ZoomToken = "minutes"
	TokenHours   ZoomToken = "hours"
	TokenDays    ZoomToken = "days"
	TokenWeeks   ZoomToken = "weeks"
	TokenMonths  ZoomToken = "months"
	TokenYears   ZoomToken = "years"
)

// calendarSeconds uses average month and year lengths
var calendarSeconds = map[ZoomToken]int64{
	TokenSeconds: 1,
	TokenMinutes: 60,
	TokenHours:   3600,
	TokenDays:    86400,
	TokenWeeks:   604800,
	TokenMonths:  2629746,
	TokenYears:   31557600,
}

// ParseZoomToken normalises a unit token; singular calendar units are accepted
func ParseZoomToken(s string) (ZoomToken, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == string(TokenFactor) {
		return TokenFactor, nil
	}
	if !strings.HasSuffix(t, "s") {
		t += "s"
	}
	if _, ok := calendarSeconds[ZoomToken(t)]; ok {
		return ZoomToken(t), nil
	}
	return "", ErrInvalidInput.New("unknown zoom unit " + s)
}

// ZoomUnit is one tier of a zoom spec: Factor(n) when Unit is "co", Calendar(n, Unit) otherwise
type ZoomUnit struct {
	Multiplier int
	Unit       ZoomToken
}

// Factor builds a dimensionless zoom tier
func Factor(n int) ZoomUnit {
	return ZoomUnit{Multiplier: n, Unit: TokenFactor}
}

// Calendar builds an absolute zoom tier
func Calendar(n int, unit ZoomToken) ZoomUnit {
	return ZoomUnit{Multiplier: n, Unit: unit}
}

func (u ZoomUnit) IsFactor() bool {
	return u.Unit == TokenFactor
}

// Seconds converts a calendar tier to a duration; factor tiers have none and return 0
func (u ZoomUnit) Seconds() int64 {
	return int64(u.Multiplier) * calendarSeconds[u.Unit]
}

func (u ZoomUnit) String() string {
	return fmt.Sprintf("%d %s", u.Multiplier, u.Unit)
}

// ZoomSpec maps multipliers to unit tokens
type ZoomSpec map[int]ZoomToken

// ParseZoomSpec decodes the JSON form, e.g. {"2":"co"} or {"1":"hours","1":"days"}
func ParseZoomSpec(data []byte) (ZoomSpec, error) {
	var z ZoomSpec
	if err := json.Unmarshal(data, &z); err != nil {
		if KindOf(err) != KindUnknown {
			return nil, err
		}
		return nil, ErrInvalidInput.New("zoom: " + err.Error())
	}
	if err := z.Validate(); err != nil {
		return nil, err
	}
	return z, nil
}

// UnmarshalJSON reads an object with string-encoded multiplier keys
func (z *ZoomSpec) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	res := make(ZoomSpec, len(raw))
	for k, v := range raw {
		m, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return ErrInvalidInput.New("zoom multiplier " + k)
		}
		tok, err := ParseZoomToken(v)
		if err != nil {
			return err
		}
		res[m] = tok
	}
	*z = res
	return nil
}

// MarshalJSON writes the object form with string keys
func (z ZoomSpec) MarshalJSON() ([]byte, error) {
	raw := make(map[string]string, len(z))
	for k, v := range z {
		raw[strconv.Itoa(k)] = string(v)
	}
	return json.Marshal(raw)
}

// Validate checks the zoom spec is non-empty, has positive multipliers and is not mixed-mode
func (z ZoomSpec) Validate() error {
	if len(z) == 0 {
		return ErrInvalidInput.New("zoom spec is empty")
	}
	factors := 0
	for m, tok := range z {
		if m <= 0 {
			return ErrInvalidInput.New(fmt.Sprintf("zoom multiplier %d must be positive", m))
		}
		if tok == TokenFactor {
			factors++
			continue
		}
		if _, ok := calendarSeconds[tok]; !ok {
			return ErrInvalidInput.New("unknown zoom unit " + string(tok))
		}
	}
	if factors > 0 && factors != len(z) {
		return ErrInvalidInput.New("zoom spec mixes factor and calendar tiers")
	}
	return nil
}

// IsFactor reports factor mode: any tier uses the "co" token
func (z ZoomSpec) IsFactor() bool {
	for _, tok := range z {
		if tok == TokenFactor {
			return true
		}
	}
	return false
}

// Units returns the tiers ordered by multiplier
func (z ZoomSpec) Units() []ZoomUnit {
	res := make([]ZoomUnit, 0, len(z))
	for m, tok := range z {
		res = append(res, ZoomUnit{Multiplier: m, Unit: tok})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Multiplier < res[j].Multiplier })
	return res
}

// LargestFactor returns the biggest multiplier
func (z ZoomSpec) LargestFactor() int {
	f := 0
	for m := range z {
		if m > f {
			f = m
		}
	}
	return f
}

// LargestPeriod returns the calendar tier with the longest duration, in seconds
func (z ZoomSpec) LargestPeriod() int64 {
	var p int64
	for _, u := range z.Units() {
		if s := u.Seconds(); s > p {
			p = s
		}
	}
	return p
}

// NextLargerPeriod returns the smallest calendar period strictly longer than current
func (z ZoomSpec) NextLargerPeriod(current int64) (int64, bool) {
	var next int64
	found := false
	for _, u := range z.Units() {
		s := u.Seconds()
		if s > current && (!found || s < next) {
			next = s
			found = true
		}
	}
	return next, found
}

// String is the canonical form used in cache keys
func (z ZoomSpec) String() string {
	parts := make([]string, 0, len(z))
	for _, u := range z.Units() {
		parts = append(parts, fmt.Sprintf("%d=%s", u.Multiplier, u.Unit))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
