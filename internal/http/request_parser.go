package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"

	"contaae/internal/core"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("request body must be valid JSON")

// decodeBody reads a JSON body of at most maxBodyBytes into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadBody)
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	return nil
}

// parseYear reads an optional year, defaulting to now's.
func parseYear(q url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(q.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 9999 {
		return 0, fmt.Errorf("%w: year %q", core.ErrInvalidMonth, v)
	}
	return y, nil
}

// parseMonth reads a month in 1..12. A missing month returns 0 when optional
// and now's month otherwise.
func parseMonth(q url.Values, now time.Time, optional bool) (int, error) {
	v := strings.TrimSpace(q.Get("month"))
	if v == "" {
		if optional {
			return 0, nil
		}
		return int(now.Month()), nil
	}
	m, err := strconv.Atoi(v)
	if err != nil || m < 1 || m > 12 {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidMonth, v)
	}
	return m, nil
}

// parseDateParam reads a YYYY-MM-DD query value, falling back to def.
func parseDateParam(q url.Values, key string, def core.Date) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	return core.ParseDate(v)
}

// sanitizeInput removes control characters except tab and newlines and trims
// whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

func monthBounds(now time.Time) (core.Date, core.Date) {
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	return first, core.DateOf(first.Time.AddDate(0, 1, -1))
}

// amountField accepts an amount as a JSON string ("1.234,56") or number.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = ""
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	*a = amountField(s)
	return nil
}

func (a amountField) Money() (core.Money, error) {
	return core.ParseAmount(string(a))
}

// OptionalMoney parses a when present and returns zero otherwise.
func (a amountField) OptionalMoney() (core.Money, error) {
	if strings.TrimSpace(string(a)) == "" {
		return core.Money{}, nil
	}
	return a.Money()
}
