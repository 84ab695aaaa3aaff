package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

// Extract runs the extractor of every requested field against page
// concurrently and returns one value per known field. A field whose patterns
// do not match maps to the empty string. Unknown field keys are ignored.
func (s *Site) Extract(page string, fields []string) map[string]string {
	return s.extractAt(page, fields, time.Now())
}

func (s *Site) extractAt(page string, fields []string, now time.Time) map[string]string {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]string, len(fields))
	)

	for _, field := range fields {
		if !IsField(field) {
			continue
		}
		wg.Add(1)
		go func(field string) {
			defer wg.Done()
			value := s.extractField(field, page, now)

			mu.Lock()
			out[field] = value
			mu.Unlock()
		}(field)
	}

	wg.Wait()
	return out
}

func (s *Site) extractField(field, page string, now time.Time) string {
	switch field {
	case FieldDimensions:
		return s.dimensions(page)
	case FieldTitle:
		title, _ := s.Patterns[FieldTitle].Find(page)
		return CleanTitle(title, s.TitleSuffix)
	case FieldDays:
		date, _ := s.Patterns[FieldDays].Find(page)
		days, err := DaysUntil(date, now)
		if err != nil {
			slog.Warn("Unparseable delivery date", "site", s.Name, "date", date, "error", err)
			return "0days"
		}
		return days
	}

	value, _ := s.Patterns[field].Find(page)
	return strings.TrimSpace(value)
}

// dimensions composes "L x W x H". All three parts are required.
func (s *Site) dimensions(page string) string {
	length, okL := s.Patterns["length"].Find(page)
	width, okW := s.Patterns["width"].Find(page)
	height, okH := s.Patterns["height"].Find(page)

	if !okL || !okW || !okH {
		slog.Debug("Incomplete dimensions", "site", s.Name, "length", okL, "width", okW, "height", okH)
		return ""
	}
	return fmt.Sprintf("%s x %s x %s", length, width, height)
}

// CleanTitle unescapes HTML entities and strips the marketplace suffix.
// Titles that do not carry the suffix are not product titles and yield "".
func CleanTitle(raw, suffix string) string {
	if suffix == "" || !strings.Contains(raw, suffix) {
		return ""
	}
	title := html.UnescapeString(raw)
	return strings.TrimSpace(strings.ReplaceAll(title, suffix, ""))
}

// DaysUntil converts a delivery date such as "Fri, Nov 1" into the number of
// days from now, formatted as "<n>days". The date carries no year: the
// current year is assumed and, if that date has already passed, the next
// one. An empty date yields "0days".
func DaysUntil(date string, now time.Time) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "0days", nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	target, err := parseDeliveryDate(date, now.Year())
	if err != nil {
		return "", err
	}
	if target.Before(today) {
		if target, err = parseDeliveryDate(date, now.Year()+1); err != nil {
			return "", err
		}
	}

	days := int(target.Sub(today).Hours() / 24)
	return fmt.Sprintf("%ddays", days), nil
}

func parseDeliveryDate(date string, year int) (time.Time, error) {
	t, err := time.Parse("Mon, Jan 2 2006", fmt.Sprintf("%s %d", date, year))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse delivery date %q: %w", date, err)
	}
	return t, nil
}
