package logger

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tapeview/internal/cache"
)

// Entry is one record read back from the log container.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
}

// ReadShipped returns every record logged at or after since, oldest blob
// first. store is the log container; unparsable lines are skipped.
func ReadShipped(ctx context.Context, store cache.ListCache, since, until time.Time) ([]Entry, error) {
	var entries []Entry
	for _, prefix := range datePrefixes(since, until) {
		names, err := store.List(ctx, prefix, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list logs under %s: %w", prefix, err)
		}
		for _, name := range names {
			found, err := readBlob(ctx, store, prefix+name, since)
			if err != nil {
				slog.WarnContext(ctx, "skipping unreadable log blob", "blob", prefix+name, "error", err)
				continue
			}
			entries = append(entries, found...)
		}
	}
	return entries, nil
}

func datePrefixes(since, until time.Time) []string {
	var prefixes []string
	current := since.UTC().Truncate(24 * time.Hour)
	end := until.UTC().Truncate(24 * time.Hour)
	for !current.After(end) {
		prefixes = append(prefixes, fmt.Sprintf(dateFolder, current.Year(), int(current.Month()), current.Day())+"/")
		current = current.Add(24 * time.Hour)
	}
	return prefixes
}

func readBlob(ctx context.Context, store cache.Cache, key string, since time.Time) ([]Entry, error) {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !gjson.ValidBytes(line) {
			continue
		}
		rec := gjson.ParseBytes(line)
		if !rec.IsObject() {
			continue
		}
		e := Entry{
			Time:  rec.Get("time").Time(),
			Level: rec.Get("level").String(),
			Msg:   rec.Get("msg").String(),
			Attrs: map[string]any{},
		}
		if !e.Time.IsZero() && e.Time.Before(since) {
			continue
		}
		rec.ForEach(func(k, v gjson.Result) bool {
			switch k.String() {
			case "time", "level", "msg":
			default:
				e.Attrs[k.String()] = v.Value()
			}
			return true
		})
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Format renders an entry as a single human readable line.
func (e Entry) Format() string {
	var b strings.Builder
	b.WriteString(e.Time.Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(e.Level)
	b.WriteString(" ")
	b.WriteString(e.Msg)
	for k, v := range e.Attrs {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	return b.String()
}
