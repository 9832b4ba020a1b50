// Package template expands placeholders in marker labels and log metadata.
package template

import (
	"os"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Expand replaces {name} placeholders in text.
//
// Supported placeholders:
//
//	{date}      - now in YYYY-MM-DD format (UTC)
//	{time}      - now in HH:MM:SS format (UTC)
//	{datetime}  - now in YYYY-MM-DDTHH:MM:SS format (UTC)
//	{unix}      - now as a Unix timestamp
//	{user}      - current username
//	{hostname}  - short host name
//	{arch}      - system architecture
//
// Entries in vars override built-in placeholders. Unknown placeholders are
// left as they are.
func Expand(text string, now time.Time, vars map[string]string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	now = now.UTC()

	placeholders := map[string]string{
		"date":     now.Format("2006-01-02"),
		"time":     now.Format("15:04:05"),
		"datetime": now.Format("2006-01-02T15:04:05"),
		"unix":     strconv.FormatInt(now.Unix(), 10),
		"user":     "unknown",
		"hostname": "unknown",
		"arch":     runtime.GOARCH,
	}
	if u, err := user.Current(); err == nil {
		placeholders["user"] = u.Username
	}
	if h, err := os.Hostname(); err == nil {
		placeholders["hostname"] = strings.Split(h, ".")[0]
	}
	for k, v := range vars {
		placeholders[k] = v
	}

	pairs := make([]string, 0, 2*len(placeholders))
	for k, v := range placeholders {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// ExpandAll expands every value of m, returning a new map.
func ExpandAll(m map[string]string, now time.Time) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = Expand(v, now, nil)
	}
	return out
}
