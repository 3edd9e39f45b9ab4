package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeySlug       = "slug"
	KeyFile       = "file"
	KeyPath       = "path"
	KeyStrategy   = "strategy"
	KeyGeneration = "generation"
	KeyTrigger    = "trigger"
	KeyStamp      = "stamp"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyClients    = "clients"
	KeyPages      = "pages"
	KeyEmitter    = "emitter"
	KeyBuildID    = "build_id"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyRemote     = "remote"
	KeyBranch     = "branch"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Slug(s string) slog.Attr         { return slog.String(KeySlug, s) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Strategy(s string) slog.Attr     { return slog.String(KeyStrategy, s) }
func Generation(g int64) slog.Attr    { return slog.Int64(KeyGeneration, g) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Stamp(s int64) slog.Attr         { return slog.Int64(KeyStamp, s) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Clients(n int) slog.Attr         { return slog.Int(KeyClients, n) }
func Pages(n int) slog.Attr           { return slog.Int(KeyPages, n) }
func Emitter(name string) slog.Attr   { return slog.String(KeyEmitter, name) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Remote(r string) slog.Attr       { return slog.String(KeyRemote, r) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration records d in milliseconds under the canonical duration key.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d) / float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
