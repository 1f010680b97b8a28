// Package topicfilter implements MQTT-style topic-filter matching
// (spec.md §4.4, component C4): '+' matches exactly one level, '#'
// matches zero or more trailing levels and is legal only as the final
// filter level, otherwise levels compare byte-for-byte.
package topicfilter

import (
	"strings"

	"github.com/aws-greengrass/aws-greengrass-lite-sub001/pkg/ggerr"
)

// MaxLength is the compile-time ceiling on topic and filter length
// (spec.md §4.4: "Topics may be at most 256 bytes").
const MaxLength = 256

// Validate rejects filters that are structurally illegal before they
// ever reach Match: a '#' not in the final level, or a '+'/'#' that
// isn't the entire content of its level, or a filter/topic over
// MaxLength bytes. Subscription-time registration (corebus subscribe
// handlers, mqttdispatch.Register) must call Validate before storing a
// filter; Match itself never validates.
func Validate(filter string) error {
	if len(filter) == 0 {
		return ggerr.New(ggerr.Invalid, "topic filter must not be empty")
	}
	if len(filter) > MaxLength {
		return ggerr.New(ggerr.Range, "topic filter exceeds %d bytes", MaxLength)
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "+") && level != "+" {
			return ggerr.New(ggerr.Invalid, "'+' must occupy an entire topic level")
		}
		if strings.Contains(level, "#") {
			if level != "#" {
				return ggerr.New(ggerr.Invalid, "'#' must occupy an entire topic level")
			}
			if i != len(levels)-1 {
				return ggerr.New(ggerr.Invalid, "'#' is only legal as the final filter level")
			}
		}
	}
	return nil
}

// Match reports whether topic satisfies filter, following MQTT
// wildcard semantics. Match is deterministic and holds no state: it is
// independent of any dispatcher (spec.md §8 invariant).
//
// Match does not itself reject structurally invalid filters — callers
// must Validate at registration time, as the source does: matching
// against an already-invalid filter is a programmer error, not a
// runtime condition to re-check on every publish.
func Match(filter, topic string) bool {
	if len(topic) > 0 && topic[0] == '$' {
		if len(filter) > 0 && (filter[0] == '+' || filter[0] == '#') {
			return false
		}
	}

	fIdx, tIdx := 0, 0
	fLen, tLen := len(filter), len(topic)

	for fIdx <= fLen {
		fLevel, fNext := nextLevel(filter, fIdx, fLen)

		if fLevel == "#" {
			return true
		}

		if tIdx > tLen {
			return false
		}

		tLevel, tNext := nextLevel(topic, tIdx, tLen)

		if fLevel != "+" && fLevel != tLevel {
			return false
		}

		fIdx = advance(fNext, fLen)
		tIdx = advance(tNext, tLen)
	}

	return tIdx > tLen
}

func nextLevel(s string, from, length int) (level string, next int) {
	if idx := strings.IndexByte(s[from:], '/'); idx >= 0 {
		next = from + idx
		return s[from:next], next
	}
	return s[from:], length
}

func advance(next, length int) int {
	if next == length {
		return length + 1
	}
	return next + 1
}
