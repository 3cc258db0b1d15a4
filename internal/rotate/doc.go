// Package rotate closes an active journal file and opens a successor that
// inherits its sequence-number identity, and enforces retention limits by
// deleting archived files once usage crosses configured bounds (spec §4.3).
package rotate
