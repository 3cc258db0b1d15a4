package cursor

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

// Token is the decoded form of the opaque cursor string of spec §6.4:
// `s=<seqnum_id>;i=<seqnum>;b=<boot_id>;m=<monotonic>;t=<realtime>;x=<xor_hash>`.
// s and b carry the full 16-byte id as hex; i, m, t and x carry a uint64 as
// variable-length hex, same as the rest of the on-disk format (spec §9 Open
// Questions: the grammar's `<hex16>`/`<hex32>` placeholders are read as
// byte-widths of the id fields, not digit counts).
type Token struct {
	SeqnumID  [16]byte
	Seqnum    uint64
	BootID    [16]byte
	Monotonic uint64
	Realtime  uint64
	XorHash   uint64
}

// String renders t in the field order spec §6.4 calls normative.
func (t Token) String() string {
	return fmt.Sprintf("s=%s;i=%x;b=%s;m=%x;t=%x;x=%x",
		hex.EncodeToString(t.SeqnumID[:]), t.Seqnum,
		hex.EncodeToString(t.BootID[:]), t.Monotonic, t.Realtime, t.XorHash)
}

// ParseToken decodes a cursor token. Unknown fields are ignored; a missing
// required field is InvalidCursor (spec §6.4).
func ParseToken(s string) (Token, error) {
	var t Token
	seen := make(map[string]bool, 6)

	for _, field := range strings.Split(s, ";") {
		if field == "" {
			continue
		}
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			return Token{}, invalidCursor("malformed cursor field: " + field)
		}
		key, val := parts[0], parts[1]
		switch key {
		case "s":
			b, err := hex.DecodeString(val)
			if err != nil || len(b) != 16 {
				return Token{}, invalidCursor("malformed seqnum_id field")
			}
			copy(t.SeqnumID[:], b)
		case "b":
			b, err := hex.DecodeString(val)
			if err != nil || len(b) != 16 {
				return Token{}, invalidCursor("malformed boot_id field")
			}
			copy(t.BootID[:], b)
		case "i":
			n, err := strconv.ParseUint(val, 16, 64)
			if err != nil {
				return Token{}, invalidCursor("malformed seqnum field")
			}
			t.Seqnum = n
		case "m":
			n, err := strconv.ParseUint(val, 16, 64)
			if err != nil {
				return Token{}, invalidCursor("malformed monotonic field")
			}
			t.Monotonic = n
		case "t":
			n, err := strconv.ParseUint(val, 16, 64)
			if err != nil {
				return Token{}, invalidCursor("malformed realtime field")
			}
			t.Realtime = n
		case "x":
			n, err := strconv.ParseUint(val, 16, 64)
			if err != nil {
				return Token{}, invalidCursor("malformed xor hash field")
			}
			t.XorHash = n
		default:
			continue // unknown fields are ignored, per spec §6.4
		}
		seen[key] = true
	}

	for _, required := range []string{"s", "i", "b", "m", "t", "x"} {
		if !seen[required] {
			return Token{}, invalidCursor("missing required cursor token field: " + required)
		}
	}
	return t, nil
}

func invalidCursor(msg string) error {
	return logerrors.NewError(logerrors.ErrCodeInvalidCursor, msg).
		WithComponent("cursor").WithOperation("ParseToken")
}
