package chat

import (
	"strings"
	"unicode"

	"github.com/Vasu1712/chatcore/internal/chaterr"
)

const maxUIDLen = 128

// checkUID rejects UIDs that cannot be used as a path segment of a key.
func checkUID(op, field, uid string) error {
	switch {
	case uid == "":
		return chaterr.Errorf(chaterr.InvalidArgument, op, "%s is empty", field)
	case len(uid) > maxUIDLen:
		return chaterr.Errorf(chaterr.InvalidArgument, op, "%s longer than %d bytes", field, maxUIDLen)
	case strings.ContainsFunc(uid, func(r rune) bool { return r == '/' || unicode.IsSpace(r) }):
		return chaterr.Errorf(chaterr.InvalidArgument, op, "%s %q contains '/' or whitespace", field, uid)
	}
	return nil
}
