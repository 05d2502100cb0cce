package navigator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode/utf8"
)

const (
	pageTextScript = `return document.body ? document.body.innerText : "";`
	linksScript    = `return Array.from(document.querySelectorAll("a[href]")).map(function (a) {
  return {text: (a.innerText || a.textContent || "").trim(), href: a.href};
});`
)

// Link is one anchor extracted from a page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// truncateText cuts s to at most maxBytes on a rune boundary. It reports the
// original size and a sha256 of the full text when it cuts.
func truncateText(s string, maxBytes int) (string, bool, int, string) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false, len(s), ""
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	sum := sha256.Sum256([]byte(s))
	return s[:cut], true, len(s), hex.EncodeToString(sum[:])
}

func truncationNote(kept, total int, hash string) string {
	return fmt.Sprintf("\n[content truncated: kept %d of %d bytes, sha256 %s]", kept, total, hash)
}
