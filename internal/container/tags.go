package container

import (
	"bytes"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Tag is one key=value pair from a "[TAG]" footer, in file order.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered, case-insensitive-keyed tag list. Lookups fold
// case; insertion order is preserved for round-tripping and for
// multiple same-key lines that section 5 says must join with "\n".
type Tags []Tag

// Get returns the joined value for key (case-insensitive), or "".
func (t Tags) Get(key string) string {
	var parts []string
	for _, tag := range t {
		if strings.EqualFold(tag.Key, key) {
			parts = append(parts, tag.Value)
		}
	}
	return strings.Join(parts, "\n")
}

// Has reports whether key appears at all.
func (t Tags) Has(key string) bool {
	for _, tag := range t {
		if strings.EqualFold(tag.Key, key) {
			return true
		}
	}
	return false
}

// LibraryChain returns the _lib, _lib2, _lib3, … values in ascending
// numeric order, per section 6: "_lib" first, then numbered keys
// ascending.
func (t Tags) LibraryChain() []string {
	var base string
	numbered := map[int]string{}
	for _, tag := range t {
		key := strings.ToLower(tag.Key)
		if key == "_lib" {
			base = tag.Value
			continue
		}
		if strings.HasPrefix(key, "_lib") {
			if n, err := strconv.Atoi(key[len("_lib"):]); err == nil {
				numbered[n] = tag.Value
			}
		}
	}
	var chain []string
	if base != "" {
		chain = append(chain, base)
	}
	if len(numbered) > 0 {
		keys := make([]int, 0, len(numbered))
		for n := range numbered {
			keys = append(keys, n)
		}
		sort.Ints(keys)
		for _, n := range keys {
			chain = append(chain, numbered[n])
		}
	}
	return chain
}

// Encode renders the tag list back to LF-delimited "key=value" lines,
// one line per original Tag entry (multi-line values are re-split on
// write; parsing keeps one Tag per line and Get's "\n"-join restores
// the original value).
func (t Tags) Encode() []byte {
	var buf bytes.Buffer
	for _, tag := range t {
		for _, line := range strings.Split(tag.Value, "\n") {
			buf.WriteString(tag.Key)
			buf.WriteByte('=')
			buf.WriteString(line)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// parseTags decodes a "[TAG]"-prefixed footer. If footer is empty or
// doesn't start with the marker, an empty Tags is returned: not every
// NCSF file carries a footer. When asUTF8 is false, non-ASCII bytes
// are decoded as Windows-1252 (the system codepage most PSF tools
// assumed); the "utf8=1" tag causes a second pass with asUTF8 true.
func parseTags(footer []byte, asUTF8 bool) (Tags, error) {
	if len(footer) < len(tagFooterMark) || string(footer[:len(tagFooterMark)]) != tagFooterMark {
		return nil, nil
	}
	body := footer[len(tagFooterMark):]

	var tags Tags
	for _, lineBytes := range bytes.Split(body, []byte{'\n'}) {
		if len(lineBytes) == 0 {
			continue
		}
		line := decodeTagLine(lineBytes, asUTF8)
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		tags = append(tags, Tag{Key: line[:eq], Value: line[eq+1:]})
	}
	return tags, nil
}

// windows1252High maps bytes 0x80-0x9F to their Windows-1252 runes;
// 0xA0-0xFF already match Latin-1/Unicode code points directly. No
// third-party codepage table in the retrieval pack covers this single
// 32-byte range, so it's inlined rather than pulling in a dependency
// for 32 constants.
var windows1252High = [32]rune{
	0x20AC, 0x81, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0x8D, 0x017D, 0x8F,
	0x90, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0x9D, 0x017E, 0x0178,
}

func decodeTagLine(raw []byte, asUTF8 bool) string {
	if asUTF8 || utf8.Valid(raw) {
		return string(raw)
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		if b >= 0x80 && b <= 0x9F {
			runes[i] = windows1252High[b-0x80]
		} else {
			runes[i] = rune(b)
		}
	}
	return string(runes)
}
