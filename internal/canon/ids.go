package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/solewatch/releasecore/internal/schema"
)

// normalizeSKU uppercases and strips internal whitespace, per SPEC §4.3.
func normalizeSKU(sku string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(sku) {
		if r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	slugPunct = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpace = regexp.MustCompile(`[\s-]+`)
)

// slug lowercases, strips punctuation, and collapses each run of
// whitespace and hyphens to a single '-'.
func slug(title string) string {
	lowered := strings.ToLower(title)
	stripped := slugPunct.ReplaceAllString(lowered, "")
	return strings.Trim(slugSpace.ReplaceAllString(stripped, "-"), "-")
}

func contentHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReleaseID computes the stable identity for a raw release, per SPEC §4.3:
// sku-derived when present, else title-slug-derived.
func ReleaseID(r schema.RawRelease) string {
	if strings.TrimSpace(r.SKU) != "" {
		return contentHash("sku::" + normalizeSKU(r.SKU) + "::" + r.Source)
	}
	return contentHash("name::" + slug(r.Title) + "::" + r.Source)
}

// PayloadHash fingerprints the normalized content fields of a raw
// release so the Canonicalizer can detect no-op re-ingestions.
func PayloadHash(r schema.RawRelease) string {
	price := ""
	if r.Price != nil {
		price = r.Price.String()
	}
	releaseDate := ""
	if r.ReleaseDate != nil {
		releaseDate = r.ReleaseDate.UTC().Format("2006-01-02T15:04:05Z")
	}
	return contentHash(
		normalizeSKU(r.SKU),
		strings.ToLower(strings.TrimSpace(r.Brand)),
		slug(r.Title),
		price,
		strings.ToUpper(r.Currency),
		releaseDate,
		strings.ToUpper(strings.TrimSpace(r.StatusRaw)),
		stockFingerprint(r.SizeAvailability),
	)
}

func stockFingerprint(sizes map[string]schema.SizeAvailability) string {
	if len(sizes) == 0 {
		return ""
	}
	keys := make([]string, 0, len(sizes))
	for k := range sizes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v := sizes[k]
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(v.Total))
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(v.Available))
		b.WriteByte(';')
	}
	return b.String()
}
