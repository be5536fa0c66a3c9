package parsers

import (
	"regexp"

	"github.com/goccy/go-json"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

// jsonLDBlock matches a single <script type="application/ld+json">...</script>
// tag. Retailers that render product data server-side typically embed
// one JSON-LD block per product page; this is the only shape this
// parser understands. No HTML parsing library is used here: nothing in
// the retrieved corpus imports one, so the extraction stays a single
// regexp capture followed by a normal JSON decode (see DESIGN.md).
var jsonLDBlock = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)

// ParseHTMLPage extracts the embedded JSON-LD product block from an
// HTML product page and decodes it as one or more releases.
func ParseHTMLPage(source string, body []byte) ([]schema.RawRelease, error) {
	match := jsonLDBlock.FindSubmatch(body)
	if match == nil {
		return nil, errs.New("parsers", errs.KindParseError,
			errs.WithMessage("no application/ld+json block found"))
	}
	block := match[1]

	var w wireRelease
	if err := json.Unmarshal(block, &w); err == nil && w.Title != "" {
		raw, convErr := convertWireRelease(source, w)
		if convErr != nil {
			return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(convErr),
				errs.WithMessage("normalize JSON-LD product block"))
		}
		return []schema.RawRelease{raw}, nil
	}

	releases, err := ParseJSONCatalog(source, block)
	if err != nil {
		return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(err),
			errs.WithMessage("decode JSON-LD block as catalog"))
	}
	return releases, nil
}
