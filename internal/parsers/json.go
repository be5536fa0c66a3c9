package parsers

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

// wireRelease is the on-wire JSON shape shared by the json-catalog,
// api-feed, and html-page (embedded JSON-LD block) parsers, and by
// goja script parsers (§4.2: "must return a JSON array matching the
// RawRelease wire shape").
type wireRelease struct {
	SourceID     string                    `json:"source_id"`
	Title        string                    `json:"title"`
	Brand        string                    `json:"brand"`
	SKU          string                    `json:"sku"`
	Price        *string                   `json:"price"`
	Currency     string                    `json:"currency"`
	ReleaseDate  *string                   `json:"release_date"`
	Status       string                    `json:"status"`
	URL          string                    `json:"url"`
	ImageURL     string                    `json:"image_url"`
	Sizes        map[string]wireSizeRecord `json:"sizes"`
}

type wireSizeRecord struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

type wireCatalog struct {
	Releases []wireRelease `json:"releases"`
}

// ParseJSONCatalog decodes a {"releases": [...]} document.
func ParseJSONCatalog(source string, body []byte) ([]schema.RawRelease, error) {
	var catalog wireCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(err),
			errs.WithMessage("decode json-catalog payload"))
	}
	return convertWireReleases(source, catalog.Releases)
}

// ParseAPIFeed decodes a bare JSON array of releases, the shape used by
// simple paginated retailer feed endpoints.
func ParseAPIFeed(source string, body []byte) ([]schema.RawRelease, error) {
	var releases []wireRelease
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(err),
			errs.WithMessage("decode api-feed payload"))
	}
	return convertWireReleases(source, releases)
}

func convertWireReleases(source string, in []wireRelease) ([]schema.RawRelease, error) {
	out := make([]schema.RawRelease, 0, len(in))
	for i, w := range in {
		raw, err := convertWireRelease(source, w)
		if err != nil {
			return nil, errs.New("parsers", errs.KindParseError, errs.WithCause(err),
				errs.WithMessage(fmt.Sprintf("release[%d]", i)))
		}
		out = append(out, raw)
	}
	return out, nil
}

func convertWireRelease(source string, w wireRelease) (schema.RawRelease, error) {
	raw := schema.RawRelease{
		Source:    source,
		SourceID:  w.SourceID,
		Title:     w.Title,
		Brand:     w.Brand,
		SKU:       w.SKU,
		Currency:  w.Currency,
		StatusRaw: w.Status,
		URL:       w.URL,
		ImageURL:  w.ImageURL,
	}

	if w.Price != nil && *w.Price != "" {
		price, err := decimal.NewFromString(*w.Price)
		if err != nil {
			return schema.RawRelease{}, fmt.Errorf("parse price %q: %w", *w.Price, err)
		}
		raw.Price = &price
	}

	if w.ReleaseDate != nil && *w.ReleaseDate != "" {
		t, err := time.Parse(time.RFC3339, *w.ReleaseDate)
		if err != nil {
			t, err = time.Parse("2006-01-02", *w.ReleaseDate)
			if err != nil {
				return schema.RawRelease{}, fmt.Errorf("parse release_date %q: %w", *w.ReleaseDate, err)
			}
		}
		raw.ReleaseDate = &t
	}

	if len(w.Sizes) > 0 {
		raw.SizeAvailability = make(map[string]schema.SizeAvailability, len(w.Sizes))
		for size, rec := range w.Sizes {
			raw.SizeAvailability[size] = schema.SizeAvailability{Total: rec.Total, Available: rec.Available}
		}
	}

	return raw, nil
}
