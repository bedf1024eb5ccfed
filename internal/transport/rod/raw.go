package rod

import (
	"strings"

	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

var urlFields = map[string]bool{"product_url": true, "image_url": true}

// tileRaw turns scraped text into a record. Whitespace is collapsed, empty values dropped and
// relative links resolved against pageURL. Records without a name are discarded.
func tileRaw(fields map[string]string, pageURL string) product.Raw {
	raw := make(product.Raw, len(fields))
	for k, v := range fields {
		v = strings.Join(strings.Fields(v), " ")
		if v == "" {
			continue
		}
		if urlFields[k] && pageURL != "" {
			if abs, err := resolve(pageURL, v); err == nil {
				v = abs
			}
		}
		raw[k] = v
	}
	if _, ok := raw["name"]; !ok {
		return nil
	}
	return raw
}

// mergeRaw overlays product page fields on the listing record.
func mergeRaw(tile, detail product.Raw) product.Raw {
	out := make(product.Raw, len(tile)+len(detail))
	for k, v := range tile {
		out[k] = v
	}
	for k, v := range detail {
		out[k] = v
	}
	return out
}
