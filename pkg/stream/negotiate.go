package stream

import (
	"mime"
	"strconv"
	"strings"
)

type mediaRange struct {
	typ, subtype string
	q            float64
}

func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(part)
		if err != nil {
			// mime rejects the bare "*" some clients send
			if strings.HasPrefix(part, "*") {
				mediaType, params = "*/*", nil
			} else {
				continue
			}
		}
		typ, subtype, ok := strings.Cut(mediaType, "/")
		if !ok {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
				q = f
			}
		}
		ranges = append(ranges, mediaRange{typ: typ, subtype: subtype, q: q})
	}
	return ranges
}

// specificity ranks how closely r matches offer; -1 means it doesn't.
func (r mediaRange) specificity(typ, subtype string) int {
	switch {
	case r.typ == typ && r.subtype == subtype:
		return 2
	case r.typ == typ && r.subtype == "*":
		return 1
	case r.typ == "*" && r.subtype == "*":
		return 0
	}
	return -1
}

// negotiate picks the offer the Accept header prefers. Each offer is weighed
// by its most specific matching range; ties go to the earlier offer. An empty
// header accepts the first offer.
func negotiate(accept string, offers []string) (string, bool) {
	if len(offers) == 0 {
		return "", false
	}
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return offers[0], true
	}

	best, bestQ := "", 0.0
	for _, offer := range offers {
		typ, subtype, _ := strings.Cut(offer, "/")
		match, q := -1, 0.0
		for _, r := range ranges {
			if s := r.specificity(typ, subtype); s > match {
				match, q = s, r.q
			}
		}
		if match >= 0 && q > bestQ {
			best, bestQ = offer, q
		}
	}
	return best, best != ""
}
