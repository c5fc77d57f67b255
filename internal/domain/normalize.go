package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxDescriptionRunes bounds stored descriptions.
	MaxDescriptionRunes = 500

	// PlaceholderName is used for records that carry contact details but no name.
	PlaceholderName = "Unnamed resource"

	defaultCategory = "General"
)

// Normalize maps raw adapter output onto ResourceRecords scoped to postalCode,
// merges duplicates and orders the result by distance from center. It never
// fails: unusable fields are dropped and unusable records are skipped.
func Normalize(raw []RawResult, postalCode string, center *Coordinates) []ResourceRecord {
	now := Now()
	out := make([]ResourceRecord, 0, len(raw))
	index := make(map[string]int, len(raw))

	for i := range raw {
		rec, ok := normalizeOne(raw[i], postalCode, center)
		if !ok {
			continue
		}
		rec.LastSeenAt = now
		rec.LastVerifiedAt = now

		key := dedupKey(rec)
		if j, seen := index[key]; seen {
			out[j] = mergeDuplicate(out[j], rec)
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}

	sortByDistance(out)
	return out
}

func normalizeOne(r RawResult, postalCode string, center *Coordinates) (ResourceRecord, bool) {
	name := cleanText(r.Name)
	rec := ResourceRecord{
		Category:    cleanText(r.Category),
		Description: truncateRunes(cleanText(r.Description), MaxDescriptionRunes),
		Phone:       optionalString(r.Phone),
		Website:     normalizeWebsite(r.Website),
		Email:       normalizeEmail(r.Email),
		Address:     optionalString(r.Address),
		City:        optionalString(r.City),
		State:       optionalString(strings.ToUpper(r.State)),
		PostalCode:  postalCode,
		Source:      r.Source,
		Hours:       optionalString(r.Hours),
	}

	if name == "" {
		if rec.Phone == nil && rec.Address == nil && rec.Website == nil {
			return ResourceRecord{}, false
		}
		name = PlaceholderName
	}
	rec.Name = name

	if rec.Category == "" {
		rec.Category = defaultCategory
	}
	rec.Categories = []string{rec.Category}

	if r.Lat != nil && r.Lng != nil && ValidCoordinates(*r.Lat, *r.Lng) {
		lat, lng := *r.Lat, *r.Lng
		rec.Latitude = &lat
		rec.Longitude = &lng
	}
	rec.DistanceMi = resolveDistance(rec, r.DistanceMi, center)

	rec.SourceID = strings.TrimSpace(r.SourceID)
	if rec.SourceID == "" {
		rec.SourceID = generateSourceID(r.Source, identityName(rec), postalCode)
	}
	return rec, true
}

// resolveDistance prefers a distance computed from coordinates; an adapter
// supplied distance is kept only when the record has no usable position.
func resolveDistance(rec ResourceRecord, given *float64, center *Coordinates) *float64 {
	if pos := rec.Coordinates(); pos != nil && center != nil {
		d := roundTenth(HaversineMiles(*center, *pos))
		return &d
	}
	if given != nil && *given >= 0 && !math.IsNaN(*given) {
		d := roundTenth(*given)
		return &d
	}
	return nil
}

// identityName is the name used for generated ids. Placeholder names are
// shared by unrelated records, so the first contact detail is appended.
func identityName(r ResourceRecord) string {
	if r.Name != PlaceholderName {
		return r.Name
	}
	for _, v := range []*string{r.Phone, r.Address, r.Website} {
		if v != nil {
			return r.Name + "|" + *v
		}
	}
	return r.Name
}

// dedupKey is the lower-cased name plus coordinates rounded to whole degrees.
// Placeholder-named records never match by name; they collapse only with an
// identical (source, source_id).
func dedupKey(r ResourceRecord) string {
	if r.Name == PlaceholderName {
		return "placeholder|" + r.Key()
	}
	name := strings.ToLower(r.Name)
	if pos := r.Coordinates(); pos != nil {
		return fmt.Sprintf("%s|%d,%d", name, int(math.Round(pos.Lat)), int(math.Round(pos.Lng)))
	}
	return name + "|-"
}

// mergeDuplicate keeps first's identity, unions category tags and fills
// contact fields first is missing.
func mergeDuplicate(first, dup ResourceRecord) ResourceRecord {
	for _, c := range dup.Categories {
		if !containsFold(first.Categories, c) {
			first.Categories = append(first.Categories, c)
		}
	}
	if first.Phone == nil {
		first.Phone = dup.Phone
	}
	if first.Website == nil {
		first.Website = dup.Website
	}
	if first.Email == nil {
		first.Email = dup.Email
	}
	if first.Address == nil {
		first.Address = dup.Address
	}
	if first.Hours == nil {
		first.Hours = dup.Hours
	}
	if first.Description == "" {
		first.Description = dup.Description
	}
	return first
}

// sortByDistance orders nearest first; records without a distance go last
// and otherwise keep their first-seen order.
func sortByDistance(records []ResourceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := records[i].DistanceMi, records[j].DistanceMi
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})
}

// generateSourceID produces a deterministic id for sources without one, so
// repeated aggregations upsert the same row instead of adding a new one.
func generateSourceID(source Source, name, postalCode string) string {
	input := fmt.Sprintf("%s|%s|%s", source, strings.ToLower(name), postalCode)
	hash := sha256.Sum256([]byte(input))
	return string(source) + "-" + hex.EncodeToString(hash[:8])
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func optionalString(s string) *string {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	return &s
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace)
}

// normalizeWebsite adds a missing scheme and drops values that do not parse
// as an absolute http(s) URL with a host.
func normalizeWebsite(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil
	}
	s := u.String()
	return &s
}

func normalizeEmail(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" || validate.Var(raw, "email") != nil {
		return nil
	}
	return &raw
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
