package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testZip = "78028"

var testCenter = &Coordinates{Lat: 30.05, Lng: -99.14}

func ptr[T any](v T) *T { return &v }

func freezeClock(t *testing.T) time.Time {
	t.Helper()
	now := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })
	return now
}

func TestNormalize_MapsFields(t *testing.T) {
	now := freezeClock(t)

	out := Normalize([]RawResult{{
		Source:      SourceDirectory,
		SourceID:    "dir-1",
		Name:        "  Kerr County   Shelter ",
		Category:    "Shelter",
		Description: "Emergency   beds",
		Phone:       "(830) 555-0100",
		Website:     "kerrcounty.example.org",
		Email:       "not-an-email",
		State:       "tx",
		Lat:         ptr(30.06),
		Lng:         ptr(-99.14),
	}}, testZip, testCenter)

	require.Len(t, out, 1)
	r := out[0]
	assert.Equal(t, "Kerr County Shelter", r.Name)
	assert.Equal(t, "Emergency beds", r.Description)
	assert.Equal(t, "(830) 555-0100", *r.Phone)
	assert.Equal(t, "https://kerrcounty.example.org", *r.Website)
	assert.Nil(t, r.Email)
	assert.Equal(t, "TX", *r.State)
	assert.Equal(t, testZip, r.PostalCode)
	assert.Equal(t, SourceDirectory, r.Source)
	assert.Equal(t, "dir-1", r.SourceID)
	assert.Equal(t, []string{"Shelter"}, r.Categories)
	assert.Equal(t, now, r.LastSeenAt)
	require.NotNil(t, r.DistanceMi)
	assert.InDelta(t, 0.7, *r.DistanceMi, 0.05)
}

func TestNormalize_DropsNamelessRecordsWithoutDetails(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceLLMSearchA, Name: "   "},
		{Source: SourceLLMSearchA, Phone: "211"},
	}, testZip, nil)

	require.Len(t, out, 1)
	assert.Equal(t, PlaceholderName, out[0].Name)
}

func TestNormalize_InvalidCoordinatesDropped(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceMaps, SourceID: "p1", Name: "Nowhere", Lat: ptr(123.0), Lng: ptr(-99.0)},
	}, testZip, testCenter)

	require.Len(t, out, 1)
	assert.Nil(t, out[0].Latitude)
	assert.Nil(t, out[0].Longitude)
	assert.Nil(t, out[0].DistanceMi)
}

func TestNormalize_DeduplicatesByNameAndRoundedCoordinates(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceMaps, SourceID: "p1", Name: "Salvation Army", Category: "Food", Lat: ptr(30.10), Lng: ptr(-99.20)},
		{Source: SourceDirectory, SourceID: "d9", Name: "SALVATION ARMY", Category: "Shelter", Phone: "830-555-0199", Lat: ptr(30.30), Lng: ptr(-99.40)},
	}, testZip, testCenter)

	require.Len(t, out, 1)
	r := out[0]
	assert.Equal(t, SourceMaps, r.Source, "first-seen identity is kept")
	assert.Equal(t, "p1", r.SourceID)
	assert.Equal(t, []string{"Food", "Shelter"}, r.Categories)
	assert.Equal(t, "830-555-0199", *r.Phone, "missing contact fields are filled from the duplicate")
}

func TestNormalize_SameNameDifferentDegreeKeptApart(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceMaps, SourceID: "p1", Name: "Red Cross", Lat: ptr(30.1), Lng: ptr(-99.1)},
		{Source: SourceMaps, SourceID: "p2", Name: "Red Cross", Lat: ptr(31.2), Lng: ptr(-99.1)},
	}, testZip, testCenter)

	assert.Len(t, out, 2)
}

func TestNormalize_DedupWithoutCoordinates(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceLLMSearchA, Name: "FEMA Helpline", Category: "Federal"},
		{Source: SourceLLMSearchB, Name: "fema helpline", Category: "Hotlines"},
	}, testZip, nil)

	require.Len(t, out, 1)
	assert.Equal(t, []string{"Federal", "Hotlines"}, out[0].Categories)
}

func TestNormalize_SortsByDistanceWithUnknownLast(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceLLMSearchA, Name: "No Position"},
		{Source: SourceMaps, SourceID: "far", Name: "Far", Lat: ptr(30.40), Lng: ptr(-99.14)},
		{Source: SourceMaps, SourceID: "near", Name: "Near", Lat: ptr(30.06), Lng: ptr(-99.14)},
	}, testZip, testCenter)

	require.Len(t, out, 3)
	assert.Equal(t, "Near", out[0].Name)
	assert.Equal(t, "Far", out[1].Name)
	assert.Equal(t, "No Position", out[2].Name)
}

func TestNormalize_KeepsAdapterDistanceWithoutCoordinates(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceDirectory, SourceID: "d1", Name: "Food Bank", DistanceMi: ptr(4.26)},
		{Source: SourceDirectory, SourceID: "d2", Name: "Bad Distance", DistanceMi: ptr(-1.0)},
	}, testZip, nil)

	require.Len(t, out, 2)
	require.NotNil(t, out[0].DistanceMi)
	assert.InDelta(t, 4.3, *out[0].DistanceMi, 1e-9)
	assert.Nil(t, out[1].DistanceMi)
}

func TestNormalize_GeneratesDeterministicSourceIDs(t *testing.T) {
	raw := []RawResult{{Source: SourceLLMSearchB, Name: "Kerrville VA Clinic"}}

	first := Normalize(raw, testZip, nil)
	second := Normalize(raw, testZip, nil)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].SourceID, second[0].SourceID)
	assert.True(t, strings.HasPrefix(first[0].SourceID, "llm-search-b-"))

	other := Normalize(raw, "90210", nil)
	assert.NotEqual(t, first[0].SourceID, other[0].SourceID)
}

func TestNormalize_TruncatesDescription(t *testing.T) {
	out := Normalize([]RawResult{
		{Source: SourceLLMSearchA, Name: "Long", Description: strings.Repeat("é", MaxDescriptionRunes+50)},
	}, testZip, nil)

	require.Len(t, out, 1)
	assert.Equal(t, MaxDescriptionRunes, len([]rune(out[0].Description)))
}

func TestNormalize_EmptyInput(t *testing.T) {
	out := Normalize(nil, testZip, testCenter)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestNormalize_UnnamedRecordsKeptApart(t *testing.T) {
	answer := "Local help:\n" +
		"- (830) 555-0101 - Community food pantry open weekdays\n" +
		"- (830) 555-0202 - Mobile meal delivery for seniors\n"
	raw := ParseProse(answer, SourceLLMSearchA, testZip)
	require.Len(t, raw, 2)

	out := Normalize(raw, testZip, nil)

	require.Len(t, out, 2)
	assert.Equal(t, PlaceholderName, out[0].Name)
	assert.Equal(t, PlaceholderName, out[1].Name)
	assert.Equal(t, "(830) 555-0101", *out[0].Phone)
	assert.Equal(t, "(830) 555-0202", *out[1].Phone)
	assert.NotEqual(t, out[0].SourceID, out[1].SourceID, "each unnamed record upserts its own row")
}

func TestNormalize_RepeatedUnnamedRecordCollapses(t *testing.T) {
	raw := RawResult{Source: SourceLLMSearchA, Phone: "(830) 555-0101"}

	out := Normalize([]RawResult{raw, raw}, testZip, nil)

	require.Len(t, out, 1)
	assert.Equal(t, PlaceholderName, out[0].Name)
}
