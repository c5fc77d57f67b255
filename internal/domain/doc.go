// Package domain models disaster-relief resources gathered from external
// sources and the pure transforms that turn raw source output into the
// canonical ResourceRecord shape.
//
// # Sources
//
// Resources originate from four upstream providers:
//
//	directory     government / 211-style resource directory, searched by
//	              taxonomy code + ZIP within a fixed radius
//	maps          places nearby-search around the ZIP centroid
//	llm-search-a  hosted LLM answering in sectioned prose
//	llm-search-b  hosted LLM instructed to answer with JSON only
//
// # Identity
//
// A record is identified by (source, source_id). Upstream ids are used when
// present; otherwise a deterministic SHA-256 of source|name|postal_code is
// generated so repeated aggregations upsert the same row. See [generateSourceID].
//
// # Deduplication
//
// Records from different sources describe the same place when their
// lower-cased names match and their coordinates round to the same whole
// degree. The first record seen wins; category tags are unioned.
//
// # Distance
//
// Distances are great-circle miles from the ZIP centroid computed with the
// haversine formula (Earth radius 3958.8 mi), rounded to 0.1 mi.
//
// # Free-text answers
//
// LLM prose is parsed line by line. Non-bulleted lines longer than eight
// characters are section headers and become the category of the bullets that
// follow them. Bulleted lines longer than ten characters are resources. See
// [ParseProse].
package domain
