// Package matching implements the confidence scorer (C2): a pure function
// turning (internal track, external track, match method) into a 0-100
// confidence score plus the evidence used to derive it, grounded on
// original_source/src/domain/matching/algorithms.py. It has no dependency
// on the repository or connector layers.
package matching

import (
	"strings"

	"github.com/w-ash/narada/internal/models"
)

const (
	baseISRC         = 95
	baseMBID         = 95
	baseArtistTitle  = 90
	titleMaxPenalty  = 40.0
	artistMaxPenalty = 40.0
	durationMaxPenalty = 60
	highSimilarity   = 0.9
	durationMissingPenalty   = 10
	durationToleranceMs      = 1000
	durationPerSecondPenalty = 1
	minConfidence = 0
	maxConfidence = 100
	variationSimilarityScore = 0.6
	identicalSimilarityScore = 1.0
)

var variationMarkers = []string{
	"live", "remix", "acoustic", "demo", "remaster", "radio edit",
	"extended", "instrumental", "album version", "single version",
}

// ExternalTrack is the subset of a connector track's fields the scorer
// needs, kept separate from models.ConnectorTrack so callers (matching
// providers, play resolvers) can score against ad hoc search results too.
type ExternalTrack struct {
	Title      string
	Artist     string
	DurationMs *int64
}

// titleSimilarity mirrors calculate_title_similarity: it special-cases
// identical titles and "same title plus a variation marker" (e.g. "Song" vs
// "Song - Live") before falling back to token-set similarity.
func titleSimilarity(title1, title2 string) float64 {
	title1 = strings.ToLower(title1)
	title2 = strings.ToLower(title2)

	if title1 == title2 {
		return identicalSimilarityScore
	}

	if strings.Contains(title2, title1) {
		remaining := strings.Trim(strings.Replace(title2, title1, "", 1), "- ()[]")
		if containsVariationMarker(remaining) {
			return variationSimilarityScore
		}
	} else if strings.Contains(title1, title2) {
		remaining := strings.Trim(strings.Replace(title1, title2, "", 1), "- ()[]")
		if containsVariationMarker(remaining) {
			return variationSimilarityScore
		}
	}

	return tokenSetRatio(title1, title2)
}

func containsVariationMarker(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range variationMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Score computes the confidence score and evidence for a candidate mapping
// between an internal track and an external (connector) track, given the
// method that produced the candidate.
func Score(internal models.Track, external ExternalTrack, method models.MatchMethod) (int, models.ConfidenceEvidence) {
	var base int
	switch method {
	case models.MatchMethodISRC:
		base = baseISRC
	case models.MatchMethodMBID:
		base = baseMBID
	default:
		base = baseArtistTitle
	}

	var titleSim, titleScore float64
	if internal.Title != "" && external.Title != "" {
		titleSim = titleSimilarity(internal.Title, external.Title)
		if titleSim >= highSimilarity {
			titleScore = 0
		} else {
			penaltyFactor := (highSimilarity - titleSim) / highSimilarity
			if penaltyFactor < 0 {
				penaltyFactor = 0
			}
			titleScore = -titleMaxPenalty * penaltyFactor
		}
	}

	var artistSim, artistScore float64
	internalArtist := internal.FirstArtist()
	if internalArtist != "" && external.Artist != "" {
		artistSim = tokenSortRatio(strings.ToLower(internalArtist), strings.ToLower(external.Artist))
		if artistSim >= highSimilarity {
			artistScore = 0
		} else {
			penaltyFactor := (highSimilarity - artistSim) / highSimilarity
			if penaltyFactor < 0 {
				penaltyFactor = 0
			}
			penaltyFactor = penaltyFactor * penaltyFactor
			artistScore = -artistMaxPenalty * penaltyFactor
		}
	}

	var durationDiffMs int64
	var durationScore float64
	if internal.DurationMs == nil || external.DurationMs == nil {
		durationScore = -durationMissingPenalty
	} else {
		diff := *internal.DurationMs - *external.DurationMs
		if diff < 0 {
			diff = -diff
		}
		durationDiffMs = diff
		if diff <= durationToleranceMs {
			durationScore = 0
		} else {
			secondsDiff := float64(diff-durationToleranceMs) / 1000
			secondsPenalty := int(secondsDiff)
			if secondsDiff > float64(secondsPenalty) {
				secondsPenalty++
			}
			penalty := durationPerSecondPenalty * secondsPenalty
			if penalty > durationMaxPenalty {
				penalty = durationMaxPenalty
			}
			durationScore = -float64(penalty)
		}
	}

	final := int(float64(base) + titleScore + artistScore + durationScore)
	if final < minConfidence {
		final = minConfidence
	}
	if final > maxConfidence {
		final = maxConfidence
	}

	evidence := models.ConfidenceEvidence{
		BaseScore:        base,
		TitleScore:       titleScore,
		ArtistScore:      artistScore,
		DurationScore:    durationScore,
		TitleSimilarity:  titleSim,
		ArtistSimilarity: artistSim,
		DurationDiffMs:   durationDiffMs,
		FinalScore:       final,
	}
	return final, evidence
}
