package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/w-ash/narada/internal/models"
)

const (
	defaultTimeWindowSeconds = 300
	maxTimePenalty           = 20
)

// CrossServiceTimeMatch scores whether two plays from different services
// represent the same listening event, grounded on
// original_source/src/infrastructure/services/play_deduplication.py's
// calculate_play_match_confidence. It reuses title/artist similarity the
// same way the confidence scorer does, then layers a linear time penalty
// on top: 0 at zero time difference, maxTimePenalty at the edge of the
// window. Plays outside the window never match and the duration-missing
// penalty Score applies for track metadata doesn't apply here, since
// ms_played is a listen duration, not the track's length.
func CrossServiceTimeMatch(playA, playB models.Play, windowSeconds int) (int, models.ConfidenceEvidence) {
	if windowSeconds <= 0 {
		windowSeconds = defaultTimeWindowSeconds
	}

	timeDiff := playA.PlayedAt.Sub(playB.PlayedAt)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	timeDiffSeconds := timeDiff.Seconds()
	if timeDiffSeconds >= float64(windowSeconds) {
		return 0, models.ConfidenceEvidence{}
	}

	// Use the play with more context metadata as the reference side, mirroring
	// the "more complete data" choice in the Python original.
	reference, other := playA, playB
	if len(playB.Context) > len(playA.Context) {
		reference, other = playB, playA
	}

	titleSim := titleSimilarity(reference.Context.String(models.CtxTitle), other.Context.String(models.CtxTitle))
	titleScore := 0.0
	if titleSim < highSimilarity {
		penaltyFactor := (highSimilarity - titleSim) / highSimilarity
		if penaltyFactor < 0 {
			penaltyFactor = 0
		}
		titleScore = -titleMaxPenalty * penaltyFactor
	}

	artistSim := tokenSortRatio(strings.ToLower(reference.Context.String(models.CtxArtist)), strings.ToLower(other.Context.String(models.CtxArtist)))
	artistScore := 0.0
	if artistSim < highSimilarity {
		penaltyFactor := (highSimilarity - artistSim) / highSimilarity
		if penaltyFactor < 0 {
			penaltyFactor = 0
		}
		penaltyFactor = penaltyFactor * penaltyFactor
		artistScore = -artistMaxPenalty * penaltyFactor
	}

	timePenaltyFactor := timeDiffSeconds / float64(windowSeconds)
	timePenalty := int(maxTimePenalty * timePenaltyFactor)

	final := int(float64(baseArtistTitle) + titleScore + artistScore)
	final -= timePenalty
	if final < minConfidence {
		final = minConfidence
	}
	if final > maxConfidence {
		final = maxConfidence
	}

	evidence := models.ConfidenceEvidence{
		BaseScore:        baseArtistTitle,
		TitleScore:       titleScore,
		ArtistScore:      artistScore,
		DurationScore:    -float64(timePenalty),
		TitleSimilarity:  titleSim,
		ArtistSimilarity: artistSim,
		DurationDiffMs:   int64(timeDiffSeconds * 1000),
		FinalScore:       final,
	}
	return final, evidence
}

// FindPotentialDuplicatePlays filters candidates to cross-service plays
// within the time window whose CrossServiceTimeMatch confidence reaches
// minConfidence, sorted by confidence descending. Grounded on the same
// original_source file's find_potential_duplicate_plays.
func FindPotentialDuplicatePlays(target models.Play, candidates []models.Play, windowSeconds, minConfidence int) []DuplicatePlayMatch {
	if windowSeconds <= 0 {
		windowSeconds = defaultTimeWindowSeconds
	}

	var matches []DuplicatePlayMatch
	for _, candidate := range candidates {
		if candidate.Service == target.Service {
			continue
		}

		diff := target.PlayedAt.Sub(candidate.PlayedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Duration(windowSeconds)*time.Second {
			continue
		}

		confidence, evidence := CrossServiceTimeMatch(target, candidate, windowSeconds)
		if confidence >= minConfidence {
			matches = append(matches, DuplicatePlayMatch{
				Play: candidate, Method: models.MatchMethodCrossServiceTimeMatch,
				Confidence: confidence, Evidence: evidence,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	return matches
}

// DuplicatePlayMatch pairs a candidate play with its cross-service match
// confidence and the evidence behind it.
type DuplicatePlayMatch struct {
	Play       models.Play
	Method     models.MatchMethod
	Confidence int
	Evidence   models.ConfidenceEvidence
}
