package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w-ash/narada/internal/models"
)

func TestCrossServiceTimeMatch_AppliesLinearTimePenaltyWithinWindow(t *testing.T) {
	playedA := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	playA := models.Play{
		Service: models.ServiceSpotify, PlayedAt: playedA, MsPlayed: int64Ptr(210000),
		Context: models.AttrBag{
			models.CtxTitle:  models.StrAttr("Bohemian Rhapsody"),
			models.CtxArtist: models.StrAttr("Queen"),
		},
	}
	playB := models.Play{
		Service: models.ServiceLastFM, PlayedAt: playedA.Add(2 * time.Minute),
		Context: models.AttrBag{
			models.CtxTitle:  models.StrAttr("Bohemian Rhapsody"),
			models.CtxArtist: models.StrAttr("Queen"),
		},
	}

	confidence, evidence := CrossServiceTimeMatch(playA, playB, 300)

	require.Equal(t, 82, confidence)
	assert.Equal(t, 90, evidence.BaseScore)
	assert.EqualValues(t, 120000, evidence.DurationDiffMs)
	assert.Equal(t, 82, evidence.FinalScore)
}

func TestCrossServiceTimeMatch_OutsideWindowReturnsZero(t *testing.T) {
	playedA := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	playA := models.Play{PlayedAt: playedA, Context: models.AttrBag{
		models.CtxTitle: models.StrAttr("Nude"), models.CtxArtist: models.StrAttr("Radiohead"),
	}}
	playB := models.Play{PlayedAt: playedA.Add(5 * time.Minute), Context: models.AttrBag{
		models.CtxTitle: models.StrAttr("Nude"), models.CtxArtist: models.StrAttr("Radiohead"),
	}}

	confidence, evidence := CrossServiceTimeMatch(playA, playB, 300)

	assert.Equal(t, 0, confidence)
	assert.Equal(t, 0, evidence.BaseScore)
	assert.Equal(t, 0, evidence.FinalScore)
}

func TestCrossServiceTimeMatch_DissimilarTitlesLowerConfidence(t *testing.T) {
	playedA := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	playA := models.Play{PlayedAt: playedA, Context: models.AttrBag{
		models.CtxTitle: models.StrAttr("Paranoid Android"), models.CtxArtist: models.StrAttr("Radiohead"),
	}}
	playB := models.Play{PlayedAt: playedA, Context: models.AttrBag{
		models.CtxTitle: models.StrAttr("Nude"), models.CtxArtist: models.StrAttr("Radiohead"),
	}}

	confidence, _ := CrossServiceTimeMatch(playA, playB, 300)

	assert.Less(t, confidence, 90)
}

func TestFindPotentialDuplicatePlays_FiltersBySameServiceWindowAndConfidence(t *testing.T) {
	target := models.Play{
		Service: models.ServiceLastFM, PlayedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Context: models.AttrBag{models.CtxTitle: models.StrAttr("Nude"), models.CtxArtist: models.StrAttr("Radiohead")},
	}

	sameService := target
	sameService.Service = models.ServiceLastFM

	tooFar := models.Play{
		Service: models.ServiceSpotify, PlayedAt: target.PlayedAt.Add(10 * time.Minute),
		Context: models.AttrBag{models.CtxTitle: models.StrAttr("Nude"), models.CtxArtist: models.StrAttr("Radiohead")},
	}

	lowConfidence := models.Play{
		Service: models.ServiceSpotify, PlayedAt: target.PlayedAt,
		Context: models.AttrBag{models.CtxTitle: models.StrAttr("Airbag"), models.CtxArtist: models.StrAttr("Radiohead")},
	}

	goodMatch := models.Play{
		Service: models.ServiceSpotify, PlayedAt: target.PlayedAt.Add(10 * time.Second),
		Context: models.AttrBag{models.CtxTitle: models.StrAttr("Nude"), models.CtxArtist: models.StrAttr("Radiohead")},
	}

	matches := FindPotentialDuplicatePlays(target, []models.Play{sameService, tooFar, lowConfidence, goodMatch}, 300, 70)

	require.Len(t, matches, 1)
	assert.Equal(t, models.ServiceSpotify, matches[0].Play.Service)
	assert.True(t, matches[0].Confidence >= 70)
}

func int64Ptr(v int64) *int64 { return &v }
