package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/w-ash/narada/internal/models"
)

func marshalArtists(a []models.Artist) (string, error) {
	if a == nil {
		a = []models.Artist{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal artists: %w", err)
	}
	return string(b), nil
}

func unmarshalArtists(s string) ([]models.Artist, error) {
	var a []models.Artist
	if s == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, fmt.Errorf("unmarshal artists: %w", err)
	}
	return a, nil
}

func marshalAttrBag(b models.AttrBag) (string, error) {
	if b == nil {
		b = models.AttrBag{}
	}
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshal attrs: %w", err)
	}
	return string(data), nil
}

func unmarshalAttrBag(s string) (models.AttrBag, error) {
	bag := models.AttrBag{}
	if s == "" {
		return bag, nil
	}
	if err := json.Unmarshal([]byte(s), &bag); err != nil {
		return nil, fmt.Errorf("unmarshal attrs: %w", err)
	}
	return bag, nil
}

func marshalEvidence(e models.ConfidenceEvidence) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}
	return string(b), nil
}

func unmarshalEvidence(s string) (models.ConfidenceEvidence, error) {
	var e models.ConfidenceEvidence
	if s == "" {
		return e, nil
	}
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return e, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return e, nil
}

func marshalIDs(ids []int64) (string, error) {
	if ids == nil {
		ids = []int64{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(b), nil
}

func unmarshalIDs(s string) ([]int64, error) {
	var ids []int64
	if s == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}

func nullableTimeStr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", s.String, err)
	}
	return &t, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
