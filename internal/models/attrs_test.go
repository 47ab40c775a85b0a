package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttrBag_AccessorsReturnZeroValueOnKindMismatch(t *testing.T) {
	bag := AttrBag{"title": StrAttr("Nude"), "count": IntAttr(5)}

	assert.Equal(t, int64(0), bag.Int("title"))
	assert.Equal(t, "", bag.String("count"))
	assert.Equal(t, "", bag.String("missing"))
}

func TestAttrBag_AccessorsReturnStoredValue(t *testing.T) {
	bag := AttrBag{
		"title": StrAttr("Nude"),
		"count": IntAttr(5),
		"score": FloatAttr(0.75),
		"liked": BoolAttr(true),
	}

	assert.Equal(t, "Nude", bag.String("title"))
	assert.Equal(t, int64(5), bag.Int("count"))
	assert.Equal(t, 0.75, bag.Float("score"))
	assert.True(t, bag.Bool("liked"))
}
