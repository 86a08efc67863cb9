package errors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shanehull/leakwatch/internal/types"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.FailureKind
	}{
		{"nil", nil, types.FailureNone},
		{"auth", Auth(New("status 403"), "fetch"), types.FailureAuth},
		{"transient", Transient(New("reset"), "fetch"), types.FailureTransient},
		{"corrupt", Corrupt(New("not an array"), "data.json"), types.FailureCorrupt},
		{"config", InvalidConfig("fetch.batch_size must be > 0"), types.FailureConfig},
		{"malformed", Mark(New("bad json"), ErrMalformed), types.FailureMalformed},
		{"cancelled", context.Canceled, types.FailureTransient},
		{"auth wrapped as first batch", Mark(Wrap(Auth(New("401"), "fetch"), "fetch first batch"), ErrFirstBatch), types.FailureAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMarksSurviveWrapping(t *testing.T) {
	err := Wrap(Wrapf(Transient(New("reset"), "fetch page"), "batch %d", 5), "run")
	assert.True(t, Is(err, ErrTransient))
	assert.False(t, Is(err, ErrAuth))
	assert.Contains(t, err.Error(), "batch 5")
}

func TestCorruptCarriesHint(t *testing.T) {
	err := Corrupt(New("duplicate hashId"), "data.json")
	assert.Contains(t, err.Error(), "dataset data.json")
	hints := GetAllHints(err)
	if assert.Len(t, hints, 1) {
		assert.Contains(t, hints[0], "leakwatch restore")
	}
}
