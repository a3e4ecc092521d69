package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-orchestrator/internal/apperr"
)

func TestExtractJSONStripsFencesAndProse(t *testing.T) {
	out := "Sure! Here it is:\n```json\n{\"fit_score\": 80}\n```\nLet me know."
	assert.Equal(t, `{"fit_score": 80}`, extractJSON(out))
}

func TestParseFieldsRejectsNonObject(t *testing.T) {
	_, err := parseFields("fit_analysis", "no json here")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindSchema))
}

func TestFieldAccessors(t *testing.T) {
	f, err := parseFields("fit_analysis", `{
		"score": "77",
		"float": 74.6,
		"name": "  Acme  ",
		"blank": " ",
		"auto": "TRUE",
		"manual": false,
		"skills": [],
		"summary": {"a": 1}
	}`)
	require.NoError(t, err)

	n, err := f.requireNumber("score")
	require.NoError(t, err)
	assert.Equal(t, 77.0, n)
	assert.Equal(t, 75, f.intOr("float", 0))
	assert.Equal(t, 3, f.intOr("missing", 3))

	name, err := f.requireString("name")
	require.NoError(t, err)
	assert.Equal(t, "Acme", name)

	_, err = f.requireString("blank")
	assert.True(t, apperr.Is(err, apperr.KindSchema))

	assert.True(t, f.flag("auto"))
	assert.False(t, f.flag("manual"))
	assert.False(t, f.flag("missing"))

	_, err = f.requireArray("skills")
	assert.NoError(t, err)
	_, err = f.requireNonEmptyArray("skills")
	assert.True(t, apperr.Is(err, apperr.KindSchema))

	_, err = f.requirePresent("summary")
	assert.NoError(t, err)
	_, err = f.requirePresent("skills")
	assert.Error(t, err)

	assert.Nil(t, f.raw("missing"))
	assert.JSONEq(t, `{"a":1}`, string(f.raw("summary")))
}

func TestStringsOfSkipsBlanks(t *testing.T) {
	got := stringsOf([]interface{}{" Go ", "", 3.0, map[string]interface{}{"k": "v"}})
	assert.Equal(t, []string{"Go", "3", `{"k":"v"}`}, got)
}
