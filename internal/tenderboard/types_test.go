package tenderboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsOrder(t *testing.T) {
	r := NewRecord(
		Field{"B", "1"},
		Field{"A", "2"},
		Field{"B", "3"},
	)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"B", "A"}, r.Labels())
	v, ok := r.Get("B")
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"B":"3","A":"2"}`, string(data))
}

func TestRecordFieldsIsCopy(t *testing.T) {
	r := NewRecord(Field{"A", "1"})
	fields := r.Fields()
	fields[0].Value = "changed"

	v, _ := r.Get("A")
	assert.Equal(t, "1", v)
}

func TestColumns(t *testing.T) {
	records := []Record{
		NewRecord(Field{"X", ""}, Field{"Y", ""}),
		NewRecord(Field{"Y", ""}, Field{"Z", ""}),
		{},
	}
	assert.Equal(t, []string{"X", "Y", "Z"}, Columns(records))
	assert.Empty(t, Columns(nil))
}

func TestPageStatusString(t *testing.T) {
	assert.Equal(t, "ok", PageOK.String())
	assert.Equal(t, "empty", PageEmpty.String())
	assert.Equal(t, "failed", PageFailed.String())
	assert.Equal(t, "unknown", PageStatus(42).String())

	var zero PageResult
	assert.Equal(t, PageUnknown, zero.Status)
	assert.NotEqual(t, PageOK, zero.Status)
	assert.Equal(t, "unknown", zero.Status.String())
}
