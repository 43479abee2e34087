package tenderboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinistries(t *testing.T) {
	ministries, err := ParseMinistries(strings.NewReader(loadFixture(t, "landing.html")))
	require.NoError(t, err)

	assert.Equal(t, []Ministry{
		{Name: "Ministry of Health", Value: "12"},
		{Name: "Electricity & Water Authority", Value: "31"},
		{Name: "Ministry of Works", Value: "44"},
	}, ministries)
}

func TestParseMinistriesMissingSelect(t *testing.T) {
	_, err := ParseMinistries(strings.NewReader("<html><body><p>maintenance</p></body></html>"))
	assert.Error(t, err)
}

func TestResolveMinistry(t *testing.T) {
	ministries := []Ministry{
		{Name: "Ministry of Health", Value: "12"},
		{Name: "Ministry of Works", Value: "44"},
	}

	m, ok := ResolveMinistry(ministries, "44")
	assert.True(t, ok)
	assert.Equal(t, "Ministry of Works", m.Name)

	m, ok = ResolveMinistry(ministries, "  ministry of health ")
	assert.True(t, ok)
	assert.Equal(t, "12", m.Value)

	_, ok = ResolveMinistry(ministries, "Ministry of Magic")
	assert.False(t, ok)
}
