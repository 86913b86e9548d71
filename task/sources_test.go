package task

import (
	"testing"

	"github.com/angas/spotprice-go/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSources(t *testing.T) {
	cnfg := config.AppConfigEnergyPrice{
		Area:              "SE3",
		Currency:          "SEK",
		Sources:           []string{"elprisetjustnu", "nordpool"},
		RequestTimeoutSec: 5,
	}

	sources, err := NewSources(cnfg)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "elprisetjustnu", sources[0].Name())
	assert.Equal(t, "nordpool", sources[1].Name())

	_, err = NewSources(config.AppConfigEnergyPrice{Sources: []string{"tibber"}})
	assert.ErrorContains(t, err, "tibber")

	_, err = NewSources(config.AppConfigEnergyPrice{})
	assert.Error(t, err)
}
