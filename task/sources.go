package task

import (
	"fmt"

	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/elprisetjustnu"
	"github.com/angas/spotprice-go/nordpool"
	"github.com/angas/spotprice-go/types"
)

// NewSources builds the configured price sources, first one is primary.
func NewSources(cnfg config.AppConfigEnergyPrice) ([]types.PriceSource, error) {
	sources := make([]types.PriceSource, 0, len(cnfg.Sources))
	for _, name := range cnfg.Sources {
		switch name {
		case nordpool.Name:
			sources = append(sources, nordpool.New(cnfg.Area, cnfg.Currency, cnfg.Endpoint, cnfg.GetRequestTimeout()))
		case elprisetjustnu.Name:
			sources = append(sources, elprisetjustnu.New(cnfg.Area, cnfg.Currency, cnfg.GetRequestTimeout()))
		default:
			return nil, fmt.Errorf("unknown energy price source %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no energy price sources configured")
	}
	return sources, nil
}
