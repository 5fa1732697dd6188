package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NetworkConfig is a station network loadable from a YAML file:
//
//	stations:
//	  - id: triage
//	    role: source
//	    arrival_rate: 2
//	    service_rate: 3
//	  - id: done
//	    role: sink
//	    service_rate: 0
//	routes:
//	  - {from: triage, to: done, probability: 1}
//
// Nil pointer fields mean "not set in YAML".
type NetworkConfig struct {
	Stations []StationConfig `yaml:"stations"`
	Routes   []RouteConfig   `yaml:"routes"`
	Run      RunDefaults     `yaml:"run"`
}

// StationConfig describes one station.
type StationConfig struct {
	ID           string  `yaml:"id"`
	Role         string  `yaml:"role"`
	ArrivalRate  float64 `yaml:"arrival_rate"` // sources only
	ServiceRate  float64 `yaml:"service_rate"`
	Servers      *int    `yaml:"servers"` // defaults to 1
	Distribution string  `yaml:"distribution"`
	Shape        int     `yaml:"shape"`
}

// RouteConfig describes one routing edge.
type RouteConfig struct {
	From        string  `yaml:"from"`
	To          string  `yaml:"to"`
	Probability float64 `yaml:"probability"`
}

// RunDefaults holds optional run parameters; CLI flags override them.
type RunDefaults struct {
	Horizon      *float64 `yaml:"horizon"`
	Seed         *int64   `yaml:"seed"`
	MaxCustomers *int     `yaml:"max_customers"`
}

// LoadNetworkConfig reads and parses a YAML network file.
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading network config: %w", err)
	}
	return ParseNetworkConfig(data)
}

// ParseNetworkConfig parses YAML with strict field checking: typos must cause errors.
func ParseNetworkConfig(data []byte) (*NetworkConfig, error) {
	var cfg NetworkConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing network config: %w", err)
	}
	return &cfg, nil
}

// Build validates the config and returns the topology plus the external arrival rate of
// every source.
func (c *NetworkConfig) Build() (*Topology, map[StationID]float64, error) {
	b := NewTopologyBuilder()
	rates := make(map[StationID]float64)
	for _, sc := range c.Stations {
		servers := 1
		if sc.Servers != nil {
			servers = *sc.Servers
		}
		spec := StationSpec{
			ID:           StationID(sc.ID),
			Role:         Role(sc.Role),
			ServiceRate:  sc.ServiceRate,
			Servers:      servers,
			Distribution: sc.Distribution,
			Shape:        sc.Shape,
		}
		if err := b.AddStationSpec(spec); err != nil {
			return nil, nil, err
		}
		switch {
		case spec.Role == RoleSource:
			rates[spec.ID] = sc.ArrivalRate
		case sc.ArrivalRate != 0:
			return nil, nil, &TopologyError{Station: spec.ID, Reason: "arrival_rate is only allowed on sources"}
		}
	}
	for _, rc := range c.Routes {
		if err := b.AddRoute(StationID(rc.From), StationID(rc.To), rc.Probability); err != nil {
			return nil, nil, err
		}
	}
	topo, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	for _, id := range topo.Sources() {
		if rate := rates[id]; !(rate > 0) {
			return nil, nil, &InvalidRateError{What: fmt.Sprintf("arrival (source %q)", id), Rate: rate}
		}
	}
	return topo, rates, nil
}
