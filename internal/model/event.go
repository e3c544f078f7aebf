// Package model holds the shared types that flow between adapters, the
// event log, the bus, and the HTTP surface.
package model

import (
	"encoding/json"
	"time"
)

// Source identifies the adapter that produced an event.
type Source int

const (
	SourceUnknown Source = iota
	SourceTextAlert
	SourceQuakeSnapshot
	SourceWildfire
	SourcePEWS
	SourceWeather
)

var sourceNames = map[Source]string{
	SourceUnknown:       "unknown",
	SourceTextAlert:     "text_alert",
	SourceQuakeSnapshot: "quake_snapshot",
	SourceWildfire:      "wildfire",
	SourcePEWS:          "pews",
	SourceWeather:       "weather",
}

func (s Source) String() string {
	if n, ok := sourceNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Source) Valid() bool {
	_, ok := sourceNames[s]
	return ok && s != SourceUnknown
}

// Kind classifies an event by disaster category, covering the categories
// that the bundled adapters emit plus the broader set a text-alert feed
// routinely carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindEarthquake
	KindEarthquakeEarlyWarning
	KindWildfire
	KindFlood
	KindWindstorm
	KindHeavyRain
	KindHeavySnow
	KindHeatWave
	KindColdWave
	KindTextAlert
	KindTsunami
	KindTyphoon
	KindLandslide
	KindDrought
	KindYellowDust
	KindAirQuality
	KindRedTide
	KindVolcanicActivity
	KindAvalanche
	KindStormSurge
	KindLightning
	KindHail
	KindDenseFog
	KindIndustrialAccident
	KindHazmatSpill
	KindGasLeak
	KindExplosion
	KindBuildingCollapse
	KindPowerOutage
	KindWaterSupplyFailure
	KindTelecomOutage
	KindTransportationAccident
	KindMarineAccident
	KindAviationAccident
	KindInfectiousDisease
	KindCivilDefense
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindEarthquake:             "earthquake",
	KindEarthquakeEarlyWarning: "earthquake_early_warning",
	KindWildfire:               "wildfire",
	KindFlood:                  "flood",
	KindWindstorm:              "windstorm",
	KindHeavyRain:              "heavy_rain",
	KindHeavySnow:              "heavy_snow",
	KindHeatWave:               "heat_wave",
	KindColdWave:               "cold_wave",
	KindTextAlert:              "text_alert",
	KindTsunami:                "tsunami",
	KindTyphoon:                "typhoon",
	KindLandslide:              "landslide",
	KindDrought:                "drought",
	KindYellowDust:             "yellow_dust",
	KindAirQuality:             "air_quality",
	KindRedTide:                "red_tide",
	KindVolcanicActivity:       "volcanic_activity",
	KindAvalanche:              "avalanche",
	KindStormSurge:             "storm_surge",
	KindLightning:              "lightning",
	KindHail:                   "hail",
	KindDenseFog:               "dense_fog",
	KindIndustrialAccident:     "industrial_accident",
	KindHazmatSpill:            "hazmat_spill",
	KindGasLeak:                "gas_leak",
	KindExplosion:              "explosion",
	KindBuildingCollapse:       "building_collapse",
	KindPowerOutage:            "power_outage",
	KindWaterSupplyFailure:     "water_supply_failure",
	KindTelecomOutage:          "telecom_outage",
	KindTransportationAccident: "transportation_accident",
	KindMarineAccident:         "marine_accident",
	KindAviationAccident:       "aviation_accident",
	KindInfectiousDisease:      "infectious_disease",
	KindCivilDefense:           "civil_defense",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Level is the 1..5 severity enum (Info, Minor, Moderate, Severe, Critical).
type Level int

const (
	LevelInfo Level = iota + 1
	LevelMinor
	LevelModerate
	LevelSevere
	LevelCritical
)

func (l Level) Valid() bool {
	return l >= LevelInfo && l <= LevelCritical
}

// Event is the immutable, append-only record persisted by the Event Log.
type Event struct {
	ID         string          `json:"id"`
	Source     Source          `json:"source"`
	Kind       Kind            `json:"kind"`
	Title      string          `json:"title"`
	Body       *string         `json:"body"`
	FetchedAt  time.Time       `json:"fetched_at"`
	OccurredAt *time.Time      `json:"occurred_at"`
	RegionText *string         `json:"region_text"`
	Level      Level           `json:"level"`
	Payload    json.RawMessage `json:"payload"`
}

// DraftEvent is what an adapter's Run returns: everything about an event
// except the fields the ingest worker assigns (id, source, fetched_at).
type DraftEvent struct {
	Kind       Kind
	Title      string
	Body       *string
	OccurredAt *time.Time
	RegionText *string
	Level      Level
	Payload    json.RawMessage
}

// Checkpoint is the per-source resumable state row.
type Checkpoint struct {
	SourceID  Source
	State     *string
	UpdatedAt time.Time
}

// ListFilter narrows Event Log list queries.
type ListFilter struct {
	Limit  int
	Kind   *Kind
	Source *Source
}
