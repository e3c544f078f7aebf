package model

import "testing"

func TestSourceValid(t *testing.T) {
	cases := []struct {
		s    Source
		want bool
	}{
		{SourceUnknown, false},
		{SourceTextAlert, true},
		{SourcePEWS, true},
		{Source(999), false},
	}
	for _, c := range cases {
		if got := c.s.Valid(); got != c.want {
			t.Errorf("Source(%d).Valid() = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if got := KindEarthquake.String(); got != "earthquake" {
		t.Errorf("KindEarthquake.String() = %q", got)
	}
	if got := Kind(999).String(); got != "unknown" {
		t.Errorf("Kind(999).String() = %q, want unknown", got)
	}
}

func TestLevelValid(t *testing.T) {
	if !LevelInfo.Valid() || !LevelCritical.Valid() {
		t.Error("LevelInfo/LevelCritical should be valid")
	}
	if Level(0).Valid() || Level(6).Valid() {
		t.Error("out-of-range levels should be invalid")
	}
}
