package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	tu "github.com/vnykmshr/stagebridge/internal/testutil"
)

func TestNewRegistryUsesNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)
	r.CuesFired.WithLabelValues("house_lights").Inc()

	families, err := reg.Gather()
	tu.AssertNoError(t, err)
	tu.AssertEqual(t, len(families), 1)
	tu.AssertEqual(t, families[0].GetName(), "stagebridge_cue_fired_total")
}

func TestNewRegistryWithConfig(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: "club",
		Labels:    prometheus.Labels{"rig": "main"},
	}.Build()
	if r == nil {
		t.Fatal("enabled config should build a registry")
	}

	r.EffectSwitches.WithLabelValues("wash").Inc()

	expected := `
# HELP club_effect_switches_total Effect activations
# TYPE club_effect_switches_total counter
club_effect_switches_total{rig="main",switcher="wash"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "club_effect_switches_total")
	tu.AssertNoError(t, err)
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := NewRegistry(prometheus.NewRegistry())
	b := NewRegistry(prometheus.NewRegistry())

	a.SendDrops.WithLabelValues("stage").Inc()

	tu.AssertEqual(t, testutil.ToFloat64(a.SendDrops.WithLabelValues("stage")), 1.0)
	tu.AssertEqual(t, testutil.ToFloat64(b.SendDrops.WithLabelValues("stage")), 0.0)
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default should return the same registry")
	}
}
