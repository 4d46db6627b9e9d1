package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_Gather(t *testing.T) {
	sink := NewSink()
	sink.ConnectionAttempt()
	sink.ConnectionSucceeded()
	sink.MessageReceived(KindTrade)
	sink.MessageReceived(KindTrade)

	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(sink)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			values[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[mf.GetName()] = m.GetGauge().GetValue()
		}
	}

	tests := map[string]float64{
		"recorder_connection_attempts_total": 1,
		"recorder_trade_updates_total":       2,
		"recorder_messages_received_total":   2,
		"recorder_connected":                 1,
	}
	for name, want := range tests {
		if got, ok := values[name]; !ok || got != want {
			t.Errorf("%s = %v (present=%v), want %v", name, got, ok, want)
		}
	}
	if values["recorder_last_data_received_timestamp_seconds"] <= 0 {
		t.Error("last data timestamp not exported")
	}
}
