package health

import "testing"

func TestRunAllChecksRaisesAndResolvesPLCFault(t *testing.T) {
	connected := false
	reporter := NewReporter()
	checker := NewChecker(Deps{
		PLCConnected: func() bool { return connected },
	}, DefaultThresholds(), reporter)

	report := checker.RunAllChecks()
	if reporter.HasCritical() == false {
		t.Fatalf("expected F001 (critical) to be active while disconnected")
	}
	found := false
	for _, p := range report.Probes {
		if p.Name == "plc_link" {
			found = true
			if p.OK {
				t.Fatalf("expected plc_link probe to fail while disconnected")
			}
		}
	}
	if !found {
		t.Fatalf("expected plc_link probe present in report")
	}

	connected = true
	checker.RunAllChecks()
	if reporter.HasCritical() {
		t.Fatalf("expected F001 resolved once PLC reconnects")
	}
}

func TestRunAllChecksSkipsUnmonitoredProbes(t *testing.T) {
	reporter := NewReporter()
	checker := NewChecker(Deps{}, DefaultThresholds(), reporter)

	report := checker.RunAllChecks()
	for _, p := range report.Probes {
		if !p.OK {
			t.Fatalf("expected all unmonitored probes to report OK, got %+v", p)
		}
	}
}

func TestPanickingProbeDoesNotCrashChecker(t *testing.T) {
	reporter := NewReporter()
	checker := NewChecker(Deps{
		PLCConnected: func() bool { panic("sensor exploded") },
	}, DefaultThresholds(), reporter)

	report := checker.RunAllChecks() // must not panic the test
	for _, p := range report.Probes {
		if p.Name == "plc_link" && p.OK {
			t.Fatalf("expected panicking probe to be reported as failed")
		}
	}
}
