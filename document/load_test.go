package document

import "testing"

func TestParseRejectsMissingFlowsAndChannels(t *testing.T) {
	_, err := Parse([]byte(`
version: "2.0"
metadata:
  id: empty_doc
`))
	if err == nil {
		t.Fatal("expected an error for a document with neither flows nor channels")
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte(`
version: "1.0"
metadata:
  id: old_doc
flows:
  main:
    actions:
      - type: log
        message: hi
`))
	if err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
}

func TestParseAcceptsMinimalFlowDocument(t *testing.T) {
	doc, err := Parse([]byte(`
version: "2.0"
metadata:
  id: minimal
flows:
  main:
    actions:
      - type: log
        message: hi
`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if doc.Metadata.ID != "minimal" {
		t.Errorf("Metadata.ID = %q, want minimal", doc.Metadata.ID)
	}
	flow, ok := doc.Flows["main"]
	if !ok || len(flow.Actions) != 1 {
		t.Fatalf("expected one action in flow main, got %+v", flow)
	}
	if flow.Actions[0].Type != ActionLog {
		t.Errorf("Actions[0].Type = %q, want %q", flow.Actions[0].Type, ActionLog)
	}
}

func TestParseAcceptsChannelOnlyDocument(t *testing.T) {
	doc, err := Parse([]byte(`
version: "2.0"
metadata:
  id: channels_only
channels:
  a:
    actions:
      - type: emit
        signal: x
`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(doc.Flows) != 0 || len(doc.Channels) != 1 {
		t.Errorf("expected zero flows and one channel, got %d/%d", len(doc.Flows), len(doc.Channels))
	}
}

func TestIsBuiltin(t *testing.T) {
	for _, name := range []string{ActionSet, ActionCall, ActionGoto, ActionCond, ActionForEach, ActionRepeat, ActionLog, ActionEmit, ActionWaitFor} {
		if !IsBuiltin(name) {
			t.Errorf("IsBuiltin(%q) = false, want true", name)
		}
	}
	if IsBuiltin("attack") {
		t.Errorf("IsBuiltin(attack) = true, want false (domain action)")
	}
}
