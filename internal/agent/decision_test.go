package agent

import "testing"

func TestExtractDecision_PlainJSON(t *testing.T) {
	d := ExtractDecision(`{"action": "chat", "response": "hello"}`)
	if d == nil {
		t.Fatal("expected decision, got nil")
	}
	if d.Action != ActionChat || d.Response != "hello" {
		t.Errorf("decision = %+v", d)
	}
}

func TestExtractDecision_FencedEqualsPlain(t *testing.T) {
	plain := ExtractDecision(`{"action": "tool", "tool_name": "add_todo", "params": {"task": "buy milk"}}`)
	fenced := ExtractDecision("```json\n{\"action\": \"tool\", \"tool_name\": \"add_todo\", \"params\": {\"task\": \"buy milk\"}}\n```")

	if plain == nil || fenced == nil {
		t.Fatalf("plain = %v, fenced = %v", plain, fenced)
	}
	if plain.Action != fenced.Action || plain.ToolName != fenced.ToolName {
		t.Errorf("fenced decision %+v differs from plain %+v", fenced, plain)
	}
	if fenced.Params["task"] != "buy milk" {
		t.Errorf("fenced params = %v", fenced.Params)
	}
}

func TestExtractDecision_EmbeddedInProse(t *testing.T) {
	d := ExtractDecision(`Sure, I'll do that. {"action": "tool", "tool_name": "list_todos", "params": {}} Done.`)
	if d == nil {
		t.Fatal("expected decision, got nil")
	}
	if d.ToolName != "list_todos" {
		t.Errorf("ToolName = %q", d.ToolName)
	}
}

func TestExtractDecision_PlainTextReturnsNil(t *testing.T) {
	if d := ExtractDecision("Just a normal sentence with no JSON."); d != nil {
		t.Errorf("expected nil, got %+v", d)
	}
}

func TestExtractDecision_UnknownActionReturnsNil(t *testing.T) {
	if d := ExtractDecision(`{"action": "dance"}`); d != nil {
		t.Errorf("expected nil for unknown action, got %+v", d)
	}
}

func TestExtractDecision_MalformedJSONReturnsNil(t *testing.T) {
	if d := ExtractDecision(`{"action": "chat", "response": `); d != nil {
		t.Errorf("expected nil for malformed JSON, got %+v", d)
	}
}
