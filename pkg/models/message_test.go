package models

import "testing"

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"system ok", Message{Role: RoleSystem, Content: "you are an agent"}, false},
		{"user ok", Message{Role: RoleUser, Content: "hello"}, false},
		{"assistant with content", Message{Role: RoleAssistant, Content: "hi"}, false},
		{"assistant with tool calls", Message{Role: RoleAssistant, ToolCalls: []ToolCallProposal{{ID: "1", Name: "web_search"}}}, false},
		{"assistant empty", Message{Role: RoleAssistant}, true},
		{"tool with id and content", Message{Role: RoleTool, ToolCallID: "1", Content: "result"}, false},
		{"tool missing id", Message{Role: RoleTool, Content: "result"}, true},
		{"tool missing content", Message{Role: RoleTool, ToolCallID: "1"}, true},
		{"unknown role", Message{Role: "bogus", Content: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessage_HasToolCalls(t *testing.T) {
	if (Message{}).HasToolCalls() {
		t.Error("empty message should not have tool calls")
	}
	m := Message{ToolCalls: []ToolCallProposal{{ID: "1"}}}
	if !m.HasToolCalls() {
		t.Error("message with proposals should report HasToolCalls")
	}
}
