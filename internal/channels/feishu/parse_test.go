package feishu

import (
	"encoding/json"
	"testing"
)

func TestParseMessageContent(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		messageType string
		want        string
	}{
		{
			name:        "text",
			raw:         `{"text": "hello world"}`,
			messageType: "text",
			want:        "hello world",
		},
		{
			name:        "text with mention placeholder",
			raw:         `{"text": "@_user_1 please help"}`,
			messageType: "text",
			want:        "@_user_1 please help",
		},
		{
			name:        "image",
			raw:         `{"image_key": "img_xxx"}`,
			messageType: "image",
			want:        "[image]",
		},
		{
			name:        "file",
			raw:         `{"file_name": "report.pdf"}`,
			messageType: "file",
			want:        "[file: report.pdf]",
		},
		{
			name:        "unknown type",
			raw:         `{}`,
			messageType: "sticker",
			want:        "[sticker message]",
		},
		{
			name:        "empty content",
			raw:         "",
			messageType: "text",
			want:        "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMessageContent(tt.raw, tt.messageType); got != tt.want {
				t.Errorf("parseMessageContent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePostContent(t *testing.T) {
	raw := `{
		"zh_cn": {
			"title": "Report",
			"content": [
				[
					{"tag": "text", "text": "See "},
					{"tag": "a", "text": "the doc", "href": "https://example.com"},
					{"tag": "at", "user_name": "Alice"}
				],
				[
					{"tag": "img", "image_key": "img_1"}
				]
			]
		}
	}`
	got := parseMessageContent(raw, "post")
	want := "See [the doc](https://example.com)@Alice\n[image]"
	if got != want {
		t.Errorf("post content = %q, want %q", got, want)
	}
}

func TestResolveMentionPlaceholders(t *testing.T) {
	mentions := []mention{
		{Key: "@_user_1", Name: "Alice"},
		{Key: "@_user_2", Name: "Bob"},
	}
	tests := []struct {
		name string
		text string
		want string
	}{
		{"single mention", "@_user_1 hello", "@Alice hello"},
		{"two mentions", "@_user_1 and @_user_2 sync up", "@Alice and @Bob sync up"},
		{"unresolved placeholder stripped", "@_user_9 hello", "hello"},
		{"no placeholders", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveMentionPlaceholders(tt.text, mentions); got != tt.want {
				t.Errorf("resolveMentionPlaceholders(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolveReceiveIDType(t *testing.T) {
	tests := []struct {
		id, want string
	}{
		{"oc_abc", "chat_id"},
		{"ou_abc", "open_id"},
		{"on_abc", "union_id"},
		{"weird", "chat_id"},
	}
	for _, tt := range tests {
		if got := resolveReceiveIDType(tt.id); got != tt.want {
			t.Errorf("resolveReceiveIDType(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestResolveDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"feishu", "https://open.feishu.cn"},
		{"lark", "https://open.larksuite.com"},
		{"", "https://open.larksuite.com"},
		{"custom.example.com", "https://custom.example.com"},
		{"https://already.example.com", "https://already.example.com"},
	}
	for _, tt := range tests {
		if got := resolveDomain(tt.in); got != tt.want {
			t.Errorf("resolveDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMessageEventDecoding(t *testing.T) {
	payload := `{
		"header": {"event_type": "im.message.receive_v1", "create_time": "1700000000000"},
		"event": {
			"sender": {"sender_id": {"open_id": "ou_sender"}, "sender_type": "user"},
			"message": {
				"message_id": "om_1",
				"chat_id": "oc_1",
				"chat_type": "group",
				"message_type": "text",
				"content": "{\"text\": \"@_user_1 hi\"}",
				"create_time": "1700000000001",
				"mentions": [
					{"key": "@_user_1", "id": {"open_id": "ou_bot"}, "name": "Alice"}
				]
			}
		}
	}`
	var ev MessageEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Header.EventType != "im.message.receive_v1" {
		t.Errorf("event type = %q", ev.Header.EventType)
	}
	if ev.Event.Message.ChatType != "group" || ev.Event.Message.MessageID != "om_1" {
		t.Errorf("message = %+v", ev.Event.Message)
	}
	if len(ev.Event.Message.Mentions) != 1 || ev.Event.Message.Mentions[0].ID.OpenID != "ou_bot" {
		t.Errorf("mentions = %+v", ev.Event.Message.Mentions)
	}

	content := parseMessageContent(ev.Event.Message.Content, ev.Event.Message.MessageType)
	resolved := resolveMentionPlaceholders(content, ev.Event.Message.Mentions)
	if resolved != "@Alice hi" {
		t.Errorf("resolved content = %q", resolved)
	}
}
