package llm

import "testing"

func TestResponseText(t *testing.T) {
	r := &Response{Kind: DirectText, Text: "hello"}
	if r.ResponseText() != "hello" {
		t.Errorf("expected 'hello', got '%s'", r.ResponseText())
	}

	r = &Response{Kind: StructuredOutput, Structured: []byte(`{"a":1}`)}
	if r.ResponseText() != `{"a":1}` {
		t.Errorf("expected raw json, got '%s'", r.ResponseText())
	}

	r = &Response{Kind: ToolError, ErrMsg: "boom"}
	if r.ResponseText() != "boom" {
		t.Errorf("expected error message, got '%s'", r.ResponseText())
	}

	var nilResp *Response
	if nilResp.ResponseText() != "" {
		t.Error("expected empty text for nil response")
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"Here you go:\n```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`},
		{`prefix {"s":"with } brace"} suffix`, `{"s":"with } brace"}`},
		{`{"s":"esc \" quote"}`, `{"s":"esc \" quote"}`},
		{"no json here", ""},
		{`{"unterminated":`, ""},
	}
	for _, c := range cases {
		if got := extractJSON(c.in); got != c.want {
			t.Errorf("extractJSON(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
