package modals

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/tbracken/groqlet/internal/config"
)

func TestModelSelect(t *testing.T) {
	menu := []config.ModelOption{
		{Label: "Fast", ID: "groq/fast-1"},
		{Label: "Smart", ID: "groq/smart-1"},
	}

	view := ModelSelect(menu, `{"channel_id":"C123"}`)

	if view.Type != slack.VTModal {
		t.Errorf("view type = %q, want modal", view.Type)
	}
	if view.CallbackID != CallbackSelectModel {
		t.Errorf("callback id = %q, want %q", view.CallbackID, CallbackSelectModel)
	}
	if view.PrivateMetadata != `{"channel_id":"C123"}` {
		t.Errorf("private metadata = %q, carried state must pass through untouched", view.PrivateMetadata)
	}
	if len(view.Blocks.BlockSet) != 1 {
		t.Fatalf("blocks = %d, want 1", len(view.Blocks.BlockSet))
	}

	input, ok := view.Blocks.BlockSet[0].(*slack.InputBlock)
	if !ok {
		t.Fatalf("block is %T, want *slack.InputBlock", view.Blocks.BlockSet[0])
	}
	if input.BlockID != ModelBlockID {
		t.Errorf("block id = %q, want %q", input.BlockID, ModelBlockID)
	}

	sel, ok := input.Element.(*slack.SelectBlockElement)
	if !ok {
		t.Fatalf("element is %T, want *slack.SelectBlockElement", input.Element)
	}
	if sel.ActionID != ModelActionID {
		t.Errorf("action id = %q, want %q", sel.ActionID, ModelActionID)
	}
	if sel.Type != slack.OptTypeStatic {
		t.Errorf("select type = %q, want %q", sel.Type, slack.OptTypeStatic)
	}
	if len(sel.Options) != len(menu) {
		t.Fatalf("options = %d, want %d", len(sel.Options), len(menu))
	}
	for i, opt := range sel.Options {
		if opt.Value != menu[i].ID {
			t.Errorf("option %d value = %q, want %q", i, opt.Value, menu[i].ID)
		}
		if opt.Text.Text != menu[i].Label {
			t.Errorf("option %d label = %q, want %q", i, opt.Text.Text, menu[i].Label)
		}
	}
}

func TestQuestion(t *testing.T) {
	view := Question(`{"model":"groq/fast-1","channel_id":"C123"}`)

	if view.CallbackID != CallbackSubmitQuestion {
		t.Errorf("callback id = %q, want %q", view.CallbackID, CallbackSubmitQuestion)
	}
	if view.PrivateMetadata != `{"model":"groq/fast-1","channel_id":"C123"}` {
		t.Errorf("private metadata = %q", view.PrivateMetadata)
	}
	if len(view.Blocks.BlockSet) != 1 {
		t.Fatalf("blocks = %d, want 1", len(view.Blocks.BlockSet))
	}

	input, ok := view.Blocks.BlockSet[0].(*slack.InputBlock)
	if !ok {
		t.Fatalf("block is %T, want *slack.InputBlock", view.Blocks.BlockSet[0])
	}
	if input.BlockID != QuestionBlockID {
		t.Errorf("block id = %q, want %q", input.BlockID, QuestionBlockID)
	}

	text, ok := input.Element.(*slack.PlainTextInputBlockElement)
	if !ok {
		t.Fatalf("element is %T, want *slack.PlainTextInputBlockElement", input.Element)
	}
	if text.ActionID != QuestionActionID {
		t.Errorf("action id = %q, want %q", text.ActionID, QuestionActionID)
	}
	if !text.Multiline {
		t.Error("question input should be multiline")
	}
}

func TestViewsSerializeForTheWire(t *testing.T) {
	raw, err := json.Marshal(ModelSelect(config.DefaultModels(), "meta"))
	if err != nil {
		t.Fatalf("marshal stage-1 view: %v", err)
	}
	for _, want := range []string{`"type":"modal"`, `"static_select"`, `"private_metadata":"meta"`, `"callback_id":"select_model"`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("stage-1 view JSON missing %s:\n%s", want, raw)
		}
	}

	raw, err = json.Marshal(Question("meta"))
	if err != nil {
		t.Fatalf("marshal stage-2 view: %v", err)
	}
	for _, want := range []string{`"plain_text_input"`, `"multiline":true`, `"callback_id":"submit_question"`} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("stage-2 view JSON missing %s:\n%s", want, raw)
		}
	}
}
