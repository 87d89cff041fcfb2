package modals

import (
	"github.com/slack-go/slack"

	"github.com/tbracken/groqlet/internal/config"
)

// Callback and block identifiers shared between view construction and the
// interaction handlers. Slack echoes them back on every submission.
const (
	CallbackSelectModel    = "select_model"
	CallbackSubmitQuestion = "submit_question"

	ModelBlockID  = "model_block"
	ModelActionID = "model_action"

	QuestionBlockID  = "question_block"
	QuestionActionID = "question_action"
)

// ModelSelect builds the stage-1 modal: a static select over the configured
// model menu. metadata rides along in private_metadata untouched.
func ModelSelect(models []config.ModelOption, metadata string) slack.ModalViewRequest {
	options := make([]*slack.OptionBlockObject, 0, len(models))
	for _, m := range models {
		options = append(options, slack.NewOptionBlockObject(
			m.ID,
			slack.NewTextBlockObject(slack.PlainTextType, m.Label, false, false),
			nil,
		))
	}

	selectElement := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic,
		slack.NewTextBlockObject(slack.PlainTextType, "Choose a model", false, false),
		ModelActionID,
		options...,
	)

	modelBlock := slack.NewInputBlock(
		ModelBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Model", false, false),
		nil,
		selectElement,
	)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Select Model", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Next", false, false),
		CallbackID:      CallbackSelectModel,
		PrivateMetadata: metadata,
		Blocks:          slack.Blocks{BlockSet: []slack.Block{modelBlock}},
	}
}

// Question builds the stage-2 modal with a multiline question input.
func Question(metadata string) slack.ModalViewRequest {
	questionInput := slack.NewPlainTextInputBlockElement(nil, QuestionActionID)
	questionInput.Multiline = true

	questionBlock := slack.NewInputBlock(
		QuestionBlockID,
		slack.NewTextBlockObject(slack.PlainTextType, "Your question", false, false),
		nil,
		questionInput,
	)

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		Title:           slack.NewTextBlockObject(slack.PlainTextType, "Ask a Question", false, false),
		Submit:          slack.NewTextBlockObject(slack.PlainTextType, "Submit", false, false),
		CallbackID:      CallbackSubmitQuestion,
		PrivateMetadata: metadata,
		Blocks:          slack.Blocks{BlockSet: []slack.Block{questionBlock}},
	}
}
