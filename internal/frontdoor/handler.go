package frontdoor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"github.com/tbracken/groqlet/internal/carrier"
	"github.com/tbracken/groqlet/internal/config"
	"github.com/tbracken/groqlet/internal/delivery"
	"github.com/tbracken/groqlet/internal/modals"
	"github.com/tbracken/groqlet/internal/server"
)

// ViewOpener is the slice of the Slack client needed to open the stage-1
// modal.
type ViewOpener interface {
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
}

// Completer produces a whole answer for one question against one model.
type Completer interface {
	Complete(ctx context.Context, model, question string) (string, error)
}

// Deliverer posts answers and failures back into Slack.
type Deliverer interface {
	DeliverAnswer(ctx context.Context, rcpt delivery.Recipient, answer string)
	DeliverError(ctx context.Context, rcpt delivery.Recipient, err error)
}

// Handler is the Slack-facing frontdoor. The slash command and interactivity
// webhooks land here after signature verification; everything it does has to
// fit inside Slack's three-second acknowledgment deadline, so the only slow
// work (the completion) runs detached.
type Handler struct {
	slack     ViewOpener
	completer Completer
	deliverer Deliverer
	models    []config.ModelOption
	logger    *slog.Logger
}

func NewHandler(slackAPI ViewOpener, completer Completer, deliverer Deliverer, models []config.ModelOption, logger *slog.Logger) *Handler {
	return &Handler{
		slack:     slackAPI,
		completer: completer,
		deliverer: deliverer,
		models:    models,
		logger:    logger,
	}
}

// HandleCommand answers the slash command webhook by opening the stage-1
// model-select modal. The webhook response itself is always an empty 200;
// the user sees the modal arrive via views.open, or nothing if the trigger
// already expired.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		server.AddError(r.Context(), err)
		w.WriteHeader(http.StatusOK)
		return
	}

	server.AddLogField(r.Context(), "command", cmd.Command)
	server.AddLogField(r.Context(), "user_id", cmd.UserID)

	h.openModelSelect(r.Context(), cmd.TriggerID, cmd.ChannelID)
	w.WriteHeader(http.StatusOK)
}

// HandleInteraction answers the interactivity webhook: global shortcuts and
// both modal submissions arrive here as a form-encoded "payload" field.
// Payloads that aren't part of the flow get a bare 200 and no outbound
// calls.
func (h *Handler) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	payload := r.FormValue("payload")
	if payload == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &callback); err != nil {
		server.AddError(r.Context(), err)
		w.WriteHeader(http.StatusOK)
		return
	}

	server.AddLogField(r.Context(), "interaction_type", string(callback.Type))
	server.AddLogField(r.Context(), "user_id", callback.User.ID)

	switch callback.Type {
	case slack.InteractionTypeShortcut:
		// Global shortcuts have no channel to carry.
		h.openModelSelect(r.Context(), callback.TriggerID, "")
		w.WriteHeader(http.StatusOK)

	case slack.InteractionTypeViewSubmission:
		h.handleSubmission(w, r, &callback)

	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleSubmission(w http.ResponseWriter, r *http.Request, callback *slack.InteractionCallback) {
	server.AddLogField(r.Context(), "callback_id", callback.View.CallbackID)

	switch callback.View.CallbackID {
	case modals.CallbackSelectModel:
		h.pushQuestionModal(w, r, callback)
	case modals.CallbackSubmitQuestion:
		h.acceptQuestion(w, r, callback)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// openModelSelect starts the flow: channel (possibly empty) goes into the
// carried state, and the stage-1 modal opens against the trigger token.
func (h *Handler) openModelSelect(ctx context.Context, triggerID, channelID string) {
	meta := carrier.State{ChannelID: channelID}.Encode()
	view := modals.ModelSelect(h.models, meta)
	if _, err := h.slack.OpenViewContext(ctx, triggerID, view); err != nil {
		h.logger.Error("views.open failed",
			slog.String("request_id", server.GetRequestID(ctx)),
			slog.String("error", err.Error()))
		server.AddError(ctx, err)
	}
}

// pushQuestionModal answers the stage-1 submission by pushing the stage-2
// modal onto the view stack, with the chosen model folded into the carried
// state. Responding inline avoids a second views.open round trip and the
// trigger-token freshness that would come with it.
func (h *Handler) pushQuestionModal(w http.ResponseWriter, r *http.Request, callback *slack.InteractionCallback) {
	model := blockValue(callback, modals.ModelBlockID, modals.ModelActionID).SelectedOption.Value
	if model == "" {
		server.AddError(r.Context(), errors.New("stage-1 submission without a model selection"))
		w.WriteHeader(http.StatusOK)
		return
	}

	st, err := carrier.Decode(callback.View.PrivateMetadata)
	if err != nil {
		// Stage-1 metadata only carries the channel. Losing it degrades
		// delivery to ephemeral, it does not sink the flow.
		server.AddError(r.Context(), err)
		st = carrier.State{}
	}
	st.Model = model

	server.AddLogField(r.Context(), "model", model)

	view := modals.Question(st.Encode())
	writeJSON(w, slack.NewPushViewSubmissionResponse(&view))
}

// acceptQuestion answers the stage-2 submission. The modal stack clears
// immediately; completion and delivery run detached, because the webhook
// has a three-second deadline and the model does not.
func (h *Handler) acceptQuestion(w http.ResponseWriter, r *http.Request, callback *slack.InteractionCallback) {
	rcpt := delivery.Recipient{UserID: callback.User.ID}

	st, err := carrier.Decode(callback.View.PrivateMetadata)
	if err == nil && st.Model == "" {
		err = fmt.Errorf("%w: no model carried", carrier.ErrCorruptState)
	}
	if err != nil {
		server.AddError(r.Context(), err)
		h.detach(r.Context(), func(ctx context.Context) {
			h.deliverer.DeliverError(ctx, rcpt, err)
		})
		writeJSON(w, slack.NewClearViewSubmissionResponse())
		return
	}
	rcpt.ChannelID = st.ChannelID

	question := blockValue(callback, modals.QuestionBlockID, modals.QuestionActionID).Value
	server.AddLogField(r.Context(), "model", st.Model)

	h.detach(r.Context(), func(ctx context.Context) {
		h.completeAndDeliver(ctx, st.Model, question, rcpt)
	})

	writeJSON(w, slack.NewClearViewSubmissionResponse())
}

// completeAndDeliver is the detached tail of the flow: one completion, one
// delivery, every failure reported through the deliverer.
func (h *Handler) completeAndDeliver(ctx context.Context, model, question string, rcpt delivery.Recipient) {
	start := time.Now()
	answer, err := h.completer.Complete(ctx, model, question)
	if err != nil {
		h.logger.Error("completion failed",
			slog.String("request_id", server.GetRequestID(ctx)),
			slog.String("model", model),
			slog.String("error", err.Error()))
		h.deliverer.DeliverError(ctx, rcpt, err)
		return
	}
	h.logger.Info("completion delivered",
		slog.String("request_id", server.GetRequestID(ctx)),
		slog.String("model", model),
		slog.Duration("duration", time.Since(start)),
		slog.Int("answer_chars", len(answer)))
	h.deliverer.DeliverAnswer(ctx, rcpt, answer)
}

// detach runs fn on a context that survives the webhook response. Request
// values (the request id) carry over; the deadline does not. The worker
// owns its failures, including panics.
func (h *Handler) detach(reqCtx context.Context, fn func(context.Context)) {
	ctx := context.WithoutCancel(reqCtx)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("background worker panicked",
					slog.String("request_id", server.GetRequestID(ctx)),
					slog.Any("panic", rec))
			}
		}()
		fn(ctx)
	}()
}

// blockValue digs one input's submitted state out of a view submission,
// returning the zero value when the path is absent.
func blockValue(callback *slack.InteractionCallback, blockID, actionID string) slack.BlockAction {
	state := callback.View.State
	if state == nil {
		return slack.BlockAction{}
	}
	return state.Values[blockID][actionID]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
