// Package bot decodes inbound chat updates into events, drives the
// checkout machine and the admin console, and renders the next prompt.
package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoshop/shopbot/internal/admin"
	"github.com/cryptoshop/shopbot/internal/catalog"
	"github.com/cryptoshop/shopbot/internal/chat"
	"github.com/cryptoshop/shopbot/internal/checkout"
	"github.com/cryptoshop/shopbot/internal/codes"
	"github.com/cryptoshop/shopbot/internal/metrics"
	"github.com/cryptoshop/shopbot/internal/model"
	"github.com/cryptoshop/shopbot/internal/repository"
)

// GiveawayStore is the giveaway surface buyers interact with
type GiveawayStore interface {
	Active(ctx context.Context, asOf time.Time) ([]model.Giveaway, error)
	Enter(ctx context.Context, giveawayID, userID int64, username string) (repository.EntryResult, error)
}

// Acker acknowledges handled button presses; nil when the transport does
// not need acknowledgements.
type Acker interface {
	Ack(ctx context.Context, actionID string) error
}

// Router handles one inbound update at a time. Every error is turned into
// a rendered message here; nothing propagates as a fault that could take
// down handling for other users.
type Router struct {
	machine       *checkout.Machine
	console       *admin.Console
	giveaways     GiveawayStore
	catalog       *catalog.Catalog
	sender        chat.Sender
	acker         Acker
	currency      string
	supportHandle string
	logger        *zap.Logger
	now           func() time.Time
}

// NewRouter creates the update router
func NewRouter(machine *checkout.Machine, console *admin.Console, giveaways GiveawayStore, cat *catalog.Catalog, sender chat.Sender, acker Acker, currency, supportHandle string, logger *zap.Logger) *Router {
	return &Router{
		machine:       machine,
		console:       console,
		giveaways:     giveaways,
		catalog:       cat,
		sender:        sender,
		acker:         acker,
		currency:      currency,
		supportHandle: supportHandle,
		logger:        logger,
		now:           time.Now,
	}
}

// Handle processes one update to completion
func (r *Router) Handle(ctx context.Context, u chat.Update) {
	if u.IsAction() {
		if r.acker != nil && u.ActionID != "" {
			if err := r.acker.Ack(ctx, u.ActionID); err != nil {
				r.logger.Debug("failed to ack action", zap.Error(err))
			}
		}
		reply := r.handleAction(ctx, u)
		r.respond(ctx, u, reply)
		return
	}

	if name, args, ok := parseCommand(u.Text); ok {
		if reply, handled := r.handleCommand(ctx, u, name, args); handled {
			r.send(ctx, u.ChatID, reply)
		}
		return
	}

	if reply, handled := r.handleText(ctx, u); handled {
		r.send(ctx, u.ChatID, reply)
	}
}

func (r *Router) handleCommand(ctx context.Context, u chat.Update, name string, args []string) (chat.Reply, bool) {
	switch name {
	case "start":
		r.machine.Reset(u.UserID)
		return renderMainMenu(r.console.IsAdmin(u.UserID)), true
	case "orders", "addcode", "create_giveaway", "list_giveaways",
		"view_entries", "export_orders", "status", "bot_status":
		if name == "bot_status" {
			name = "status"
		}
		return r.console.Command(ctx, u.UserID, name, args), true
	}
	return chat.Reply{}, false
}

func (r *Router) handleText(ctx context.Context, u chat.Update) (chat.Reply, bool) {
	if r.console.AwaitingBroadcast(u.UserID) {
		return r.console.Broadcast(ctx, u.UserID, u.Text), true
	}

	switch r.machine.Stage(u.UserID) {
	case checkout.StageAwaitingCode:
		session, err := r.machine.SubmitCodeOrSkip(ctx, u.UserID, u.Text)
		if err != nil {
			return r.errorReply(err), true
		}
		return renderCart(session, r.currency), true
	case checkout.StageAwaitingAddress:
		session, err := r.machine.SubmitAddress(u.UserID, u.Text)
		if err != nil {
			return r.errorReply(err), true
		}
		return renderCart(session, r.currency), true
	}

	// Free text outside any prompt is ignored.
	return chat.Reply{}, false
}

func (r *Router) handleAction(ctx context.Context, u chat.Update) chat.Reply {
	ev := decodeAction(u.Action)

	switch ev.kind {
	case evMainMenu:
		r.machine.Reset(u.UserID)
		return renderMainMenu(r.console.IsAdmin(u.UserID))

	case evMenuShop:
		return renderShop(r.catalog)

	case evMenuSupport:
		return renderSupport(r.supportHandle)

	case evMenuRefer:
		return renderRefer(codes.ReferralCode(u.UserID))

	case evSelectProduct:
		session, err := r.machine.SelectProduct(u.UserID, int(ev.id))
		if err != nil {
			return r.errorReply(err)
		}
		return renderQuantities(session.Product, r.currency)

	case evSelectQuantity:
		session, err := r.machine.SelectQuantity(u.UserID, int(ev.id))
		if err != nil {
			return r.errorReply(err)
		}
		return renderCart(session, r.currency)

	case evEnterAddress:
		if err := r.machine.AwaitAddress(u.UserID); err != nil {
			return r.errorReply(err)
		}
		return chat.Reply{Text: addressTemplate}

	case evApplyDiscount:
		if err := r.machine.AwaitCode(u.UserID); err != nil {
			return r.errorReply(err)
		}
		return chat.Reply{Text: "Please enter your discount or referral code, or type 'skip' to continue."}

	case evBackToCart:
		session := r.machine.Snapshot(u.UserID)
		if session.Product == nil || session.Quantity == 0 {
			return renderMainMenu(r.console.IsAdmin(u.UserID))
		}
		return renderCart(session, r.currency)

	case evCheckout:
		session, err := r.machine.RequestCheckout(ctx, u.UserID)
		if err != nil {
			return r.errorReply(err)
		}
		return renderInvoice(session, u.UserID, r.currency)

	case evConfirmPayment:
		session, err := r.machine.ConfirmPayment(ctx, u.UserID)
		if err != nil {
			return r.errorReply(err)
		}
		return renderFulfilled(session)

	case evMenuGiveaways:
		giveaways, err := r.giveaways.Active(ctx, r.now())
		if err != nil {
			r.logger.Error("failed to list giveaways", zap.Error(err))
			return r.errorReply(err)
		}
		return renderGiveawayList(giveaways)

	case evGiveawayView:
		return r.giveawayDetail(ctx, ev.id)

	case evGiveawayEnter:
		result, err := r.giveaways.Enter(ctx, ev.id, u.UserID, u.Username)
		if err != nil {
			r.logger.Error("giveaway entry failed",
				zap.Int64("giveaway_id", ev.id), zap.Int64("user_id", u.UserID), zap.Error(err))
			return r.errorReply(err)
		}
		metrics.GiveawayEntries.WithLabelValues(entryResultLabel(result)).Inc()
		return renderEntryResult(result)

	case evAdminPanel:
		return r.console.Panel(u.UserID)
	case evAdminOrders:
		return r.console.OrdersPanel(ctx, u.UserID)
	case evAdminGiveaways:
		return r.console.GiveawaysPanel(ctx, u.UserID)
	case evAdminDiscount:
		return r.console.DiscountPanel(u.UserID)
	case evAdminStats:
		return r.console.StatsPanel(ctx, u.UserID)
	case evAdminBroadcast:
		return r.console.AwaitBroadcast(u.UserID)
	case evAdminEntries:
		return r.console.EntriesMenu(ctx, u.UserID)
	case evAdminViewEntries:
		return r.console.ViewEntriesPanel(ctx, u.UserID, ev.id)
	}

	r.logger.Debug("unknown action", zap.String("action", u.Action))
	return renderMainMenu(r.console.IsAdmin(u.UserID))
}

func (r *Router) giveawayDetail(ctx context.Context, giveawayID int64) chat.Reply {
	giveaways, err := r.giveaways.Active(ctx, r.now())
	if err != nil {
		r.logger.Error("failed to list giveaways", zap.Error(err))
		return r.errorReply(err)
	}
	for _, g := range giveaways {
		if g.ID == giveawayID {
			return renderGiveawayDetail(g, r.now())
		}
	}
	return chat.Reply{Text: "Giveaway not found!", Buttons: [][]chat.Button{mainMenuRow()}}
}

// errorReply maps the error taxonomy to user-facing messages. Unrecognized
// errors (store write failures and the like) get a generic retry message;
// session state was left unchanged by the failed operation.
func (r *Router) errorReply(err error) chat.Reply {
	switch {
	case errors.Is(err, checkout.ErrProductNotFound):
		return chat.Reply{Text: "Product not found.", Buttons: [][]chat.Button{mainMenuRow()}}
	case errors.Is(err, checkout.ErrInvalidQuantity):
		return chat.Reply{Text: "That quantity is not available. Please pick one of the listed options."}
	case errors.Is(err, checkout.ErrNoActiveCart):
		return chat.Reply{Text: "No product selected.", Buttons: [][]chat.Button{mainMenuRow()}}
	case errors.Is(err, checkout.ErrMissingAddress):
		return chat.Reply{
			Text:    "Please enter your address before checking out.",
			Buttons: [][]chat.Button{chat.Row(chat.Button{Label: "Back to Cart", Action: actBackToCart})},
		}
	case errors.Is(err, checkout.ErrGatewayUnavailable):
		return chat.Reply{Text: "Failed to reach the payment processor. Please try again later."}
	case errors.Is(err, checkout.ErrPaymentPending):
		return chat.Reply{
			Text: "Payment not detected yet. Please wait a minute and try again.",
			Buttons: [][]chat.Button{
				chat.Row(
					chat.Button{Label: "I've paid", Action: actConfirmPayment},
					chat.Button{Label: "Main Menu", Action: actMainMenu},
				),
			},
		}
	}
	return chat.Reply{Text: "Something went wrong. Please try again."}
}

func (r *Router) respond(ctx context.Context, u chat.Update, reply chat.Reply) {
	if reply.Text == "" {
		return
	}
	if err := r.sender.Edit(ctx, u.ChatID, u.MessageID, reply); err != nil {
		r.logger.Debug("edit failed, sending new message", zap.Error(err))
		r.send(ctx, u.ChatID, reply)
	}
}

func (r *Router) send(ctx context.Context, chatID int64, reply chat.Reply) {
	if reply.Text == "" {
		return
	}
	if err := r.sender.Send(ctx, chatID, reply); err != nil {
		r.logger.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
