package bot

import (
	"strconv"
	"strings"
)

// eventKind closes the set of button actions the bot understands. Action
// tokens are decoded here, once, at the boundary; everything downstream
// switches on the kind instead of re-parsing strings.
type eventKind int

const (
	evUnknown eventKind = iota
	evMainMenu
	evMenuShop
	evMenuGiveaways
	evMenuSupport
	evMenuRefer
	evSelectProduct
	evSelectQuantity
	evEnterAddress
	evApplyDiscount
	evCheckout
	evBackToCart
	evConfirmPayment
	evGiveawayView
	evGiveawayEnter
	evAdminPanel
	evAdminOrders
	evAdminGiveaways
	evAdminDiscount
	evAdminStats
	evAdminBroadcast
	evAdminEntries
	evAdminViewEntries
)

// event is one decoded button press; id carries the numeric payload for
// the kinds that have one (product id, quantity, giveaway id).
type event struct {
	kind eventKind
	id   int64
}

// Action tokens, shared between the renderers and the decoder.
const (
	actMainMenu       = "main_menu"
	actMenuShop       = "menu_shop"
	actMenuGiveaways  = "menu_giveaways"
	actMenuSupport    = "menu_support"
	actMenuRefer      = "menu_refer"
	actEnterAddress   = "enter_address"
	actApplyDiscount  = "apply_discount"
	actCheckout       = "checkout"
	actBackToCart     = "back_to_cart"
	actConfirmPayment = "check_payment"
	actAdminPanel     = "admin_panel"
	actAdminOrders    = "admin_orders"
	actAdminGiveaways = "admin_giveaways"
	actAdminDiscount  = "admin_discount"
	actAdminStats     = "admin_stats"
	actAdminBroadcast = "admin_broadcast"
	actAdminEntries   = "admin_entries"

	prefixSelect      = "select_"
	prefixQty         = "qty_"
	prefixGiveaway    = "giveaway_"
	prefixEnter       = "enter_giveaway_"
	prefixViewEntries = "view_entries_"
)

func decodeAction(action string) event {
	switch action {
	case actMainMenu:
		return event{kind: evMainMenu}
	case actMenuShop:
		return event{kind: evMenuShop}
	case actMenuGiveaways:
		return event{kind: evMenuGiveaways}
	case actMenuSupport:
		return event{kind: evMenuSupport}
	case actMenuRefer:
		return event{kind: evMenuRefer}
	case actEnterAddress:
		return event{kind: evEnterAddress}
	case actApplyDiscount:
		return event{kind: evApplyDiscount}
	case actCheckout:
		return event{kind: evCheckout}
	case actBackToCart:
		return event{kind: evBackToCart}
	case actConfirmPayment:
		return event{kind: evConfirmPayment}
	case actAdminPanel:
		return event{kind: evAdminPanel}
	case actAdminOrders:
		return event{kind: evAdminOrders}
	case actAdminGiveaways:
		return event{kind: evAdminGiveaways}
	case actAdminDiscount:
		return event{kind: evAdminDiscount}
	case actAdminStats:
		return event{kind: evAdminStats}
	case actAdminBroadcast:
		return event{kind: evAdminBroadcast}
	case actAdminEntries:
		return event{kind: evAdminEntries}
	}

	for _, p := range []struct {
		prefix string
		kind   eventKind
	}{
		// enter_giveaway_ must precede giveaway_ (shared stem).
		{prefixEnter, evGiveawayEnter},
		{prefixGiveaway, evGiveawayView},
		{prefixSelect, evSelectProduct},
		{prefixQty, evSelectQuantity},
		{prefixViewEntries, evAdminViewEntries},
	} {
		if rest, ok := strings.CutPrefix(action, p.prefix); ok {
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return event{kind: evUnknown}
			}
			return event{kind: p.kind, id: id}
		}
	}

	return event{kind: evUnknown}
}

// parseCommand splits a slash command into its name and arguments;
// ok is false for non-command text.
func parseCommand(text string) (name string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name = strings.TrimPrefix(fields[0], "/")
	// Strip a bot mention suffix ("/orders@shopbot").
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return name, fields[1:], true
}
