package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/cryptoshop/shopbot/internal/catalog"
	"github.com/cryptoshop/shopbot/internal/chat"
	"github.com/cryptoshop/shopbot/internal/checkout"
	"github.com/cryptoshop/shopbot/internal/model"
	"github.com/cryptoshop/shopbot/internal/repository"
)

const addressTemplate = "Please enter your shipping address in this format:\n" +
	"John Doe\nFlat 2B, 123 Green Street\nLondon\nNW1 5DB\nUnited Kingdom"

func backRow() []chat.Button {
	return chat.Row(
		chat.Button{Label: "Back", Action: actMenuShop},
		chat.Button{Label: "Main Menu", Action: actMainMenu},
	)
}

func mainMenuRow() []chat.Button {
	return chat.Row(chat.Button{Label: "Main Menu", Action: actMainMenu})
}

func renderMainMenu(isAdmin bool) chat.Reply {
	buttons := [][]chat.Button{
		chat.Row(chat.Button{Label: "Shop", Action: actMenuShop}),
		chat.Row(chat.Button{Label: "Giveaways", Action: actMenuGiveaways}),
		chat.Row(chat.Button{Label: "Support", Action: actMenuSupport}),
		chat.Row(chat.Button{Label: "Refer a Friend", Action: actMenuRefer}),
	}
	if isAdmin {
		buttons = append(buttons, chat.Row(chat.Button{Label: "Admin Panel", Action: actAdminPanel}))
	}
	return chat.Reply{Text: "Welcome to the shop!\n\nPlease choose an option:", Buttons: buttons}
}

func renderShop(cat *catalog.Catalog) chat.Reply {
	products := cat.Products()
	buttons := make([][]chat.Button, 0, len(products)+1)
	for _, p := range products {
		buttons = append(buttons, chat.Row(chat.Button{
			Label:  p.Name,
			Action: fmt.Sprintf("%s%d", prefixSelect, p.ID),
		}))
	}
	buttons = append(buttons, mainMenuRow())
	return chat.Reply{Text: "Select a product:", Buttons: buttons}
}

func renderQuantities(p *catalog.Product, currency string) chat.Reply {
	tiers := p.Tiers()
	row := make([]chat.Button, 0, len(tiers))
	for _, qty := range tiers {
		price := p.Prices[qty]
		row = append(row, chat.Button{
			Label:  fmt.Sprintf("%d for %.2f %s", qty, price, currency),
			Action: fmt.Sprintf("%s%d", prefixQty, qty),
		})
	}

	return chat.Reply{
		Text:    fmt.Sprintf("Select quantity for %s:\n%s", p.Name, p.Description),
		Buttons: [][]chat.Button{row, backRow()},
	}
}

// renderCart shows the cart. The address is never echoed back; the button
// label carries a confirmation mark instead.
func renderCart(s checkout.Session, currency string) chat.Reply {
	var b strings.Builder
	fmt.Fprintf(&b, "Cart:\nProduct: %s\nQuantity: %d\nSubtotal: %.2f %s",
		s.Product.Name, s.Quantity, s.Price, currency)
	if s.DiscountPercent > 0 {
		fmt.Fprintf(&b, "\nDiscount: %d%% (%s)", s.DiscountPercent, s.DiscountCode)
	}

	addressLabel := "Enter Address"
	if s.HasAddress() {
		addressLabel = "Enter Address ✓"
	}

	return chat.Reply{
		Text: b.String(),
		Buttons: [][]chat.Button{
			chat.Row(chat.Button{Label: addressLabel, Action: actEnterAddress}),
			chat.Row(chat.Button{Label: "Apply Discount Code", Action: actApplyDiscount}),
			chat.Row(chat.Button{Label: "Checkout", Action: actCheckout}),
			backRow(),
		},
	}
}

func renderInvoice(s checkout.Session, userID int64, currency string) chat.Reply {
	text := fmt.Sprintf("Your User ID: %d\nYour Payment Transaction ID: %s\n"+
		"Please pay %.2f %s using the link below:\n%s\n\nAfter payment, click the button below.",
		userID, s.InvoiceID, s.Price, currency, s.PayURL)

	return chat.Reply{
		Text: text,
		Buttons: [][]chat.Button{
			chat.Row(
				chat.Button{Label: "I've paid", Action: actConfirmPayment},
				chat.Button{Label: "Main Menu", Action: actMainMenu},
			),
		},
	}
}

func renderFulfilled(s checkout.Session) chat.Reply {
	text := fmt.Sprintf("Payment received! Here is your product: %s\n%s\n\nYour order will be shipped to:\n%s",
		s.Product.Name, s.Product.Description, s.Address)
	return chat.Reply{Text: text, Buttons: [][]chat.Button{mainMenuRow()}}
}

func renderSupport(handle string) chat.Reply {
	return chat.Reply{
		Text:    fmt.Sprintf("For support, contact: %s", handle),
		Buttons: [][]chat.Button{mainMenuRow()},
	}
}

func renderRefer(code string) chat.Reply {
	return chat.Reply{
		Text:    fmt.Sprintf("Share this referral code with friends for a discount: %s", code),
		Buttons: [][]chat.Button{mainMenuRow()},
	}
}

func renderGiveawayList(giveaways []model.Giveaway) chat.Reply {
	if len(giveaways) == 0 {
		return chat.Reply{
			Text:    "No active giveaways at the moment. Check back later!",
			Buttons: [][]chat.Button{mainMenuRow()},
		}
	}

	buttons := make([][]chat.Button, 0, len(giveaways)+1)
	for _, g := range giveaways {
		buttons = append(buttons, chat.Row(chat.Button{
			Label:  g.Title,
			Action: fmt.Sprintf("%s%d", prefixGiveaway, g.ID),
		}))
	}
	buttons = append(buttons, mainMenuRow())
	return chat.Reply{Text: "Active Giveaways:", Buttons: buttons}
}

func renderGiveawayDetail(g model.Giveaway, now time.Time) chat.Reply {
	daysLeft := int(g.EndDate.Sub(now).Hours() / 24)
	if daysLeft < 0 {
		daysLeft = 0
	}
	text := fmt.Sprintf("%s\n\n%s\n\nPrize: %s\nEnds in: %d days\nEnd Date: %s",
		g.Title, g.Description, g.Prize, daysLeft, g.EndDate.Format("2006-01-02"))

	return chat.Reply{
		Text: text,
		Buttons: [][]chat.Button{
			chat.Row(chat.Button{Label: "Enter Giveaway", Action: fmt.Sprintf("%s%d", prefixEnter, g.ID)}),
			chat.Row(
				chat.Button{Label: "Back to Giveaways", Action: actMenuGiveaways},
				chat.Button{Label: "Main Menu", Action: actMainMenu},
			),
		},
	}
}

func entryResultText(result repository.EntryResult) string {
	switch result {
	case repository.EntryOK:
		return "Successfully entered the giveaway! Good luck!"
	case repository.EntryAlreadyEntered:
		return "You have already entered this giveaway!"
	case repository.EntryEnded:
		return "This giveaway has ended!"
	case repository.EntryCapacityReached:
		return "This giveaway has reached maximum entries!"
	default:
		return "Giveaway not found or inactive!"
	}
}

func entryResultLabel(result repository.EntryResult) string {
	switch result {
	case repository.EntryOK:
		return "ok"
	case repository.EntryAlreadyEntered:
		return "already_entered"
	case repository.EntryEnded:
		return "ended"
	case repository.EntryCapacityReached:
		return "capacity_reached"
	default:
		return "not_found"
	}
}

func renderEntryResult(result repository.EntryResult) chat.Reply {
	return chat.Reply{
		Text: entryResultText(result),
		Buttons: [][]chat.Button{
			chat.Row(chat.Button{Label: "Back to Giveaways", Action: actMenuGiveaways}),
			mainMenuRow(),
		},
	}
}
