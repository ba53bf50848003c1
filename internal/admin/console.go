// Package admin implements the administrative console, gated to a single
// configured privileged user: order reporting, discount code issuance,
// giveaway management, broadcast messaging and CSV export.
package admin

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cryptoshop/shopbot/internal/chat"
	"github.com/cryptoshop/shopbot/internal/metrics"
	"github.com/cryptoshop/shopbot/internal/model"
)

// OrderStore is the order-log slice the console reads
type OrderStore interface {
	Recent(ctx context.Context, limit int) ([]model.Order, error)
	All(ctx context.Context) ([]model.Order, error)
	BuyerIDs(ctx context.Context) ([]int64, error)
}

// DiscountStore issues discount codes
type DiscountStore interface {
	Upsert(ctx context.Context, code string, percent int, expires *time.Time) error
}

// GiveawayStore manages giveaway campaigns
type GiveawayStore interface {
	Create(ctx context.Context, g *model.Giveaway) error
	Active(ctx context.Context, asOf time.Time) ([]model.Giveaway, error)
	Entries(ctx context.Context, giveawayID int64) ([]model.GiveawayEntry, error)
	EntryCount(ctx context.Context, giveawayID int64) (int, error)
}

// BroadcastStore logs sent broadcasts
type BroadcastStore interface {
	Log(ctx context.Context, text string, sentBy int64, recipients int) error
}

// deniedText is the one fixed denial; it leaks nothing about what the
// command would have done.
const deniedText = "You are not authorized to use this command."

const throttledText = "Slow down. Try again in a moment."

// Console is the admin surface
type Console struct {
	adminID    int64
	orders     OrderStore
	discounts  DiscountStore
	giveaways  GiveawayStore
	broadcasts BroadcastStore
	sender     chat.Sender
	limiter    *rate.Limiter
	currency   string
	logger     *zap.Logger
	now        func() time.Time

	mu                sync.Mutex
	awaitingBroadcast bool
}

// NewConsole creates the admin console. Admin commands are throttled to one
// per interval.
func NewConsole(adminID int64, orders OrderStore, discounts DiscountStore, giveaways GiveawayStore, broadcasts BroadcastStore, sender chat.Sender, interval time.Duration, currency string, logger *zap.Logger) *Console {
	return &Console{
		adminID:    adminID,
		orders:     orders,
		discounts:  discounts,
		giveaways:  giveaways,
		broadcasts: broadcasts,
		sender:     sender,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		currency:   currency,
		logger:     logger,
		now:        time.Now,
	}
}

// IsAdmin reports whether the user is the configured administrator
func (c *Console) IsAdmin(userID int64) bool {
	return userID == c.adminID
}

// Deny is the fixed reply for any non-admin touching the admin surface
func (c *Console) Deny() chat.Reply {
	return chat.Reply{Text: deniedText}
}

// Command dispatches one admin slash command. Unauthorized callers get the
// fixed denial; authorized calls beyond the rate limit get a throttle
// message.
func (c *Console) Command(ctx context.Context, userID int64, name string, args []string) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}
	if !c.limiter.Allow() {
		return chat.Reply{Text: throttledText}
	}

	switch name {
	case "orders":
		return c.recentOrders(ctx)
	case "addcode":
		return c.addCode(ctx, args)
	case "create_giveaway":
		return c.createGiveaway(ctx, args)
	case "list_giveaways":
		return c.listGiveaways(ctx)
	case "view_entries":
		return c.viewEntries(ctx, args)
	case "export_orders":
		return c.exportOrders(ctx)
	case "status":
		return c.status(ctx)
	}
	return chat.Reply{Text: "Unknown admin command."}
}

func (c *Console) recentOrders(ctx context.Context) chat.Reply {
	orders, err := c.orders.Recent(ctx, 10)
	if err != nil {
		c.logger.Error("failed to list orders", zap.Error(err))
		return chat.Reply{Text: "Could not load orders. Try again."}
	}
	if len(orders) == 0 {
		return chat.Reply{Text: "No orders found."}
	}

	var b strings.Builder
	b.WriteString("Recent Orders:\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "\nTime: %s\nUser ID: %d\nProduct: %s (ID: %d)\nQuantity: %d\nPrice: %.2f %s\nInvoice ID: %s\n",
			o.Timestamp.Format(time.RFC3339), o.UserID, o.ProductName, o.ProductID,
			o.Quantity, o.Price, c.currency, o.InvoiceID)
		if o.DiscountCode != nil {
			fmt.Fprintf(&b, "Discount: %s (%d%%)\n", *o.DiscountCode, o.DiscountPercent)
		}
		if o.ReferredBy != nil {
			fmt.Fprintf(&b, "Referred by: %d\n", *o.ReferredBy)
		}
		b.WriteString("---")
	}
	return chat.Reply{Text: b.String()}
}

func (c *Console) addCode(ctx context.Context, args []string) chat.Reply {
	const usage = "Usage: /addcode CODE PERCENT YYYY-MM-DD (expiry)"
	if len(args) < 3 {
		return chat.Reply{Text: usage}
	}

	code := args[0]
	percent, err := strconv.Atoi(args[1])
	if err != nil || percent < 0 || percent > 100 {
		return chat.Reply{Text: "Invalid percent. " + usage}
	}
	expires, err := time.Parse("2006-01-02", args[2])
	if err != nil {
		return chat.Reply{Text: "Invalid date format. " + usage}
	}

	if err := c.discounts.Upsert(ctx, code, percent, &expires); err != nil {
		c.logger.Error("failed to store discount code", zap.Error(err))
		return chat.Reply{Text: "Could not store the code. Try again."}
	}

	return chat.Reply{Text: fmt.Sprintf("Discount code %s for %d%% off until %s added.",
		strings.ToUpper(code), percent, args[2])}
}

func (c *Console) createGiveaway(ctx context.Context, args []string) chat.Reply {
	const usage = "Usage: /create_giveaway TITLE DESCRIPTION END_DATE [MAX_ENTRIES]\n" +
		"Use underscores instead of spaces for title and description."
	if len(args) < 3 {
		return chat.Reply{Text: usage}
	}

	title := strings.ReplaceAll(args[0], "_", " ")
	description := strings.ReplaceAll(args[1], "_", " ")
	endDate, err := time.Parse("2006-01-02", args[2])
	if err != nil {
		return chat.Reply{Text: "Invalid date format. Use YYYY-MM-DD."}
	}

	maxEntries := 100
	if len(args) > 3 {
		if n, err := strconv.Atoi(args[3]); err == nil && n > 0 {
			maxEntries = n
		}
	}

	g := &model.Giveaway{
		Title:       title,
		Description: description,
		Prize:       "Prize from " + title,
		StartDate:   c.now(),
		EndDate:     endDate,
		MaxEntries:  maxEntries,
	}
	if err := c.giveaways.Create(ctx, g); err != nil {
		c.logger.Error("failed to create giveaway", zap.Error(err))
		return chat.Reply{Text: "Could not create the giveaway. Try again."}
	}

	return chat.Reply{Text: fmt.Sprintf("Giveaway '%s' created with ID: %d", title, g.ID)}
}

func (c *Console) listGiveaways(ctx context.Context) chat.Reply {
	giveaways, err := c.giveaways.Active(ctx, c.now())
	if err != nil {
		c.logger.Error("failed to list giveaways", zap.Error(err))
		return chat.Reply{Text: "Could not load giveaways. Try again."}
	}
	if len(giveaways) == 0 {
		return chat.Reply{Text: "No active giveaways."}
	}

	var b strings.Builder
	b.WriteString("Active Giveaways:\n\n")
	for _, g := range giveaways {
		count, err := c.giveaways.EntryCount(ctx, g.ID)
		if err != nil {
			c.logger.Error("failed to count entries", zap.Int64("giveaway_id", g.ID), zap.Error(err))
		}
		fmt.Fprintf(&b, "ID: %d\nTitle: %s\nPrize: %s\nEntries: %d/%d\nEnd Date: %s\n---\n",
			g.ID, g.Title, g.Prize, count, g.MaxEntries, g.EndDate.Format("2006-01-02"))
	}
	return chat.Reply{Text: b.String()}
}

func (c *Console) viewEntries(ctx context.Context, args []string) chat.Reply {
	if len(args) < 1 {
		return chat.Reply{Text: "Usage: /view_entries GIVEAWAY_ID"}
	}
	giveawayID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return chat.Reply{Text: "Invalid giveaway ID."}
	}
	return c.EntriesReply(ctx, giveawayID)
}

// EntriesReply renders the entry list for one giveaway, numbered so a
// winner can be picked at random from it.
func (c *Console) EntriesReply(ctx context.Context, giveawayID int64) chat.Reply {
	entries, err := c.giveaways.Entries(ctx, giveawayID)
	if err != nil {
		c.logger.Error("failed to list entries", zap.Int64("giveaway_id", giveawayID), zap.Error(err))
		return chat.Reply{Text: "Could not load entries. Try again."}
	}
	if len(entries) == 0 {
		return chat.Reply{Text: fmt.Sprintf("No entries found for giveaway %d.", giveawayID)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Entries for Giveaway %d:\n\n", giveawayID)
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. @%s (user %d)\n   Date: %s\n",
			i+1, e.Username, e.UserID, e.EnteredAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "\nTotal Entries: %d", len(entries))
	return chat.Reply{Text: b.String()}
}

func (c *Console) exportOrders(ctx context.Context) chat.Reply {
	orders, err := c.orders.All(ctx)
	if err != nil {
		c.logger.Error("failed to load orders for export", zap.Error(err))
		return chat.Reply{Text: "Could not load orders. Try again."}
	}
	if len(orders) == 0 {
		return chat.Reply{Text: "No orders to export."}
	}

	filename := fmt.Sprintf("orders_export_%s.csv", c.now().Format("20060102_150405"))
	if err := writeOrdersCSV(filename, orders); err != nil {
		c.logger.Error("failed to write export", zap.String("file", filename), zap.Error(err))
		return chat.Reply{Text: "Export failed. Try again."}
	}

	return chat.Reply{Text: fmt.Sprintf("Orders exported to %s", filename)}
}

func writeOrdersCSV(filename string, orders []model.Order) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"Order ID", "Date", "User ID", "Product ID", "Product", "Quantity",
		"Price", "Invoice ID", "Discount Code", "Discount %", "Referred By", "Address"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for _, o := range orders {
		discountCode := ""
		if o.DiscountCode != nil {
			discountCode = *o.DiscountCode
		}
		referredBy := ""
		if o.ReferredBy != nil {
			referredBy = strconv.FormatInt(*o.ReferredBy, 10)
		}
		record := []string{
			strconv.FormatInt(o.ID, 10),
			o.Timestamp.Format(time.RFC3339),
			strconv.FormatInt(o.UserID, 10),
			strconv.Itoa(o.ProductID),
			o.ProductName,
			strconv.Itoa(o.Quantity),
			strconv.FormatFloat(o.Price, 'f', 2, 64),
			o.InvoiceID,
			discountCode,
			strconv.Itoa(o.DiscountPercent),
			referredBy,
			o.Address,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}

func (c *Console) status(ctx context.Context) chat.Reply {
	orders, err := c.orders.Recent(ctx, 1000)
	if err != nil {
		c.logger.Error("failed to load orders for status", zap.Error(err))
		return chat.Reply{Text: "Could not load status. Try again."}
	}
	giveaways, err := c.giveaways.Active(ctx, c.now())
	if err != nil {
		c.logger.Error("failed to load giveaways for status", zap.Error(err))
		return chat.Reply{Text: "Could not load status. Try again."}
	}

	revenue := 0.0
	for _, o := range orders {
		revenue += o.Price
	}
	totalEntries := 0
	for _, g := range giveaways {
		count, err := c.giveaways.EntryCount(ctx, g.ID)
		if err != nil {
			continue
		}
		totalEntries += count
	}

	text := fmt.Sprintf("Bot Status Report\n\nTotal Orders: %d\nTotal Revenue: %.2f %s\nActive Giveaways: %d\nTotal Giveaway Entries: %d\nReport Generated: %s",
		len(orders), revenue, c.currency, len(giveaways), totalEntries,
		c.now().Format("2006-01-02 15:04:05"))
	return chat.Reply{Text: text}
}

// AwaitBroadcast arms the admin-scoped broadcast flag and returns the
// prompt. The flag is separate from any buyer cart session.
func (c *Console) AwaitBroadcast(userID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	c.mu.Lock()
	c.awaitingBroadcast = true
	c.mu.Unlock()

	return chat.Reply{
		Text: "Broadcast Message\n\nSend your broadcast text in the next message.\nRecipients: every user who has placed an order.",
		Buttons: [][]chat.Button{
			chat.Row(chat.Button{Label: "Cancel", Action: "admin_panel"}),
		},
	}
}

// AwaitingBroadcast reports whether the next admin text is a broadcast
func (c *Console) AwaitingBroadcast(userID int64) bool {
	if !c.IsAdmin(userID) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitingBroadcast
}

// Broadcast sends text to every distinct buyer. Delivery is best effort:
// per-recipient failures are counted, never fatal to the batch.
func (c *Console) Broadcast(ctx context.Context, userID int64, text string) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	c.mu.Lock()
	c.awaitingBroadcast = false
	c.mu.Unlock()

	buyers, err := c.orders.BuyerIDs(ctx)
	if err != nil {
		c.logger.Error("failed to load broadcast recipients", zap.Error(err))
		return chat.Reply{Text: "Could not load recipients. Try again."}
	}
	if len(buyers) == 0 {
		return chat.Reply{Text: "No users found to broadcast to."}
	}

	sent, failed := 0, 0
	for _, buyer := range buyers {
		if err := c.sender.Send(ctx, buyer, chat.Reply{Text: text}); err != nil {
			failed++
			metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
			c.logger.Warn("broadcast delivery failed", zap.Int64("user_id", buyer), zap.Error(err))
			continue
		}
		sent++
		metrics.BroadcastDeliveries.WithLabelValues("sent").Inc()
	}

	if err := c.broadcasts.Log(ctx, text, userID, sent); err != nil {
		c.logger.Error("failed to log broadcast", zap.Error(err))
	}

	return chat.Reply{Text: fmt.Sprintf("Broadcast complete.\nSent: %d\nFailed: %d\nTotal recipients: %d",
		sent, failed, len(buyers))}
}

// Panel renders the admin panel menu
func (c *Console) Panel(userID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	return chat.Reply{
		Text: "Admin Panel\n\nSelect an option:",
		Buttons: [][]chat.Button{
			chat.Row(chat.Button{Label: "View Orders", Action: "admin_orders"}),
			chat.Row(chat.Button{Label: "Manage Giveaways", Action: "admin_giveaways"}),
			chat.Row(chat.Button{Label: "Add Discount Code", Action: "admin_discount"}),
			chat.Row(chat.Button{Label: "Bot Statistics", Action: "admin_stats"}),
			chat.Row(chat.Button{Label: "Main Menu", Action: "main_menu"}),
		},
	}
}

// OrdersPanel renders recent orders with a back button
func (c *Console) OrdersPanel(ctx context.Context, userID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	reply := c.recentOrders(ctx)
	reply.Buttons = [][]chat.Button{
		chat.Row(chat.Button{Label: "Back to Admin Panel", Action: "admin_panel"}),
	}
	return reply
}

// GiveawaysPanel renders active giveaways with management buttons
func (c *Console) GiveawaysPanel(ctx context.Context, userID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	reply := c.listGiveaways(ctx)
	if reply.Text == "No active giveaways." {
		reply.Text = "No Active Giveaways\n\nUse /create_giveaway to create one."
	}
	reply.Buttons = [][]chat.Button{
		chat.Row(chat.Button{Label: "View Entries", Action: "admin_entries"}),
		chat.Row(chat.Button{Label: "Broadcast Message", Action: "admin_broadcast"}),
		chat.Row(chat.Button{Label: "Back to Admin Panel", Action: "admin_panel"}),
	}
	return reply
}

// DiscountPanel shows the code issuance usage hint
func (c *Console) DiscountPanel(userID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	return chat.Reply{
		Text: "Add Discount Code\n\nUse the command:\n/addcode CODE PERCENT YYYY-MM-DD\n\nExample:\n/addcode SUMMER20 20 2026-08-31",
		Buttons: [][]chat.Button{
			chat.Row(chat.Button{Label: "Back to Admin Panel", Action: "admin_panel"}),
		},
	}
}

// StatsPanel renders the statistics screen
func (c *Console) StatsPanel(ctx context.Context, userID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	reply := c.status(ctx)
	reply.Buttons = [][]chat.Button{
		chat.Row(chat.Button{Label: "Back to Admin Panel", Action: "admin_panel"}),
	}
	return reply
}

// EntriesMenu lists active giveaways as buttons to inspect their entries
func (c *Console) EntriesMenu(ctx context.Context, userID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	giveaways, err := c.giveaways.Active(ctx, c.now())
	if err != nil {
		c.logger.Error("failed to list giveaways", zap.Error(err))
		return chat.Reply{Text: "Could not load giveaways. Try again."}
	}
	if len(giveaways) == 0 {
		return chat.Reply{
			Text: "No active giveaways found.",
			Buttons: [][]chat.Button{
				chat.Row(chat.Button{Label: "Back to Admin Panel", Action: "admin_panel"}),
			},
		}
	}

	buttons := make([][]chat.Button, 0, len(giveaways)+1)
	for _, g := range giveaways {
		count, _ := c.giveaways.EntryCount(ctx, g.ID)
		buttons = append(buttons, chat.Row(chat.Button{
			Label:  fmt.Sprintf("%s (%d entries)", g.Title, count),
			Action: fmt.Sprintf("view_entries_%d", g.ID),
		}))
	}
	buttons = append(buttons, chat.Row(chat.Button{Label: "Back to Admin Panel", Action: "admin_panel"}))

	return chat.Reply{Text: "Select Giveaway to View Entries:", Buttons: buttons}
}

// ViewEntriesPanel renders one giveaway's entries with a back button
func (c *Console) ViewEntriesPanel(ctx context.Context, userID, giveawayID int64) chat.Reply {
	if !c.IsAdmin(userID) {
		return c.Deny()
	}

	reply := c.EntriesReply(ctx, giveawayID)
	reply.Buttons = [][]chat.Button{
		chat.Row(chat.Button{Label: "Back", Action: "admin_entries"}),
	}
	return reply
}
