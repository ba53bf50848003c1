package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoshop/shopbot/internal/admin"
	"github.com/cryptoshop/shopbot/internal/catalog"
	"github.com/cryptoshop/shopbot/internal/chat"
	"github.com/cryptoshop/shopbot/internal/checkout"
	"github.com/cryptoshop/shopbot/internal/codes"
	"github.com/cryptoshop/shopbot/internal/model"
	"github.com/cryptoshop/shopbot/internal/payment"
	"github.com/cryptoshop/shopbot/internal/repository"
)

const routerAdminID = int64(1000)

type recordingSender struct {
	replies []chat.Reply
}

func (s *recordingSender) Send(ctx context.Context, chatID int64, reply chat.Reply) error {
	s.replies = append(s.replies, reply)
	return nil
}

func (s *recordingSender) Edit(ctx context.Context, chatID, messageID int64, reply chat.Reply) error {
	s.replies = append(s.replies, reply)
	return nil
}

func (s *recordingSender) last(t *testing.T) chat.Reply {
	t.Helper()
	if len(s.replies) == 0 {
		t.Fatal("no reply was delivered")
	}
	return s.replies[len(s.replies)-1]
}

type recordingAcker struct {
	acked []string
}

func (a *recordingAcker) Ack(ctx context.Context, actionID string) error {
	a.acked = append(a.acked, actionID)
	return nil
}

type routerGateway struct{ count int }

func (g *routerGateway) CreateInvoice(ctx context.Context, amount float64, currency, orderRef, description string) (payment.Invoice, error) {
	g.count++
	id := fmt.Sprintf("inv-%d", g.count)
	return payment.Invoice{ID: id, PayURL: "https://pay.example/" + id}, nil
}

func (g *routerGateway) CheckInvoice(ctx context.Context, invoiceID string) (payment.Status, error) {
	return payment.StatusSettled, nil
}

type routerOrders struct{ orders []*model.Order }

func (r *routerOrders) Append(ctx context.Context, order *model.Order) (bool, error) {
	r.orders = append(r.orders, order)
	return true, nil
}

func (r *routerOrders) Recent(ctx context.Context, limit int) ([]model.Order, error) {
	return nil, nil
}
func (r *routerOrders) All(ctx context.Context) ([]model.Order, error) { return nil, nil }
func (r *routerOrders) BuyerIDs(ctx context.Context) ([]int64, error)  { return nil, nil }

type routerDiscounts struct{}

func (routerDiscounts) Upsert(ctx context.Context, code string, percent int, expires *time.Time) error {
	return nil
}

func (routerDiscounts) FindCode(ctx context.Context, code string) (*model.DiscountCode, error) {
	if code == "SAVE10" {
		return &model.DiscountCode{Code: "SAVE10", Percent: 10}, nil
	}
	return nil, nil
}

type routerGiveaways struct {
	active []model.Giveaway
	result repository.EntryResult
}

func (g *routerGiveaways) Active(ctx context.Context, asOf time.Time) ([]model.Giveaway, error) {
	return g.active, nil
}

func (g *routerGiveaways) Enter(ctx context.Context, giveawayID, userID int64, username string) (repository.EntryResult, error) {
	return g.result, nil
}

func (g *routerGiveaways) Create(ctx context.Context, gw *model.Giveaway) error { return nil }
func (g *routerGiveaways) Entries(ctx context.Context, giveawayID int64) ([]model.GiveawayEntry, error) {
	return nil, nil
}
func (g *routerGiveaways) EntryCount(ctx context.Context, giveawayID int64) (int, error) {
	return 0, nil
}

type routerBroadcasts struct{}

func (routerBroadcasts) Log(ctx context.Context, text string, sentBy int64, recipients int) error {
	return nil
}

type routerFixture struct {
	router    *Router
	sender    *recordingSender
	acker     *recordingAcker
	orders    *routerOrders
	giveaways *routerGiveaways
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	cat, err := catalog.New([]catalog.Product{
		{ID: 1, Name: "Sample Product A", Description: "First product", Prices: map[int]float64{1: 10.0, 5: 45.0}},
	})
	if err != nil {
		t.Fatalf("failed to build catalog: %v", err)
	}

	logger := zap.NewNop()
	sender := &recordingSender{}
	acker := &recordingAcker{}
	orders := &routerOrders{}
	giveaways := &routerGiveaways{}

	machine := checkout.NewMachine(cat, codes.NewValidator(routerDiscounts{}),
		&routerGateway{}, orders, "GBP", logger)
	console := admin.NewConsole(routerAdminID, orders, routerDiscounts{}, giveaways,
		routerBroadcasts{}, sender, 0, "GBP", logger)
	router := NewRouter(machine, console, giveaways, cat, sender, acker, "GBP", "@support", logger)

	return &routerFixture{router: router, sender: sender, acker: acker, orders: orders, giveaways: giveaways}
}

func textUpdate(userID int64, text string) chat.Update {
	return chat.Update{UserID: userID, Username: "alice", ChatID: userID, MessageID: 1, Text: text}
}

func actionUpdate(userID int64, action string) chat.Update {
	return chat.Update{UserID: userID, Username: "alice", ChatID: userID, MessageID: 1,
		Action: action, ActionID: "cb-1"}
}

func TestHandle_StartShowsMainMenu(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.Handle(ctx, textUpdate(7, "/start"))
	reply := f.sender.last(t)
	if !strings.Contains(reply.Text, "Welcome") {
		t.Errorf("unexpected reply: %q", reply.Text)
	}
	for _, row := range reply.Buttons {
		for _, b := range row {
			if b.Action == actAdminPanel {
				t.Error("non-admin menu must not show the admin panel")
			}
		}
	}
}

func TestHandle_StartShowsAdminButtonForAdmin(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), textUpdate(routerAdminID, "/start"))
	reply := f.sender.last(t)

	found := false
	for _, row := range reply.Buttons {
		for _, b := range row {
			if b.Action == actAdminPanel {
				found = true
			}
		}
	}
	if !found {
		t.Error("admin menu must show the admin panel button")
	}
}

func TestHandle_PurchaseFlow(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	const userID = int64(7)

	f.router.Handle(ctx, actionUpdate(userID, "menu_shop"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Select a product") {
		t.Fatalf("unexpected shop reply: %q", reply.Text)
	}

	f.router.Handle(ctx, actionUpdate(userID, "select_1"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Select quantity") {
		t.Fatalf("unexpected quantity reply: %q", reply.Text)
	}

	f.router.Handle(ctx, actionUpdate(userID, "qty_1"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Subtotal: 10.00 GBP") {
		t.Fatalf("unexpected cart reply: %q", reply.Text)
	}

	// Checkout without an address is refused before touching the gateway.
	f.router.Handle(ctx, actionUpdate(userID, "checkout"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "enter your address") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}

	f.router.Handle(ctx, actionUpdate(userID, "enter_address"))
	f.router.Handle(ctx, textUpdate(userID, "1 High Street\nLondon"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Enter Address ✓") &&
		!buttonsContain(reply, "Enter Address ✓") {
		t.Fatalf("address confirmation missing: %+v", reply)
	}
	if reply := f.sender.last(t); strings.Contains(reply.Text, "High Street") {
		t.Error("address must never be echoed back")
	}

	f.router.Handle(ctx, actionUpdate(userID, "checkout"))
	invoiceReply := f.sender.last(t)
	if !strings.Contains(invoiceReply.Text, "inv-1") || !strings.Contains(invoiceReply.Text, "https://pay.example/inv-1") {
		t.Fatalf("unexpected invoice reply: %q", invoiceReply.Text)
	}

	f.router.Handle(ctx, actionUpdate(userID, "check_payment"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Payment received") {
		t.Fatalf("unexpected fulfillment reply: %q", reply.Text)
	}
	if len(f.orders.orders) != 1 {
		t.Errorf("expected 1 recorded order, got %d", len(f.orders.orders))
	}

	if len(f.acker.acked) == 0 {
		t.Error("button presses must be acknowledged")
	}
}

func buttonsContain(reply chat.Reply, label string) bool {
	for _, row := range reply.Buttons {
		for _, b := range row {
			if b.Label == label {
				return true
			}
		}
	}
	return false
}

func TestHandle_DiscountViaFreeText(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()
	const userID = int64(7)

	f.router.Handle(ctx, actionUpdate(userID, "select_1"))
	f.router.Handle(ctx, actionUpdate(userID, "qty_1"))
	f.router.Handle(ctx, actionUpdate(userID, "apply_discount"))
	f.router.Handle(ctx, textUpdate(userID, "save10"))

	reply := f.sender.last(t)
	if !strings.Contains(reply.Text, "Subtotal: 9.00 GBP") {
		t.Errorf("discount not applied: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "10% (SAVE10)") {
		t.Errorf("discount line missing: %q", reply.Text)
	}
}

func TestHandle_FreeTextOutsidePromptIgnored(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), textUpdate(7, "hello bot"))
	if len(f.sender.replies) != 0 {
		t.Errorf("stray text must be ignored, got %d replies", len(f.sender.replies))
	}
}

func TestHandle_GiveawayFlow(t *testing.T) {
	f := newRouterFixture(t)
	ctx := context.Background()

	f.giveaways.active = []model.Giveaway{
		{ID: 3, Title: "Summer Prize", Description: "Win big", Prize: "Prize from Summer Prize",
			EndDate: time.Now().AddDate(0, 0, 7), MaxEntries: 100, IsActive: true},
	}

	f.router.Handle(ctx, actionUpdate(7, "menu_giveaways"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Active Giveaways") {
		t.Fatalf("unexpected list reply: %q", reply.Text)
	}

	f.router.Handle(ctx, actionUpdate(7, "giveaway_3"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Summer Prize") {
		t.Fatalf("unexpected detail reply: %q", reply.Text)
	}

	f.giveaways.result = repository.EntryOK
	f.router.Handle(ctx, actionUpdate(7, "enter_giveaway_3"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Successfully entered") {
		t.Errorf("unexpected entry reply: %q", reply.Text)
	}

	f.giveaways.result = repository.EntryAlreadyEntered
	f.router.Handle(ctx, actionUpdate(7, "enter_giveaway_3"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "already entered") {
		t.Errorf("unexpected repeat entry reply: %q", reply.Text)
	}
}

func TestHandle_GiveawayDetailNotFound(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), actionUpdate(7, "giveaway_99"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "Giveaway not found") {
		t.Errorf("unexpected reply: %q", reply.Text)
	}
}

func TestHandle_ReferScreen(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), actionUpdate(42, "menu_refer"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "REF42") {
		t.Errorf("referral code missing: %q", reply.Text)
	}
}

func TestHandle_SupportScreen(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), actionUpdate(7, "menu_support"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "@support") {
		t.Errorf("support handle missing: %q", reply.Text)
	}
}

func TestHandle_AdminCommandDeniedForBuyer(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Handle(context.Background(), textUpdate(7, "/orders"))
	if reply := f.sender.last(t); !strings.Contains(reply.Text, "not authorized") {
		t.Errorf("unexpected reply: %q", reply.Text)
	}
}
