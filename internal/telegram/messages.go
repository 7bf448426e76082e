package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"billbot/internal/bill"
	"billbot/internal/intake"
	"billbot/internal/mail"
	"billbot/internal/scanning"
)

const welcomeMessage = `🧾 Welcome to BillBot!

I help you manage your bills automatically. Here's what I can do:

📷 Send a bill photo - I'll read it and file it for you
📋 /list - see your recent bills
📊 /export 2026-01-01 2026-01-31 - download an Excel report
📧 /email you@example.com 2026-01-01 2026-01-31 - email the report

Just send me a bill image to get started!`

const maxSummaryItems = 5

// draftSummary renders the parsed draft the way it is presented before the
// description prompt.
func draftSummary(draft *scanning.Draft) string {
	var b strings.Builder
	b.WriteString("✅ Bill parsed!\n\n")
	b.WriteString(fmt.Sprintf("🏪 Shop: %s\n", orDash(draft.ShopName)))
	b.WriteString(fmt.Sprintf("🏷️ Type: %s\n", orDash(draft.ShopCategory)))
	b.WriteString(fmt.Sprintf("📍 Location: %s\n", orDash(draft.Location)))
	b.WriteString(fmt.Sprintf("💰 Total: %s\n", money(draft.Currency, draft.Total)))
	if draft.Tax != nil {
		b.WriteString(fmt.Sprintf("💳 Tax: %s\n", money(draft.Currency, draft.Tax)))
	}

	if len(draft.Items) > 0 {
		b.WriteString("\n📋 Items:\n")
		for i, item := range draft.Items {
			if i == maxSummaryItems {
				b.WriteString(fmt.Sprintf("  ... and %d more items\n", len(draft.Items)-maxSummaryItems))
				break
			}
			b.WriteString(fmt.Sprintf("  • %s x%s - %s\n",
				item.Name, item.Quantity.String(), item.UnitPrice.StringFixed(2)))
		}
	}

	b.WriteString("\n📝 How would you like to add a description?")
	return b.String()
}

func savedMessage(rec *bill.Record) string {
	desc := rec.Description
	if desc == "" {
		desc = "none"
	}
	return fmt.Sprintf(`✅ Bill saved!

🏪 Shop: %s
💰 Total: %s
📝 Description: %s

Use /export to download your bills as Excel.`,
		orDash(rec.ShopName), money(rec.Currency, rec.Total), desc)
}

func listMessage(records []*bill.Record) string {
	if len(records) == 0 {
		return "📭 No bills yet. Upload a bill image to get started!"
	}

	var b strings.Builder
	b.WriteString("📋 Your recent bills:\n\n")
	for i, rec := range records {
		desc := rec.Description
		if desc == "" {
			desc = "no description"
		}
		b.WriteString(fmt.Sprintf("%d. %s - %s\n   📅 %s\n   📝 %s\n\n",
			i+1, orDash(rec.ShopName), money(rec.Currency, rec.Total),
			rec.CreatedAt.Format("2006-01-02"), desc))
	}
	b.WriteString("Use /export to download all bills as Excel!")
	return b.String()
}

// scanFailureMessage maps intake failures to short user-facing text with a
// retry suggestion; internals never leak.
func scanFailureMessage(err error) string {
	if errors.Is(err, intake.ErrNoActiveIntake) {
		return "That took too long and the bill expired. Please send the photo again."
	}
	kind, ok := scanning.KindOf(err)
	if !ok {
		return "❌ Something went wrong processing your bill. Please send the photo again."
	}
	switch kind {
	case scanning.ErrUnreadable:
		return "❌ I couldn't read that bill. Try a sharper, well-lit photo of the full receipt."
	case scanning.ErrUnreachable:
		return "❌ The bill reader is unreachable right now. Please send the photo again in a moment."
	default:
		return "❌ I couldn't make sense of that bill. Please send the photo again."
	}
}

func deliveryFailureMessage(err error) string {
	kind, ok := mail.DeliveryKindOf(err)
	if !ok {
		return "❌ I couldn't send the email. Please try again."
	}
	switch kind {
	case mail.TooLarge:
		return "❌ The report and images are too large to email. Try a narrower date range."
	case mail.Rejected:
		return "❌ The mail server rejected the message. Check the address and try again."
	default:
		return "❌ The mail server is unreachable. Please try again later."
	}
}

func emailBody(startDate, endDate string) string {
	return fmt.Sprintf(`Hello!

Please find attached your bill report from %s to %s.

This email contains:
- Excel report with all bills and summary
- Individual bill images

Best regards,
BillBot`, startDate, endDate)
}

func orDash(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func money(currency string, amount *decimal.Decimal) string {
	if amount == nil {
		return "N/A"
	}
	if currency == "" {
		return amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}
