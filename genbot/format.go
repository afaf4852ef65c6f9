package genbot

import (
	"fmt"
	"strings"

	"github.com/alovak/cardgen-bot/internal/access"
	"github.com/alovak/cardgen-bot/internal/batch"
)

const (
	textStart = "🎉 Bot is ready to use!\n\n💳 Generate CCs with:\n/gen 515462"
	textUsage = "⚠️ Please enter a valid BIN (6+ digits)\nExample: /gen 515462"

	textPendingFirst  = "⏳ Your access request has been sent to the admin. You will be notified once it is approved."
	textPendingAgain  = "⏳ Your access request is still pending admin approval."
	textBanned        = "🚫 You are banned from using this bot."
	textTryAgain      = "⚠️ Something went wrong, please try again later."
	textApproved      = "✅ Your access has been approved. Send /gen <bin> to start."
	textBannedNotice  = "🚫 Your access has been revoked."
	textNoCandidates  = "⚠️ No cards found. Use the format number|MM|YYYY|cvv"
	textMchkUsage     = "⚠️ Reply to a message containing cards with /mchk"
	textAdminIDUsage  = "⚠️ Usage: %s <user id>"
	textJoinChannel   = "📢 Please join %s to use this bot, then try again."
	textMembershipErr = "⚠️ Could not verify channel membership, please try again later."
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func formatGeneration(g *Generation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "💳 *Generated Credit Cards for BIN: %s*\n\n", g.Prefix)
	sb.WriteString("📋 *Tap any card below to copy:*\n\n")
	for i, c := range g.Cards {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("`" + c.String() + "`")
	}
	rec := g.Record
	fmt.Fprintf(&sb, "\n\n🏦 *Bank:* %s\n", escape(rec.Bank))
	fmt.Fprintf(&sb, "🌎 *Country:* %s %s\n", escape(rec.Country), rec.CountryEmoji)
	fmt.Fprintf(&sb, "🔖 *Card Scheme:* %s\n", escape(rec.Scheme))
	fmt.Fprintf(&sb, "🔖 *Card Type:* %s\n", escape(rec.CardType))
	fmt.Fprintf(&sb, "💳 *Card Level:* %s", escape(rec.Level))
	if rec.BankPhone != "" {
		fmt.Fprintf(&sb, "\n📞 *Bank Phone:* %s", escape(rec.BankPhone))
	}
	if rec.BankURL != "" {
		fmt.Fprintf(&sb, "\n🔗 *Bank URL:* %s", escape(rec.BankURL))
	}
	return sb.String()
}

func formatReport(title string, report batch.Report) string {
	summary := fmt.Sprintf("✅ %d  ❌ %d  ⌛ %d  ⚠️ %d",
		report.Count(batch.StatusValid),
		report.Count(batch.StatusInvalid),
		report.Count(batch.StatusExpired),
		report.Count(batch.StatusError),
	)
	if n := report.Count(batch.StatusUnknown); n > 0 {
		summary += fmt.Sprintf("  ❔ %d", n)
	}
	return fmt.Sprintf("*%s*\n\n%s\n\n%s", title, escape(report.String()), summary)
}

func formatUsers(doc access.Document) string {
	var sb strings.Builder
	sb.WriteString("👥 *Users*\n")
	section := func(name string, ids []int64) {
		fmt.Fprintf(&sb, "\n*%s* (%d)", name, len(ids))
		for _, id := range ids {
			fmt.Fprintf(&sb, "\n`%d`", id)
		}
	}
	section("Approved", doc.Approved)
	section("Pending", doc.Pending)
	section("Banned", doc.Banned)
	return sb.String()
}

func formatAccessRequest(r access.Requester, alreadyPending bool) string {
	title := "🆕 *New access request*"
	if alreadyPending {
		title = "🔁 *Access request (already pending)*"
	}
	name := r.FirstName
	if r.Username != "" {
		name = fmt.Sprintf("%s (@%s)", name, r.Username)
	}
	return fmt.Sprintf("%s\n\n👤 %s\n🆔 `%d`", title, escape(strings.TrimSpace(name)), r.ID)
}
