package notify

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Notification types.
const (
	TypeLowStock      = "low_stock"
	TypeCheckReminder = "check_reminder"
)

// DefaultShortcut is the Apple Shortcut triggered by notification links.
const DefaultShortcut = "InventoryAlert"

// LowStock carries the figures quoted in a low-stock alert.
type LowStock struct {
	Name      string
	Current   float64
	Minimum   float64
	Unit      string
	Suggested float64
}

// FormatLowStockMessage renders the SMS body for a low-stock alert. Languages
// starting with "pt" get Portuguese text, anything else English.
func FormatLowStockMessage(ls LowStock, lang string) string {
	if strings.HasPrefix(strings.ToLower(lang), "pt") {
		return fmt.Sprintf("⚠️ AInventário: %s está acabando!\nAtual: %s %s\nMínimo: %s %s\nSugestão de compra: %s %s",
			ls.Name,
			formatQuantity(ls.Current), ls.Unit,
			formatQuantity(ls.Minimum), ls.Unit,
			formatQuantity(ls.Suggested), ls.Unit)
	}
	return fmt.Sprintf("⚠️ AInventory: %s is running low!\nCurrent: %s %s\nMinimum: %s %s\nSuggested purchase: %s %s",
		ls.Name,
		formatQuantity(ls.Current), ls.Unit,
		formatQuantity(ls.Minimum), ls.Unit,
		formatQuantity(ls.Suggested), ls.Unit)
}

// formatQuantity prints quantities with at least one decimal place.
func formatQuantity(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Notification is a pending reminder surfaced to the user.
type Notification struct {
	ID          string    `json:"id,omitempty"`
	Type        string    `json:"type"`
	Urgency     string    `json:"urgency"`
	ItemID      string    `json:"item_id,omitempty"`
	ItemName    string    `json:"item_name"`
	Message     string    `json:"message"`
	ShortcutURL string    `json:"shortcut_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// ShortcutURL builds the link that runs an Apple Shortcut with the message as
// text input.
func ShortcutURL(shortcut, itemName, message string) string {
	if shortcut == "" {
		shortcut = DefaultShortcut
	}
	text := fmt.Sprintf("🏠 Inventário: %s\n%s", itemName, message)
	return fmt.Sprintf("shortcuts://run-shortcut?name=%s&input=text&text=%s",
		escape(shortcut), escape(text))
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// LowStockNotification builds the reminder for an item below its minimum.
// daysRemaining is nil when no usage information is available.
func LowStockNotification(shortcut, itemName string, current float64, unit string, daysRemaining *float64, now time.Time) Notification {
	var urgency, message string
	switch {
	case daysRemaining != nil && *daysRemaining <= 2:
		urgency = "🔴 CRÍTICO"
		message = fmt.Sprintf("Acabando! Restam apenas %s %s", formatQuantity(current), unit)
	case daysRemaining != nil && *daysRemaining <= 5:
		urgency = "🟡 ATENÇÃO"
		message = fmt.Sprintf("Estoque baixo: %s %s (~%d dias)", formatQuantity(current), unit, int(*daysRemaining))
	default:
		urgency = "📝 LEMBRETE"
		message = fmt.Sprintf("Verificar estoque: %s %s", formatQuantity(current), unit)
	}

	if daysRemaining != nil && *daysRemaining != 0 {
		message += fmt.Sprintf("\nComprar em: %d dias", int(*daysRemaining))
	}

	return Notification{
		Type:        TypeLowStock,
		Urgency:     urgency,
		ItemName:    itemName,
		Message:     message,
		ShortcutURL: ShortcutURL(shortcut, itemName, urgency+": "+message),
		CreatedAt:   now.UTC(),
	}
}

// CheckReminderNotification asks the user to confirm an item's quantity.
// lastCheck is the zero time when the item has never been observed.
func CheckReminderNotification(shortcut, itemName string, lastCheck, now time.Time) Notification {
	message := "Nunca verificamos esse item. Qual a quantidade atual?"
	if !lastCheck.IsZero() {
		days := int(now.Sub(lastCheck).Hours() / 24)
		message = fmt.Sprintf("Faz %d dias que não verificamos. Qual a quantidade atual?", days)
	}

	return Notification{
		Type:        TypeCheckReminder,
		Urgency:     "📋 VERIFICAR",
		ItemName:    itemName,
		Message:     message,
		ShortcutURL: ShortcutURL(shortcut, itemName, message),
		CreatedAt:   now.UTC(),
	}
}
