package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Property names of the ledger mirror database.
const (
	PropDescription   = "Description"
	PropTransactionID = "Transaction ID"
	PropDate          = "Date"
	PropAmount        = "Amount"
	PropCurrency      = "Currency"
	PropDirection     = "Direction"
	PropCategory      = "Category"
	PropFlavor        = "Flavor"
	PropTags          = "Tags"
	PropCounterparty  = "Counterparty"
	PropMedium        = "Medium"
	PropSource        = "Source"
	PropRecordedAt    = "Recorded At"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

func dateProperty(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: &d,
		},
	}
}

// TransactionToNotionProperties converts a ledger record to Notion properties.
// Date is the event timestamp when known, otherwise the recording time.
func TransactionToNotionProperties(tx *domain.Transaction, loc *time.Location) notionapi.Properties {
	title := tx.Description
	if title == "" {
		title = tx.Category
	}

	amount, _ := tx.Amount.Float64()

	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(title),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
		PropCurrency: notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Currency},
		},
		PropDirection: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Direction)},
		},
		PropRecordedAt: dateProperty(tx.RecordedAt),
	}

	if ts, ok := tx.Timestamp(loc); ok {
		props[PropDate] = dateProperty(ts)
	}

	// Category
	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}

	// Flavor
	if tx.Meta.Flavor != "" {
		props[PropFlavor] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Meta.Flavor},
		}
	}

	if len(tx.Tags) > 0 {
		options := make([]notionapi.Option, len(tx.Tags))
		for i, tag := range tx.Tags {
			options[i] = notionapi.Option{Name: tag}
		}
		props[PropTags] = notionapi.MultiSelectProperty{
			MultiSelect: options,
		}
	}

	if tx.Meta.Counterparty != "" {
		props[PropCounterparty] = notionapi.RichTextProperty{
			RichText: richText(tx.Meta.Counterparty),
		}
	}

	if tx.Meta.Medium != "" {
		props[PropMedium] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Meta.Medium},
		}
	}

	if tx.Meta.Source != "" {
		props[PropSource] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Meta.Source},
		}
	}

	return props
}

// extractTransactionID extracts the transaction ID from a Notion page's properties.
// Returns empty string if not found.
func extractTransactionID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropTransactionID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				return rt.RichText[0].PlainText
			}
		}
	}
	return ""
}
