package extract

import (
	"strings"
)

// buildSMSPrompt constructs the extraction instructions including the
// allowed categories, formatted for LLM consumption.
func buildSMSPrompt(categories []string) string {
	var b strings.Builder

	b.WriteString("You extract personal finance transactions from Indian bank and wallet SMS messages.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Read the SMS below and decide whether it reports money moving in or out of the owner's account.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")

	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"is_financial\": boolean (false for OTPs, offers, balance reminders)\n")
	b.WriteString("- \"amount\": number, always positive\n")
	b.WriteString("- \"direction\": \"debit\" or \"credit\"\n")
	b.WriteString("- \"currency\": string ISO code or null\n")
	b.WriteString("- \"description\": string, a short human summary\n")
	b.WriteString("- \"counterparty\": string or null (payee or payer, e.g. a UPI handle)\n")
	b.WriteString("- \"medium\": string or null (upi, card, netbanking, cash)\n")
	b.WriteString("- \"date\": string \"YYYY-MM-DD\" or null\n")
	b.WriteString("- \"time\": string \"HH:MM\" or null\n")
	b.WriteString("- \"category\": string (one of the categories below)\n")
	b.WriteString("- \"flavor\": string or null (essential or discretionary)\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, c := range categories {
		b.WriteString("  - " + c + "\n")
	}
	b.WriteString("\n")

	b.WriteString("Rules:\n")
	b.WriteString("1. Category must be EXACTLY one of the names above.\n")
	b.WriteString("2. If you are unsure, use category \"Uncategorized\".\n")
	b.WriteString("3. If the message is not financial, still return the object with \"is_financial\": false.\n\n")
	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}
