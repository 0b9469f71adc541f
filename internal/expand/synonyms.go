package expand

// Synonyms maps query terms to document-vocabulary equivalents. The table
// bridges the gap between how people ask and how documents phrase things,
// covering both English and German corpora.
//
// Design principles:
//  1. Map user vocabulary to document vocabulary, not vice versa.
//  2. Keep lists short; the expander caps substitutions per variant.
//  3. Cross-language pairs only where usage overlaps in mixed corpora.
var Synonyms = map[string][]string{
	// Documents and structure
	"document": {"file", "paper", "text", "dokument"},
	"section":  {"chapter", "part", "paragraph", "abschnitt"},
	"summary":  {"overview", "abstract", "zusammenfassung"},
	"page":     {"sheet", "seite"},

	// Asking and finding
	"find":    {"locate", "search", "lookup", "finden"},
	"search":  {"find", "query", "lookup", "suche"},
	"show":    {"display", "list", "zeige"},
	"meaning": {"definition", "sense", "bedeutung"},

	// Change over time
	"increase": {"rise", "growth", "gain", "anstieg"},
	"decrease": {"decline", "drop", "reduction", "rückgang"},
	"change":   {"modification", "shift", "änderung"},

	// Evaluation
	"problem":   {"issue", "defect", "fault", "problem"},
	"result":    {"outcome", "finding", "ergebnis"},
	"reason":    {"cause", "rationale", "grund", "ursache"},
	"important": {"significant", "critical", "wichtig"},

	// Quantities
	"cost":   {"price", "expense", "kosten"},
	"amount": {"quantity", "total", "menge"},

	// People and organizations
	"customer": {"client", "user", "kunde"},
	"company":  {"firm", "organization", "unternehmen"},
	"employee": {"worker", "staff", "mitarbeiter"},

	// German to English bridges
	"fehler":  {"error", "problem", "defect"},
	"bericht": {"report", "document"},
	"vertrag": {"contract", "agreement"},
	"antrag":  {"application", "request"},
}

// synonymsFor returns the synonym list for a term, or nil.
func synonymsFor(term string) []string {
	return Synonyms[term]
}
