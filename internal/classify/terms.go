package classify

// DefaultBreachTerms indicate an actual breach report.
var DefaultBreachTerms = []string{
	"leak", "breach", "hack", "compromise", "exposed", "stolen", "database",
	"credentials", "password", "email", "personal data", "user data",
	"customer data", "financial data", "credit card", "ssn", "social security",
	"dump", "records", "accounts", "users", "customers", "financial",
	"banking", "payment", "transaction", "identity", "personal", "address",
	"phone", "dob", "date of birth", "national id", "passport",
}

// DefaultSpamTerms indicate advertising or channel promotion.
var DefaultSpamTerms = []string{
	"buy", "sell", "offer", "discount", "promotion", "service", "tool",
	"software", "review", "rating", "backlink", "seo", "marketing",
	"advertisement", "sponsored", "deal", "sale", "free trial", "subscribe",
	"join", "telegram.me", "t.me", "channel", "group", "bot", "premium",
}
