package attr

// Info describes one attribute for consent screens and privacy reporting.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Topic       string `json:"category"`
}

// Catalog lists every attribute the platform may feed into AI analysis,
// grouped by topic. Consent screens render from this table and the privacy
// score is computed against it, so a field missing here is invisible to users.
var Catalog = []Info{
	{ID: "user.income", Name: "Annual Income", Description: "Your declared yearly income", Topic: "user"},
	{ID: "user.creditScore", Name: "Credit Score", Description: "Your current credit score", Topic: "user"},
	{ID: "user.dateOfBirth", Name: "Date of Birth", Description: "Used to derive your age", Topic: "user"},
	{ID: "user.employmentStatus", Name: "Employment Status", Description: "Your current employment situation", Topic: "user"},
	{ID: "user.address", Name: "Home Address", Description: "Your registered address", Topic: "user"},
	{ID: "user.email", Name: "Email Address", Description: "Your contact email", Topic: "user"},
	{ID: "user.firstName", Name: "First Name", Description: "Your given name", Topic: "user"},
	{ID: "user.lastName", Name: "Last Name", Description: "Your family name", Topic: "user"},

	{ID: "accounts.balance", Name: "Account Balance", Description: "Current balance of your accounts", Topic: "accounts"},
	{ID: "accounts.accountType", Name: "Account Type", Description: "Checking, savings or other account kinds", Topic: "accounts"},
	{ID: "accounts.accountNumber", Name: "Account Number", Description: "Your account identifiers", Topic: "accounts"},
	{ID: "accounts.status", Name: "Account Status", Description: "Whether accounts are active or frozen", Topic: "accounts"},

	{ID: "transactions.amount", Name: "Transaction Amounts", Description: "How much you spend and receive", Topic: "transactions"},
	{ID: "transactions.category", Name: "Spending Categories", Description: "What your transactions are classified as", Topic: "transactions"},
	{ID: "transactions.description", Name: "Transaction Descriptions", Description: "Free-text details of your transactions", Topic: "transactions"},
	{ID: "transactions.type", Name: "Transaction Type", Description: "Whether money moved in or out", Topic: "transactions"},
	{ID: "transactions.createdAt", Name: "Transaction Dates", Description: "When your transactions happened", Topic: "transactions"},
	{ID: "transactions.merchantName", Name: "Merchant Names", Description: "Where you spend money", Topic: "transactions"},

	{ID: "savings_accounts.balance", Name: "Savings Balance", Description: "Current balance of your savings accounts", Topic: "savings_accounts"},
	{ID: "savings_accounts.accountType", Name: "Savings Account Type", Description: "The kind of savings product you hold", Topic: "savings_accounts"},
	{ID: "savings_accounts.apy", Name: "Savings APY", Description: "Annual percentage yield on your savings", Topic: "savings_accounts"},
	{ID: "savings_accounts.interestRate", Name: "Interest Rate", Description: "Base interest rate on your savings", Topic: "savings_accounts"},

	{ID: "savings_goals.targetAmount", Name: "Goal Targets", Description: "How much you aim to save", Topic: "savings_goals"},
	{ID: "savings_goals.currentAmount", Name: "Goal Progress", Description: "How much you have saved toward goals", Topic: "savings_goals"},
	{ID: "savings_goals.monthlyContribution", Name: "Goal Contributions", Description: "Your planned monthly savings", Topic: "savings_goals"},
	{ID: "savings_goals.status", Name: "Goal Status", Description: "Whether goals are on track", Topic: "savings_goals"},
}

// CatalogIDs returns every catalog attribute identifier.
func CatalogIDs() []string {
	ids := make([]string, 0, len(Catalog))
	for _, info := range Catalog {
		ids = append(ids, info.ID)
	}
	return ids
}

// TopicAttributes returns the catalog identifiers belonging to one topic.
func TopicAttributes(topic string) []string {
	var ids []string
	for _, info := range Catalog {
		if info.Topic == topic {
			ids = append(ids, info.ID)
		}
	}
	return ids
}
