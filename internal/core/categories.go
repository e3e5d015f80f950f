package core

// Sources offered when recording income. The stored category is always
// IncomeCategory; the source goes into the note.
var IncomeSources = []string{
	"Salary",
	"Freelance",
	"Investments",
	"Bonus",
	"Rental Income",
	"Other Income",
}

var ExpenseCategories = []string{
	"Groceries (Kirana)",
	"Mobile Recharge / Internet",
	"Rent",
	"Electricity Bill",
	"Water Bill",
	"LPG / Gas Refill",
	"Fuel (Petrol/Diesel/CNG)",
	"Metro/Train/Bus Fare",
	"Education Fees",
	"Healthcare / Medicines",
	"Insurance Premiums",
	"Swiggy / Zomato",
	"Shopping (Flipkart, Amazon)",
	"Subscriptions (Hotstar, JioCinema, etc.)",
	"Entertainment (Movies, Events)",
	"Travel (Ola/Uber, Flights, Hotels)",
	"Gifts / Donations",
	"EMI / Loan Repayment",
	"Credit Card Bill",
	"Personal Care",
	"Temple Offerings / Pooja Items",
	"Other Expenses",
}

// Categories returns the list offered for the given kind of transaction.
func Categories(income bool) []string {
	if income {
		return []string{IncomeCategory}
	}
	return ExpenseCategories
}
