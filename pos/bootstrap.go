package pos

// Bootstrap returns the state used on first run or when saved data is
// unreadable. Seeded clients start with existing debt, recorded as their
// opening balance.
func Bootstrap() *State {
	products := []Product{
		{ID: "1", Name: "Kilo de Tortilla", BuyPrice: MustMoney("18.00"), SellPrice: MustMoney("24.00"), Stock: 200, Category: CategoryMasaYTortilla},
		{ID: "2", Name: "Paquete de Tostadas", BuyPrice: MustMoney("25.00"), SellPrice: MustMoney("35.00"), Stock: 50, Category: CategoryMasaYTortilla},
		{ID: "3", Name: "Coca-Cola 600ml", BuyPrice: MustMoney("14.50"), SellPrice: MustMoney("19.00"), Stock: 24, Category: CategoryBebidas},
		{ID: "4", Name: "Pepsi 600ml", BuyPrice: MustMoney("13.00"), SellPrice: MustMoney("17.50"), Stock: 24, Category: CategoryBebidas},
		{ID: "5", Name: "Galletas Surtidas", BuyPrice: MustMoney("15.00"), SellPrice: MustMoney("22.00"), Stock: 15, Category: CategoryAbarrotes},
		{ID: "6", Name: "Kilo de Masa", BuyPrice: MustMoney("15.00"), SellPrice: MustMoney("20.00"), Stock: 100, Category: CategoryMasaYTortilla},
	}

	clients := []Client{
		{ID: "c1", Name: "Doña María", Address: "Calle 5 de Mayo #12", Phone: "555-0101", Balance: MustMoney("150.00")},
		{ID: "c2", Name: "Don José (El de la esquina)", Address: "Av. Principal #45", Phone: "555-0202", Balance: MustMoney("0.00")},
		{ID: "c3", Name: `Fonda "Las Delicias"`, Address: "Callejón de la Paz #3", Phone: "555-0303", Balance: MustMoney("450.50")},
	}
	for i := range clients {
		clients[i].OpeningBalance = clients[i].Balance
	}

	return &State{
		Products: products,
		Clients:  clients,
		Sales:    []Sale{},
		Payments: []CreditPayment{},
	}
}
