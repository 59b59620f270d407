package domain

// Account é o saldo gastável de um usuário, em unidades mínimas da moeda.
type Account struct {
	UserID   string `json:"userId"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// Valor mínimo de depósito aceito pelo ledger
const MinDeposit int64 = 1000
