package dto

type CreditRequest struct {
	Tokens int    `json:"tokens"`
	Note   string `json:"note,omitempty"`
}

type TransactionsQuery struct {
	Limit int `query:"limit"`
}
